package linemux

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPort is a LinePort that serves fixed data and then EOF, or blocks
// after its data until closed when hold is set.
type TestPort struct {
	mu     sync.Mutex
	r      io.Reader
	hold   bool
	closed chan struct{}
	once   sync.Once
	err    error
}

func NewTestPort(data string) *TestPort {
	return &TestPort{r: strings.NewReader(data), closed: make(chan struct{})}
}

func NewHoldingTestPort(data string) *TestPort {
	p := NewTestPort(data)
	p.hold = true
	return p
}

func (p *TestPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	n, err := p.r.Read(buf)
	hold, failure := p.hold, p.err
	p.mu.Unlock()
	if n > 0 {
		return n, nil
	}
	if failure != nil {
		return 0, failure
	}
	if err == io.EOF && hold {
		<-p.closed
	}
	return 0, err
}

func (p *TestPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *TestPort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func drain(ch <-chan string) []string {
	var out []string
	for l := range ch {
		out = append(out, l)
	}
	return out
}

func TestMonitorReliableSubscriberGetsEveryLine(t *testing.T) {
	var input strings.Builder
	var want []string
	for i := 0; i < 200; i++ {
		line := strings.Repeat("x", i%7) + "line"
		want = append(want, line)
		input.WriteString(line + "\n")
	}

	mux := NewLineMux(NewTestPort(input.String()))
	_, reliable := mux.SubscribeReliable()
	_, lossy := mux.Subscribe()

	got := make(chan []string, 1)
	go func() { got <- drain(reliable) }()

	require.NoError(t, mux.Monitor(context.Background()))
	require.NoError(t, mux.Close())

	assert.Equal(t, want, <-got)
	_, ok := <-lossy
	assert.False(t, ok, "lossy channel closed by Close")

	lines, dropped := mux.Stats()
	assert.Equal(t, int64(200), lines)
	assert.Equal(t, int64(200), dropped, "nobody read the lossy channel")
}

func TestMonitorLongLine(t *testing.T) {
	long := strings.Repeat("a", 200*1024)
	mux := NewLineMux(NewTestPort(long + "\nshort\n"))
	_, ch := mux.SubscribeReliable()

	got := make(chan []string, 1)
	go func() { got <- drain(ch) }()
	require.NoError(t, mux.Monitor(context.Background()))
	mux.Close()

	lines := <-got
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], len(long))
}

func TestMonitorReadError(t *testing.T) {
	port := NewTestPort("")
	port.err = errors.New("device unplugged")
	mux := NewLineMux(port)

	err := mux.Monitor(context.Background())
	assert.EqualError(t, err, "device unplugged")
}

func TestMonitorCancel(t *testing.T) {
	port := NewHoldingTestPort("one\n")
	mux := NewLineMux(port)
	_, ch := mux.SubscribeReliable()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	assert.Equal(t, "one", <-ch)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
	assert.True(t, port.isClosed())
}

func TestMonitorReliableBlockedByCancel(t *testing.T) {
	mux := NewLineMux(NewTestPort("a\nb\n"))
	mux.SubscribeReliable() // never read

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mux.Monitor(ctx), context.DeadlineExceeded)
}

func TestUnsubscribe(t *testing.T) {
	mux := NewLineMux(NewTestPort(""))
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	mux.Unsubscribe(id) // second call is a no-op
	mux.Unsubscribe("unknown")
}

func TestCloseIsIdempotent(t *testing.T) {
	port := NewTestPort("")
	mux := NewLineMux(port)
	require.NoError(t, mux.Close())
	require.NoError(t, mux.Close())
	assert.True(t, port.isClosed())

	_, ch := mux.Subscribe()
	_, ok := <-ch
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestInject(t *testing.T) {
	mux := NewLineMux(NewHoldingTestPort(""))
	_, ch := mux.SubscribeReliable()

	go func() {
		assert.NoError(t, mux.Inject(context.Background(), `{"type":"noface","ts":1}`))
	}()
	assert.Equal(t, `{"type":"noface","ts":1}`, <-ch)

	lines, _ := mux.Stats()
	assert.Equal(t, int64(1), lines)

	require.NoError(t, mux.Close())
	assert.ErrorIs(t, mux.Inject(context.Background(), "late"), ErrClosed)
}
