// Package linemux fans out newline-delimited input from a single source
// (stdin, a serial device or a fixture file) to multiple subscribers.
package linemux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Inject after Close.
var ErrClosed = errors.New("line mux closed")

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// LinePort is the minimal interface for a line source.
type LinePort interface {
	io.Reader
	io.Closer
}

type subscriber struct {
	ch       chan string
	reliable bool
}

// LineMux multiplexes the lines read from one port. Ordinary subscribers
// are lossy: a subscriber that is not ready when a line arrives misses it.
// Reliable subscribers receive every line in order and apply backpressure
// to the reader.
type LineMux[T LinePort] struct {
	port         T
	subscribers  map[string]subscriber
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	lines   atomic.Int64
	dropped atomic.Int64
}

// NewLineMux creates a LineMux reading from port.
func NewLineMux[T LinePort](port T) *LineMux[T] {
	return &LineMux[T]{
		port:        port,
		subscribers: make(map[string]subscriber),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a lossy subscription.
func (m *LineMux[T]) Subscribe() (string, chan string) {
	return m.subscribe(false)
}

// SubscribeReliable creates a subscription that receives every line.
// The subscriber must keep reading until the channel is closed or the
// Monitor context is cancelled.
func (m *LineMux[T]) SubscribeReliable() (string, chan string) {
	return m.subscribe(true)
}

func (m *LineMux[T]) subscribe(reliable bool) (string, chan string) {
	id := randomID()
	ch := make(chan string)

	m.closingMu.Lock()
	closing := m.closing
	m.closingMu.Unlock()
	if closing {
		close(ch)
		return id, ch
	}

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = subscriber{ch: ch, reliable: reliable}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *LineMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if sub, ok := m.subscribers[id]; ok {
		close(sub.ch)
		delete(m.subscribers, id)
	}
}

// Stats reports the number of lines read and lossy deliveries dropped.
func (m *LineMux[T]) Stats() (lines, dropped int64) {
	return m.lines.Load(), m.dropped.Load()
}

func (m *LineMux[T]) isClosing() bool {
	m.closingMu.Lock()
	defer m.closingMu.Unlock()
	return m.closing
}

// broadcast delivers line to every subscriber.
func (m *LineMux[T]) broadcast(ctx context.Context, line string) error {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for _, sub := range m.subscribers {
		if sub.reliable {
			select {
			case sub.ch <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		select {
		case sub.ch <- line:
		default:
			// skip a busy tail rather than stall the source
			m.dropped.Add(1)
		}
	}
	return nil
}

// Inject broadcasts line as if it had been read from the port.
func (m *LineMux[T]) Inject(ctx context.Context, line string) error {
	if m.isClosing() {
		return ErrClosed
	}
	m.lines.Add(1)
	return m.broadcast(ctx, line)
}

// Monitor reads lines from the port until EOF, a read error or ctx is
// cancelled. EOF returns nil.
func (m *LineMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)
	scan.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so the loop below can
	// still observe cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if m.isClosing() {
				return nil
			}
			m.lines.Add(1)
			if err := m.broadcast(ctx, line); err != nil {
				return err
			}
		}
	}
}

// Close closes every subscriber channel and the port.
func (m *LineMux[T]) Close() error {
	m.closingMu.Lock()
	if m.closing {
		m.closingMu.Unlock()
		return nil
	}
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	for id, sub := range m.subscribers {
		close(sub.ch)
		delete(m.subscribers, id)
	}
	m.subscriberMu.Unlock()
	return m.port.Close()
}
