package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/banshee-data/vitals.report/internal/session"
)

// Writer writes one JSON object per line. On stdout this is the stream the
// backend consumes.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriter returns a Writer on w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Name() string { return "jsonl" }

func (w *Writer) PublishMetrics(_ context.Context, m session.Metrics) error {
	return w.write(m)
}

func (w *Writer) PublishStatus(_ context.Context, st session.Status) error {
	return w.write(st)
}

// Encode terminates each value with a newline.
func (w *Writer) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *Writer) Close() error { return nil }
