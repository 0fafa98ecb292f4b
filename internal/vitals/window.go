package vitals

import "time"

// Timestamped is implemented by every sample kept in a Window.
type Timestamped interface {
	Timestamp() int64
}

// RGB is an averaged skin-region colour triple in R, G, B order.
type RGB [3]float64

// ColorSample is the mean colour of the forehead and cheek regions for one
// analysed frame.
type ColorSample struct {
	TimestampMs int64
	RGB         RGB
}

// Timestamp implements Timestamped.
func (s ColorSample) Timestamp() int64 { return s.TimestampMs }

// LandmarkSample is the normalised vertical chin coordinate for one frame.
type LandmarkSample struct {
	TimestampMs int64
	Y           float64
}

// Timestamp implements Timestamped.
func (s LandmarkSample) Timestamp() int64 { return s.TimestampMs }

// Window is a time-bounded FIFO of samples. After every Add the oldest
// retained sample is no older than the newest timestamp minus the retention.
//
// Samples must be added in non-decreasing timestamp order. Nothing is
// re-sorted: an out-of-order timestamp is kept where it lands and only the
// front of the window is ever evicted.
type Window[T Timestamped] struct {
	retentionMs int64
	samples     []T
}

// NewWindow creates an empty window retaining samples for d.
func NewWindow[T Timestamped](d time.Duration) *Window[T] {
	return &Window[T]{retentionMs: d.Milliseconds()}
}

// Add appends s and evicts samples older than the retention from the front.
func (w *Window[T]) Add(s T) {
	w.samples = append(w.samples, s)

	cutoff := s.Timestamp() - w.retentionMs
	i := 0
	for i < len(w.samples) && w.samples[i].Timestamp() < cutoff {
		i++
	}
	if i == 0 {
		return
	}
	w.samples = w.samples[i:]

	// release the evicted prefix once it dominates the backing array
	if cap(w.samples) > 2*len(w.samples)+64 {
		compact := make([]T, len(w.samples), 2*len(w.samples)+1)
		copy(compact, w.samples)
		w.samples = compact
	}
}

// Len returns the number of retained samples.
func (w *Window[T]) Len() int { return len(w.samples) }

// Snapshot returns a copy of the retained samples, oldest first.
func (w *Window[T]) Snapshot() []T {
	out := make([]T, len(w.samples))
	copy(out, w.samples)
	return out
}

// Span returns the time between the oldest and newest retained samples.
func (w *Window[T]) Span() time.Duration {
	if len(w.samples) < 2 {
		return 0
	}
	first := w.samples[0].Timestamp()
	last := w.samples[len(w.samples)-1].Timestamp()
	return time.Duration(last-first) * time.Millisecond
}

// EffectiveRate returns samples per second over the window span, or 0 when
// the span is empty.
func (w *Window[T]) EffectiveRate() float64 {
	span := w.Span().Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(w.samples)) / span
}
