package vitals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEviction(t *testing.T) {
	t.Parallel()

	w := NewWindow[LandmarkSample](2 * time.Second)
	steps := []int64{0, 33, 34, 100, 500, 1, 250, 900, 1200, 40, 33, 2500}

	var inserted []int64
	ts := int64(1000)
	for _, step := range steps {
		ts += step
		inserted = append(inserted, ts)
		w.Add(LandmarkSample{TimestampMs: ts, Y: 0.5})

		cutoff := ts - 2000
		want := 0
		for _, v := range inserted {
			if v >= cutoff {
				want++
			}
		}
		require.Equal(t, want, w.Len(), "after inserting ts=%d", ts)
		for _, s := range w.Snapshot() {
			assert.GreaterOrEqual(t, s.TimestampMs, cutoff)
		}
	}
}

func TestWindowKeepsBoundarySample(t *testing.T) {
	t.Parallel()

	w := NewWindow[ColorSample](time.Second)
	w.Add(ColorSample{TimestampMs: 0})
	w.Add(ColorSample{TimestampMs: 1000})
	assert.Equal(t, 2, w.Len(), "sample exactly one window old is retained")

	w.Add(ColorSample{TimestampMs: 1001})
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, int64(1000), w.Snapshot()[0].TimestampMs)
}

func TestWindowSpanAndRate(t *testing.T) {
	t.Parallel()

	w := NewWindow[ColorSample](30 * time.Second)
	assert.Zero(t, w.Span())
	assert.Zero(t, w.EffectiveRate())

	for _, ts := range sampleTimes(101, 10, 0) {
		w.Add(ColorSample{TimestampMs: ts})
	}
	assert.Equal(t, 10*time.Second, w.Span())
	assert.InDelta(t, 10.1, w.EffectiveRate(), 1e-9)
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	w := NewWindow[LandmarkSample](time.Minute)
	w.Add(LandmarkSample{TimestampMs: 1, Y: 0.25})
	snap := w.Snapshot()
	snap[0].Y = 99
	assert.Equal(t, 0.25, w.Snapshot()[0].Y)
}

func TestWindowOutOfOrderIsNotResorted(t *testing.T) {
	t.Parallel()

	// Out-of-order input violates the ordering precondition; the window
	// keeps arrival order rather than repairing it.
	w := NewWindow[LandmarkSample](10 * time.Second)
	w.Add(LandmarkSample{TimestampMs: 5000})
	w.Add(LandmarkSample{TimestampMs: 3000})

	snap := w.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(5000), snap[0].TimestampMs)
	assert.Equal(t, int64(3000), snap[1].TimestampMs)
}

func TestWindowLongRunStaysBounded(t *testing.T) {
	t.Parallel()

	w := NewWindow[ColorSample](time.Second)
	for _, ts := range sampleTimes(10000, 30, 0) {
		w.Add(ColorSample{TimestampMs: ts})
	}
	assert.LessOrEqual(t, w.Len(), 31)
	assert.LessOrEqual(t, cap(w.samples), 2*w.Len()+64)
}
