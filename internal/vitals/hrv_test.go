package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPeaksFirstWins(t *testing.T) {
	t.Parallel()

	signal := []float64{0, 5, 0, 9, 0, 0, 0, 4, 0}
	assert.Equal(t, []int{1, 7}, DetectPeaks(signal, 3))
	assert.Equal(t, []int{1, 3, 7}, DetectPeaks(signal, 2))
}

func TestDetectPeaksStrict(t *testing.T) {
	t.Parallel()

	// plateaus and endpoints are never peaks
	assert.Empty(t, DetectPeaks([]float64{3, 1, 2, 2, 1, 3}, 1))
}

func TestRRIntervalsBounds(t *testing.T) {
	t.Parallel()

	// at 10 Hz: 3 samples = 300 ms, 4 = 400 ms, 20 = 2000 ms, 19 = 1900 ms
	peaks := []int{0, 3, 7, 27, 46}
	assert.Equal(t, []float64{400, 1900}, RRIntervals(peaks, 10))
}

func TestRMSSD(t *testing.T) {
	t.Parallel()

	const n, rate = 300, 30.0

	regular := []int{}
	for p := 12; p < n-1; p += 24 {
		regular = append(regular, p)
	}

	// 0.7 s and 0.9 s beats: every successive difference is 200 ms
	alternating := []int{}
	for p, i := 10, 0; p < n-1; i++ {
		alternating = append(alternating, p)
		if i%2 == 0 {
			p += 21
		} else {
			p += 27
		}
	}

	// 0.4 s and 1.2 s beats: RMSSD of 800 ms is outside the reported range
	erratic := []int{}
	for p, i := 5, 0; p < n-1; i++ {
		erratic = append(erratic, p)
		if i%2 == 0 {
			p += 12
		} else {
			p += 36
		}
	}

	tests := []struct {
		name   string
		signal []float64
		want   float64
	}{
		{"regular beats", peakTrain(n, regular), 0},
		{"alternating beats", peakTrain(n, alternating), 200},
		{"too variable", peakTrain(n, erratic), 0},
		{"too few samples", peakTrain(9, []int{4}), 0},
		{"too few peaks", peakTrain(n, []int{50, 150}), 0},
		{"intervals too short", peakTrain(n, []int{20, 29, 38, 47, 56}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, RMSSD(tt.signal, rate), 1e-9)
		})
	}
}

func TestRMSSDInvalidRate(t *testing.T) {
	t.Parallel()
	assert.Zero(t, RMSSD(make([]float64, 100), 0))
}
