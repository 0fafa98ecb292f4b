package vitals

import (
	"math"
)

// sampleTimes returns n millisecond timestamps at rate Hz starting at startMs.
func sampleTimes(n int, rate float64, startMs int64) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = startMs + int64(math.Round(float64(i)*1000/rate))
	}
	return ts
}

// sine returns n samples of amp·sin(2πft) at rate Hz.
func sine(n int, rate, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

// pulseRGB builds colour samples whose CHROM projection is -1 - sin(2πft):
// only green carries the pulse, with relative amplitude 0.25.
func pulseRGB(n int, rate, freq float64) []ColorSample {
	ts := sampleTimes(n, rate, 0)
	wave := sine(n, rate, freq, 0.25)
	out := make([]ColorSample, n)
	for i := range out {
		out[i] = ColorSample{TimestampMs: ts[i], RGB: RGB{120, 100 * (1 + wave[i]), 80}}
	}
	return out
}

// peakTrain builds a waveform whose only strict local maxima sit at peaks.
func peakTrain(n int, peaks []int) []float64 {
	out := make([]float64, n)
	for i := range out {
		best := math.Inf(1)
		for _, p := range peaks {
			if d := math.Abs(float64(i - p)); d < best {
				best = d
			}
		}
		out[i] = -best
	}
	return out
}
