package vitals

import "math"

const (
	minHRVSamples  = 10
	minHRVPeaks    = 3
	minRRIntervals = 2

	// 200 BPM ceiling: beats are at least 0.3 s apart
	minBeatSpacingSeconds = 0.3

	// RR plausibility (exclusive), 30-200 BPM
	minRRMs = 300.0
	maxRRMs = 2000.0

	// reported RMSSD range (inclusive)
	minRMSSDMs = 1.0
	maxRMSSDMs = 300.0
)

// DetectPeaks returns the indices of strict local maxima in signal, skipping
// any candidate closer than minDistance samples to the previously accepted
// peak. The first accepted peak wins; a later, taller candidate inside the
// spacing is discarded.
func DetectPeaks(signal []float64, minDistance int) []int {
	var peaks []int
	for i := 1; i < len(signal)-1; i++ {
		if signal[i] <= signal[i-1] || signal[i] <= signal[i+1] {
			continue
		}
		if len(peaks) > 0 && i-peaks[len(peaks)-1] < minDistance {
			continue
		}
		peaks = append(peaks, i)
	}
	return peaks
}

// RRIntervals converts consecutive peak gaps to milliseconds and keeps only
// intervals strictly inside (300, 2000) ms.
func RRIntervals(peaks []int, sampleRate float64) []float64 {
	var rr []float64
	for i := 1; i < len(peaks); i++ {
		ms := float64(peaks[i]-peaks[i-1]) / sampleRate * 1000
		if ms > minRRMs && ms < maxRRMs {
			rr = append(rr, ms)
		}
	}
	return rr
}

// RMSSD estimates heart-rate variability from a bandpassed pulse waveform as
// the root mean square of successive RR differences, in milliseconds. It
// returns 0 when there are too few samples, peaks or intervals, or when the
// result falls outside [1, 300] ms.
func RMSSD(filtered []float64, sampleRate float64) float64 {
	if len(filtered) < minHRVSamples || sampleRate <= 0 {
		return 0
	}

	minDistance := int(minBeatSpacingSeconds * sampleRate)
	if minDistance < 2 {
		minDistance = 2
	}
	peaks := DetectPeaks(filtered, minDistance)
	if len(peaks) < minHRVPeaks {
		return 0
	}

	rr := RRIntervals(peaks, sampleRate)
	if len(rr) < minRRIntervals {
		return 0
	}

	var sumSq float64
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSq += d * d
	}
	rmssd := math.Sqrt(sumSq / float64(len(rr)-1))

	if rmssd < minRMSSDMs || rmssd > maxRMSSDMs {
		return 0
	}
	return rmssd
}
