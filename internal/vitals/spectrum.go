package vitals

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoBandBins is returned when no FFT bin falls inside the search band.
	ErrNoBandBins = errors.New("vitals: no spectral bins inside band")
	// ErrImplausibleRate is returned when the dominant rate falls outside the
	// band's physiological bounds.
	ErrImplausibleRate = errors.New("vitals: implausible rate")
)

// Band is a frequency search band plus the plausibility bounds applied to the
// resulting rate (per minute).
type Band struct {
	LowHz   float64
	HighHz  float64
	MinRate float64
	MaxRate float64
}

// Contains reports whether f lies in [LowHz, HighHz].
func (b Band) Contains(f float64) bool {
	return f >= b.LowHz && f <= b.HighHz
}

// Plausible reports whether a per-minute rate lies in [MinRate, MaxRate].
func (b Band) Plausible(rate float64) bool {
	return rate >= b.MinRate && rate <= b.MaxRate
}

// RateEstimate is the dominant in-band frequency of a signal.
type RateEstimate struct {
	FrequencyHz float64
	Rate        float64 // per minute
	Confidence  float64 // peak magnitude / in-band magnitude sum
}

// Spectrum is a one-sided magnitude spectrum.
type Spectrum struct {
	Freqs      []float64
	Magnitudes []float64
}

// MagnitudeSpectrum applies a Hann window to a copy of signal and returns the
// magnitude of its real FFT. Bin k sits at k·sampleRate/n.
func MagnitudeSpectrum(signal []float64, sampleRate float64) Spectrum {
	n := len(signal)
	if n == 0 {
		return Spectrum{}
	}
	seq := make([]float64, n)
	copy(seq, signal)
	window.Hann(seq)

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)
	sp := Spectrum{
		Freqs:      make([]float64, len(coeff)),
		Magnitudes: make([]float64, len(coeff)),
	}
	for k, c := range coeff {
		sp.Freqs[k] = float64(k) * sampleRate / float64(n)
		sp.Magnitudes[k] = cmplx.Abs(c)
	}
	return sp
}

// Dominant picks the largest in-band bin. Confidence is that bin's share of
// the in-band magnitude sum and is 0 when the band holds no energy.
func (s Spectrum) Dominant(band Band) (RateEstimate, error) {
	var mags, freqs []float64
	for k, f := range s.Freqs {
		if band.Contains(f) {
			freqs = append(freqs, f)
			mags = append(mags, s.Magnitudes[k])
		}
	}
	if len(mags) == 0 {
		return RateEstimate{}, ErrNoBandBins
	}

	peak := floats.MaxIdx(mags)
	est := RateEstimate{
		FrequencyHz: freqs[peak],
		Rate:        freqs[peak] * 60,
	}
	if total := floats.Sum(mags); total > 0 {
		est.Confidence = mags[peak] / total
	}
	return est, nil
}

// ExtractRate bandpass-filters signal to band, finds the dominant in-band
// frequency and converts it to a per-minute rate. A rate outside the band's
// plausibility bounds is returned together with ErrImplausibleRate.
func ExtractRate(signal []float64, sampleRate float64, band Band) (RateEstimate, error) {
	est, _, err := extractRate(signal, sampleRate, band)
	return est, err
}

// extractRate is ExtractRate that also hands back the filtered waveform.
func extractRate(signal []float64, sampleRate float64, band Band) (RateEstimate, []float64, error) {
	filtered, err := BandpassFilter(signal, sampleRate, band.LowHz, band.HighHz)
	if err != nil {
		return RateEstimate{}, nil, err
	}

	est, err := MagnitudeSpectrum(filtered, sampleRate).Dominant(band)
	if err != nil {
		return RateEstimate{}, filtered, err
	}
	if !band.Plausible(est.Rate) {
		return est, filtered, fmt.Errorf("%w: %.1f/min outside [%.0f, %.0f]", ErrImplausibleRate, est.Rate, band.MinRate, band.MaxRate)
	}
	return est, filtered, nil
}
