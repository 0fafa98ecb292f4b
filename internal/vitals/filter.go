package vitals

import (
	"errors"
	"math"
	"math/cmplx"
)

var (
	// ErrInvalidBand is returned when a band collapses after normalisation
	// to the Nyquist frequency (low >= high or low <= 0).
	ErrInvalidBand = errors.New("vitals: invalid filter band")
	// ErrSignalTooShort is returned when a signal cannot cover the
	// forward-backward padding.
	ErrSignalTooShort = errors.New("vitals: signal too short for zero-phase filtering")
)

const (
	butterworthOrder = 4
	// upper band edge clamp, as a fraction of Nyquist
	maxNormalizedEdge = 0.99
	// bilinear transform constant for frequencies normalised to Nyquist (2·fs with fs = 2)
	bilinearK = 4.0
)

// biquad is one second-order section in transposed direct form II.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// dcGain is the section's response to a constant input.
func (q biquad) dcGain() float64 {
	return (q.b0 + q.b1 + q.b2) / (1 + q.a1 + q.a2)
}

// steadyState returns the state that makes the section output its
// steady-state value for a constant input x.
func (q biquad) steadyState(x float64) (z1, z2 float64) {
	y := q.dcGain() * x
	return y - q.b0*x, q.b2*x - q.a2*y
}

func (q biquad) response(z complex128) complex128 {
	zi := 1 / z
	num := complex(q.b0, 0) + complex(q.b1, 0)*zi + complex(q.b2, 0)*zi*zi
	den := 1 + complex(q.a1, 0)*zi + complex(q.a2, 0)*zi*zi
	return num / den
}

// Bandpass is a digital Butterworth bandpass realised as cascaded biquads.
type Bandpass struct {
	sections []biquad
}

// NewBandpass designs a 4th-order Butterworth bandpass for [lowHz, highHz] at
// the given sample rate. The high edge is clamped to 0.99 of Nyquist.
func NewBandpass(sampleRate, lowHz, highHz float64) (*Bandpass, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidBand
	}
	nyquist := sampleRate / 2
	low := lowHz / nyquist
	high := math.Min(highHz/nyquist, maxNormalizedEdge)
	if low >= high || low <= 0 {
		return nil, ErrInvalidBand
	}

	// prewarp the edges, then low-pass prototype -> bandpass -> bilinear
	wl := bilinearK * math.Tan(math.Pi*low/2)
	wh := bilinearK * math.Tan(math.Pi*high/2)
	bw := wh - wl
	w0 := math.Sqrt(wl * wh)

	sections := make([]biquad, 0, butterworthOrder)
	for m := -butterworthOrder + 1; m < 0; m += 2 {
		// upper-half-plane prototype pole; its conjugate yields the mirrored sections
		p := -cmplx.Exp(complex(0, math.Pi*float64(m)/(2*butterworthOrder)))
		half := p * complex(bw/2, 0)
		disc := cmplx.Sqrt(half*half - complex(w0*w0, 0))
		for _, s := range []complex128{half + disc, half - disc} {
			z := (complex(bilinearK, 0) + s) / (complex(bilinearK, 0) - s)
			sections = append(sections, biquad{
				b0: 1, b1: 0, b2: -1, // one zero at z=1 and one at z=-1
				a1: -2 * real(z),
				a2: real(z)*real(z) + imag(z)*imag(z),
			})
		}
	}

	// unit gain at the centre frequency
	center := cmplx.Exp(complex(0, 2*math.Atan(w0/bilinearK)))
	h := complex(1, 0)
	for _, q := range sections {
		h *= q.response(center)
	}
	g := math.Pow(1/cmplx.Abs(h), 1/float64(len(sections)))
	for i := range sections {
		sections[i].b0 *= g
		sections[i].b1 *= g
		sections[i].b2 *= g
	}

	return &Bandpass{sections: sections}, nil
}

// PadLength is the number of odd-extension samples added to each end by
// FilterZeroPhase. Signals must be strictly longer than this.
func (f *Bandpass) PadLength() int {
	return 3 * (2*len(f.sections) + 1)
}

// Filter runs the cascade forward once, starting every section in the
// steady state for a constant input equal to x[0].
func (f *Bandpass) Filter(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	if len(y) == 0 {
		return y
	}
	level := y[0]
	for _, q := range f.sections {
		z1, z2 := q.steadyState(level)
		level *= q.dcGain()
		for i, in := range y {
			out := q.b0*in + z1
			z1 = q.b1*in - q.a1*out + z2
			z2 = q.b2*in - q.a2*out
			y[i] = out
		}
	}
	return y
}

// FilterZeroPhase applies the filter forward and backward over an
// odd-extended copy of x, so the output has no group delay.
func (f *Bandpass) FilterZeroPhase(x []float64) ([]float64, error) {
	pad := f.PadLength()
	n := len(x)
	if n <= pad {
		return nil, ErrSignalTooShort
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	y := f.Filter(ext)
	reverse(y)
	y = f.Filter(y)
	reverse(y)

	out := make([]float64, n)
	copy(out, y[pad:pad+n])
	return out, nil
}

// BandpassFilter designs a bandpass for the given band and applies it with
// zero phase. Parameter and length failures are reported as ErrInvalidBand
// and ErrSignalTooShort.
func BandpassFilter(signal []float64, sampleRate, lowHz, highHz float64) ([]float64, error) {
	f, err := NewBandpass(sampleRate, lowHz, highHz)
	if err != nil {
		return nil, err
	}
	return f.FilterZeroPhase(signal)
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
