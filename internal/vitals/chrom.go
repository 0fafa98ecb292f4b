package vitals

import "gonum.org/v1/gonum/stat"

const (
	// channels whose temporal mean falls below this are normalised by 1
	minChannelMean = 1e-6
	chromEpsilon   = 1e-8
)

// Chrom projects a window of colour samples onto the CHROM pulse axis
// (De Haan & Jeanne, 2013). Each channel is first normalised by its mean over
// the window, then
//
//	xs = 3R - 2G
//	ys = 1.5R + G - 1.5B
//	pulse = xs - (σ(xs)/σ(ys)) ys
//
// which cancels the specular component shared by xs and ys. Chrom is pure:
// it returns nil for an empty window and never modifies samples.
func Chrom(samples []ColorSample) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}

	var means RGB
	for _, s := range samples {
		for c := range means {
			means[c] += s.RGB[c]
		}
	}
	for c := range means {
		means[c] /= float64(n)
		if means[c] < minChannelMean {
			means[c] = 1
		}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range samples {
		r := s.RGB[0] / means[0]
		g := s.RGB[1] / means[1]
		b := s.RGB[2] / means[2]
		xs[i] = 3*r - 2*g
		ys[i] = 1.5*r + g - 1.5*b
	}

	_, stdX := stat.PopMeanStdDev(xs, nil)
	_, stdY := stat.PopMeanStdDev(ys, nil)
	alpha := stdX / (stdY + chromEpsilon)

	pulse := make([]float64, n)
	for i := range pulse {
		pulse[i] = xs[i] - alpha*ys[i]
	}
	return pulse
}
