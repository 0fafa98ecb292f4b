package vitals

import "gonum.org/v1/gonum/stat"

// Source records which signal produced a breathing estimate.
type Source int

const (
	SourceNone Source = iota
	SourcePulse
	SourceLandmark
)

func (s Source) String() string {
	switch s {
	case SourcePulse:
		return "pulse"
	case SourceLandmark:
		return "landmark"
	default:
		return "none"
	}
}

// Breathing is one breathing-rate poll in breaths per minute. Source is
// SourceNone for holds and empty results.
type Breathing struct {
	Rate       float64
	Confidence float64
	Source     Source
}

// BreathingEstimator derives breathing rate from the rPPG pulse waveform
// when it is trustworthy and from chin motion otherwise. It is not safe for
// concurrent use.
type BreathingEstimator struct {
	cfg       Config
	landmarks *Window[LandmarkSample]

	lastRate       float64
	lastConfidence float64
}

// NewBreathingEstimator creates an estimator with an empty landmark window.
func NewBreathingEstimator(cfg Config) *BreathingEstimator {
	return &BreathingEstimator{
		cfg:       cfg,
		landmarks: NewWindow[LandmarkSample](cfg.Window),
	}
}

// AddLandmarkSample appends the normalised chin y coordinate captured at
// timestampMs. Timestamps must be non-decreasing.
func (e *BreathingEstimator) AddLandmarkSample(timestampMs int64, chinY float64) {
	e.landmarks.Add(LandmarkSample{TimestampMs: timestampMs, Y: chinY})
}

// Len returns the number of buffered landmark samples.
func (e *BreathingEstimator) Len() int { return e.landmarks.Len() }

// Samples returns a copy of the buffered landmark samples.
func (e *BreathingEstimator) Samples() []LandmarkSample { return e.landmarks.Snapshot() }

// Last returns the last successful estimate with its original confidence.
func (e *BreathingEstimator) Last() Breathing {
	return Breathing{Rate: e.lastRate, Confidence: e.lastConfidence}
}

func (e *BreathingEstimator) hold() Breathing {
	return Breathing{Rate: e.lastRate}
}

// Estimate returns the breathing rate. pulse may be nil.
//
// The pulse branch is tried first when pulse is non-nil and sampled at
// MinFPSForBRPulse or more; it wins when its confidence exceeds
// PulseConfidenceThreshold. Otherwise the chin landmark branch runs.
func (e *BreathingEstimator) Estimate(pulse *PulseSignal) Breathing {
	if pulse != nil && pulse.SampleRate >= e.cfg.MinFPSForBRPulse {
		if est, ok := e.fromPulse(*pulse); ok && est.Confidence > e.cfg.PulseConfidenceThreshold {
			return e.accept(est, SourcePulse)
		}
	}
	return e.fromLandmarks()
}

func (e *BreathingEstimator) accept(est RateEstimate, src Source) Breathing {
	e.lastRate = est.Rate
	e.lastConfidence = est.Confidence
	return Breathing{Rate: est.Rate, Confidence: est.Confidence, Source: src}
}

func (e *BreathingEstimator) fromPulse(p PulseSignal) (RateEstimate, bool) {
	if len(p.Samples) < e.cfg.MinPulseSamplesForBR {
		return RateEstimate{}, false
	}
	est, err := ExtractRate(p.Samples, p.SampleRate, e.cfg.BreathingBand)
	if err != nil {
		return RateEstimate{}, false
	}
	return est, true
}

func (e *BreathingEstimator) fromLandmarks() Breathing {
	if e.landmarks.Len() < e.cfg.MinLandmarkSamples {
		return e.hold()
	}
	if e.landmarks.Span() < e.cfg.MinLandmarkSpan {
		return Breathing{}
	}
	rate := e.landmarks.EffectiveRate()
	if rate < 2*e.cfg.BreathingBand.HighHz {
		return e.hold()
	}

	est, err := ExtractRate(Detrend(e.landmarkSignal()), rate, e.cfg.BreathingBand)
	if err != nil {
		return e.hold()
	}
	est.Confidence *= e.cfg.LandmarkConfidenceScale
	if est.Confidence <= 0 {
		return Breathing{Rate: est.Rate}
	}
	return e.accept(est, SourceLandmark)
}

func (e *BreathingEstimator) landmarkSignal() []float64 {
	samples := e.landmarks.Snapshot()
	ys := make([]float64, len(samples))
	for i, s := range samples {
		ys[i] = s.Y
	}
	return ys
}

// Detrend returns a copy of signal with its mean removed.
func Detrend(signal []float64) []float64 {
	out := make([]float64, len(signal))
	if len(signal) == 0 {
		return out
	}
	mean := stat.Mean(signal, nil)
	for i, v := range signal {
		out[i] = v - mean
	}
	return out
}
