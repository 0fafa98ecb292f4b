package vitals

// HeartRate is one heart-rate poll. Confidence 0 with a non-zero BPM means
// the estimator is holding its last good value; all zeros means no estimate.
type HeartRate struct {
	BPM        float64
	Confidence float64
	HRVMs      float64
}

// PulseSignal is the unfiltered CHROM waveform of the current colour window
// together with its effective sample rate.
type PulseSignal struct {
	Samples    []float64
	SampleRate float64
}

// gate is the outcome of the shared window checks. gateHold means too few
// samples so far; gateEmpty means a window too short or too sparse to ever
// have produced an estimate.
type gate int

const (
	gateOpen gate = iota
	gateHold
	gateEmpty
)

// HeartRateEstimator turns averaged skin colour samples into heart rate and
// HRV. It is not safe for concurrent use.
type HeartRateEstimator struct {
	cfg     Config
	samples *Window[ColorSample]

	lastBPM        float64
	lastHRV        float64
	lastConfidence float64
}

// NewHeartRateEstimator creates an estimator with an empty colour window.
func NewHeartRateEstimator(cfg Config) *HeartRateEstimator {
	return &HeartRateEstimator{
		cfg:     cfg,
		samples: NewWindow[ColorSample](cfg.Window),
	}
}

// AddSample appends the mean ROI colour captured at timestampMs. Timestamps
// must be non-decreasing.
func (e *HeartRateEstimator) AddSample(timestampMs int64, rgb RGB) {
	e.samples.Add(ColorSample{TimestampMs: timestampMs, RGB: rgb})
}

// Len returns the number of buffered colour samples.
func (e *HeartRateEstimator) Len() int { return e.samples.Len() }

// Samples returns a copy of the buffered colour samples.
func (e *HeartRateEstimator) Samples() []ColorSample { return e.samples.Snapshot() }

// Last returns the last successful estimate with its original confidence.
func (e *HeartRateEstimator) Last() HeartRate {
	return HeartRate{BPM: e.lastBPM, Confidence: e.lastConfidence, HRVMs: e.lastHRV}
}

func (e *HeartRateEstimator) hold() HeartRate {
	return HeartRate{BPM: e.lastBPM, HRVMs: e.lastHRV}
}

func (e *HeartRateEstimator) pulse() (PulseSignal, gate) {
	if e.samples.Len() < e.cfg.RPPGMinFrames {
		return PulseSignal{}, gateHold
	}
	if e.samples.Span() < e.cfg.MinHRSpan {
		return PulseSignal{}, gateEmpty
	}
	rate := e.samples.EffectiveRate()
	if rate < e.cfg.MinFPSForHR {
		return PulseSignal{}, gateEmpty
	}
	return PulseSignal{Samples: Chrom(e.samples.Snapshot()), SampleRate: rate}, gateOpen
}

// PulseSignal exposes the CHROM waveform for breathing estimation. It
// reports false whenever Estimate would not reach spectral analysis because
// of the sample count, span or rate checks.
func (e *HeartRateEstimator) PulseSignal() (PulseSignal, bool) {
	p, g := e.pulse()
	return p, g == gateOpen
}

// Estimate analyses the current window.
//
// With fewer than RPPGMinFrames samples it holds the last estimate at zero
// confidence. A window shorter than MinHRSpan or sparser than MinFPSForHR
// yields all zeros. Filter failures, an empty band and implausible rates hold.
func (e *HeartRateEstimator) Estimate() HeartRate {
	p, g := e.pulse()
	switch g {
	case gateHold:
		return e.hold()
	case gateEmpty:
		return HeartRate{}
	}

	est, filtered, err := extractRate(p.Samples, p.SampleRate, e.cfg.HeartBand)
	if err != nil {
		return e.hold()
	}

	hrv := RMSSD(filtered, p.SampleRate)

	e.lastBPM = est.Rate
	e.lastHRV = hrv
	e.lastConfidence = est.Confidence
	return HeartRate{BPM: est.Rate, Confidence: est.Confidence, HRVMs: hrv}
}
