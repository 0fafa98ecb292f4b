package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedColor(e *HeartRateEstimator, samples []ColorSample) {
	for _, s := range samples {
		e.AddSample(s.TimestampMs, s.RGB)
	}
}

func TestHeartRateEstimatorEmpty(t *testing.T) {
	t.Parallel()

	e := NewHeartRateEstimator(DefaultConfig())
	assert.Equal(t, HeartRate{}, e.Estimate())

	feedColor(e, pulseRGB(44, 30, 1.2))
	assert.Equal(t, HeartRate{}, e.Estimate())
	_, ok := e.PulseSignal()
	assert.False(t, ok)
}

func TestHeartRateEstimatorShortSpan(t *testing.T) {
	t.Parallel()

	// 45 samples at 30 Hz cover 1.5 s, below the 5 s minimum
	e := NewHeartRateEstimator(DefaultConfig())
	feedColor(e, pulseRGB(45, 30, 1.2))
	assert.Equal(t, HeartRate{}, e.Estimate())
}

func TestHeartRateEstimatorLowRate(t *testing.T) {
	t.Parallel()

	// 45 samples over 11 s is roughly 4.1 Hz
	e := NewHeartRateEstimator(DefaultConfig())
	for i, ts := range sampleTimes(45, 4, 0) {
		e.AddSample(ts, RGB{120, 100 + float64(i%3), 80})
	}
	assert.Equal(t, HeartRate{}, e.Estimate())
	_, ok := e.PulseSignal()
	assert.False(t, ok)
}

func TestHeartRateEstimatorSyntheticPulse(t *testing.T) {
	t.Parallel()

	e := NewHeartRateEstimator(DefaultConfig())
	feedColor(e, pulseRGB(300, 30, 1.2))

	p, ok := e.PulseSignal()
	require.True(t, ok)
	assert.Len(t, p.Samples, 300)
	assert.InDelta(t, 30.1, p.SampleRate, 0.01)

	hr := e.Estimate()
	assert.InDelta(t, 72, hr.BPM, 1)
	// a Hann-windowed single tone splits its energy over three bins
	assert.Greater(t, hr.Confidence, 0.45)
	assert.Zero(t, hr.HRVMs, "a pure tone has perfectly regular beats")
	assert.Equal(t, hr, e.Last())
}

func TestHeartRateEstimatorHoldsLastEstimate(t *testing.T) {
	t.Parallel()

	e := NewHeartRateEstimator(DefaultConfig())
	feedColor(e, pulseRGB(300, 30, 1.2))
	first := e.Estimate()
	require.NotZero(t, first.BPM)

	// a sample a minute later evicts the whole window
	e.AddSample(70_000, RGB{120, 100, 80})
	require.Equal(t, 1, e.Len())

	held := e.Estimate()
	assert.Equal(t, first.BPM, held.BPM)
	assert.Equal(t, first.HRVMs, held.HRVMs)
	assert.Zero(t, held.Confidence)
	assert.Equal(t, first.Confidence, e.Last().Confidence)
}

func TestHeartRateEstimatorHoldsOnAnalysisFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"filter failure", func(c *Config) { c.HeartBand.LowHz = 20 }}, // above Nyquist
		// bins sit about 0.1 Hz apart, at 2.007 and 2.107 Hz
		{"no bins in band", func(c *Config) { c.HeartBand.LowHz, c.HeartBand.HighHz = 2.02, 2.08 }},
		{"implausible rate", func(c *Config) { c.HeartBand.MinRate = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewHeartRateEstimator(DefaultConfig())
			feedColor(e, pulseRGB(300, 30, 1.2))
			first := e.Estimate()
			require.InDelta(t, 72, first.BPM, 1)
			require.Greater(t, first.Confidence, 0.0)

			tt.mutate(&e.cfg)
			held := e.Estimate()
			assert.Equal(t, HeartRate{BPM: first.BPM, HRVMs: first.HRVMs}, held)
			assert.Equal(t, first, e.Last())
		})
	}
}

func TestHeartRateEstimatorFilterFailureWithoutHistory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HeartBand.LowHz = 20
	e := NewHeartRateEstimator(cfg)
	feedColor(e, pulseRGB(300, 30, 1.2))
	assert.Equal(t, HeartRate{}, e.Estimate())
}

func TestHeartRateEstimatorEvictsOldSamples(t *testing.T) {
	t.Parallel()

	e := NewHeartRateEstimator(DefaultConfig())
	feedColor(e, pulseRGB(1200, 30, 1.2))

	samples := e.Samples()
	newest := samples[len(samples)-1].TimestampMs
	assert.GreaterOrEqual(t, samples[0].TimestampMs, newest-30_000)
	assert.InDelta(t, 901, e.Len(), 1)
}
