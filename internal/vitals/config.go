package vitals

import (
	"time"

	"github.com/banshee-data/vitals.report/internal/config"
)

// Config holds the thresholds shared by the heart-rate and breathing
// estimators. A Config is treated as immutable once an estimator has been
// constructed with it.
type Config struct {
	Window time.Duration // Retention of both sample windows

	// Heart rate (rPPG)
	RPPGMinFrames int           // Samples required before any HR attempt
	MinHRSpan     time.Duration // Window span required for HR
	MinFPSForHR   float64       // Effective sample rate required for HR
	HeartBand     Band

	// Breathing
	MinFPSForBRPulse         float64       // Pulse sample rate required to try the rPPG branch
	MinPulseSamplesForBR     int           // Pulse length required by the rPPG branch
	PulseConfidenceThreshold float64       // rPPG branch wins only above this confidence
	MinLandmarkSamples       int           // Chin samples required by the landmark branch
	MinLandmarkSpan          time.Duration // Window span required by the landmark branch
	LandmarkConfidenceScale  float64       // Landmark confidence multiplier
	BreathingBand            Band
}

// HeartRateBand is the cardiac search band: 0.7-4.0 Hz with results kept
// only inside 40-200 BPM.
var HeartRateBand = Band{LowHz: 0.7, HighHz: 4.0, MinRate: 40, MaxRate: 200}

// BreathingRateBand is the respiratory search band: 0.1-0.5 Hz, 6-30
// breaths/min.
var BreathingRateBand = Band{LowHz: 0.1, HighHz: 0.5, MinRate: 6, MaxRate: 30}

// DefaultConfig returns the empirically validated constants.
func DefaultConfig() Config {
	return Config{
		Window:                   30 * time.Second,
		RPPGMinFrames:            45,
		MinHRSpan:                5 * time.Second,
		MinFPSForHR:              5,
		HeartBand:                HeartRateBand,
		MinFPSForBRPulse:         3,
		MinPulseSamplesForBR:     64,
		PulseConfidenceThreshold: 0.3,
		MinLandmarkSamples:       30,
		MinLandmarkSpan:          10 * time.Second,
		LandmarkConfidenceScale:  0.7,
		BreathingBand:            BreathingRateBand,
	}
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. Fields absent
// from the tuning file keep their default values.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	c := DefaultConfig()
	c.Window = cfg.GetBufferDuration()
	c.RPPGMinFrames = cfg.GetRPPGMinFrames()
	c.MinFPSForHR = cfg.GetMinFPSForHR()
	c.MinFPSForBRPulse = cfg.GetMinFPSForBRRPPG()
	c.HeartBand.LowHz = cfg.GetHRLowHz()
	c.HeartBand.HighHz = cfg.GetHRHighHz()
	c.BreathingBand.LowHz = cfg.GetBRLowHz()
	c.BreathingBand.HighHz = cfg.GetBRHighHz()
	c.PulseConfidenceThreshold = cfg.GetPulseConfidenceThreshold()
	c.MinLandmarkSamples = cfg.GetMinLandmarkSamples()
	c.LandmarkConfidenceScale = cfg.GetLandmarkConfidenceScale()
	return c
}
