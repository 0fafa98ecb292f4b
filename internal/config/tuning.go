package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* methods fall back to built-in defaults.
type TuningConfig struct {
	// Sample windows
	BufferDuration *string `json:"buffer_duration,omitempty"` // duration string like "30s"

	// Heart rate (rPPG)
	RPPGMinFrames *int     `json:"rppg_min_frames,omitempty"`
	MinFPSForHR   *float64 `json:"min_fps_for_hr,omitempty"`
	HRLowHz       *float64 `json:"hr_low_hz,omitempty"`
	HRHighHz      *float64 `json:"hr_high_hz,omitempty"`

	// Breathing
	MinFPSForBRRPPG          *float64 `json:"min_fps_for_br_rppg,omitempty"`
	BRLowHz                  *float64 `json:"br_low_hz,omitempty"`
	BRHighHz                 *float64 `json:"br_high_hz,omitempty"`
	PulseConfidenceThreshold *float64 `json:"pulse_confidence_threshold,omitempty"`
	MinLandmarkSamples       *int     `json:"min_landmark_samples,omitempty"`
	LandmarkConfidenceScale  *float64 `json:"landmark_confidence_scale,omitempty"`

	// Session output
	EmitInterval         *string `json:"emit_interval,omitempty"`  // duration string like "500ms"
	StatsInterval        *string `json:"stats_interval,omitempty"` // duration string like "10s"
	StatusIntervalFrames *int    `json:"status_interval_frames,omitempty"`

	// Sink destinations
	MQTTTopic   *string `json:"mqtt_topic,omitempty"`
	RedisStream *string `json:"redis_stream,omitempty"`
	NATSSubject *string `json:"nats_subject,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/gen-samples/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*string{
		"buffer_duration": c.BufferDuration,
		"emit_interval":   c.EmitInterval,
		"stats_interval":  c.StatsInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.RPPGMinFrames != nil && *c.RPPGMinFrames < 2 {
		return fmt.Errorf("rppg_min_frames must be at least 2, got %d", *c.RPPGMinFrames)
	}
	if c.MinLandmarkSamples != nil && *c.MinLandmarkSamples < 2 {
		return fmt.Errorf("min_landmark_samples must be at least 2, got %d", *c.MinLandmarkSamples)
	}
	if c.StatusIntervalFrames != nil && *c.StatusIntervalFrames <= 0 {
		return fmt.Errorf("status_interval_frames must be positive, got %d", *c.StatusIntervalFrames)
	}

	if lo, hi := c.GetHRLowHz(), c.GetHRHighHz(); lo <= 0 || lo >= hi {
		return fmt.Errorf("heart rate band must satisfy 0 < hr_low_hz < hr_high_hz, got [%g, %g]", lo, hi)
	}
	if lo, hi := c.GetBRLowHz(), c.GetBRHighHz(); lo <= 0 || lo >= hi {
		return fmt.Errorf("breathing band must satisfy 0 < br_low_hz < br_high_hz, got [%g, %g]", lo, hi)
	}

	if c.PulseConfidenceThreshold != nil {
		if *c.PulseConfidenceThreshold < 0 || *c.PulseConfidenceThreshold > 1 {
			return fmt.Errorf("pulse_confidence_threshold must be between 0 and 1, got %f", *c.PulseConfidenceThreshold)
		}
	}
	if c.LandmarkConfidenceScale != nil {
		if *c.LandmarkConfidenceScale < 0 || *c.LandmarkConfidenceScale > 1 {
			return fmt.Errorf("landmark_confidence_scale must be between 0 and 1, got %f", *c.LandmarkConfidenceScale)
		}
	}

	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetBufferDuration returns how long colour and landmark samples are retained.
func (c *TuningConfig) GetBufferDuration() time.Duration {
	return parseDurationOr(c.BufferDuration, 30*time.Second)
}

// GetEmitInterval returns the minimum wall-clock gap between metric emissions.
func (c *TuningConfig) GetEmitInterval() time.Duration {
	return parseDurationOr(c.EmitInterval, 500*time.Millisecond)
}

// GetStatsInterval returns how often ingest statistics are logged.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, 10*time.Second)
}

// GetRPPGMinFrames returns the rppg_min_frames value or the default.
func (c *TuningConfig) GetRPPGMinFrames() int {
	if c.RPPGMinFrames == nil {
		return 45 // 1.5 s at 30 fps
	}
	return *c.RPPGMinFrames
}

// GetMinFPSForHR returns the min_fps_for_hr value or the default.
func (c *TuningConfig) GetMinFPSForHR() float64 {
	if c.MinFPSForHR == nil {
		return 5.0
	}
	return *c.MinFPSForHR
}

// GetHRLowHz returns the hr_low_hz value or the default.
func (c *TuningConfig) GetHRLowHz() float64 {
	if c.HRLowHz == nil {
		return 0.7 // 42 BPM
	}
	return *c.HRLowHz
}

// GetHRHighHz returns the hr_high_hz value or the default.
func (c *TuningConfig) GetHRHighHz() float64 {
	if c.HRHighHz == nil {
		return 4.0 // 240 BPM
	}
	return *c.HRHighHz
}

// GetMinFPSForBRRPPG returns the min_fps_for_br_rppg value or the default.
func (c *TuningConfig) GetMinFPSForBRRPPG() float64 {
	if c.MinFPSForBRRPPG == nil {
		return 3.0
	}
	return *c.MinFPSForBRRPPG
}

// GetBRLowHz returns the br_low_hz value or the default.
func (c *TuningConfig) GetBRLowHz() float64 {
	if c.BRLowHz == nil {
		return 0.1 // 6 breaths/min
	}
	return *c.BRLowHz
}

// GetBRHighHz returns the br_high_hz value or the default.
func (c *TuningConfig) GetBRHighHz() float64 {
	if c.BRHighHz == nil {
		return 0.5 // 30 breaths/min
	}
	return *c.BRHighHz
}

// GetPulseConfidenceThreshold returns the pulse_confidence_threshold value or the default.
func (c *TuningConfig) GetPulseConfidenceThreshold() float64 {
	if c.PulseConfidenceThreshold == nil {
		return 0.3
	}
	return *c.PulseConfidenceThreshold
}

// GetMinLandmarkSamples returns the min_landmark_samples value or the default.
func (c *TuningConfig) GetMinLandmarkSamples() int {
	if c.MinLandmarkSamples == nil {
		return 30
	}
	return *c.MinLandmarkSamples
}

// GetLandmarkConfidenceScale returns the landmark_confidence_scale value or the default.
func (c *TuningConfig) GetLandmarkConfidenceScale() float64 {
	if c.LandmarkConfidenceScale == nil {
		return 0.7
	}
	return *c.LandmarkConfidenceScale
}

// GetStatusIntervalFrames returns the status_interval_frames value or the default.
func (c *TuningConfig) GetStatusIntervalFrames() int {
	if c.StatusIntervalFrames == nil {
		return 50
	}
	return *c.StatusIntervalFrames
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *TuningConfig) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return "vitals/metrics"
	}
	return *c.MQTTTopic
}

// GetRedisStream returns the redis_stream value or the default.
func (c *TuningConfig) GetRedisStream() string {
	if c.RedisStream == nil || *c.RedisStream == "" {
		return "vitals:metrics"
	}
	return *c.RedisStream
}

// GetNATSSubject returns the nats_subject value or the default.
func (c *TuningConfig) GetNATSSubject() string {
	if c.NATSSubject == nil || *c.NATSSubject == "" {
		return "vitals.metrics"
	}
	return *c.NATSSubject
}
