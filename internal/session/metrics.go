package session

import (
	"math"

	"github.com/banshee-data/vitals.report/internal/vitals"
)

// Message types on the output stream.
const (
	TypeCore   = "core"
	TypeEdge   = "edge"
	TypeStatus = "status"
)

// Status values.
const (
	StatusReady      = "ready"
	StatusProcessing = "processing"
	StatusStopped    = "stopped"
)

// Metrics is one throttled vitals estimate as written to the output stream.
type Metrics struct {
	SessionID    string  `json:"session_id"`
	Type         string  `json:"type"`
	HR           float64 `json:"hr"`
	BR           float64 `json:"br"`
	HRV          float64 `json:"hrv"`
	Blinking     bool    `json:"blinking"`
	Talking      bool    `json:"talking"`
	HRConfidence float64 `json:"hr_confidence"`
	BRConfidence float64 `json:"br_confidence"`
	BRSource     string  `json:"br_source"`
	Emotion      string  `json:"emotion"`
	Timestamp    int64   `json:"timestamp"`
}

// Status is a lifecycle heartbeat.
type Status struct {
	SessionID       string `json:"session_id"`
	Type            string `json:"type"`
	Status          string `json:"status"`
	FramesProcessed int    `json:"frames_processed"`
}

// NewMetrics rounds the raw estimates for output: rates and HRV to 0.1,
// confidences to 0.01. The type is core whenever a heart rate is present.
func NewMetrics(id string, hr vitals.HeartRate, br vitals.Breathing, blinking, talking bool, timestampMs int64) Metrics {
	m := Metrics{
		SessionID:    id,
		Type:         TypeEdge,
		HR:           round(hr.BPM, 1),
		BR:           round(br.Rate, 1),
		HRV:          round(hr.HRVMs, 1),
		Blinking:     blinking,
		Talking:      talking,
		HRConfidence: round(hr.Confidence, 2),
		BRConfidence: round(br.Confidence, 2),
		BRSource:     br.Source.String(),
		Emotion:      Emotion(hr.BPM, hr.HRVMs, br.Rate, talking),
		Timestamp:    timestampMs,
	}
	if hr.BPM > 0 {
		m.Type = TypeCore
	}
	return m
}

// Emotion maps vitals to a coarse affect label. Rules are checked in order.
func Emotion(hr, hrv, br float64, talking bool) string {
	switch {
	case hr > 100 && hrv < 30:
		return "nervous"
	case hr > 110:
		return "excited"
	case hr < 75 && hrv > 50:
		return "calm"
	case talking && hr >= 70 && hr <= 95:
		return "engaged"
	case br > 20:
		return "anxious"
	default:
		return "neutral"
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
