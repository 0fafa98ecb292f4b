package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/vitals.report/internal/vitals"
)

// Input line types.
const (
	InputSample = "sample"
	InputNoFace = "noface"
)

var (
	// ErrIgnored marks a well-formed line whose type the session does not handle.
	ErrIgnored = errors.New("ignored input type")
	// ErrInvalidTimestamp marks a frame without a positive timestamp.
	ErrInvalidTimestamp = errors.New("invalid frame timestamp")
)

// Frame is one analysed video frame. RGB and ChinY are nil when the face
// analyser could not sample them.
type Frame struct {
	TimestampMs int64
	Face        bool
	RGB         *vitals.RGB
	ChinY       *float64
	Blinking    bool
	Talking     bool
}

type inputLine struct {
	Type     string      `json:"type"`
	TS       int64       `json:"ts"` // microseconds
	RGB      *[3]float64 `json:"rgb,omitempty"`
	ChinY    *float64    `json:"chin_y,omitempty"`
	Blinking bool        `json:"blinking,omitempty"`
	Talking  bool        `json:"talking,omitempty"`
}

// ParseFrame decodes one input line. Lines of an unknown type return
// ErrIgnored; frames with ts <= 0 return ErrInvalidTimestamp.
func ParseFrame(line []byte) (Frame, error) {
	var in inputLine
	if err := json.Unmarshal(line, &in); err != nil {
		return Frame{}, fmt.Errorf("failed to parse input line: %w", err)
	}

	var f Frame
	switch in.Type {
	case InputSample:
		f.Face = true
	case InputNoFace:
	default:
		return Frame{}, fmt.Errorf("%w %q", ErrIgnored, in.Type)
	}
	if in.TS <= 0 {
		return Frame{}, fmt.Errorf("%w: %d", ErrInvalidTimestamp, in.TS)
	}

	f.TimestampMs = in.TS / 1000
	if f.Face {
		if in.RGB != nil {
			rgb := vitals.RGB(*in.RGB)
			f.RGB = &rgb
		}
		f.ChinY = in.ChinY
		f.Blinking = in.Blinking
		f.Talking = in.Talking
	}
	return f, nil
}

// MarshalFrame encodes f in the input line format.
func MarshalFrame(f Frame) ([]byte, error) {
	out := inputLine{Type: InputNoFace, TS: f.TimestampMs * 1000}
	if f.Face {
		out.Type = InputSample
		if f.RGB != nil {
			rgb := [3]float64(*f.RGB)
			out.RGB = &rgb
		}
		out.ChinY = f.ChinY
		out.Blinking = f.Blinking
		out.Talking = f.Talking
	}
	return json.Marshal(out)
}
