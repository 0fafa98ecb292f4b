package session

import (
	"math"
	"math/rand"
	"time"

	"github.com/banshee-data/vitals.report/internal/vitals"
)

// SyntheticGenerator produces input frames with a known pulse and breathing
// rhythm, for demos and end-to-end tests.
type SyntheticGenerator struct {
	// Configuration
	HeartRateBPM  float64       // pulse frequency in the green channel
	BreathsPerMin float64       // chin oscillation frequency
	FrameRate     float64       // frames per second
	Duration      time.Duration // length of the recording
	StartMs       int64         // timestamp of the first frame
	NoFaceEvery   int           // every nth frame has no face; 0 disables
	TalkingEvery  int           // every nth face frame is flagged talking; 0 disables
	Noise         float64       // uniform noise amplitude added to each channel

	rng *rand.Rand
}

// NewSyntheticGenerator returns a 72 BPM, 12 breaths/min, 30 fps, 30 s
// generator with a fixed seed.
func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{
		HeartRateBPM:  72,
		BreathsPerMin: 12,
		FrameRate:     30,
		Duration:      30 * time.Second,
		StartMs:       1000,
		rng:           rand.New(rand.NewSource(1)),
	}
}

// Frames generates the whole recording.
func (g *SyntheticGenerator) Frames() []Frame {
	n := int(g.Duration.Seconds() * g.FrameRate)
	frames := make([]Frame, 0, n)
	hrHz := g.HeartRateBPM / 60
	brHz := g.BreathsPerMin / 60
	faces := 0
	for i := 0; i < n; i++ {
		t := float64(i) / g.FrameRate
		f := Frame{TimestampMs: g.StartMs + int64(math.Round(1000*t))}
		if g.NoFaceEvery > 0 && (i+1)%g.NoFaceEvery == 0 {
			frames = append(frames, f)
			continue
		}
		faces++
		pulse := math.Sin(2 * math.Pi * hrHz * t)
		rgb := vitals.RGB{
			120 + g.noise(),
			100*(1+0.25*pulse) + g.noise(),
			80 + g.noise(),
		}
		chin := 0.5 + 0.01*math.Sin(2*math.Pi*brHz*t)
		f.Face = true
		f.RGB = &rgb
		f.ChinY = &chin
		f.Talking = g.TalkingEvery > 0 && faces%g.TalkingEvery == 0
		frames = append(frames, f)
	}
	return frames
}

func (g *SyntheticGenerator) noise() float64 {
	if g.Noise == 0 || g.rng == nil {
		return 0
	}
	return g.Noise * (2*g.rng.Float64() - 1)
}
