// Command gen-samples writes a synthetic JSON-lines recording with a known
// heart rate and breathing rate, for replaying through vitals.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"time"

	"github.com/banshee-data/vitals.report/internal/session"
)

func main() {
	output := flag.String("o", "sample.jsonl", "output path (- for stdout)")
	hr := flag.Float64("hr", 72, "heart rate in BPM")
	br := flag.Float64("br", 12, "breaths per minute")
	fps := flag.Float64("fps", 30, "frame rate")
	duration := flag.Duration("d", 30*time.Second, "recording length")
	noFace := flag.Int("noface-every", 0, "drop the face every n frames (0 disables)")
	talking := flag.Int("talking-every", 0, "flag every n face frames as talking (0 disables)")
	noise := flag.Float64("noise", 0, "uniform noise amplitude per colour channel")
	flag.Parse()

	gen := session.NewSyntheticGenerator()
	gen.HeartRateBPM = *hr
	gen.BreathsPerMin = *br
	gen.FrameRate = *fps
	gen.Duration = *duration
	gen.NoFaceEvery = *noFace
	gen.TalkingEvery = *talking
	gen.Noise = *noise

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *output, err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	frames := gen.Frames()
	for _, f := range frames {
		line, err := session.MarshalFrame(f)
		if err != nil {
			log.Fatalf("failed to encode frame: %v", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("failed to write %s: %v", *output, err)
	}
	if *output != "-" {
		log.Printf("✓ Created: %s (%d frames)", *output, len(frames))
	}
}
