package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	drumgrid "github.com/cbegin/drumgrid-go"
	"github.com/cbegin/drumgrid-go/internal/debug"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		bpm        = flag.Float64("bpm", 120, "tempo in BPM (60-180)")
		bars       = flag.Int("bars", 4, "number of 16-step bars to play")
		preset     = flag.String("preset", "four-floor", "pattern preset: four-floor|backbeat|chords")
		wavPath    = flag.String("wav", "", "render offline to a WAV file instead of playing")
		debugLog   = flag.String("debug", "", "path to a debug log file")
	)
	flag.Parse()

	if *debugLog != "" {
		if err := debug.Enable(*debugLog); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}

	pattern, err := presetPattern(*preset)
	if err != nil {
		log.Fatal(err)
	}
	steps := *bars * drumgrid.StepCount

	if *wavPath != "" {
		samples := drumgrid.RenderPattern(pattern, *bpm, steps, *sampleRate)
		wav := drumgrid.EncodeWAVFloat32LE(samples, *sampleRate, 2)
		if err := os.WriteFile(*wavPath, wav, 0644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %d steps (%d samples) to %s\n", steps, len(samples)/2, *wavPath)
		return
	}

	engine := drumgrid.New(drumgrid.WithSampleRate(*sampleRate))
	defer engine.Destroy()
	if err := engine.Init(); err != nil {
		log.Fatal(err)
	}
	engine.SetTempo(*bpm)
	engine.SetPattern(pattern)

	ch := engine.Watch()
	engine.Start()
	for played := 0; played < steps; played++ {
		ev := <-ch
		if ev.Step == 0 {
			fmt.Println()
		}
		fmt.Printf("%2d ", ev.Step)
	}
	fmt.Println()
	engine.Stop()
}

func presetPattern(name string) (drumgrid.Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "four-floor":
		return drumgrid.Pattern{
			drumgrid.TrackKick:  stepsAt(0, 4, 8, 12),
			drumgrid.TrackHiHat: stepsAt(2, 6, 10, 14),
		}, nil
	case "backbeat":
		return drumgrid.Pattern{
			drumgrid.TrackKick:  stepsAt(0, 7, 8),
			drumgrid.TrackSnare: stepsAt(4, 12),
			drumgrid.TrackHiHat: stepsAt(0, 2, 4, 6, 8, 10, 12, 14),
		}, nil
	case "chords":
		return drumgrid.Pattern{
			drumgrid.TrackKick:  stepsAt(0, 8),
			drumgrid.TrackChord: stepsAt(0, 6, 10),
		}, nil
	default:
		return nil, fmt.Errorf("invalid -preset %q (expected four-floor|backbeat|chords)", name)
	}
}

func stepsAt(indexes ...int) drumgrid.Steps {
	var s drumgrid.Steps
	for _, i := range indexes {
		if i >= 0 && i < drumgrid.StepCount {
			s[i] = true
		}
	}
	return s
}
