package drumgrid

import (
	"encoding/binary"
	"math"

	"github.com/cbegin/drumgrid-go/internal/sched"
	"github.com/cbegin/drumgrid-go/internal/synth"
)

// offlineTailSeconds pads the render so the last step's voices decay
// fully (the longest voice runs 0.6s).
const offlineTailSeconds = 0.6

// RenderPattern renders the first `steps` steps of a pattern through
// the full synth and master chain, clock-driven rather than
// timer-driven: the scheduler is pumped between render chunks against
// the mixer's own sample clock, so the result is deterministic and
// needs no audio hardware.
func RenderPattern(p Pattern, bpm float64, steps int, sampleRate int) []float32 {
	if steps <= 0 || sampleRate <= 0 {
		return nil
	}
	mixer := synth.NewMixer(sampleRate)
	chain := newMasterChain(sampleRate)
	src := &masterSource{mixer: mixer, chain: chain}
	pattern := p.clone()

	scheduled := 0
	s := sched.New(mixer, sched.Options{
		OnSchedule: func(step int, when float64) {
			if scheduled >= steps {
				return
			}
			scheduled++
			triggerStep(pattern, mixer, step, when)
		},
	})
	s.SetTempo(bpm)

	totalFrames := int(float64(steps)*sched.SecondsPerSixteenth(s.Tempo())*float64(sampleRate)) +
		int(offlineTailSeconds*float64(sampleRate))
	out := make([]float32, totalFrames*2)

	// Chunks must stay shorter than the lookahead window so the pump
	// always runs before the mixer reaches the next step time.
	const chunkFrames = 1024
	for off := 0; off < totalFrames; off += chunkFrames {
		s.Pump()
		n := chunkFrames
		if off+n > totalFrames {
			n = totalFrames - off
		}
		src.Process(out[off*2 : (off+n)*2])
	}
	return out
}

// EncodeWAVFloat32LE wraps samples in a RIFF/WAVE container (IEEE
// float32, little-endian).
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
