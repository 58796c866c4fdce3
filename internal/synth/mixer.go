package synth

import (
	"sync"
	"sync/atomic"
)

// renderer produces one mono sample per call, advancing its internal
// oscillator/envelope state. A renderer is owned by exactly one voice;
// no state is shared between triggers.
type renderer interface {
	next() float32
}

// scheduledVoice is one ephemeral synthesis instance: created at trigger
// time, dropped by the mixer when its bounded duration elapses.
type scheduledVoice struct {
	startFrame int64
	age        int
	dur        int
	r          renderer
}

// Mixer is the shared destination all voice triggers feed into, and the
// engine's hardware clock: Now() is derived from the number of frames
// actually rendered, so scheduled voices start sample-accurately no
// matter how late the polling goroutine runs.
type Mixer struct {
	mu         sync.Mutex
	sampleRate float64
	frames     atomic.Int64 // frames rendered since creation
	voices     []scheduledVoice
}

func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: float64(sampleRate)}
}

func (m *Mixer) SampleRate() int { return int(m.sampleRate) }

// Now returns the mixer clock in seconds. Monotonic: it only advances
// as audio is rendered.
func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / m.sampleRate
}

// schedule arms a voice to begin at the absolute clock time start.
// A start already in the past begins on the next rendered frame rather
// than being dropped.
func (m *Mixer) schedule(start float64, r renderer, durFrames int) {
	if durFrames < 1 {
		durFrames = 1
	}
	startFrame := int64(start * m.sampleRate)
	if now := m.frames.Load(); startFrame < now {
		startFrame = now
	}
	m.mu.Lock()
	m.voices = append(m.voices, scheduledVoice{startFrame: startFrame, dur: durFrames, r: r})
	m.mu.Unlock()
}

// ActiveVoices returns the number of voices scheduled or sounding.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Process fills dst with interleaved stereo samples. Voices that reach
// their duration are compacted out, releasing them regardless of
// whether playback is later stopped externally.
func (m *Mixer) Process(dst []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(dst) / 2
	pos := m.frames.Load()
	for f := 0; f < frames; f++ {
		var sum float32
		write := 0
		for i := range m.voices {
			v := m.voices[i]
			if pos >= v.startFrame {
				sum += v.r.next()
				v.age++
			}
			if v.age < v.dur {
				m.voices[write] = v
				write++
			}
		}
		m.voices = m.voices[:write]
		dst[f*2] = sum
		dst[f*2+1] = sum
		pos++
	}
	m.frames.Store(pos)
}
