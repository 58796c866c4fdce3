// Package synth holds the four drum/chord voice generators and the Mixer
// they feed into. Each trigger builds an independent short-lived voice;
// no state is shared between triggers, so concurrent triggers of the
// same or different voice types cannot interfere.
package synth

import "math"

// Voice timing constants, in seconds.
const (
	kickDur       = 0.5
	snareNoiseDur = 0.2
	snareToneDur  = 0.1
	hihatDur      = 0.05
	chordDur      = 0.6
)

// envFloor is where the exponential decays land: ~1% of full scale.
const envFloor = 0.01

// Chord voicing: a rootless D minor seventh (D4, F4, C5).
var chordFreqs = [3]float64{293.66, 349.23, 523.25}

// TriggerKick schedules a kick voice at the absolute clock time start:
// a sine swept exponentially 150Hz -> 50Hz over 0.5s with a matching
// full-scale -> 1% amplitude decay. A nil destination is a no-op.
func TriggerKick(dst *Mixer, start float64) {
	if dst == nil {
		return
	}
	sr := dst.sampleRate
	frames := int(kickDur * sr)
	dst.schedule(start, &kickVoice{
		sampleRate: sr,
		freq:       150,
		freqCoef:   decayCoef(150, 50, frames),
		env:        1,
		envCoef:    decayCoef(1, envFloor, frames),
	}, frames)
}

type kickVoice struct {
	sampleRate float64
	phase      float64
	freq       float64
	freqCoef   float64
	env        float64
	envCoef    float64
}

func (v *kickVoice) next() float32 {
	out := v.env * math.Sin(v.phase)
	v.phase += twoPi * v.freq / v.sampleRate
	if v.phase > twoPi {
		v.phase -= twoPi
	}
	v.freq *= v.freqCoef
	v.env *= v.envCoef
	return float32(out)
}

// TriggerSnare schedules a snare voice: a 0.2s white-noise burst through
// a 1000Hz high-pass, summed with a 180Hz tone that decays from 70% over
// 0.1s. Both paths start at the same trigger time.
func TriggerSnare(dst *Mixer, start float64) {
	if dst == nil {
		return
	}
	sr := dst.sampleRate
	noiseFrames := int(snareNoiseDur * sr)
	toneFrames := int(snareToneDur * sr)
	dst.schedule(start, &snareVoice{
		sampleRate: sr,
		noise:      noiseBuffer(noiseFrames),
		hp:         newHighpass(sr, 1000, math.Sqrt2/2),
		noiseEnv:   1,
		noiseCoef:  decayCoef(1, envFloor, noiseFrames),
		toneEnv:    0.7,
		toneCoef:   decayCoef(0.7, envFloor, toneFrames),
		toneFrames: toneFrames,
	}, noiseFrames)
}

type snareVoice struct {
	sampleRate float64
	noise      []float64
	pos        int
	hp         *highpass
	noiseEnv   float64
	noiseCoef  float64
	tonePhase  float64
	toneEnv    float64
	toneCoef   float64
	toneFrames int
}

func (v *snareVoice) next() float32 {
	var out float64
	if v.pos < len(v.noise) {
		out = v.noiseEnv * v.hp.process(v.noise[v.pos])
		v.noiseEnv *= v.noiseCoef
	}
	if v.pos < v.toneFrames {
		out += v.toneEnv * math.Sin(v.tonePhase)
		v.tonePhase += twoPi * 180 / v.sampleRate
		v.toneEnv *= v.toneCoef
	}
	v.pos++
	return float32(out)
}

// TriggerHiHat schedules a hi-hat voice: a 0.05s noise burst through a
// resonant 7000Hz high-pass, decaying from 60%.
func TriggerHiHat(dst *Mixer, start float64) {
	if dst == nil {
		return
	}
	sr := dst.sampleRate
	frames := int(hihatDur * sr)
	dst.schedule(start, &hihatVoice{
		noise:   noiseBuffer(frames),
		hp:      newHighpass(sr, 7000, 1),
		env:     0.6,
		envCoef: decayCoef(0.6, envFloor, frames),
	}, frames)
}

type hihatVoice struct {
	noise   []float64
	pos     int
	hp      *highpass
	env     float64
	envCoef float64
}

func (v *hihatVoice) next() float32 {
	if v.pos >= len(v.noise) {
		return 0
	}
	out := v.env * v.hp.process(v.noise[v.pos])
	v.pos++
	v.env *= v.envCoef
	return float32(out)
}

// TriggerChord schedules a chord voice: three oscillators voicing a
// minor-seventh chord, each detuned by a fresh random +/-5 cents per
// trigger so repeated hits never sound identical, under a shared
// multi-segment envelope lasting 0.6s.
func TriggerChord(dst *Mixer, start float64) {
	if dst == nil {
		return
	}
	sr := dst.sampleRate
	frames := int(chordDur * sr)
	v := &chordVoice{sampleRate: sr}
	for i, f := range chordFreqs {
		v.freqs[i] = f * detuneCents(5)
	}
	dst.schedule(start, v, frames)
}

type chordVoice struct {
	sampleRate float64
	freqs      [3]float64
	phases     [3]float64
	pos        int
}

// chordEnv is the shared envelope: silence -> 0.15 over 0.05s, ease to
// 0.1 over the next 0.05s, hold until 0.4s, then ramp to 0 by 0.6s.
func chordEnv(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t < 0.05:
		return 0.15 * (t / 0.05)
	case t < 0.1:
		return 0.15 - 0.05*((t-0.05)/0.05)
	case t < 0.4:
		return 0.1
	case t < chordDur:
		return 0.1 * (1 - (t-0.4)/(chordDur-0.4))
	default:
		return 0
	}
}

func (v *chordVoice) next() float32 {
	env := chordEnv(float64(v.pos) / v.sampleRate)
	var sum float64
	for i := range v.freqs {
		sum += math.Sin(v.phases[i])
		v.phases[i] += twoPi * v.freqs[i] / v.sampleRate
		if v.phases[i] > twoPi {
			v.phases[i] -= twoPi
		}
	}
	v.pos++
	return float32(env * sum)
}
