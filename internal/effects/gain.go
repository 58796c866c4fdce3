package effects

// Gain is a fixed attenuation stage. The master chain runs it at 0.5
// (-6dB) to leave headroom for four simultaneously active voices.
type Gain struct {
	gain float32
}

func NewGain(gain float32) *Gain {
	return &Gain{gain: gain}
}

func (g *Gain) Process(l, r float32) (float32, float32) {
	return l * g.gain, r * g.gain
}

func (g *Gain) Reset() {}
