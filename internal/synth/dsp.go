package synth

import (
	"math"
	"math/rand"
)

const twoPi = math.Pi * 2

// decayCoef returns the per-sample multiplier for an exponential decay
// from `from` to `to` over `frames` samples.
func decayCoef(from, to float64, frames int) float64 {
	if frames < 1 {
		frames = 1
	}
	return math.Pow(to/from, 1.0/float64(frames))
}

// noiseBuffer returns a freshly-filled buffer of uniform noise in [-1,1].
// Buffers are never reused across triggers; voices are short and
// infrequent enough that per-trigger allocation is acceptable.
func noiseBuffer(frames int) []float64 {
	buf := make([]float64, frames)
	for i := range buf {
		buf[i] = rand.Float64()*2 - 1
	}
	return buf
}

// detuneCents returns a random detune factor within +/-cents.
func detuneCents(cents float64) float64 {
	c := (rand.Float64()*2 - 1) * cents
	return math.Pow(2, c/1200)
}

// highpass is a biquad high-pass section (RBJ cookbook coefficients).
// The percussive voices need a defined cutoff and resonance, which a
// one-pole filter cannot give.
type highpass struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

func newHighpass(sampleRate, freq, q float64) *highpass {
	w0 := twoPi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	return &highpass{
		b0: (1 + cosw) / 2 / a0,
		b1: -(1 + cosw) / a0,
		b2: (1 + cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func (h *highpass) process(x float64) float64 {
	y := h.b0*x + h.b1*h.x1 + h.b2*h.x2 - h.a1*h.y1 - h.a2*h.y2
	h.x2, h.x1 = h.x1, x
	h.y2, h.y1 = h.y1, y
	return y
}
