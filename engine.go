// Package drumgrid is a real-time step-sequencer audio engine: a fixed
// 4-track by 16-step pattern driven through a synthesized drum/chord
// voice bank with lookahead scheduling, so step timing stays sample
// accurate no matter how coarse or delayed the host's timers are.
package drumgrid

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/drumgrid-go/internal/audio"
	"github.com/cbegin/drumgrid-go/internal/debug"
	"github.com/cbegin/drumgrid-go/internal/effects"
	"github.com/cbegin/drumgrid-go/internal/sched"
	"github.com/cbegin/drumgrid-go/internal/synth"
)

// Master chain constants: fixed attenuation for four-voice headroom,
// limiter tuned for transient-heavy percussive content.
const (
	masterGain         = 0.5
	limiterThresholdDB = -20
	limiterRatio       = 4
	limiterAttackMs    = 3
	limiterReleaseMs   = 250
)

// ErrDestroyed is returned by Init after Destroy.
var ErrDestroyed = errors.New("engine destroyed")

type Option func(*engineConfig)

type engineConfig struct {
	sampleRate   int
	pollInterval time.Duration
	lookahead    float64
	onStep       func(step int)
}

func defaultEngineConfig() engineConfig {
	return engineConfig{sampleRate: 48000}
}

func WithSampleRate(sampleRate int) Option {
	return func(cfg *engineConfig) {
		if sampleRate > 0 {
			cfg.sampleRate = sampleRate
		}
	}
}

// WithPollInterval overrides the scheduler's coarse polling granularity.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *engineConfig) {
		cfg.pollInterval = d
	}
}

// WithLookahead overrides how far past now steps are pre-scheduled, in
// seconds. Must exceed the worst expected poll delay or steps arrive late.
func WithLookahead(seconds float64) Option {
	return func(cfg *engineConfig) {
		cfg.lookahead = seconds
	}
}

// WithOnStep installs a callback invoked once per step as it is
// scheduled. It fires ahead of the audible step by up to the lookahead
// window; keep it cheap. The callback may call back into the engine,
// e.g. Stop after the final step of a one-shot run.
func WithOnStep(fn func(step int)) Option {
	return func(cfg *engineConfig) {
		cfg.onStep = fn
	}
}

// StepEvent reports one scheduled step: its index and the absolute
// engine-clock time at which it will sound.
type StepEvent struct {
	Step int
	When float64
}

// Engine owns the audio context lifecycle, the master chain, the
// scheduler, and the active pattern snapshot.
type Engine struct {
	mu        sync.Mutex
	cfg       engineConfig
	mixer     *synth.Mixer
	chain     *effects.Chain
	sch       *sched.Scheduler
	ctx       *audio.Context
	out       *audio.Player
	pattern   Pattern
	destroyed bool

	lastStep  atomic.Int32
	eventCh   chan StepEvent
	eventChMu sync.Mutex
}

// New builds an engine without touching audio hardware; call Init from
// a user-gesture context before starting playback.
func New(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		cfg:   cfg,
		mixer: synth.NewMixer(cfg.sampleRate),
		chain: newMasterChain(cfg.sampleRate),
	}
	e.sch = sched.New(e.mixer, sched.Options{
		PollInterval: cfg.pollInterval,
		Lookahead:    cfg.lookahead,
		OnStep:       e.handleStep,
		OnSchedule:   e.scheduleStepSounds,
	})
	return e
}

// newMasterChain builds the fixed gain -> limiter processing path every
// voice feeds into. Built once per engine lifetime, immutable after.
func newMasterChain(sampleRate int) *effects.Chain {
	return effects.NewChain(
		effects.NewGain(masterGain),
		effects.NewLimiter(sampleRate, limiterThresholdDB, limiterRatio, limiterAttackMs, limiterReleaseMs),
	)
}

// masterSource feeds the mixer through the master chain into the
// hardware stream.
type masterSource struct {
	mixer *synth.Mixer
	chain *effects.Chain
}

func (s *masterSource) Process(dst []float32) {
	s.mixer.Process(dst)
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = s.chain.Process(dst[i], dst[i+1])
	}
}

// Init acquires the hardware audio context and starts the output
// stream. It fails softly: on error the engine stays pre-initialized
// and playback operations remain no-ops, so the caller may retry on the
// next user gesture. Idempotent once successful.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if e.out != nil {
		return nil
	}
	ctx, err := audio.NewContext(e.cfg.sampleRate)
	if err != nil {
		return err
	}
	out, err := ctx.NewPlayer(&masterSource{mixer: e.mixer, chain: e.chain})
	if err != nil {
		return err
	}
	e.ctx = ctx
	e.out = out
	// The output runs continuously from here; the scheduler decides
	// when anything audible enters the mixer.
	e.out.Play()
	debug.Log("engine", "initialized at %d Hz", e.cfg.sampleRate)
	return nil
}

// Ready reports whether hardware audio is initialized and resumed.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out != nil && e.ctx.Ready()
}

// Start begins playback. A no-op before a successful Init, or while
// already playing.
func (e *Engine) Start() {
	e.mu.Lock()
	ready := e.out != nil
	e.mu.Unlock()
	if !ready {
		debug.Log("engine", "start ignored: not initialized")
		return
	}
	e.sch.Start()
}

// Stop halts scheduling of new steps. Voices already triggered finish
// naturally. No-op when already stopped.
func (e *Engine) Stop() {
	e.sch.Stop()
}

// Toggle starts playback if stopped and stops it if playing.
func (e *Engine) Toggle() {
	if e.sch.IsPlaying() {
		e.Stop()
	} else {
		e.Start()
	}
}

// Reset rewinds the step cursor to 0 without altering playback state.
func (e *Engine) Reset() {
	e.sch.Reset()
	e.lastStep.Store(0)
}

// SetTempo sets the tempo in BPM, clamped to [60,180]. Applies from the
// next scheduled step; already-scheduled steps keep their times.
func (e *Engine) SetTempo(bpm float64) {
	e.sch.SetTempo(bpm)
}

func (e *Engine) Tempo() float64 {
	return e.sch.Tempo()
}

// SetPattern installs a new pattern snapshot. The engine copies the
// recognized tracks, so later edits to the caller's map never reach the
// scheduler mid-playback.
func (e *Engine) SetPattern(p Pattern) {
	snapshot := p.clone()
	e.mu.Lock()
	e.pattern = snapshot
	e.mu.Unlock()
}

// Pattern returns a copy of the installed pattern (nil if none set).
func (e *Engine) Pattern() Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pattern.clone()
}

func (e *Engine) IsPlaying() bool {
	return e.sch.IsPlaying()
}

// CurrentStep returns the last step index scheduled. UI reads this per
// animation frame for a smooth playhead, decoupled from the scheduler's
// internal timer cadence.
func (e *Engine) CurrentStep() int {
	return int(e.lastStep.Load())
}

// Watch returns a buffered channel receiving one StepEvent per
// scheduled step. Events are dropped rather than blocking the
// scheduling pass when the receiver falls behind. Only the most recent
// Watch channel receives events.
func (e *Engine) Watch() <-chan StepEvent {
	ch := make(chan StepEvent, 16)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

// Destroy stops the scheduler and releases the audio output. Safe to
// call multiple times and safe without a prior Init.
func (e *Engine) Destroy() {
	e.sch.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	if e.out != nil {
		e.out.Stop()
		e.out = nil
	}
	e.ctx = nil
	debug.Log("engine", "destroyed")
}

func (e *Engine) handleStep(step int) {
	e.lastStep.Store(int32(step))
	if e.cfg.onStep != nil {
		e.cfg.onStep(step)
	}
}

// scheduleStepSounds triggers each active track's voice at the exact
// future clock time. With no pattern installed it is a silent no-op.
func (e *Engine) scheduleStepSounds(step int, when float64) {
	e.mu.Lock()
	pattern := e.pattern
	e.mu.Unlock()

	triggerStep(pattern, e.mixer, step, when)
	e.sendEvent(StepEvent{Step: step, When: when})
}

// triggerStep dispatches the pattern's active flags at one step into
// voice triggers on the destination mixer. A nil pattern or an
// out-of-range step triggers nothing.
func triggerStep(p Pattern, dst *synth.Mixer, step int, when float64) {
	for _, tr := range p.activeTracks(step) {
		switch tr {
		case TrackKick:
			synth.TriggerKick(dst, when)
		case TrackSnare:
			synth.TriggerSnare(dst, when)
		case TrackHiHat:
			synth.TriggerHiHat(dst, when)
		case TrackChord:
			synth.TriggerChord(dst, when)
		}
	}
}

func (e *Engine) sendEvent(ev StepEvent) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Receiver fell behind; drop rather than stall the pass.
		}
	}
}
