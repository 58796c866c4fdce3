package sched

import (
	"sync"
	"time"

	"github.com/cbegin/drumgrid-go/internal/debug"
)

// StepCount is the fixed pattern length: one bar of 16th notes.
const StepCount = 16

const (
	DefaultPollInterval = 25 * time.Millisecond
	DefaultLookahead    = 0.1 // seconds

	MinTempoBPM = 60
	MaxTempoBPM = 180
)

// Clock provides the current time in seconds on a monotonic,
// high-resolution timeline. In live playback this is the audio
// sample clock; tests inject a manually-advanced clock.
type Clock interface {
	Now() float64
}

// SecondsPerSixteenth returns the duration of one step at the given tempo.
func SecondsPerSixteenth(bpm float64) float64 {
	return 60.0 / bpm / 4.0
}

type Options struct {
	PollInterval time.Duration // coarse timer granularity (0 = default 25ms)
	Lookahead    float64       // how far past now to pre-schedule (0 = default 0.1s)

	// OnStep is invoked once per step as it is scheduled, before OnSchedule.
	// Callbacks run outside the scheduler's lock and may call back into it,
	// e.g. Stop from the last step.
	OnStep func(step int)
	// OnSchedule triggers sound for a step at the absolute clock time `when`.
	// The time is in the Clock's domain and lies up to Lookahead in the future.
	OnSchedule func(step int, when float64)
}

// Scheduler converts a tempo into precisely timed step events using
// lookahead scheduling: a coarse repeating timer decides when to check
// for upcoming work, while the events themselves carry absolute future
// clock times. The coarse timer never times the sound itself, so timer
// jitter does not reach the audio.
type Scheduler struct {
	mu           sync.Mutex
	clock        Clock
	pollInterval time.Duration
	lookahead    float64
	onStep       func(int)
	onSchedule   func(int, float64)

	playing      bool
	step         int
	nextNoteTime float64
	tempo        float64
	inPass       bool

	stop chan struct{}
}

// stepEvent carries one scheduled step from the locked timeline advance
// to the unlocked callback dispatch.
type stepEvent struct {
	step int
	when float64
}

func New(clock Clock, opts Options) *Scheduler {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ahead := opts.Lookahead
	if ahead <= 0 {
		ahead = DefaultLookahead
	}
	return &Scheduler{
		clock:        clock,
		pollInterval: poll,
		lookahead:    ahead,
		onStep:       opts.OnStep,
		onSchedule:   opts.OnSchedule,
		tempo:        120,
	}
}

// Start transitions Idle -> Running. Re-entrant calls while running are
// no-ops. The first scheduling pass runs synchronously before the polling
// loop is armed, so the first step sounds without waiting a poll interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	s.nextNoteTime = s.clock.Now()
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	debug.Log("sched", "started (poll=%v lookahead=%.3fs)", s.pollInterval, s.lookahead)
	s.Pump()
	go s.loop(stop)
}

// Stop cancels the polling loop. Already-scheduled voices are not
// retroactively cancelled; sounds in flight finish naturally. No-op
// when already stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	close(s.stop)
	s.stop = nil
	s.mu.Unlock()
	debug.Log("sched", "stopped")
}

// Reset rewinds the step cursor to 0. It deliberately leaves
// nextNoteTime and the playing state alone; callers pair Reset with a
// fresh Start for a clean restart.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.step = 0
	s.mu.Unlock()
}

// SetTempo changes the BPM used for all future step advances. Steps
// already scheduled in the current window keep their note times, so a
// tempo change takes effect from the next scheduled step.
func (s *Scheduler) SetTempo(bpm float64) {
	if bpm < MinTempoBPM {
		bpm = MinTempoBPM
	}
	if bpm > MaxTempoBPM {
		bpm = MaxTempoBPM
	}
	s.mu.Lock()
	s.tempo = bpm
	s.mu.Unlock()
}

func (s *Scheduler) Tempo() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// CurrentStep returns the next step index to be scheduled.
func (s *Scheduler) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// NextNoteTime returns the clock time of the next unscheduled step.
func (s *Scheduler) NextNoteTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextNoteTime
}

// Pump runs one scheduling pass immediately. Live playback pumps from
// the polling loop; clock-driven hosts (offline rendering, tests) call
// Pump between render chunks instead of starting the timer.
//
// The timeline advances under the mutex, but callbacks fire after it is
// released, so OnStep/OnSchedule may call back into the scheduler
// (Stop on the last step, SetTempo, Reset). The inPass flag keeps
// overlapping pumps from interleaving their batches: the later pump
// yields, and its work is picked up on the next poll.
func (s *Scheduler) Pump() {
	s.mu.Lock()
	if s.inPass {
		s.mu.Unlock()
		return
	}
	s.inPass = true
	batch := s.collect()
	s.mu.Unlock()

	for _, ev := range batch {
		if s.onStep != nil {
			s.onStep(ev.step)
		}
		if s.onSchedule != nil {
			s.onSchedule(ev.step, ev.when)
		}
	}

	s.mu.Lock()
	s.inPass = false
	s.mu.Unlock()
}

// collect gathers every step whose note time falls inside the lookahead
// window. When the poll was delayed past a whole window the loop catches
// up, emitting each missed step exactly once, in order. Called with mu held.
func (s *Scheduler) collect() []stepEvent {
	horizon := s.clock.Now() + s.lookahead
	var batch []stepEvent
	for s.nextNoteTime < horizon {
		batch = append(batch, stepEvent{step: s.step, when: s.nextNoteTime})
		s.nextNoteTime += SecondsPerSixteenth(s.tempo)
		s.step = (s.step + 1) % StepCount
	}
	if len(batch) > 2 {
		debug.Log("sched", "catch-up pass scheduled %d steps", len(batch))
	}
	return batch
}

// loop owns the re-arm decision: one timer, reset only after the pass
// completes, so passes are never re-entered concurrently.
func (s *Scheduler) loop(stop chan struct{}) {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			// Both channels can be ready at once; a fired timer must
			// never win over a pending stop.
			select {
			case <-stop:
				return
			default:
			}
			s.Pump()
			timer.Reset(s.pollInterval)
		}
	}
}
