package sched

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

// manualClock is an injectable clock advanced explicitly by tests.
// Mutex-guarded because Start spawns the polling goroutine.
type manualClock struct {
	mu sync.Mutex
	t  float64
}

func (c *manualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(dt float64) {
	c.mu.Lock()
	c.t += dt
	c.mu.Unlock()
}

type recorder struct {
	steps []int
	times []float64
	trace []string
}

func (r *recorder) options() Options {
	return Options{
		OnStep: func(step int) {
			r.trace = append(r.trace, fmt.Sprintf("step:%d", step))
		},
		OnSchedule: func(step int, when float64) {
			r.steps = append(r.steps, step)
			r.times = append(r.times, when)
			r.trace = append(r.trace, fmt.Sprintf("sched:%d", step))
		},
	}
}

func TestSecondsPerSixteenth(t *testing.T) {
	if got := SecondsPerSixteenth(120); got != 0.125 {
		t.Fatalf("SecondsPerSixteenth(120) = %v, want exactly 0.125", got)
	}
	if got := SecondsPerSixteenth(60); got != 0.25 {
		t.Fatalf("SecondsPerSixteenth(60) = %v, want exactly 0.25", got)
	}
	if got := SecondsPerSixteenth(85); math.Abs(got-0.17647) > 0.001 {
		t.Fatalf("SecondsPerSixteenth(85) = %v, want ~0.17647", got)
	}
	for bpm := MinTempoBPM; bpm <= MaxTempoBPM; bpm++ {
		got := SecondsPerSixteenth(float64(bpm))
		if got <= 0 || math.IsInf(got, 0) || math.IsNaN(got) {
			t.Fatalf("SecondsPerSixteenth(%d) = %v, want positive and finite", bpm, got)
		}
		if want := (60.0 / float64(bpm)) / 4.0; got != want {
			t.Fatalf("SecondsPerSixteenth(%d) = %v, want %v", bpm, got, want)
		}
	}
}

func TestFullCycleWraparound(t *testing.T) {
	clock := &manualClock{}
	rec := &recorder{}
	opts := rec.options()
	// 16 steps at 120 BPM span exactly 2s; 1.99s of lookahead covers
	// steps 0..15 and not the wrapped step 0.
	opts.Lookahead = 1.99
	s := New(clock, opts)

	s.Pump()
	if len(rec.steps) != StepCount {
		t.Fatalf("scheduled %d steps, want %d", len(rec.steps), StepCount)
	}
	for i, step := range rec.steps {
		if step != i {
			t.Fatalf("steps[%d] = %d, want %d", i, step, i)
		}
	}
	if got := s.CurrentStep(); got != 0 {
		t.Fatalf("CurrentStep after full cycle = %d, want 0 (wraparound)", got)
	}
}

func TestStepAndScheduleOrdering(t *testing.T) {
	clock := &manualClock{}
	rec := &recorder{}
	opts := rec.options()
	opts.Lookahead = 0.3
	s := New(clock, opts)

	s.Pump()
	if len(rec.trace) == 0 || len(rec.trace)%2 != 0 {
		t.Fatalf("trace length = %d, want even non-zero", len(rec.trace))
	}
	for i := 0; i < len(rec.trace); i += 2 {
		step := i / 2
		if rec.trace[i] != fmt.Sprintf("step:%d", step) || rec.trace[i+1] != fmt.Sprintf("sched:%d", step) {
			t.Fatalf("trace[%d:%d] = %v, want step:%d then sched:%d", i, i+2, rec.trace[i:i+2], step, step)
		}
	}
}

func TestTempoChangeIsProspective(t *testing.T) {
	clock := &manualClock{}
	rec := &recorder{}
	opts := rec.options()
	opts.Lookahead = 0.3
	s := New(clock, opts)

	s.Pump() // schedules steps at 0, 0.125, 0.25
	if len(rec.steps) != 3 {
		t.Fatalf("scheduled %d steps, want 3", len(rec.steps))
	}
	before := s.NextNoteTime()

	s.SetTempo(60)
	if got := s.Tempo(); got != 60 {
		t.Fatalf("Tempo = %v, want 60", got)
	}
	if got := s.NextNoteTime(); got != before {
		t.Fatalf("NextNoteTime changed by SetTempo: %v -> %v", before, got)
	}
	for i, when := range rec.times {
		if want := float64(i) * 0.125; when != want {
			t.Fatalf("already-scheduled times[%d] = %v, want %v (unchanged by tempo)", i, when, want)
		}
	}

	// Future advances use the new tempo spacing.
	clock.advance(0.5)
	s.Pump()
	if len(rec.times) < 5 {
		t.Fatalf("scheduled %d steps after tempo change, want >= 5", len(rec.times))
	}
	n := len(rec.times)
	if gap := rec.times[n-1] - rec.times[n-2]; gap != 0.25 {
		t.Fatalf("post-change step gap = %v, want 0.25 (60 BPM)", gap)
	}
}

func TestStopStartResetsNextNoteTime(t *testing.T) {
	clock := &manualClock{}
	opts := Options{Lookahead: 0.001, PollInterval: time.Hour}
	s := New(clock, opts)

	s.Start()
	s.Stop()

	clock.advance(5)
	s.Start()
	defer s.Stop()
	// The immediate pass schedules exactly one step at the restart time,
	// so nextNoteTime sits one step after now: no drift carried over.
	if got, want := s.NextNoteTime(), 5.0+SecondsPerSixteenth(120); got != want {
		t.Fatalf("NextNoteTime after restart = %v, want %v", got, want)
	}
}

func TestCatchUpEmitsEverySkippedStep(t *testing.T) {
	clock := &manualClock{}
	rec := &recorder{}
	opts := rec.options()
	s := New(clock, opts)

	s.Pump() // step 0 at t=0
	// Simulate a badly delayed poll: advance well past one lookahead window.
	clock.advance(0.6)
	s.Pump()

	want := []int{0, 1, 2, 3, 4, 5}
	if len(rec.steps) != len(want) {
		t.Fatalf("scheduled steps = %v, want %v", rec.steps, want)
	}
	for i, step := range rec.steps {
		if step != want[i] {
			t.Fatalf("scheduled steps = %v, want %v", rec.steps, want)
		}
	}
	for i := 1; i < len(rec.times); i++ {
		if gap := rec.times[i] - rec.times[i-1]; math.Abs(gap-0.125) > 1e-9 {
			t.Fatalf("gap between steps %d and %d = %v, want 0.125", i-1, i, gap)
		}
	}
}

func TestStartIsReentrantNoop(t *testing.T) {
	clock := &manualClock{}
	opts := Options{Lookahead: 0.001, PollInterval: time.Hour}
	s := New(clock, opts)

	s.Start()
	defer s.Stop()
	before := s.NextNoteTime()

	clock.advance(3)
	s.Start() // already running: must not reset the timeline
	if got := s.NextNoteTime(); got != before {
		t.Fatalf("re-entrant Start changed NextNoteTime: %v -> %v", before, got)
	}
	if !s.IsPlaying() {
		t.Fatal("IsPlaying = false after Start")
	}
}

func TestStopIdempotent(t *testing.T) {
	clock := &manualClock{}
	s := New(clock, Options{PollInterval: time.Hour})

	s.Stop() // never started
	if s.IsPlaying() {
		t.Fatal("IsPlaying = true after Stop without Start")
	}
	s.Start()
	s.Stop()
	s.Stop() // second stop: no panic, no state change
	if s.IsPlaying() {
		t.Fatal("IsPlaying = true after double Stop")
	}
}

func TestResetRewindsStepOnly(t *testing.T) {
	clock := &manualClock{}
	rec := &recorder{}
	opts := rec.options()
	opts.Lookahead = 0.3
	s := New(clock, opts)

	s.Pump()
	if s.CurrentStep() == 0 {
		t.Fatal("expected pump to advance the step cursor")
	}
	before := s.NextNoteTime()

	s.Reset()
	if got := s.CurrentStep(); got != 0 {
		t.Fatalf("CurrentStep after Reset = %d, want 0", got)
	}
	if got := s.NextNoteTime(); got != before {
		t.Fatalf("Reset changed NextNoteTime: %v -> %v", before, got)
	}
	if s.IsPlaying() {
		t.Fatal("Reset changed playing state")
	}
}

func TestSetTempoClamps(t *testing.T) {
	s := New(&manualClock{}, Options{})
	s.SetTempo(10)
	if got := s.Tempo(); got != MinTempoBPM {
		t.Fatalf("Tempo = %v, want clamped to %d", got, MinTempoBPM)
	}
	s.SetTempo(500)
	if got := s.Tempo(); got != MaxTempoBPM {
		t.Fatalf("Tempo = %v, want clamped to %d", got, MaxTempoBPM)
	}
}

func TestStopFromOnStepCallback(t *testing.T) {
	clock := &manualClock{}
	var s *Scheduler
	var calls int
	s = New(clock, Options{
		PollInterval: time.Hour,
		OnStep: func(step int) {
			calls++
			s.Stop()
		},
	})

	done := make(chan struct{})
	go func() {
		s.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return when OnStep stopped the transport")
	}
	if calls == 0 {
		t.Fatal("OnStep never fired")
	}
	if s.IsPlaying() {
		t.Fatal("IsPlaying = true after OnStep called Stop")
	}
}

func TestSetTempoFromOnScheduleCallback(t *testing.T) {
	clock := &manualClock{}
	var s *Scheduler
	var times []float64
	s = New(clock, Options{
		Lookahead: 0.3,
		OnSchedule: func(step int, when float64) {
			times = append(times, when)
			s.SetTempo(60)
		},
	})

	s.Pump() // steps at 0, 0.125, 0.25; the whole batch keeps 120 BPM spacing
	if len(times) != 3 {
		t.Fatalf("scheduled %d steps, want 3", len(times))
	}
	for i, when := range times {
		if want := float64(i) * 0.125; when != want {
			t.Fatalf("times[%d] = %v, want %v (batch spacing unchanged mid-dispatch)", i, when, want)
		}
	}

	// The change lands on the next pass.
	clock.advance(0.5)
	s.Pump()
	n := len(times)
	if n < 5 {
		t.Fatalf("scheduled %d steps total, want >= 5", n)
	}
	if gap := times[n-1] - times[n-2]; gap != 0.25 {
		t.Fatalf("post-change step gap = %v, want 0.25 (60 BPM)", gap)
	}
}

func TestStopCancelsPendingPass(t *testing.T) {
	clock := &manualClock{}
	var mu sync.Mutex
	var count int
	s := New(clock, Options{
		PollInterval: time.Millisecond,
		OnSchedule: func(step int, when float64) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})

	s.Start()
	s.Stop()
	// Let any pass already past the stop gate finish; the clock has not
	// moved, so it schedules nothing new.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	before := count
	mu.Unlock()

	// With the loop gone, advancing the clock must not produce steps.
	clock.advance(10)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	after := count
	mu.Unlock()
	if after != before {
		t.Fatalf("%d steps scheduled after Stop returned", after-before)
	}
}

func TestTimerDrivenPlaybackSchedulesSteps(t *testing.T) {
	clock := &manualClock{}
	var mu sync.Mutex
	var count int
	s := New(clock, Options{
		PollInterval: time.Millisecond,
		OnSchedule: func(step int, when float64) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})

	s.Start()
	defer s.Stop()
	// Feed the clock forward and let the polling loop catch up.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		clock.advance(0.125)
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		n := count
		mu.Unlock()
		if n >= 8 {
			return
		}
	}
	t.Fatal("polling loop did not schedule steps in time")
}
