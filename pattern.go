package drumgrid

import "github.com/cbegin/drumgrid-go/internal/sched"

// StepCount is the fixed pattern length: one bar of 16th notes.
const StepCount = sched.StepCount

// Track identifies one of the four fixed instrument lanes.
type Track string

const (
	TrackKick  Track = "kick"
	TrackSnare Track = "snare"
	TrackHiHat Track = "hihat"
	TrackChord Track = "chord"
)

// Tracks lists the lanes in display order.
var Tracks = [4]Track{TrackKick, TrackSnare, TrackHiHat, TrackChord}

// Steps is one track's row of step flags.
type Steps [StepCount]bool

// Pattern maps each track to its 16 step flags. The engine treats an
// installed pattern as an immutable snapshot: edits replace the whole
// pattern via SetPattern, never mutate the one in use. A missing track
// is equivalent to an all-inactive row.
type Pattern map[Track]Steps

// clone copies the recognized tracks into a fresh snapshot, dropping
// any unknown keys.
func (p Pattern) clone() Pattern {
	if p == nil {
		return nil
	}
	out := make(Pattern, len(Tracks))
	for _, tr := range Tracks {
		if steps, ok := p[tr]; ok {
			out[tr] = steps
		}
	}
	return out
}

// activeTracks returns which tracks fire at the given step.
func (p Pattern) activeTracks(step int) []Track {
	if p == nil || step < 0 || step >= StepCount {
		return nil
	}
	var out []Track
	for _, tr := range Tracks {
		if p[tr][step] {
			out = append(out, tr)
		}
	}
	return out
}
