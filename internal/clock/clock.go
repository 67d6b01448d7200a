// Package clock provides the timestamp sources used to time calls.
//
// Timestamps are durations since an arbitrary, clock-specific origin. Only
// differences between two readings of the same clock are meaningful.
package clock

import (
	"time"
)

// Clock returns the current timestamp.
type Clock interface {
	Now() time.Duration
}

// Func adapts a function to the Clock interface.
type Func func() time.Duration

func (f Func) Now() time.Duration {
	return f()
}

// System returns a wall clock reading the monotonic time elapsed since it was
// created.
func System() Clock {
	origin := time.Now()
	return Func(func() time.Duration {
		return time.Since(origin)
	})
}

// Step is a deterministic clock advancing by Unit on every reading. The first
// reading returns Start.
type Step struct {
	Start time.Duration
	Unit  time.Duration

	readings int64
}

func NewStep(unit time.Duration) *Step {
	return &Step{Unit: unit}
}

func (s *Step) Now() time.Duration {
	t := s.Start + time.Duration(s.readings)*s.Unit
	s.readings++
	return t
}

// Readings returns how many times the clock was read.
func (s *Step) Readings() int64 {
	return s.readings
}

// Sequence replays a fixed list of timestamps, repeating the last one once it
// runs out.
type Sequence struct {
	Timestamps []time.Duration

	next int
}

func NewSequence(timestamps ...time.Duration) *Sequence {
	return &Sequence{Timestamps: timestamps}
}

func (s *Sequence) Now() time.Duration {
	if len(s.Timestamps) == 0 {
		return 0
	}
	if s.next >= len(s.Timestamps) {
		return s.Timestamps[len(s.Timestamps)-1]
	}
	t := s.Timestamps[s.next]
	s.next++
	return t
}
