package cycletime

import (
	"fmt"
	"time"
)

type interval struct {
	enter time.Time
	exit  *time.Time
}

// Timespan tracks the visits of one issue to one workflow step.
// Intervals are ordered; only the last one may be open.
type Timespan struct {
	intervals []interval
}

// Enter opens a new interval at t.
func (s *Timespan) Enter(t time.Time) error {
	if s.IsOpen() {
		return fmt.Errorf("%w at %s", ErrSpanAlreadyOpen, t.Format(time.RFC3339))
	}
	if n := len(s.intervals); n > 0 && t.Before(*s.intervals[n-1].exit) {
		return fmt.Errorf("%w: enter %s precedes previous exit %s", ErrNegativeDuration,
			t.Format(time.RFC3339), s.intervals[n-1].exit.Format(time.RFC3339))
	}
	s.intervals = append(s.intervals, interval{enter: t})
	return nil
}

// Leave closes the open interval at t.
func (s *Timespan) Leave(t time.Time) error {
	if !s.IsOpen() {
		return fmt.Errorf("%w at %s", ErrSpanNotOpen, t.Format(time.RFC3339))
	}
	last := &s.intervals[len(s.intervals)-1]
	if t.Before(last.enter) {
		return fmt.Errorf("%w: exit %s precedes enter %s", ErrNegativeDuration,
			t.Format(time.RFC3339), last.enter.Format(time.RFC3339))
	}
	exit := t
	last.exit = &exit
	return nil
}

// Reset erases every interval.
func (s *Timespan) Reset() {
	s.intervals = nil
}

func (s *Timespan) Filled() bool {
	return len(s.intervals) > 0
}

func (s *Timespan) IsOpen() bool {
	return len(s.intervals) > 0 && s.intervals[len(s.intervals)-1].exit == nil
}

// Start is the earliest enter, zero when empty.
func (s *Timespan) Start() time.Time {
	if len(s.intervals) == 0 {
		return time.Time{}
	}
	return s.intervals[0].enter
}

// LastStart is the latest enter, zero when empty.
func (s *Timespan) LastStart() time.Time {
	if len(s.intervals) == 0 {
		return time.Time{}
	}
	return s.intervals[len(s.intervals)-1].enter
}

// End is the exit of the last interval. It reports false while open or empty.
func (s *Timespan) End() (time.Time, bool) {
	if len(s.intervals) == 0 || s.IsOpen() {
		return time.Time{}, false
	}
	return *s.intervals[len(s.intervals)-1].exit, true
}

// Visits returns the number of recorded intervals.
func (s *Timespan) Visits() int {
	return len(s.intervals)
}

// Duration sums the closed intervals. An open interval adds boundary-enter
// when a boundary is given and it is not before the enter, otherwise nothing.
func (s *Timespan) Duration(boundary *time.Time) time.Duration {
	var total time.Duration
	for _, iv := range s.intervals {
		switch {
		case iv.exit != nil:
			total += iv.exit.Sub(iv.enter)
		case boundary != nil && !boundary.Before(iv.enter):
			total += boundary.Sub(iv.enter)
		}
	}
	return total
}
