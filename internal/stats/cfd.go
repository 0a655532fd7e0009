package stats

import (
	"time"

	"flow-metrics/internal/table"
)

// CFDResult holds cumulative counts per day and state.
// Counts[d][s] is the number of issues that reached state s by the end of Dates[d].
type CFDResult struct {
	Dates  []time.Time `json:"dates"`
	States []string    `json:"states"`
	Counts [][]int     `json:"counts"`
}

// Row returns the counts for one state across all days.
func (r CFDResult) Row(state int) []int {
	out := make([]int, len(r.Dates))
	for d := range r.Dates {
		out[d] = r.Counts[d][state]
	}
	return out
}

// ReachedDates returns the day each state was reached by row i, in workflow order.
// A skipped state takes the date of the next state that was reached, and an
// earlier state is never dated after a later one. Unreached states are nil.
func ReachedDates(t *table.Table, i int) []*time.Time {
	dates := make([]*time.Time, len(t.Steps))
	for s, step := range t.Steps {
		if e := t.Entry(i, step); e != nil {
			d := SnapToStart(e.UTC(), Day)
			dates[s] = &d
		}
	}

	// Backward fill from the next reached state.
	for s := len(dates) - 2; s >= 0; s-- {
		if dates[s] == nil && dates[s+1] != nil {
			d := *dates[s+1]
			dates[s] = &d
		}
	}

	// Clamp so dates never decrease along the workflow.
	for s := len(dates) - 2; s >= 0; s-- {
		if dates[s] != nil && dates[s+1] != nil && dates[s].After(*dates[s+1]) {
			d := *dates[s+1]
			dates[s] = &d
		}
	}
	return dates
}

// CFD builds the cumulative flow over the complete daily range covered by the table.
// A zero-row table yields an empty result.
func CFD(t *table.Table) CFDResult {
	result := CFDResult{States: t.Steps}

	reached := make([][]*time.Time, t.Len())
	var first, last time.Time
	for i := range t.Records {
		reached[i] = ReachedDates(t, i)
		for _, d := range reached[i] {
			if d == nil {
				continue
			}
			if first.IsZero() || d.Before(first) {
				first = *d
			}
			if d.After(last) {
				last = *d
			}
		}
	}
	if first.IsZero() {
		return result
	}

	window := NewWindow(first, last, Day)
	result.Dates = window.Subdivide()

	// Arrivals per day and state, then a running sum forward fills quiet days.
	arrivals := make([][]int, len(result.Dates))
	for d := range arrivals {
		arrivals[d] = make([]int, len(t.Steps))
	}
	for _, dates := range reached {
		for s, d := range dates {
			if d != nil {
				arrivals[window.FindBucketIndex(*d)][s]++
			}
		}
	}

	result.Counts = make([][]int, len(result.Dates))
	running := make([]int, len(t.Steps))
	for d := range result.Dates {
		for s := range running {
			running[s] += arrivals[d][s]
		}
		result.Counts[d] = append([]int(nil), running...)
	}
	return result
}
