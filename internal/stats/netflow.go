package stats

import (
	"time"

	"flow-metrics/internal/table"
)

// NetFlowPoint compares arrivals into and departures from the in-progress range.
type NetFlowPoint struct {
	Start      time.Time `json:"start"`
	Label      string    `json:"label"`
	Arrivals   int       `json:"arrivals"`
	Departures int       `json:"departures"`
	Net        int       `json:"net"`
}

// NetFlow counts per bucket the issues reaching the committed state (arrivals)
// and the done state (departures).
func NetFlow(t *table.Table, committed, done string, bucket Bucket) []NetFlowPoint {
	ci, di := t.StepIndex(committed), t.StepIndex(done)
	if ci < 0 || di < 0 || t.Len() == 0 {
		return nil
	}

	type pair struct{ in, out *time.Time }
	pairs := make([]pair, 0, t.Len())
	var first, last time.Time
	for i := range t.Records {
		reached := ReachedDates(t, i)
		p := pair{in: reached[ci], out: reached[di]}
		for _, d := range []*time.Time{p.in, p.out} {
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
		pairs = append(pairs, p)
	}
	if first.IsZero() {
		return nil
	}

	window := NewWindow(first, last, bucket)
	buckets := window.Subdivide()
	points := make([]NetFlowPoint, len(buckets))
	for i, b := range buckets {
		points[i] = NetFlowPoint{Start: b, Label: window.Label(b)}
	}
	for _, p := range pairs {
		if p.in != nil {
			points[window.FindBucketIndex(*p.in)].Arrivals++
		}
		if p.out != nil {
			points[window.FindBucketIndex(*p.out)].Departures++
		}
	}
	for i := range points {
		points[i].Net = points[i].Arrivals - points[i].Departures
	}
	return points
}
