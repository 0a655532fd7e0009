package stats

import (
	"time"

	"flow-metrics/internal/table"
)

// ThroughputPoint is the number of completions in one bucket.
type ThroughputPoint struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// ThroughputOptions bounds the series. Zero Start or End fall back to the
// first or last completion.
type ThroughputOptions struct {
	Bucket Bucket
	Start  time.Time
	End    time.Time
}

// Throughput counts completed issues per bucket over a complete, zero-filled range.
func Throughput(t *table.Table, opts ThroughputOptions) []ThroughputPoint {
	completed := t.Completed()
	if len(completed) == 0 && (opts.Start.IsZero() || opts.End.IsZero()) {
		return nil
	}

	start, end := opts.Start, opts.End
	for _, r := range completed {
		ts := r.CompletedTimestamp.UTC()
		if opts.Start.IsZero() && (start.IsZero() || ts.Before(start)) {
			start = ts
		}
		if opts.End.IsZero() && ts.After(end) {
			end = ts
		}
	}

	window := NewWindow(start, end, opts.Bucket)
	buckets := window.Subdivide()
	points := make([]ThroughputPoint, len(buckets))
	for i, b := range buckets {
		points[i] = ThroughputPoint{Start: b, Label: window.Label(b)}
	}
	for _, r := range completed {
		if idx := window.FindBucketIndex(r.CompletedTimestamp.UTC()); idx >= 0 && idx < len(points) {
			points[idx].Count++
		}
	}
	return points
}

// Counts extracts the per-bucket counts, e.g. as a forecast sample pool.
func Counts(points []ThroughputPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Count
	}
	return out
}
