package stats

import (
	"fmt"
	"strings"
	"time"
)

// Bucket is the granularity of a time series.
type Bucket string

const (
	Day   Bucket = "day"
	Week  Bucket = "week"
	Month Bucket = "month"
)

// ParseBucket accepts day, week or month. Empty means day.
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case "", Day:
		return Day, nil
	case Week:
		return Week, nil
	case Month:
		return Month, nil
	default:
		return "", fmt.Errorf("unknown bucket %q (use day, week or month)", s)
	}
}

// Window is a closed range of buckets.
type Window struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Bucket Bucket    `json:"bucket"`
}

// NewWindow snaps start and end to their bucket boundaries.
func NewWindow(start, end time.Time, bucket Bucket) Window {
	if bucket == "" {
		bucket = Day
	}
	return Window{
		Start:  SnapToStart(start, bucket),
		End:    SnapToEnd(end, bucket),
		Bucket: bucket,
	}
}

// SnapToStart normalizes a timestamp to the beginning of its bucket (0:00:00).
func SnapToStart(t time.Time, bucket Bucket) time.Time {
	if t.IsZero() {
		return t
	}
	switch bucket {
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case Week:
		// Snap to Monday
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// SnapToEnd normalizes a timestamp to the last nanosecond of its bucket.
func SnapToEnd(t time.Time, bucket Bucket) time.Time {
	if t.IsZero() {
		return t
	}
	return next(SnapToStart(t, bucket), bucket).Add(-time.Nanosecond)
}

func next(t time.Time, bucket Bucket) time.Time {
	switch bucket {
	case Month:
		return t.AddDate(0, 1, 0)
	case Week:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Subdivide returns the bucket starts within the window.
func (w Window) Subdivide() []time.Time {
	var buckets []time.Time
	for current := w.Start; current.Before(w.End); current = next(current, w.Bucket) {
		buckets = append(buckets, current)
	}
	return buckets
}

// FindBucketIndex returns the index of the bucket containing t, or -1 when out of range.
func (w Window) FindBucketIndex(t time.Time) int {
	norm := SnapToStart(t, w.Bucket)
	if norm.Before(w.Start) || norm.After(w.End) {
		return -1
	}
	switch w.Bucket {
	case Month:
		return (norm.Year()-w.Start.Year())*12 + int(norm.Month()-w.Start.Month())
	case Week:
		return int(norm.Sub(w.Start).Hours() / (24 * 7))
	default:
		return int(norm.Sub(w.Start).Hours() / 24)
	}
}

// Label returns a human-readable bucket label, e.g. "Jan 2024" or "2024-W01".
func (w Window) Label(t time.Time) string {
	switch w.Bucket {
	case Month:
		return t.Format("Jan 2006")
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return t.Format("2006-01-02")
	}
}
