package jira

import (
	"fmt"
	"time"
)

// Layouts carrying an explicit offset. Values parsed with these are converted to UTC.
var awareLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// Layouts without offset. Values parsed with these are read in the caller's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a Jira timestamp in UTC.
func ParseTime(s string) (time.Time, error) {
	return ParseTimeIn(s, time.UTC)
}

// ParseTimeIn parses aware and naive Jira timestamps and normalises both to UTC.
// Naive values are interpreted in loc.
func ParseTimeIn(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
