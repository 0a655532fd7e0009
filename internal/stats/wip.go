package stats

import "time"

// WIPPoint is the number of issues in progress at the end of a day.
type WIPPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// WIP derives the daily work in progress from the cumulative flow: issues
// that reached the committed state but not the done state.
func WIP(cfd CFDResult, committed, done string) []WIPPoint {
	ci, di := indexOf(cfd.States, committed), indexOf(cfd.States, done)
	if ci < 0 || di < 0 {
		return nil
	}
	points := make([]WIPPoint, len(cfd.Dates))
	for d, date := range cfd.Dates {
		points[d] = WIPPoint{Date: date, Count: cfd.Counts[d][ci] - cfd.Counts[d][di]}
	}
	return points
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
