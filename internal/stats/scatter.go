package stats

import (
	"sort"
	"time"

	"flow-metrics/internal/table"
)

// ScatterPoint is one completed issue on the cycle-time scatterplot.
type ScatterPoint struct {
	Key           string    `json:"key"`
	IssueType     string    `json:"issue_type"`
	CompletedDate time.Time `json:"completed_date"`
	CycleTimeDays float64   `json:"cycle_time_days"`
}

// Scatterplot lists completed issues with a cycle time, ordered by completion.
func Scatterplot(t *table.Table) []ScatterPoint {
	var points []ScatterPoint
	for _, r := range t.Records {
		days, ok := r.CycleTimeDays()
		if !ok || r.CompletedTimestamp == nil {
			continue
		}
		points = append(points, ScatterPoint{
			Key:           r.Key,
			IssueType:     r.IssueType,
			CompletedDate: SnapToStart(r.CompletedTimestamp.UTC(), Day),
			CycleTimeDays: days,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].CompletedDate.Before(points[j].CompletedDate) })
	return points
}
