package stats

import (
	"sort"
	"time"

	"flow-metrics/internal/table"
)

// AgeingItem is one issue still in progress.
type AgeingItem struct {
	Key         string    `json:"key"`
	IssueType   string    `json:"issue_type"`
	Status      string    `json:"status"`
	State       string    `json:"state"`
	CommittedAt time.Time `json:"committed_at"`
	AgeDays     float64   `json:"age_days"`
}

// AgeingWIP lists issues that reached committed but not done, oldest first.
// Age is measured from the committed date to now.
func AgeingWIP(t *table.Table, committed, done string, now time.Time) []AgeingItem {
	ci, di := t.StepIndex(committed), t.StepIndex(done)
	if ci < 0 || di < 0 {
		return nil
	}

	var items []AgeingItem
	for i, r := range t.Records {
		reached := ReachedDates(t, i)
		if reached[ci] == nil || reached[di] != nil {
			continue
		}
		state := ""
		for s := len(t.Steps) - 1; s >= 0; s-- {
			if t.Entry(i, t.Steps[s]) != nil {
				state = t.Steps[s]
				break
			}
		}
		items = append(items, AgeingItem{
			Key:         r.Key,
			IssueType:   r.IssueType,
			Status:      r.Status,
			State:       state,
			CommittedAt: *reached[ci],
			AgeDays:     now.Sub(*reached[ci]).Hours() / 24,
		})
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].AgeDays > items[b].AgeDays })
	return items
}
