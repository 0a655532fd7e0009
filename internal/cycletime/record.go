package cycletime

import "time"

// ImpedimentInterval is one blocked window, in whole dates.
type ImpedimentInterval struct {
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end,omitempty"`
	Status string     `json:"status"`
	Flag   string     `json:"flag"`
}

// StateEntry is the reconstructed history of one workflow step.
type StateEntry struct {
	Step     string         `json:"step"`
	Entry    *time.Time     `json:"entry,omitempty"`
	Duration *time.Duration `json:"duration,omitempty"`
}

// Record is the finished timeline of one issue. It is not modified after Reconstruct returns.
type Record struct {
	Key            string            `json:"key"`
	URL            string            `json:"url"`
	IssueType      string            `json:"issue_type"`
	Summary        string            `json:"summary"`
	Status         string            `json:"status"`
	Resolution     string            `json:"resolution"`
	EstimationDays *float64          `json:"estimation_days,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	QueryValue     string            `json:"query_value,omitempty"`

	CycleTime          *time.Duration       `json:"cycle_time,omitempty"`
	CompletedTimestamp *time.Time           `json:"completed_timestamp,omitempty"`
	BlockedDays        int                  `json:"blocked_days"`
	Impediments        []ImpedimentInterval `json:"impediments,omitempty"`

	// States follows workflow order.
	States []StateEntry `json:"states"`
}

// State returns the entry for a step name.
func (r Record) State(step string) (StateEntry, bool) {
	for _, s := range r.States {
		if s.Step == step {
			return s, true
		}
	}
	return StateEntry{}, false
}

// CycleTimeDays reports the cycle time in fractional days.
func (r Record) CycleTimeDays() (float64, bool) {
	if r.CycleTime == nil {
		return 0, false
	}
	return r.CycleTime.Hours() / 24, true
}

// Diagnostics collects the recoverable findings of one reconstruction.
type Diagnostics struct {
	// Unmapped counts status events skipped per raw status name.
	Unmapped map[string]int
}
