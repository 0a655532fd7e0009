package stats

import (
	"testing"
	"time"

	"flow-metrics/internal/cycletime"
	"flow-metrics/internal/table"
	"flow-metrics/internal/workflow"
)

var testSteps = []string{"Backlog", "Committed", "Build", "Test", "Done"}

func d(day int) time.Time {
	return time.Date(2024, 4, day, 10, 0, 0, 0, time.UTC)
}

// rec builds a record from entry days in workflow order; 0 means the state was never entered.
func rec(key string, entryDays ...int) cycletime.Record {
	r := cycletime.Record{Key: key, IssueType: "Story"}
	for i, step := range testSteps {
		entry := cycletime.StateEntry{Step: step}
		if i < len(entryDays) && entryDays[i] > 0 {
			ts := d(entryDays[i])
			entry.Entry = &ts
		}
		r.States = append(r.States, entry)
	}
	committed, done := r.States[1].Entry, r.States[4].Entry
	if done != nil {
		c := *done
		r.CompletedTimestamp = &c
		if committed != nil {
			ct := done.Sub(*committed)
			r.CycleTime = &ct
		}
	}
	return r
}

func testTable(t *testing.T, records ...cycletime.Record) *table.Table {
	t.Helper()
	cfgs := make([]workflow.StepConfig, len(testSteps))
	for i, s := range testSteps {
		cfgs[i] = workflow.StepConfig{Name: s}
	}
	wf, err := workflow.New(cfgs, "Committed", "Done", workflow.PolicyReset)
	if err != nil {
		t.Fatal(err)
	}
	return table.Assemble(wf, nil, "", []table.Group{{Records: records}})
}
