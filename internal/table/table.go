// Package table assembles reconstructed records into the cycle-data table
// consumed by every aggregator and exporter.
package table

import (
	"slices"
	"time"

	"flow-metrics/internal/cycletime"
	"flow-metrics/internal/workflow"
)

// Identity and summary columns, in output order.
const (
	ColKey                = "key"
	ColURL                = "url"
	ColIssueType          = "issue_type"
	ColSummary            = "summary"
	ColStatus             = "status"
	ColResolution         = "resolution"
	ColEstimationDays     = "estimation_days"
	ColCycleTime          = "cycle_time"
	ColCompletedTimestamp = "completed_timestamp"
	ColBlockedDays        = "blocked_days"
	ColImpediments        = "impediments"
)

// DurationSuffix names the per-state duration column: "<State> duration".
const DurationSuffix = " duration"

// Group is the output of one query criteria group.
type Group struct {
	QueryValue string
	Records    []cycletime.Record
}

// Table is write-once: Assemble builds it and callers only read it.
type Table struct {
	Columns        []string
	Steps          []string
	Attributes     []string
	QueryAttribute string
	Records        []cycletime.Record
}

// Assemble concatenates the groups in order and fixes the column contract.
func Assemble(wf *workflow.Workflow, attributes []string, queryAttribute string, groups []Group) *Table {
	attrs := slices.Clone(attributes)
	slices.Sort(attrs)
	attrs = slices.Compact(attrs)
	if queryAttribute != "" {
		attrs = slices.DeleteFunc(attrs, func(a string) bool { return a == queryAttribute })
	}

	t := &Table{
		Steps:          wf.StepNames(),
		Attributes:     attrs,
		QueryAttribute: queryAttribute,
	}

	t.Columns = []string{ColKey, ColURL, ColIssueType, ColSummary, ColStatus, ColResolution, ColEstimationDays}
	t.Columns = append(t.Columns, attrs...)
	if queryAttribute != "" {
		t.Columns = append(t.Columns, queryAttribute)
	}
	t.Columns = append(t.Columns, ColCycleTime, ColCompletedTimestamp, ColBlockedDays, ColImpediments)
	for _, s := range t.Steps {
		t.Columns = append(t.Columns, s, s+DurationSuffix)
	}

	total := 0
	for _, g := range groups {
		total += len(g.Records)
	}
	t.Records = make([]cycletime.Record, 0, total)
	for _, g := range groups {
		for _, r := range g.Records {
			if queryAttribute != "" {
				r.QueryValue = g.QueryValue
			}
			t.Records = append(t.Records, r)
		}
	}

	return t
}

func (t *Table) Len() int {
	return len(t.Records)
}

// Entry returns the entry timestamp of a state for row i.
func (t *Table) Entry(i int, step string) *time.Time {
	if s, ok := t.Records[i].State(step); ok {
		return s.Entry
	}
	return nil
}

// StepIndex returns the workflow position of a state column, or -1.
func (t *Table) StepIndex(step string) int {
	return slices.Index(t.Steps, step)
}

// Completed returns the records that have a completion timestamp.
func (t *Table) Completed() []cycletime.Record {
	var out []cycletime.Record
	for _, r := range t.Records {
		if r.CompletedTimestamp != nil {
			out = append(out, r)
		}
	}
	return out
}

// Attribute returns the value of a custom attribute or of the query attribute.
func (t *Table) Attribute(i int, name string) string {
	if name != "" && name == t.QueryAttribute {
		return t.Records[i].QueryValue
	}
	return t.Records[i].Attributes[name]
}
