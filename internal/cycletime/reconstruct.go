// Package cycletime replays normalized issue histories through a workflow
// and produces one Record per issue.
package cycletime

import (
	"fmt"
	"strings"
	"time"

	"flow-metrics/internal/eventlog"
	"flow-metrics/internal/jira"
	"flow-metrics/internal/workflow"

	"github.com/rs/zerolog/log"
)

const secondsPerWorkDay = 8 * 60 * 60

// Options carries the per-run settings the reconstructor needs.
type Options struct {
	// Now bounds open intervals and open-ended impediments. Zero means time.Now().
	Now time.Time
	// Attributes maps an output attribute name to a Jira field id.
	Attributes  map[string]string
	KnownValues map[string][]string
	// EstimationField is a Jira field id holding a numeric estimate.
	EstimationField string
}

// Reconstructor is safe for concurrent use; it holds no per-issue state.
type Reconstructor struct {
	wf   *workflow.Workflow
	opts Options
}

// NewReconstructor rejects backwards policies it cannot apply.
func NewReconstructor(wf *workflow.Workflow, opts Options) (*Reconstructor, error) {
	if wf.Policy() != workflow.PolicyReset {
		return nil, fmt.Errorf("%w: %q", ErrPolicyUnsupported, wf.Policy())
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	opts.Now = opts.Now.UTC()
	return &Reconstructor{wf: wf, opts: opts}, nil
}

// openImpediment is the single in-flight blocked window of an issue.
type openImpediment struct {
	start  time.Time
	status string
	flag   string
}

// replay is the state machine for one issue.
type replay struct {
	wf          *workflow.Workflow
	spans       []Timespan
	last        int
	open        *openImpediment
	impediments []ImpedimentInterval
	blocked     int
	diag        Diagnostics
}

// Reconstruct replays events for one issue. Events must come from eventlog.Normalize.
func (r *Reconstructor) Reconstruct(issue jira.Issue, events []eventlog.ChangeEvent) (Record, Diagnostics, error) {
	st := &replay{
		wf:    r.wf,
		spans: make([]Timespan, r.wf.Len()),
		last:  -1,
		diag:  Diagnostics{Unmapped: make(map[string]int)},
	}

	for _, e := range events {
		var err error
		switch e.Kind {
		case eventlog.Status:
			err = st.onStatus(e)
		case eventlog.Impediment:
			st.onImpediment(e)
		}
		if err != nil {
			return Record{}, st.diag, &IssueError{Key: issue.Key, Err: err}
		}
	}

	st.closeOpenImpediment(issue.ResolutionDate, r.opts.Now)

	rec := r.baseRecord(issue)
	rec.BlockedDays = st.blocked
	rec.Impediments = st.impediments

	committed := &st.spans[r.wf.Committed().Ordinal]
	done := &st.spans[r.wf.Done().Ordinal]
	if done.Filled() {
		completed := done.LastStart()
		rec.CompletedTimestamp = &completed
	}
	if committed.Filled() && done.Filled() {
		ct := done.LastStart().Sub(committed.Start())
		// Unreachable through replay: span Leave/Enter reject any event older
		// than the visit it ends, and a return to committed resets done.
		if ct < 0 {
			return Record{}, st.diag, &IssueError{
				Key: issue.Key,
				Err: fmt.Errorf("%w: committed %s, done %s", ErrNegativeCycleTime,
					committed.Start().Format(time.RFC3339), done.LastStart().Format(time.RFC3339)),
			}
		}
		rec.CycleTime = &ct
	}

	doneOrdinal := r.wf.Done().Ordinal
	now := r.opts.Now
	rec.States = make([]StateEntry, r.wf.Len())
	for i, step := range r.wf.Steps() {
		entry := StateEntry{Step: step.Name}
		span := &st.spans[i]
		if span.Filled() {
			start := span.Start()
			// Open intervals at or beyond the done column do not accrue.
			var boundary *time.Time
			if i < doneOrdinal {
				boundary = &now
			}
			d := span.Duration(boundary)
			entry.Entry = &start
			entry.Duration = &d
		}
		rec.States[i] = entry
	}

	return rec, st.diag, nil
}

func (st *replay) onStatus(e eventlog.ChangeEvent) error {
	step, ok := st.wf.Resolve(e.To)
	if !ok {
		st.diag.Unmapped[e.To]++
		return nil
	}
	// A move between statuses of the same step keeps the current visit.
	if step.Ordinal == st.last {
		return nil
	}

	if st.last >= 0 {
		if err := st.spans[st.last].Leave(e.Timestamp); err != nil {
			return fmt.Errorf("leaving %s: %w", st.wf.At(st.last).Name, err)
		}
	}
	if err := st.spans[step.Ordinal].Enter(e.Timestamp); err != nil {
		return fmt.Errorf("entering %s: %w", step.Name, err)
	}

	// Moving backwards erases forward progress recorded after this step.
	for j := step.Ordinal + 1; j < len(st.spans); j++ {
		if st.spans[j].Filled() {
			log.Debug().Str("from", st.wf.At(j).Name).Str("to", step.Name).Time("at", e.Timestamp).Msg("Backward transition, resetting later step")
			st.spans[j].Reset()
		}
	}

	st.last = step.Ordinal
	return nil
}

func (st *replay) onImpediment(e eventlog.ChangeEvent) {
	if e.IsSet() {
		if st.open != nil {
			return
		}
		status := ""
		if st.last >= 0 {
			status = st.wf.At(st.last).Name
		}
		st.open = &openImpediment{start: e.Timestamp, status: status, flag: e.To}
		return
	}
	if st.open == nil {
		return
	}
	end := e.Timestamp
	st.closeImpediment(&end, end)
}

// closeOpenImpediment ends a window still open after replay: at the
// resolution date when resolved, otherwise left open and counted up to now.
func (st *replay) closeOpenImpediment(resolved *time.Time, now time.Time) {
	if st.open == nil {
		return
	}
	if resolved != nil {
		end := *resolved
		if end.Before(st.open.start) {
			end = st.open.start
		}
		st.closeImpediment(&end, end)
		return
	}
	st.closeImpediment(nil, now)
}

// closeImpediment records the open window. countUntil bounds the blocked days.
func (st *replay) closeImpediment(end *time.Time, countUntil time.Time) {
	iv := ImpedimentInterval{
		Start:  truncateDay(st.open.start),
		Status: st.open.status,
		Flag:   st.open.flag,
	}
	if end != nil {
		d := truncateDay(*end)
		iv.End = &d
	}
	if st.wf.IsActive(st.open.status) {
		st.blocked += daysBetween(st.open.start, countUntil)
	}
	st.impediments = append(st.impediments, iv)
	st.open = nil
}

func (r *Reconstructor) baseRecord(issue jira.Issue) Record {
	rec := Record{
		Key:        issue.Key,
		URL:        issue.URL,
		IssueType:  issue.IssueType,
		Summary:    issue.Summary,
		Status:     issue.Status,
		Resolution: issue.Resolution,
	}

	if len(r.opts.Attributes) > 0 {
		rec.Attributes = make(map[string]string, len(r.opts.Attributes))
		for name, fieldID := range r.opts.Attributes {
			rec.Attributes[name] = jira.ResolveFieldValue(issue.Fields[fieldID], r.opts.KnownValues[name])
		}
	}

	if r.opts.EstimationField != "" {
		if v, ok := jira.ResolveFieldNumber(issue.Fields[r.opts.EstimationField]); ok {
			if isTimeTracking(r.opts.EstimationField) {
				v = v / secondsPerWorkDay
			}
			rec.EstimationDays = &v
		}
	}

	return rec
}

// isTimeTracking reports whether a field holds seconds, like timeoriginalestimate.
func isTimeTracking(fieldID string) bool {
	id := strings.ToLower(fieldID)
	return strings.HasPrefix(id, "time") || strings.HasPrefix(id, "aggregatetime")
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b, never negative.
func daysBetween(a, b time.Time) int {
	days := int(truncateDay(b).Sub(truncateDay(a)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
