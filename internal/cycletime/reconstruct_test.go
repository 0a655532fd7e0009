package cycletime

import (
	"math/rand"
	"testing"
	"time"

	"flow-metrics/internal/eventlog"
	"flow-metrics/internal/jira"
	"flow-metrics/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = at(20, 0)

func testWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.New([]workflow.StepConfig{
		{Name: "Backlog", Statuses: []string{"Backlog"}},
		{Name: "Committed", Statuses: []string{"Committed", "Next"}},
		{Name: "Build", Statuses: []string{"Build"}},
		{Name: "Test", Statuses: []string{"Test"}},
		{Name: "Done", Statuses: []string{"Done"}},
	}, "Committed", "Done", workflow.PolicyReset)
	require.NoError(t, err)
	return wf
}

func testReconstructor(t *testing.T, opts Options) *Reconstructor {
	t.Helper()
	if opts.Now.IsZero() {
		opts.Now = now
	}
	r, err := NewReconstructor(testWorkflow(t), opts)
	require.NoError(t, err)
	return r
}

// history builds a normalized sequence from status names and impediment markers.
type step struct {
	when   time.Time
	status string
	flag   *bool
}

func status(when time.Time, name string) step { return step{when: when, status: name} }
func flagged(when time.Time) step { return step{when: when, flag: ptr(true)} }
func cleared(when time.Time) step { return step{when: when, flag: ptr(false)} }

func history(created time.Time, initial string, steps ...step) (jira.Issue, []eventlog.ChangeEvent) {
	issue := jira.Issue{Key: "A-1", Created: created, Status: initial}
	prev := initial
	for i, s := range steps {
		switch {
		case s.flag != nil && *s.flag:
			issue.Changes = append(issue.Changes, jira.Change{Field: "Flagged", Timestamp: s.when, To: "Impediment", Seq: i})
		case s.flag != nil:
			issue.Changes = append(issue.Changes, jira.Change{Field: "Flagged", Timestamp: s.when, From: "Impediment", Seq: i})
		default:
			issue.Changes = append(issue.Changes, jira.Change{Field: "status", Timestamp: s.when, From: prev, To: s.status, Seq: i})
			prev = s.status
			issue.Status = s.status
		}
	}
	events, _ := eventlog.Normalize(issue, eventlog.Options{})
	return issue, events
}

func TestReconstruct_EndToEndExample(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 10), "Backlog",
		status(at(2, 10), "Committed"),
		status(at(3, 10), "Build"),
		status(at(4, 10), "Test"),
		status(at(6, 10), "Done"),
	)

	rec, diag, err := r.Reconstruct(issue, events)
	require.NoError(t, err)
	assert.Empty(t, diag.Unmapped)

	require.NotNil(t, rec.CycleTime)
	assert.Equal(t, 4*24*time.Hour, *rec.CycleTime)
	require.NotNil(t, rec.CompletedTimestamp)
	assert.Equal(t, at(6, 10), *rec.CompletedTimestamp)

	build, ok := rec.State("Build")
	require.True(t, ok)
	assert.Equal(t, at(3, 10), *build.Entry)
	assert.Equal(t, 24*time.Hour, *build.Duration)

	test, _ := rec.State("Test")
	assert.Equal(t, 48*time.Hour, *test.Duration)

	doneState, _ := rec.State("Done")
	assert.Equal(t, at(6, 10), *doneState.Entry)
	assert.Zero(t, *doneState.Duration, "time spent in done does not accrue")

	assert.Equal(t, []string{"Backlog", "Committed", "Build", "Test", "Done"}, stateNames(rec))
}

func TestReconstruct_BackwardTransitionErasure(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Next"),
		status(at(3, 0), "Build"),
		status(at(4, 0), "Next"),
	)

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)

	build, _ := rec.State("Build")
	assert.Nil(t, build.Entry)
	assert.Nil(t, build.Duration)

	next, _ := rec.State("Committed")
	require.NotNil(t, next.Entry)
	assert.Equal(t, at(2, 0), *next.Entry, "first entry is preserved across the regression")
	// One day before the regression plus the open interval up to now.
	assert.Equal(t, 24*time.Hour+now.Sub(at(4, 0)), *next.Duration)
	assert.Nil(t, rec.CycleTime)
}

func TestReconstruct_RedoneUsesLastCompletion(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Committed"),
		status(at(3, 0), "Done"),
		status(at(4, 0), "Build"),
		status(at(7, 0), "Done"),
	)

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)
	require.NotNil(t, rec.CycleTime)
	assert.Equal(t, 5*24*time.Hour, *rec.CycleTime)
	assert.Equal(t, at(7, 0), *rec.CompletedTimestamp)
}

func TestReconstruct_MovesWithinDoneKeepFirstCompletion(t *testing.T) {
	wf, err := workflow.New([]workflow.StepConfig{
		{Name: "Backlog", Statuses: []string{"Open"}},
		{Name: "Committed", Statuses: []string{"Selected"}},
		{Name: "Done", Statuses: []string{"Resolved", "Closed"}},
	}, "Committed", "Done", workflow.PolicyReset)
	require.NoError(t, err)
	r, err := NewReconstructor(wf, Options{Now: now})
	require.NoError(t, err)

	issue, events := history(at(1, 0), "Open",
		status(at(2, 0), "Selected"),
		status(at(4, 0), "Resolved"),
		status(at(15, 0), "Closed"),
	)

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)
	require.NotNil(t, rec.CycleTime)
	assert.Equal(t, 2*24*time.Hour, *rec.CycleTime)
	assert.Equal(t, at(4, 0), *rec.CompletedTimestamp)

	done, _ := rec.State("Done")
	assert.Equal(t, at(4, 0), *done.Entry)
}

func TestReconstruct_MovesWithinStepKeepOneVisit(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Committed"),
		status(at(3, 0), "Next"),
		status(at(5, 0), "Done"),
	)

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)

	committed, _ := rec.State("Committed")
	assert.Equal(t, at(2, 0), *committed.Entry)
	assert.Equal(t, 3*24*time.Hour, *committed.Duration)
	assert.Equal(t, 3*24*time.Hour, *rec.CycleTime)
}

func TestReconstruct_BlockedDaysExclusion(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		flagged(at(1, 6)),
		cleared(at(2, 6)),
		status(at(3, 0), "Committed"),
		flagged(at(4, 0)),
		cleared(at(7, 0)),
		status(at(8, 0), "Done"),
		flagged(at(9, 0)),
		cleared(at(12, 0)),
	)
	issue.ResolutionDate = ptr(at(8, 0))

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)

	require.Len(t, rec.Impediments, 3)
	assert.Equal(t, "Backlog", rec.Impediments[0].Status)
	assert.Equal(t, "Committed", rec.Impediments[1].Status)
	assert.Equal(t, "Done", rec.Impediments[2].Status)
	assert.Equal(t, 3, rec.BlockedDays, "only the committed window counts")
}

func TestReconstruct_OpenImpedimentOnResolvedIssue(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Build"),
		flagged(at(8, 15)),
		status(at(10, 9), "Done"),
	)
	resolved := at(10, 9)
	issue.ResolutionDate = &resolved

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)

	require.Len(t, rec.Impediments, 1)
	imp := rec.Impediments[0]
	require.NotNil(t, imp.End)
	assert.Equal(t, at(10, 0), *imp.End)
	assert.Equal(t, at(8, 0), imp.Start)
	assert.Equal(t, "Build", imp.Status)
	assert.Equal(t, "Impediment", imp.Flag)
	assert.Equal(t, 2, rec.BlockedDays)
}

func TestReconstruct_OpenImpedimentOnUnresolvedIssue(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Build"),
		flagged(at(15, 0)),
	)

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)

	require.Len(t, rec.Impediments, 1)
	assert.Nil(t, rec.Impediments[0].End)
	assert.Equal(t, 5, rec.BlockedDays, "counted up to now")
}

func TestReconstruct_UnmappedStatusesAreSkipped(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue, events := history(at(1, 0), "Backlog",
		status(at(2, 0), "Committed"),
		status(at(3, 0), "Waiting for Vendor"),
		status(at(5, 0), "Done"),
	)

	rec, diag, err := r.Reconstruct(issue, events)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Waiting for Vendor": 1}, diag.Unmapped)

	committed, _ := rec.State("Committed")
	assert.Equal(t, 3*24*time.Hour, *committed.Duration, "time in the unmapped status stays with the previous step")
}

func TestReconstruct_OutOfOrderEventsFailTheIssue(t *testing.T) {
	r := testReconstructor(t, Options{})
	issue := jira.Issue{Key: "BAD-1", Created: at(1, 0)}
	events := []eventlog.ChangeEvent{
		{Kind: eventlog.Status, Timestamp: at(1, 0), To: "Backlog", Initial: true, Seq: -1},
		{Kind: eventlog.Status, Timestamp: at(5, 0), To: "Committed", Seq: 0},
		{Kind: eventlog.Status, Timestamp: at(3, 0), To: "Done", Seq: 1},
	}

	_, _, err := r.Reconstruct(issue, events)
	require.Error(t, err)

	var issueErr *IssueError
	require.ErrorAs(t, err, &issueErr)
	assert.Equal(t, "BAD-1", issueErr.Key)
	assert.ErrorIs(t, err, ErrNegativeDuration)
}

func TestReconstruct_AttributesAndEstimation(t *testing.T) {
	r := testReconstructor(t, Options{
		Attributes:      map[string]string{"Team": "customfield_1", "Component": "components"},
		KnownValues:     map[string][]string{"Component": {"API", "Web"}},
		EstimationField: "timeoriginalestimate",
	})
	issue, events := history(at(1, 0), "Backlog")
	issue.Fields = map[string]any{
		"customfield_1":        map[string]any{"value": "Platform"},
		"components":           []any{map[string]any{"name": "Web"}, map[string]any{"name": "API"}},
		"timeoriginalestimate": float64(57600),
	}

	rec, _, err := r.Reconstruct(issue, events)
	require.NoError(t, err)
	assert.Equal(t, "Platform", rec.Attributes["Team"])
	assert.Equal(t, "API", rec.Attributes["Component"])
	require.NotNil(t, rec.EstimationDays)
	assert.InDelta(t, 2.0, *rec.EstimationDays, 1e-9)
}

func TestNewReconstructor_AccumulateUnsupported(t *testing.T) {
	wf, err := workflow.New([]workflow.StepConfig{{Name: "Todo"}, {Name: "Doing"}, {Name: "Done"}}, "Doing", "Done", workflow.PolicyAccumulate)
	require.NoError(t, err)

	_, err = NewReconstructor(wf, Options{})
	assert.ErrorIs(t, err, ErrPolicyUnsupported)
}

func TestReconstruct_CycleTimeNeverNegative(t *testing.T) {
	r := testReconstructor(t, Options{})
	names := []string{"Backlog", "Committed", "Build", "Test", "Done", "Unknown"}
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 500; trial++ {
		var steps []step
		when := at(1, 0)
		for i := 0; i < 1+rng.Intn(12); i++ {
			when = when.Add(time.Duration(rng.Intn(72)) * time.Hour)
			if rng.Intn(4) == 0 {
				if rng.Intn(2) == 0 {
					steps = append(steps, flagged(when))
				} else {
					steps = append(steps, cleared(when))
				}
				continue
			}
			steps = append(steps, status(when, names[rng.Intn(len(names))]))
		}
		issue, events := history(at(1, 0), "Backlog", steps...)

		rec, _, err := r.Reconstruct(issue, events)
		require.NoError(t, err, "trial %d", trial)
		if rec.CycleTime != nil {
			assert.GreaterOrEqual(t, *rec.CycleTime, time.Duration(0), "trial %d", trial)
		}
		for _, s := range rec.States {
			if s.Duration != nil {
				assert.GreaterOrEqual(t, *s.Duration, time.Duration(0))
			}
		}
		assert.GreaterOrEqual(t, rec.BlockedDays, 0)
	}
}

func stateNames(rec Record) []string {
	names := make([]string, len(rec.States))
	for i, s := range rec.States {
		names[i] = s.Step
	}
	return names
}

func ptr[T any](v T) *T { return &v }
