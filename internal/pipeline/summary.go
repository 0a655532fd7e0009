package pipeline

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog/log"
)

// Failure is a fatal per-issue error. The issue is missing from the table.
type Failure struct {
	Key string
	Err error
}

// StageError is an output stage that failed without stopping the others.
type StageError struct {
	Stage string
	Err   error
}

// Output is a file written by a stage.
type Output struct {
	Stage string
	Path  string
}

// Summary aggregates what happened during a run.
type Summary struct {
	Queries   int
	Fetched   int
	Records   int
	Completed int
	Elapsed   time.Duration

	Failures    []Failure
	StageErrors []StageError
	Skipped     []string
	Outputs     []Output

	// Run-level warnings, aggregated across issues.
	Unmapped        map[string]int
	OrphanClears    int
	RepeatedSets    int
	NoopTransitions int
}

func newSummary() *Summary {
	return &Summary{Unmapped: make(map[string]int)}
}

func (s *Summary) absorb(o outcome) {
	if o.failure != nil {
		s.Failures = append(s.Failures, *o.failure)
	}
	s.OrphanClears += o.norm.OrphanClears
	s.RepeatedSets += o.norm.RepeatedSets
	s.NoopTransitions += o.norm.NoopTransitions
	for status, n := range o.rec.Unmapped {
		s.Unmapped[status] += n
	}
}

func (s *Summary) stageFailed(stage string, err error) {
	log.Error().Err(err).Str("stage", stage).Msg("Output stage failed")
	s.StageErrors = append(s.StageErrors, StageError{Stage: stage, Err: err})
}

// Warnings lists the aggregated recoverable findings, most actionable first.
func (s *Summary) Warnings() []string {
	var out []string
	if len(s.Unmapped) > 0 {
		names := slices.Sorted(maps.Keys(s.Unmapped))
		total := 0
		for _, n := range names {
			total += s.Unmapped[n]
		}
		out = append(out, fmt.Sprintf("%d transitions into unmapped statuses were skipped: %v", total, names))
	}
	if s.OrphanClears > 0 {
		out = append(out, fmt.Sprintf("%d impediment clears without a matching flag were ignored", s.OrphanClears))
	}
	if s.RepeatedSets > 0 {
		out = append(out, fmt.Sprintf("%d repeated impediment flags were ignored", s.RepeatedSets))
	}
	if len(s.Failures) > 0 {
		out = append(out, fmt.Sprintf("%d issues failed reconstruction and are missing from the output", len(s.Failures)))
	}
	for _, e := range s.StageErrors {
		out = append(out, fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err))
	}
	return out
}

// Log emits the end-of-run findings once. Failures log at error level,
// recoverable findings at warn level.
func (s *Summary) Log() {
	for _, f := range s.Failures {
		log.Error().Err(f.Err).Str("issue", f.Key).Msg("Issue reconstruction failed")
	}
	if len(s.Unmapped) > 0 {
		ev := log.Warn()
		for _, name := range slices.Sorted(maps.Keys(s.Unmapped)) {
			ev = ev.Int(name, s.Unmapped[name])
		}
		ev.Msg("Unmapped statuses skipped; add them to the workflow configuration")
	}
	if s.OrphanClears > 0 {
		log.Warn().Int("count", s.OrphanClears).Msg("Impediment clears without a matching flag were ignored")
	}
	if s.RepeatedSets > 0 || s.NoopTransitions > 0 {
		log.Debug().Int("repeated_sets", s.RepeatedSets).Int("noop_transitions", s.NoopTransitions).Msg("Redundant changelog entries dropped")
	}
}

// Print renders the summary as console tables.
func (s *Summary) Print(w io.Writer) error {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintln(w, bold("Run summary"))
	counts := tablewriter.NewWriter(w)
	counts.Header([]string{"Queries", "Fetched", "Records", "Completed", "Failed", "Elapsed"})
	counts.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	failed := strconv.Itoa(len(s.Failures))
	if len(s.Failures) > 0 {
		failed = red(failed)
	}
	if err := counts.Append([]string{
		strconv.Itoa(s.Queries),
		strconv.Itoa(s.Fetched),
		strconv.Itoa(s.Records),
		strconv.Itoa(s.Completed),
		failed,
		s.Elapsed.Round(time.Millisecond).String(),
	}); err != nil {
		return err
	}
	if err := counts.Render(); err != nil {
		return err
	}

	if len(s.Outputs) > 0 || len(s.StageErrors) > 0 {
		outputs := tablewriter.NewWriter(w)
		outputs.Header([]string{"Stage", "Result"})
		var rows [][]string
		for _, o := range s.Outputs {
			rows = append(rows, []string{o.Stage, green(o.Path)})
		}
		for _, e := range s.StageErrors {
			rows = append(rows, []string{e.Stage, red(e.Err.Error())})
		}
		if err := outputs.Bulk(rows); err != nil {
			return err
		}
		if err := outputs.Render(); err != nil {
			return err
		}
	}

	for _, warning := range s.Warnings() {
		fmt.Fprintln(w, yellow("warning: ")+warning)
	}
	return nil
}
