// Package pipeline drives a run: fetch, normalize, reconstruct, assemble
// and the output stages.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"flow-metrics/internal/config"
	"flow-metrics/internal/cycletime"
	"flow-metrics/internal/eventlog"
	"flow-metrics/internal/jira"
	"flow-metrics/internal/table"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Session runs the reconstruction for one settings file against one source.
type Session struct {
	settings *config.Settings
	source   Source
	now      time.Time
}

// NewSession binds settings to a source. A zero now means time.Now().
func NewSession(settings *config.Settings, source Source, now time.Time) *Session {
	if now.IsZero() {
		now = time.Now()
	}
	return &Session{settings: settings, source: source, now: now.UTC()}
}

func (s *Session) Now() time.Time { return s.now }

func (s *Session) Settings() *config.Settings { return s.settings }

// Result is the assembled table plus everything needed to report on the run.
type Result struct {
	Table   *table.Table
	Summary *Summary
	// Issues are the raw fetched issues, kept for snapshot dumps.
	Issues []jira.IssueDTO
}

// outcome is the result slot of one issue. Workers write only their own slot.
type outcome struct {
	record  cycletime.Record
	ok      bool
	failure *Failure
	norm    eventlog.Diagnostics
	rec     cycletime.Diagnostics
}

// Run fetches every query group and reconstructs all issues.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	summary := newSummary()

	batches, err := s.source.Fetch(ctx, s.settings.Queries)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	attrs, estimation := s.resolveFields(ctx)
	rc, err := cycletime.NewReconstructor(s.settings.Workflow, cycletime.Options{
		Now:             s.now,
		Attributes:      attrs,
		KnownValues:     s.settings.KnownValues(),
		EstimationField: estimation,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Summary: summary}
	groups := make([]table.Group, 0, len(batches))
	for _, b := range batches {
		summary.Queries++
		summary.Fetched += len(b.Issues)
		res.Issues = append(res.Issues, b.Issues...)

		outcomes, err := s.reconstructAll(ctx, rc, b.Issues)
		if err != nil {
			return nil, err
		}

		group := table.Group{QueryValue: b.Query.Value}
		for _, o := range outcomes {
			summary.absorb(o)
			if o.ok {
				o.record.QueryValue = b.Query.Value
				group.Records = append(group.Records, o.record)
			}
		}
		groups = append(groups, group)
	}

	res.Table = table.Assemble(s.settings.Workflow, s.settings.AttributeNames(), s.settings.QueryAttribute, groups)
	summary.Records = res.Table.Len()
	summary.Completed = len(res.Table.Completed())
	summary.Elapsed = time.Since(started)

	log.Info().
		Int("queries", summary.Queries).
		Int("fetched", summary.Fetched).
		Int("records", summary.Records).
		Int("failures", len(summary.Failures)).
		Dur("elapsed", summary.Elapsed).
		Msg("Reconstruction complete")
	return res, nil
}

// reconstructAll shards issues across workers. Each worker fills its own
// slot so the merge keeps input order without locking.
func (s *Session) reconstructAll(ctx context.Context, rc *cycletime.Reconstructor, issues []jira.IssueDTO) ([]outcome, error) {
	outcomes := make([]outcome, len(issues))
	mapOpts := s.settings.MapOptions(s.source.BaseURL())
	normOpts := s.settings.NormalizeOptions()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.settings.Workers))
	for i := range issues {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = reconstructOne(rc, issues[i], mapOpts, normOpts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func reconstructOne(rc *cycletime.Reconstructor, dto jira.IssueDTO, mapOpts jira.MapOptions, normOpts eventlog.Options) outcome {
	issue, err := jira.MapIssue(dto, mapOpts)
	if err != nil {
		return outcome{failure: &Failure{Key: dto.Key, Err: err}}
	}

	events, norm := eventlog.Normalize(issue, normOpts)
	record, diag, err := rc.Reconstruct(issue, events)
	if err != nil {
		return outcome{failure: &Failure{Key: issue.Key, Err: err}, norm: norm, rec: diag}
	}
	return outcome{record: record, ok: true, norm: norm, rec: diag}
}

// resolveFields maps configured attribute and estimation fields to ids.
// Without a field list the configured values are used as ids.
func (s *Session) resolveFields(ctx context.Context) (map[string]string, string) {
	fields, err := s.source.Fields(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list Jira fields; using configured fields as ids")
		fields = nil
	}

	resolve := func(name string) string {
		if fields == nil || name == "" {
			return name
		}
		if id, ok := jira.FieldNameToID(fields, name); ok {
			return id
		}
		log.Warn().Str("field", name).Msg("Unknown Jira field; values will be empty")
		return name
	}

	attrs := make(map[string]string, len(s.settings.Attributes))
	for _, a := range s.settings.Attributes {
		attrs[a.Name] = resolve(a.Field)
	}
	return attrs, resolve(s.settings.EstimationField)
}
