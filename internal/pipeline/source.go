package pipeline

import (
	"context"
	"fmt"

	"flow-metrics/internal/config"
	"flow-metrics/internal/jira"

	"github.com/rs/zerolog/log"
)

// Batch is the raw result of one criteria group.
type Batch struct {
	Query  config.Query
	Issues []jira.IssueDTO
}

// Source supplies issues with their changelog.
type Source interface {
	Fetch(ctx context.Context, queries []config.Query) ([]Batch, error)
	// Fields lists the instance's fields. A nil result means configured
	// fields are used as ids verbatim.
	Fields(ctx context.Context) ([]jira.FieldDTO, error)
	BaseURL() string
}

// JiraSource runs every query against a live instance.
type JiraSource struct {
	Client   jira.Client
	URL      string
	PageSize int
}

func (s *JiraSource) Fetch(ctx context.Context, queries []config.Query) ([]Batch, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries configured")
	}
	batches := make([]Batch, 0, len(queries))
	for _, q := range queries {
		log.Info().Str("jql", q.JQL).Str("value", q.Value).Msg("Fetching issues")
		issues, err := jira.FindIssues(ctx, s.Client, q.JQL, s.PageSize)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q.JQL, err)
		}
		batches = append(batches, Batch{Query: q, Issues: issues})
	}
	return batches, nil
}

func (s *JiraSource) Fields(ctx context.Context) ([]jira.FieldDTO, error) {
	return s.Client.GetFields(ctx)
}

func (s *JiraSource) BaseURL() string { return s.URL }

// SnapshotSource replays issues saved with jira.SaveSnapshot. A snapshot
// carries no query membership, so all issues form one group, tagged with
// the query value only when exactly one query is configured.
type SnapshotSource struct {
	Issues []jira.IssueDTO
	URL    string
}

// NewSnapshotSource loads a JSONL snapshot from path.
func NewSnapshotSource(path, baseURL string) (*SnapshotSource, error) {
	issues, err := jira.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &SnapshotSource{Issues: issues, URL: baseURL}, nil
}

func (s *SnapshotSource) Fetch(_ context.Context, queries []config.Query) ([]Batch, error) {
	var q config.Query
	if len(queries) == 1 {
		q = queries[0]
	} else if len(queries) > 1 {
		log.Warn().Int("queries", len(queries)).Msg("Snapshot input ignores query membership; all issues form one group")
	}
	return []Batch{{Query: q, Issues: s.Issues}}, nil
}

func (s *SnapshotSource) Fields(context.Context) ([]jira.FieldDTO, error) { return nil, nil }

func (s *SnapshotSource) BaseURL() string { return s.URL }
