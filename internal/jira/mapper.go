package jira

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Issue is the domain view of a Jira issue handed to the normalizer.
type Issue struct {
	Key            string
	URL            string
	IssueType      string
	Summary        string
	Status         string
	Resolution     string
	Created        time.Time
	Updated        time.Time
	ResolutionDate *time.Time
	Fields         map[string]any
	Changes        []Change
}

// Change is one field change from the changelog, in UTC.
// Seq is the position of the change in the original log and breaks timestamp ties.
type Change struct {
	Field     string
	Timestamp time.Time
	From      string
	To        string
	Seq       int
}

// MapOptions controls how DTOs are turned into domain issues.
type MapOptions struct {
	BaseURL  string
	Location *time.Location // applied to naive timestamps
}

// MapIssue transforms a Jira DTO into a domain Issue.
func MapIssue(item IssueDTO, opts MapOptions) (Issue, error) {
	issue := Issue{
		Key:       item.Key,
		IssueType: item.Fields.IssueType.Name,
		Summary:   item.Fields.Summary,
		Status:    item.Fields.Status.Name,
		Fields:    item.Fields.Raw,
	}
	if item.Fields.Resolution != nil {
		issue.Resolution = item.Fields.Resolution.Name
	}
	if opts.BaseURL != "" {
		issue.URL = fmt.Sprintf("%s/browse/%s", strings.TrimRight(opts.BaseURL, "/"), item.Key)
	}

	created, err := ParseTimeIn(item.Fields.Created, opts.Location)
	if err != nil {
		return Issue{}, fmt.Errorf("issue %s: invalid created timestamp: %w", item.Key, err)
	}
	issue.Created = created

	if item.Fields.ResolutionDate != "" {
		if t, err := ParseTimeIn(item.Fields.ResolutionDate, opts.Location); err == nil {
			issue.ResolutionDate = &t
		} else {
			log.Warn().Err(err).Str("issue", item.Key).Msg("Ignoring unparseable resolution date")
		}
	}

	if item.Fields.Updated != "" {
		if t, err := ParseTimeIn(item.Fields.Updated, opts.Location); err == nil {
			issue.Updated = t
		}
	}

	if item.Changelog != nil {
		issue.Changes = flattenChangelog(item.Key, item.Changelog.Histories, opts.Location)
	}

	return issue, nil
}

// ChangesFor returns the changes to the given fields (case-insensitive), in log order.
func (i Issue) ChangesFor(fields ...string) []Change {
	var out []Change
	for _, c := range i.Changes {
		for _, f := range fields {
			if strings.EqualFold(c.Field, f) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// flattenChangelog orders histories by numeric id when every id is numeric,
// since Jira may return them newest first. Otherwise the payload order is kept.
func flattenChangelog(key string, histories []HistoryDTO, loc *time.Location) []Change {
	ordered := make([]HistoryDTO, len(histories))
	copy(ordered, histories)

	ids := make([]int64, len(ordered))
	numeric := true
	for i, h := range ordered {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			numeric = false
			break
		}
		ids[i] = id
	}
	if numeric {
		idx := make([]int, len(ordered))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return ids[idx[a]] < ids[idx[b]] })
		sorted := make([]HistoryDTO, len(ordered))
		for i, j := range idx {
			sorted[i] = ordered[j]
		}
		ordered = sorted
	}

	var changes []Change
	for _, h := range ordered {
		ts, err := ParseTimeIn(h.Created, loc)
		if err != nil {
			log.Warn().Err(err).Str("issue", key).Str("history", h.ID).Msg("Skipping changelog entry with invalid timestamp")
			continue
		}
		for _, item := range h.Items {
			changes = append(changes, Change{
				Field:     item.Field,
				Timestamp: ts,
				From:      item.FromString,
				To:        item.ToString,
				Seq:       len(changes),
			})
		}
	}
	return changes
}
