package eventlog

import (
	"sort"
	"strings"
	"time"

	"flow-metrics/internal/jira"

	"github.com/rs/zerolog/log"
)

// DefaultImpedimentField is the Jira field that carries the impediment flag.
const DefaultImpedimentField = "Flagged"

// Options controls normalization.
type Options struct {
	ImpedimentField string
	// TrimToArrival discards history from before the issue was moved into its current project.
	TrimToArrival bool
}

// Normalize converts an issue's changelog into a time-ordered sequence of
// status and impediment events, opened by one synthetic Initial event.
func Normalize(issue jira.Issue, opts Options) ([]ChangeEvent, Diagnostics) {
	var diag Diagnostics

	field := opts.ImpedimentField
	if field == "" {
		field = DefaultImpedimentField
	}

	changes := issue.Changes
	if opts.TrimToArrival {
		if arrival, ok := findArrival(issue.Key, changes); ok {
			diag.ArrivedAt = &arrival
			changes = dropBefore(changes, arrival)
		}
	}

	events := make([]ChangeEvent, 0, len(changes)+1)
	for _, c := range changes {
		switch {
		case strings.EqualFold(c.Field, "status"):
			if strings.EqualFold(strings.TrimSpace(c.From), strings.TrimSpace(c.To)) {
				diag.NoopTransitions++
				continue
			}
			events = append(events, ChangeEvent{Kind: Status, Timestamp: c.Timestamp, From: c.From, To: c.To, Seq: c.Seq})
		case strings.EqualFold(c.Field, field):
			events = append(events, ChangeEvent{Kind: Impediment, Timestamp: c.Timestamp, From: c.From, To: strings.TrimSpace(c.To), Seq: c.Seq})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Seq < events[j].Seq
	})

	// The first transition's origin is the earliest status we can know.
	initialStatus := issue.Status
	for _, e := range events {
		if e.Kind == Status {
			initialStatus = e.From
			break
		}
	}

	// Anchor the initial event at creation, or earlier if the log predates it.
	initialAt := issue.Created
	if diag.ArrivedAt != nil && diag.ArrivedAt.After(initialAt) {
		initialAt = *diag.ArrivedAt
	}
	if len(events) > 0 && events[0].Timestamp.Before(initialAt) {
		initialAt = events[0].Timestamp
	}

	out := make([]ChangeEvent, 0, len(events)+1)
	out = append(out, ChangeEvent{
		Kind:      Status,
		Timestamp: initialAt.UTC(),
		To:        initialStatus,
		Initial:   true,
		Seq:       -1,
	})

	flagged := false
	for _, e := range events {
		if e.Kind != Impediment {
			out = append(out, e)
			continue
		}
		if e.IsSet() {
			if flagged {
				diag.RepeatedSets++
				log.Debug().Str("issue", issue.Key).Time("at", e.Timestamp).Msg("Ignoring repeated impediment set")
				continue
			}
			flagged = true
			out = append(out, e)
			continue
		}
		if !flagged {
			diag.OrphanClears++
			log.Debug().Str("issue", issue.Key).Time("at", e.Timestamp).Msg("Ignoring impediment clear without a matching set")
			continue
		}
		flagged = false
		out = append(out, e)
	}

	return out, diag
}

// findArrival returns the time the issue was moved into its current project
// together with a workflow change. Only the latest such move counts.
func findArrival(key string, changes []jira.Change) (time.Time, bool) {
	project := key
	if idx := strings.Index(key, "-"); idx > 0 {
		project = key[:idx]
	}

	moves := make(map[int64]time.Time)
	workflowChanges := make(map[int64]bool)
	for _, c := range changes {
		switch {
		case strings.EqualFold(c.Field, "Key") && strings.HasPrefix(c.To, project+"-") && !strings.HasPrefix(c.From, project+"-"):
			moves[c.Timestamp.UnixMicro()] = c.Timestamp
		case strings.EqualFold(c.Field, "workflow") && !strings.EqualFold(c.From, c.To):
			workflowChanges[c.Timestamp.UnixMicro()] = true
		}
	}

	var arrival time.Time
	found := false
	for micros, ts := range moves {
		if workflowChanges[micros] && (!found || ts.After(arrival)) {
			arrival = ts
			found = true
		}
	}
	return arrival, found
}

func dropBefore(changes []jira.Change, boundary time.Time) []jira.Change {
	kept := make([]jira.Change, 0, len(changes))
	for _, c := range changes {
		if !c.Timestamp.Before(boundary) {
			kept = append(kept, c)
		}
	}
	return kept
}
