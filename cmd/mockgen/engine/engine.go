// Package engine generates synthetic Jira issues with changelogs for
// offline runs against a snapshot.
package engine

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"flow-metrics/internal/jira"
)

const (
	SnapshotFile = "MOCK.jsonl"
	SettingsFile = "flow-metrics.yaml"

	jiraLayout = "2006-01-02T15:04:05.000-0700"

	// UnmappedStatus is deliberately missing from the generated settings.
	UnmappedStatus = "Waiting for Vendor"
	TeamField      = "customfield_10010"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Now          time.Time
	Seed         int64
}

// Settings matches the statuses emitted by Generate.
const Settings = `workflow:
  - name: Backlog
    statuses: [Open]
  - name: Refinement
  - name: In Progress
  - name: Review
  - name: Done
    statuses: [Done, Closed]
committed_column: In Progress
done_column: Done
attributes:
  - name: Team
    field: ` + TeamField + `
    known_values: [Alpha, Beta, Gamma]
estimation_field: timeoriginalestimate
queries:
  - jql: project = MOCK
outputs:
  cycle_data: out/cycle-data.csv
  cfd: out/cfd.csv
  throughput: out/throughput.csv
  percentiles: out/percentiles.csv
  histogram: out/histogram.csv
  scatterplot: out/scatterplot.csv
  wip: out/wip.csv
  ageing: out/ageing.csv
  net_flow: out/net-flow.csv
  stability: out/stability.json
  forecast: out/forecast.json
  charts: out/charts.md
  report: out/report.html
forecast:
  target: 50
  period: week
`

var teams = []string{"Alpha", "Beta", "Gamma"}

type builder struct {
	dto     jira.IssueDTO
	current string
	seq     int
}

func (b *builder) move(at time.Time, to string) {
	b.add(at, jira.ItemDTO{Field: "status", FromString: b.current, ToString: to})
	b.current = to
}

func (b *builder) flag(at time.Time, set bool) {
	item := jira.ItemDTO{Field: "Flagged", FieldID: "customfield_10021"}
	if set {
		item.ToString = "Impediment"
	} else {
		item.FromString = "Impediment"
	}
	b.add(at, item)
}

func (b *builder) add(at time.Time, item jira.ItemDTO) {
	b.seq++
	b.dto.Changelog.Histories = append(b.dto.Changelog.Histories, jira.HistoryDTO{
		ID:      fmt.Sprint(b.seq),
		Created: at.Format(jiraLayout),
		Items:   []jira.ItemDTO{item},
	})
}

// Generate builds Count issues arriving one per day up to Now. Each issue
// walks the workflow with a sampled cycle time; some regress from Review,
// get flagged, or pass through an unmapped status.
func Generate(cfg GeneratorConfig) []jira.IssueDTO {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	cfg.Now = cfg.Now.UTC()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// The last arrival is today, at an average rate of one per day.
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	issues := make([]jira.IssueDTO, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("MOCK-%d", i+1)
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		// Mild targets about five days in progress.
		k, lambda := 2.5, 9.5
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 12.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio)
			lambda = 9.5 + (2.5 * ratio)
		}

		var total float64
		if cfg.Distribution == "weibull" {
			total = weibullSample(rng, k, lambda)
		} else {
			total = 6.0 + rng.Float64()*5.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				total += 10 + rng.Float64()*15
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				total *= 2.0
			}
		}

		b := &builder{
			current: "Open",
			dto: jira.IssueDTO{
				Key: key,
				Fields: jira.FieldsDTO{
					Summary:   "Synthetic issue " + key,
					IssueType: jira.NamedDTO{Name: "Story"},
					Created:   arrival.Format(jiraLayout),
					Raw: map[string]any{
						TeamField:              map[string]any{"value": teams[rng.Intn(len(teams))]},
						"timeoriginalestimate": float64((1 + rng.Intn(5)) * 8 * 3600),
					},
				},
				Changelog: &jira.ChangelogDTO{},
			},
		}

		at := func(share float64) time.Time {
			return arrival.Add(time.Duration(total * share * 24 * float64(time.Hour)))
		}
		steps := []struct {
			share float64
			to    string
		}{
			{0.15, "Refinement"},
			{0.40, "In Progress"},
			{0.80, "Review"},
			{1.00, "Done"},
		}

		regress := rng.Float64() < 0.15
		flagged := rng.Float64() < 0.25
		vendor := rng.Float64() < 0.05

		for _, st := range steps {
			ts := at(st.share)
			if !ts.Before(cfg.Now) {
				break
			}
			if st.to == "Review" && flagged && at(0.55).Before(cfg.Now) {
				b.flag(at(0.50), true)
				if at(0.70).Before(cfg.Now) {
					b.flag(at(0.70), false)
				}
			}
			if st.to == "Done" && regress {
				// Bounce back from Review once before finishing.
				b.move(at(0.85), "In Progress")
				b.move(at(0.92), "Review")
			}
			if st.to == "Done" && vendor {
				b.move(at(0.95), UnmappedStatus)
			}
			b.move(ts, st.to)
		}

		b.dto.Fields.Status = jira.NamedDTO{Name: b.current}
		if b.current == "Done" {
			b.dto.Fields.Resolution = &jira.NamedDTO{Name: "Fixed"}
			b.dto.Fields.ResolutionDate = at(1.0).Format(jiraLayout)
		}
		issues = append(issues, b.dto)
	}
	return issues
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes the snapshot and a matching settings file into outDir.
func Save(outDir string, issues []jira.IssueDTO) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	if err := jira.SaveSnapshot(filepath.Join(outDir, SnapshotFile), issues); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, SettingsFile), []byte(Settings), 0644)
}
