package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flow-metrics/internal/cycletime"
	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
	"flow-metrics/internal/table"
	"flow-metrics/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T, n int) *table.Table {
	t.Helper()
	wf, err := workflow.New([]workflow.StepConfig{{Name: "Backlog"}, {Name: "Build"}, {Name: "Done"}}, "Build", "Done", workflow.PolicyReset)
	require.NoError(t, err)

	records := make([]cycletime.Record, n)
	for i := range records {
		records[i] = cycletime.Record{Key: "ABC-" + string(rune('A'+i%26)), Summary: "<b>escaped</b>"}
	}
	return table.Assemble(wf, nil, "", []table.Group{{Records: records}})
}

func TestMinify(t *testing.T) {
	out, err := Minify(pageScript)
	require.NoError(t, err)
	assert.Less(t, len(out), len(pageScript))
	assert.NotContains(t, out, "// Renders")

	_, err = Minify("function (")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	data := Data{
		Title:       "Team A",
		GeneratedAt: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		Percentiles: []stats.PercentileValue{{Quantile: 0.85, Days: 6.5}},
		Efficiency:  &stats.FlowEfficiency{MeanEfficiency: 0.42},
		Forecast: &simulation.ForecastResult{
			Target: 40, StartCount: 10, Period: stats.Week, Trials: 100,
			Percentiles: []simulation.DatePercentile{{Quantile: 0.5, Periods: 4, Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}},
		},
		Warnings: []string{"2 issues failed"},
	}
	data.AddChart("Throughput", "```mermaid\nxychart-beta\n    bar [1, 2]\n```")
	data.AddChart("Empty", "")
	data.SetTable(testTable(t, 3))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, data))
	html := buf.String()

	assert.Contains(t, html, "<title>Team A</title>")
	assert.Contains(t, html, "Generated 2024-04-01 12:00 UTC")
	assert.Contains(t, html, "6.5d</b>P85 cycle time")
	assert.Contains(t, html, "42%")
	assert.Contains(t, html, "2024-05-01")
	assert.Contains(t, html, "<pre class=\"mermaid\">xychart-beta\n    bar [1, 2]\n</pre>")
	assert.NotContains(t, html, "Empty")
	assert.NotContains(t, html, "<b>escaped</b>")
	assert.Equal(t, 3, strings.Count(html, "&lt;b&gt;escaped"))
	assert.Contains(t, html, "2 issues failed")
}

func TestSetTable_Truncates(t *testing.T) {
	var data Data
	data.SetTable(testTable(t, MaxRows+5))

	assert.Equal(t, MaxRows+5, data.Records)
	assert.Len(t, data.Rows, MaxRows)
	assert.True(t, data.Truncated)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.html")
	require.NoError(t, WriteFile(path, Data{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<title>Flow metrics</title>")
}
