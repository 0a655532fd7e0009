package visuals

import (
	"strings"
	"testing"
	"time"

	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
)

func TestGenerateCFDChart(t *testing.T) {
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	cfd := stats.CFDResult{
		Dates:  []time.Time{day, day.AddDate(0, 0, 1)},
		States: []string{"Backlog", "Done"},
		Counts: [][]int{{2, 0}, {3, 1}},
	}

	chart := GenerateCFDChart(cfd)

	if !strings.HasPrefix(chart, "```mermaid\n") {
		t.Errorf("Expected fenced chart, got %q", chart)
	}
	if strings.Count(chart, "    line [") != 2 {
		t.Errorf("Expected one line per state:\n%s", chart)
	}
	if !strings.Contains(chart, "line [2, 3]") || !strings.Contains(chart, "line [0, 1]") {
		t.Errorf("Unexpected series:\n%s", chart)
	}
	if strings.Contains(Body(chart), "```") {
		t.Error("Body must strip the fence")
	}
}

func TestGenerateCFDChart_Subsamples(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfd := stats.CFDResult{States: []string{"Done"}}
	for i := 0; i < 200; i++ {
		cfd.Dates = append(cfd.Dates, day.AddDate(0, 0, i))
		cfd.Counts = append(cfd.Counts, []int{i})
	}

	chart := GenerateCFDChart(cfd)
	axis := chart[strings.Index(chart, "x-axis"):]
	axis = axis[:strings.Index(axis, "\n")]
	if n := strings.Count(axis, ",") + 1; n > maxPoints+1 {
		t.Errorf("Expected at most %d labels, got %d", maxPoints+1, n)
	}
	if !strings.Contains(chart, "199]") {
		t.Error("Expected the last point to be kept")
	}
}

func TestEmptyInputs(t *testing.T) {
	tests := []struct {
		name  string
		chart string
	}{
		{"cfd", GenerateCFDChart(stats.CFDResult{})},
		{"throughput", GenerateThroughputChart(nil)},
		{"percentiles", GeneratePercentileChart(nil)},
		{"xmr", GenerateXmRChart(stats.StabilityResult{})},
		{"ageing", GenerateAgeingChart(nil)},
		{"wip", GenerateWIPRunChart(nil)},
		{"forecast", GenerateForecastChart(nil)},
	}
	for _, tt := range tests {
		if tt.chart != "" {
			t.Errorf("%s: expected empty chart, got %q", tt.name, tt.chart)
		}
	}
}

func TestGenerateThroughputAndForecast(t *testing.T) {
	tp := GenerateThroughputChart([]stats.ThroughputPoint{{Label: "2024-W14", Count: 2}, {Label: "2024-W15", Count: 0}})
	if !strings.Contains(tp, "bar [2, 0]") || !strings.Contains(tp, "\"2024-W14\"") {
		t.Errorf("Unexpected throughput chart:\n%s", tp)
	}

	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	fc := GenerateForecastChart(&simulation.ForecastResult{
		Period:      stats.Week,
		Percentiles: []simulation.DatePercentile{{Quantile: 0.5, Periods: 3, Date: day}, {Quantile: 0.85, Periods: 5, Date: day}},
	})
	if !strings.Contains(fc, "bar [3, 5]") || !strings.Contains(fc, "50% by 2024-04-01") {
		t.Errorf("Unexpected forecast chart:\n%s", fc)
	}
}
