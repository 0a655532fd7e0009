package visuals

import (
	"fmt"
	"math"
	"strings"

	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
)

// Mermaid xychart starts overflowing its labels at around 60 points.
const maxPoints = 60

const (
	fenceOpen  = "```mermaid\n"
	fenceClose = "```"
)

// Body strips the markdown fence so a chart can be embedded in HTML.
func Body(chart string) string {
	chart = strings.TrimPrefix(chart, fenceOpen)
	return strings.TrimSuffix(chart, fenceClose)
}

func subsampleRate(n int) int {
	if n > maxPoints {
		return int(math.Ceil(float64(n) / float64(maxPoints)))
	}
	return 1
}

func keep(i, n, rate int) bool {
	return i%rate == 0 || i == n-1
}

func quote(s string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(s, "\"", "'"))
}

// GenerateCFDChart draws one cumulative line per workflow state.
func GenerateCFDChart(cfd stats.CFDResult) string {
	if len(cfd.Dates) == 0 || len(cfd.States) == 0 {
		return ""
	}

	rate := subsampleRate(len(cfd.Dates))
	var labels []string
	for i, d := range cfd.Dates {
		if keep(i, len(cfd.Dates), rate) {
			labels = append(labels, quote(d.Format("Jan02")))
		}
	}

	maxVal := 0
	lines := make([]string, len(cfd.States))
	for s := range cfd.States {
		var values []string
		for i, row := range cfd.Counts {
			if row[s] > maxVal {
				maxVal = row[s]
			}
			if keep(i, len(cfd.Counts), rate) {
				values = append(values, fmt.Sprintf("%d", row[s]))
			}
		}
		lines[s] = strings.Join(values, ", ")
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Cumulative Flow (%s)\"\n", strings.Join(cfd.States, " > ")))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Items\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.1))))
	for _, l := range lines {
		sb.WriteString(fmt.Sprintf("    line [%s]\n", l))
	}
	sb.WriteString(fenceClose)
	return sb.String()
}

// GenerateThroughputChart creates a bar chart of completions per bucket.
func GenerateThroughputChart(points []stats.ThroughputPoint) string {
	if len(points) == 0 {
		return ""
	}

	var labels []string
	var values []string

	maxVal := 0
	for _, p := range points {
		labels = append(labels, quote(p.Label))
		values = append(values, fmt.Sprintf("%d", p.Count))
		if p.Count > maxVal {
			maxVal = p.Count
		}
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Delivery Cadence (Throughput)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Items Delivered\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}

// GeneratePercentileChart shows cycle time at each requested confidence level.
func GeneratePercentileChart(percentiles []stats.PercentileValue) string {
	if len(percentiles) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0.0
	for _, p := range percentiles {
		labels = append(labels, quote(fmt.Sprintf("P%.0f", p.Quantile*100)))
		values = append(values, fmt.Sprintf("%.1f", p.Days))
		maxVal = math.Max(maxVal, p.Days)
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Cycle Time Percentiles\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Days\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxVal*1.2)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}

// GenerateXmRChart plots cycle times in completion order against their limits.
func GenerateXmRChart(result stats.StabilityResult) string {
	xmr := result.CycleTime
	if len(xmr.Values) == 0 {
		return ""
	}

	var labels []string
	var values []string
	var averages []string
	var unpls []string

	rate := subsampleRate(len(xmr.Values))
	for i, v := range xmr.Values {
		if !keep(i, len(xmr.Values), rate) {
			continue
		}
		labels = append(labels, fmt.Sprintf("%d", i+1))
		values = append(values, fmt.Sprintf("%.1f", v))
		averages = append(averages, fmt.Sprintf("%.1f", xmr.Average))
		unpls = append(unpls, fmt.Sprintf("%.1f", xmr.UNPL))
	}

	// Leave breathing room above the UNPL.
	maxY := xmr.UNPL * 1.2
	for _, v := range xmr.Values {
		if v > maxY {
			maxY = v * 1.1
		}
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Process Behavior (XmR)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Cycle Time (Days)\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxY)))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(averages, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(unpls, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}

// GenerateAgeingChart shows the age of the 20 oldest in-progress items.
func GenerateAgeingChart(ageing []stats.AgeingItem) string {
	if len(ageing) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0.0

	limit := len(ageing)
	if limit > 20 {
		limit = 20
	}

	for _, item := range ageing[:limit] {
		labels = append(labels, quote(item.Key))
		values = append(values, fmt.Sprintf("%.1f", item.AgeDays))
		maxVal = math.Max(maxVal, item.AgeDays)
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"WIP Ageing (Top 20 Active Items)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Age (Days)\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxVal*1.1)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}

// GenerateWIPRunChart plots daily work in progress.
func GenerateWIPRunChart(points []stats.WIPPoint) string {
	if len(points) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0

	rate := subsampleRate(len(points))
	for i, p := range points {
		if p.Count > maxVal {
			maxVal = p.Count
		}
		if keep(i, len(points), rate) {
			labels = append(labels, quote(p.Date.Format("Jan02")))
			values = append(values, fmt.Sprintf("%d", p.Count))
		}
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Work-In-Progress (WIP)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Active Items\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}

// GenerateForecastChart shows the forecast completion date per confidence level.
func GenerateForecastChart(result *simulation.ForecastResult) string {
	if result == nil || len(result.Percentiles) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0
	for _, p := range result.Percentiles {
		labels = append(labels, quote(fmt.Sprintf("%.0f%% by %s", p.Quantile*100, p.Date.Format("2006-01-02"))))
		values = append(values, fmt.Sprintf("%d", p.Periods))
		if p.Periods > maxVal {
			maxVal = p.Periods
		}
	}

	var sb strings.Builder
	sb.WriteString(fenceOpen)
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Monte Carlo Forecast\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Periods (%s)\" 0 --> %d\n", result.Period, int(math.Ceil(math.Max(1, float64(maxVal)*1.1)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fenceClose)
	return sb.String()
}
