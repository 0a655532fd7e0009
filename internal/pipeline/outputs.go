package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flow-metrics/internal/config"
	"flow-metrics/internal/report"
	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
	"flow-metrics/internal/table"
	"flow-metrics/internal/visuals"

	"github.com/rs/zerolog/log"
)

const dateLayout = table.DateFormat

// stage is one independent output. run is only called when path is set.
type stage struct {
	name string
	path string
	run  func(path string) error
}

// OutputOptions tunes WriteOutputs.
type OutputOptions struct {
	Now time.Time
	// NoCharts drops the Mermaid charts stage and the report charts.
	NoCharts bool
}

// WriteOutputs runs every configured output stage. A failing stage is
// recorded in the summary and the remaining stages still run.
func WriteOutputs(res *Result, settings *config.Settings, opts OutputOptions) {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	a := &analyzer{t: res.Table, settings: settings, now: opts.Now, summary: res.Summary, noCharts: opts.NoCharts}
	out := settings.Outputs
	if opts.NoCharts {
		out.Charts = ""
	}

	stages := []stage{
		{"cycle_data", out.CycleData, func(p string) error { return table.WriteFile(p, res.Table) }},
		{"cfd", out.CFD, a.writeCFD},
		{"throughput", out.Throughput, a.writeThroughput},
		{"percentiles", out.Percentiles, a.writePercentiles},
		{"histogram", out.Histogram, a.writeHistogram},
		{"scatterplot", out.Scatterplot, a.writeScatterplot},
		{"wip", out.WIP, a.writeWIP},
		{"ageing", out.Ageing, a.writeAgeing},
		{"net_flow", out.NetFlow, a.writeNetFlow},
		{"stability", out.Stability, a.writeStability},
		{"forecast", out.Forecast, a.writeForecast},
		{"charts", out.Charts, a.writeCharts},
		{"report", out.Report, a.writeReport},
	}

	for _, st := range stages {
		if st.path == "" {
			res.Summary.Skipped = append(res.Summary.Skipped, st.name)
			continue
		}
		if err := st.run(st.path); err != nil {
			res.Summary.stageFailed(st.name, err)
			continue
		}
		log.Info().Str("stage", st.name).Str("path", st.path).Msg("Output written")
		res.Summary.Outputs = append(res.Summary.Outputs, Output{Stage: st.name, Path: st.path})
	}
}

// analyzer memoizes aggregates shared by several stages.
type analyzer struct {
	t        *table.Table
	settings *config.Settings
	now      time.Time
	summary  *Summary
	noCharts bool

	cfd      *stats.CFDResult
	forecast *simulation.ForecastResult
	fcErr    error
	fcDone   bool
}

func (a *analyzer) committed() string { return a.settings.Workflow.Committed().Name }
func (a *analyzer) done() string      { return a.settings.Workflow.Done().Name }

func (a *analyzer) CFD() stats.CFDResult {
	if a.cfd == nil {
		c := stats.CFD(a.t)
		a.cfd = &c
	}
	return *a.cfd
}

func (a *analyzer) Throughput() []stats.ThroughputPoint {
	return stats.Throughput(a.t, stats.ThroughputOptions{Bucket: a.settings.Outputs.ThroughputBucket})
}

func (a *analyzer) Percentiles() []stats.PercentileValue {
	return stats.CycleTimePercentiles(a.t, a.settings.Outputs.Quantiles)
}

func (a *analyzer) Ageing() []stats.AgeingItem {
	return stats.AgeingWIP(a.t, a.committed(), a.done(), a.now)
}

func (a *analyzer) Stability() stats.StabilityResult {
	return stats.CycleTimeStability(stats.Scatterplot(a.t), a.Ageing())
}

func (a *analyzer) Forecast() (*simulation.ForecastResult, error) {
	if !a.fcDone {
		a.fcDone = true
		if !a.settings.Forecast.Enabled() {
			a.fcErr = errors.New("forecast.target is not configured")
		} else {
			a.forecast, a.fcErr = Forecast(a.t, a.settings.Forecast, a.now)
		}
	}
	return a.forecast, a.fcErr
}

func (a *analyzer) writeCFD(path string) error {
	cfd := a.CFD()
	s := series{header: append([]string{"date"}, cfd.States...), value: cfd}
	for i, d := range cfd.Dates {
		row := []string{d.Format(dateLayout)}
		for _, c := range cfd.Counts[i] {
			row = append(row, strconv.Itoa(c))
		}
		s.rows = append(s.rows, row)
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeThroughput(path string) error {
	points := a.Throughput()
	s := series{header: []string{"period", "start", "count"}, value: points}
	for _, p := range points {
		s.rows = append(s.rows, []string{p.Label, p.Start.Format(dateLayout), strconv.Itoa(p.Count)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writePercentiles(path string) error {
	values := a.Percentiles()
	s := series{header: []string{"quantile", "cycle_time_days"}, value: values}
	for _, p := range values {
		s.rows = append(s.rows, []string{formatFloat(p.Quantile), formatFloat(p.Days)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeHistogram(path string) error {
	bins := stats.CycleTimeHistogram(a.t, a.settings.Outputs.HistogramBinDays)
	s := series{header: []string{"from_days", "to_days", "count"}, value: bins}
	for _, b := range bins {
		s.rows = append(s.rows, []string{strconv.Itoa(b.From), strconv.Itoa(b.To), strconv.Itoa(b.Count)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeScatterplot(path string) error {
	points := stats.Scatterplot(a.t)
	s := series{header: []string{"key", "issue_type", "completed_date", "cycle_time_days"}, value: points}
	for _, p := range points {
		s.rows = append(s.rows, []string{p.Key, p.IssueType, p.CompletedDate.Format(dateLayout), formatFloat(p.CycleTimeDays)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeWIP(path string) error {
	points := stats.WIP(a.CFD(), a.committed(), a.done())
	s := series{header: []string{"date", "wip"}, value: points}
	for _, p := range points {
		s.rows = append(s.rows, []string{p.Date.Format(dateLayout), strconv.Itoa(p.Count)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeAgeing(path string) error {
	items := a.Ageing()
	s := series{header: []string{"key", "issue_type", "status", "state", "committed_at", "age_days"}, value: items}
	for _, it := range items {
		s.rows = append(s.rows, []string{it.Key, it.IssueType, it.Status, it.State, it.CommittedAt.Format(dateLayout), formatFloat(it.AgeDays)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeNetFlow(path string) error {
	points := stats.NetFlow(a.t, a.committed(), a.done(), a.settings.Outputs.NetFlowBucket)
	s := series{header: []string{"period", "start", "arrivals", "departures", "net"}, value: points}
	for _, p := range points {
		s.rows = append(s.rows, []string{p.Label, p.Start.Format(dateLayout), strconv.Itoa(p.Arrivals), strconv.Itoa(p.Departures), strconv.Itoa(p.Net)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeStability(path string) error {
	res := a.Stability()
	persistence := stats.CalculateStatePersistence(a.t)
	value := struct {
		Stability   stats.StabilityResult    `json:"stability"`
		Persistence []stats.StatePersistence `json:"persistence"`
		Efficiency  stats.FlowEfficiency     `json:"efficiency"`
	}{res, persistence, stats.CalculateFlowEfficiency(a.t)}

	s := series{header: []string{"state", "share", "p50_days", "p85_days", "p95_days", "blocked_count", "blocked_p50_days"}, value: value}
	for _, p := range persistence {
		s.rows = append(s.rows, []string{p.State, formatFloat(p.Share), formatFloat(p.P50), formatFloat(p.P85), formatFloat(p.P95), strconv.Itoa(p.BlockedCount), formatFloat(p.BlockedP50)})
	}
	return writeSeries(path, s)
}

func (a *analyzer) writeForecast(path string) error {
	fc, err := a.Forecast()
	if err != nil {
		return err
	}
	s := series{header: []string{"quantile", "periods", "date"}, value: fc}
	for _, p := range fc.Percentiles {
		s.rows = append(s.rows, []string{formatFloat(p.Quantile), strconv.Itoa(p.Periods), p.Date.Format(dateLayout)})
	}
	return writeSeries(path, s)
}

// charts collects every non-empty Mermaid chart with its title.
func (a *analyzer) charts() [][2]string {
	if a.noCharts {
		return nil
	}
	all := [][2]string{
		{"Cumulative flow", visuals.GenerateCFDChart(a.CFD())},
		{"Throughput", visuals.GenerateThroughputChart(a.Throughput())},
		{"Cycle time percentiles", visuals.GeneratePercentileChart(a.Percentiles())},
		{"Cycle time stability", visuals.GenerateXmRChart(a.Stability())},
		{"Work in progress", visuals.GenerateWIPRunChart(stats.WIP(a.CFD(), a.committed(), a.done()))},
		{"WIP ageing", visuals.GenerateAgeingChart(a.Ageing())},
	}
	if a.settings.Forecast.Enabled() {
		if fc, err := a.Forecast(); err == nil {
			all = append(all, [2]string{"Forecast", visuals.GenerateForecastChart(fc)})
		}
	}
	var out [][2]string
	for _, c := range all {
		if c[1] != "" {
			out = append(out, c)
		}
	}
	return out
}

func (a *analyzer) writeCharts(path string) error {
	var sb strings.Builder
	for _, c := range a.charts() {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", c[0], c[1])
	}
	return writeText(path, sb.String())
}

func (a *analyzer) writeReport(path string) error {
	data := report.Data{
		Title:       "Flow metrics",
		GeneratedAt: a.now,
		Percentiles: a.Percentiles(),
	}
	eff := stats.CalculateFlowEfficiency(a.t)
	if eff.Completed > 0 {
		data.Efficiency = &eff
	}
	if a.settings.Forecast.Enabled() {
		if fc, err := a.Forecast(); err == nil {
			data.Forecast = fc
		} else {
			data.Warnings = append(data.Warnings, "forecast: "+err.Error())
		}
	}
	for _, c := range a.charts() {
		data.AddChart(c[0], c[1])
	}
	data.SetTable(a.t)
	data.Warnings = append(data.Warnings, a.summary.Warnings()...)
	return report.WriteFile(path, data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
