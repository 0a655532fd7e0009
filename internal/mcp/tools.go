package mcp

import (
	"context"
	"fmt"

	"flow-metrics/internal/pipeline"
	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultRowLimit = 100

type CycleDataInput struct {
	Refresh       bool `json:"refresh,omitempty" jsonschema:"re-run the reconstruction instead of using the cached table"`
	Limit         int  `json:"limit,omitempty" jsonschema:"maximum number of rows to return (default 100)"`
	CompletedOnly bool `json:"completed_only,omitempty" jsonschema:"only return issues that reached the done column"`
}

type CycleDataOutput struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	Truncated bool       `json:"truncated"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type RefreshInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"re-run the reconstruction instead of using the cached table"`
}

type CFDOutput struct {
	CFD      stats.CFDResult  `json:"cfd"`
	WIP      []stats.WIPPoint `json:"wip"`
	Warnings []string         `json:"warnings,omitempty"`
}

type ThroughputInput struct {
	Refresh bool   `json:"refresh,omitempty" jsonschema:"re-run the reconstruction instead of using the cached table"`
	Bucket  string `json:"bucket,omitempty" jsonschema:"aggregation period: day, week or month (default from settings)"`
}

type ThroughputOutput struct {
	Bucket   stats.Bucket            `json:"bucket"`
	Points   []stats.ThroughputPoint `json:"points"`
	NetFlow  []stats.NetFlowPoint    `json:"net_flow"`
	Warnings []string                `json:"warnings,omitempty"`
}

type PercentilesInput struct {
	Refresh          bool      `json:"refresh,omitempty" jsonschema:"re-run the reconstruction instead of using the cached table"`
	Quantiles        []float64 `json:"quantiles,omitempty" jsonschema:"quantiles between 0 and 1 (default from settings)"`
	HistogramBinDays int       `json:"histogram_bin_days,omitempty" jsonschema:"histogram bin width in days (default from settings)"`
}

type PercentilesOutput struct {
	Completed   int                      `json:"completed"`
	Percentiles []stats.PercentileValue  `json:"percentiles"`
	Histogram   []stats.HistogramBin     `json:"histogram"`
	Persistence []stats.StatePersistence `json:"persistence"`
	Efficiency  stats.FlowEfficiency     `json:"efficiency"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

type AgeingOutput struct {
	Items     []stats.AgeingItem    `json:"items"`
	Stability stats.StabilityResult `json:"stability"`
	Warnings  []string              `json:"warnings,omitempty"`
}

type ForecastInput struct {
	Refresh       bool   `json:"refresh,omitempty" jsonschema:"re-run the reconstruction instead of using the cached table"`
	Target        int    `json:"target" jsonschema:"total number of completed issues to forecast"`
	StartCount    *int   `json:"start_count,omitempty" jsonschema:"completed count to start from (default: issues completed so far)"`
	Period        string `json:"period,omitempty" jsonschema:"simulation period: day, week or month"`
	SamplePeriods int    `json:"sample_periods,omitempty" jsonschema:"only sample the most recent N periods of throughput"`
	Trials        int    `json:"trials,omitempty" jsonschema:"number of Monte-Carlo trials (capped at 100000)"`
	Seed          int64  `json:"seed,omitempty" jsonschema:"random seed for reproducible runs"`
}

// MaxForecastTrials caps the trials a client may request per forecast call.
const MaxForecastTrials = 100000

func (s *Server) registerTools(srv *sdk.Server) {
	addTool(srv, "cycle_data",
		"Return the reconstructed cycle data table: one row per issue with the entry timestamp and time spent in every workflow step, cycle time, blocked days and impediments.",
		s.handleCycleData)
	addTool(srv, "cfd",
		"Return the daily cumulative flow diagram (issues that reached each workflow step per day) and the resulting work in progress between the committed and done columns.",
		s.handleCFD)
	addTool(srv, "throughput",
		"Return completed issues per period with zero-filled gaps, plus arrivals and departures per period (net flow).",
		s.handleThroughput)
	addTool(srv, "percentiles",
		"Return cycle time percentiles, a histogram, time spent per workflow step and flow efficiency for completed issues.",
		s.handlePercentiles)
	addTool(srv, "ageing",
		"Return the age of every in-progress issue and an XmR stability check flagging WIP older than the cycle time upper limit.",
		s.handleAgeing)
	addTool(srv, "forecast",
		"Run a Monte-Carlo forecast of when the target number of completed issues will be reached, sampling historical throughput per period. "+
			"Results are only as good as the sampled history: report the warnings to the user and never extrapolate when the tool fails.",
		s.handleForecast)
}

func (s *Server) handleCycleData(ctx context.Context, _ *sdk.CallToolRequest, in CycleDataInput) (*sdk.CallToolResult, CycleDataOutput, error) {
	res, _, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, CycleDataOutput{}, err
	}
	t := res.Table
	limit := in.Limit
	if limit <= 0 {
		limit = defaultRowLimit
	}

	out := CycleDataOutput{
		Columns:   t.Columns,
		Rows:      [][]string{},
		Total:     t.Len(),
		Completed: len(t.Completed()),
		Warnings:  res.Summary.Warnings(),
	}
	for i, r := range t.Records {
		if in.CompletedOnly && r.CompletedTimestamp == nil {
			continue
		}
		if len(out.Rows) == limit {
			out.Truncated = true
			break
		}
		out.Rows = append(out.Rows, t.Strings(i))
	}
	return nil, out, nil
}

func (s *Server) handleCFD(ctx context.Context, _ *sdk.CallToolRequest, in RefreshInput) (*sdk.CallToolResult, CFDOutput, error) {
	res, _, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, CFDOutput{}, err
	}
	wf := s.settings.Workflow
	cfd := stats.CFD(res.Table)
	return nil, CFDOutput{
		CFD:      cfd,
		WIP:      stats.WIP(cfd, wf.Committed().Name, wf.Done().Name),
		Warnings: res.Summary.Warnings(),
	}, nil
}

func (s *Server) handleThroughput(ctx context.Context, _ *sdk.CallToolRequest, in ThroughputInput) (*sdk.CallToolResult, ThroughputOutput, error) {
	bucket := s.settings.Outputs.ThroughputBucket
	if in.Bucket != "" {
		b, err := stats.ParseBucket(in.Bucket)
		if err != nil {
			return nil, ThroughputOutput{}, err
		}
		bucket = b
	}

	res, _, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, ThroughputOutput{}, err
	}
	wf := s.settings.Workflow
	return nil, ThroughputOutput{
		Bucket:   bucket,
		Points:   stats.Throughput(res.Table, stats.ThroughputOptions{Bucket: bucket}),
		NetFlow:  stats.NetFlow(res.Table, wf.Committed().Name, wf.Done().Name, bucket),
		Warnings: res.Summary.Warnings(),
	}, nil
}

func (s *Server) handlePercentiles(ctx context.Context, _ *sdk.CallToolRequest, in PercentilesInput) (*sdk.CallToolResult, PercentilesOutput, error) {
	quantiles := s.settings.Outputs.Quantiles
	if len(in.Quantiles) > 0 {
		for _, q := range in.Quantiles {
			if q < 0 || q > 1 {
				return nil, PercentilesOutput{}, fmt.Errorf("quantile %v outside [0, 1]", q)
			}
		}
		quantiles = in.Quantiles
	}
	binDays := s.settings.Outputs.HistogramBinDays
	if in.HistogramBinDays > 0 {
		binDays = in.HistogramBinDays
	}

	res, _, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, PercentilesOutput{}, err
	}
	t := res.Table
	return nil, PercentilesOutput{
		Completed:   len(t.Completed()),
		Percentiles: stats.CycleTimePercentiles(t, quantiles),
		Histogram:   stats.CycleTimeHistogram(t, binDays),
		Persistence: stats.CalculateStatePersistence(t),
		Efficiency:  stats.CalculateFlowEfficiency(t),
		Warnings:    res.Summary.Warnings(),
	}, nil
}

func (s *Server) handleAgeing(ctx context.Context, _ *sdk.CallToolRequest, in RefreshInput) (*sdk.CallToolResult, AgeingOutput, error) {
	res, now, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, AgeingOutput{}, err
	}
	wf := s.settings.Workflow
	items := stats.AgeingWIP(res.Table, wf.Committed().Name, wf.Done().Name, now)
	return nil, AgeingOutput{
		Items:     items,
		Stability: stats.CycleTimeStability(stats.Scatterplot(res.Table), items),
		Warnings:  res.Summary.Warnings(),
	}, nil
}

func (s *Server) handleForecast(ctx context.Context, _ *sdk.CallToolRequest, in ForecastInput) (*sdk.CallToolResult, simulation.ForecastResult, error) {
	if in.Target <= 0 {
		return nil, simulation.ForecastResult{}, fmt.Errorf("target must be positive, got %d", in.Target)
	}

	fs := s.settings.Forecast
	fs.Target = in.Target
	if in.StartCount != nil {
		fs.StartCount = in.StartCount
	}
	if in.Period != "" {
		p, err := stats.ParseBucket(in.Period)
		if err != nil {
			return nil, simulation.ForecastResult{}, err
		}
		fs.Period = p
	}
	if in.SamplePeriods > 0 {
		fs.SamplePeriods = in.SamplePeriods
	}
	if in.Trials > 0 {
		fs.Trials = min(in.Trials, MaxForecastTrials)
	}
	if in.Seed != 0 {
		fs.Seed = in.Seed
	}

	res, now, err := s.load(ctx, in.Refresh)
	if err != nil {
		return nil, simulation.ForecastResult{}, err
	}
	fc, err := pipeline.Forecast(res.Table, fs, now)
	if err != nil {
		return nil, simulation.ForecastResult{}, err
	}
	return nil, *fc, nil
}
