package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"flow-metrics/internal/stats"
)

const (
	DefaultTrials        = 1000
	DefaultMaxIterations = 10000
)

// DefaultQuantiles are the reported forecast percentiles.
var DefaultQuantiles = []float64{0.50, 0.85, 0.95}

var ErrInvalidForecast = errors.New("invalid forecast configuration")

// ForecastConfig describes one "when will we reach N completed items" question.
type ForecastConfig struct {
	StartCount    int
	Target        int
	StartDate     time.Time
	Period        stats.Bucket
	Trials        int
	MaxIterations int
	Quantiles     []float64

	// KeepTrajectories retains each trial's cumulative count per period.
	KeepTrajectories bool
}

// DatePercentile is one forecast confidence level.
type DatePercentile struct {
	Quantile float64   `json:"quantile"`
	Periods  int       `json:"periods"`
	Date     time.Time `json:"date"`
}

// ForecastResult holds the outcome of all trials.
type ForecastResult struct {
	StartCount      int              `json:"start_count"`
	Target          int              `json:"target"`
	Period          stats.Bucket     `json:"period"`
	Trials          int              `json:"trials"`
	NotCompleted    int              `json:"not_completed"`
	CompletionDates []time.Time      `json:"completion_dates"`
	Percentiles     []DatePercentile `json:"percentiles"`
	MeanThroughput  float64          `json:"mean_throughput"`
	FatTail         float64          `json:"fat_tail_ratio"`
	Warnings        []string         `json:"warnings,omitempty"`
	Trajectories    [][]int          `json:"trajectories,omitempty"`
}

func (c ForecastConfig) withDefaults() (ForecastConfig, error) {
	if c.Target < 0 || c.StartCount < 0 {
		return c, fmt.Errorf("%w: counts must be non-negative", ErrInvalidForecast)
	}
	switch c.Period {
	case "":
		c.Period = stats.Week
	case stats.Day, stats.Week, stats.Month:
	default:
		return c, fmt.Errorf("%w: unknown period %q", ErrInvalidForecast, c.Period)
	}
	if c.Trials <= 0 {
		c.Trials = DefaultTrials
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if len(c.Quantiles) == 0 {
		c.Quantiles = DefaultQuantiles
	}
	if c.StartDate.IsZero() {
		c.StartDate = time.Now()
	}
	return c, nil
}

// Forecast runs one trajectory per trial, drawing a throughput sample per
// period until the target is met or the iteration ceiling is hit.
func Forecast(cfg ForecastConfig, sampler *Sampler) (*ForecastResult, error) {
	if sampler == nil {
		return nil, ErrNoThroughput
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	res := &ForecastResult{
		StartCount:     cfg.StartCount,
		Target:         cfg.Target,
		Period:         cfg.Period,
		Trials:         cfg.Trials,
		MeanThroughput: sampler.Mean(),
		FatTail:        sampler.FatTail(),
	}
	if cfg.KeepTrajectories {
		res.Trajectories = make([][]int, 0, cfg.Trials)
	}

	periods := make([]int, 0, cfg.Trials)
	for i := 0; i < cfg.Trials; i++ {
		n, trajectory, ok := simulateTrial(cfg, sampler)
		if cfg.KeepTrajectories {
			res.Trajectories = append(res.Trajectories, trajectory)
		}
		if !ok {
			res.NotCompleted++
			continue
		}
		periods = append(periods, n)
	}

	sort.Ints(periods)
	res.CompletionDates = make([]time.Time, len(periods))
	for i, n := range periods {
		res.CompletionDates[i] = advance(cfg.StartDate, cfg.Period, n)
	}

	if len(periods) > 0 {
		qs := append([]float64(nil), cfg.Quantiles...)
		sort.Float64s(qs)
		for _, q := range qs {
			idx := int(float64(len(periods)) * q)
			if idx >= len(periods) {
				idx = len(periods) - 1
			}
			res.Percentiles = append(res.Percentiles, DatePercentile{
				Quantile: q,
				Periods:  periods[idx],
				Date:     advance(cfg.StartDate, cfg.Period, periods[idx]),
			})
		}
	}

	if res.NotCompleted > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d trials did not reach the target within %d periods.", res.NotCompleted, cfg.Trials, cfg.MaxIterations))
	}
	if res.FatTail > 5.6 {
		res.Warnings = append(res.Warnings, "Throughput is fat-tailed (P98/P50 > 5.6); treat the forecast as low confidence.")
	}
	return res, nil
}

func simulateTrial(cfg ForecastConfig, sampler *Sampler) (int, []int, bool) {
	completed := cfg.StartCount
	var trajectory []int
	if cfg.KeepTrajectories {
		trajectory = []int{completed}
	}

	periods := 0
	for completed < cfg.Target {
		if periods >= cfg.MaxIterations {
			return periods, trajectory, false
		}
		periods++
		completed += sampler.Draw()
		if cfg.KeepTrajectories {
			trajectory = append(trajectory, completed)
		}
	}
	return periods, trajectory, true
}

func advance(start time.Time, period stats.Bucket, n int) time.Time {
	switch period {
	case stats.Day:
		return start.AddDate(0, 0, n)
	case stats.Month:
		return start.AddDate(0, n, 0)
	default:
		return start.AddDate(0, 0, 7*n)
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
