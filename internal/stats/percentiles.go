package stats

import (
	"math"
	"slices"
	"sort"

	"flow-metrics/internal/table"
)

// DefaultQuantiles are the cycle-time percentiles reported when none are configured.
var DefaultQuantiles = []float64{0.5, 0.85, 0.95}

// PercentileValue is one cycle-time quantile in days.
type PercentileValue struct {
	Quantile float64 `json:"quantile"`
	Days     float64 `json:"days"`
}

// CycleTimesDays returns the cycle times of completed rows in days, ascending.
func CycleTimesDays(t *table.Table) []float64 {
	var values []float64
	for _, r := range t.Records {
		if days, ok := r.CycleTimeDays(); ok {
			values = append(values, days)
		}
	}
	slices.Sort(values)
	return values
}

// CycleTimePercentiles reports the requested quantiles. No cycle times yields nil.
func CycleTimePercentiles(t *table.Table, quantiles []float64) []PercentileValue {
	values := CycleTimesDays(t)
	if len(values) == 0 {
		return nil
	}
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	out := make([]PercentileValue, 0, len(quantiles))
	for _, q := range quantiles {
		out = append(out, PercentileValue{Quantile: q, Days: Percentile(values, q)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantile < out[j].Quantile })
	return out
}

// HistogramBin counts cycle times in [From, To) days.
type HistogramBin struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Count int `json:"count"`
}

// CycleTimeHistogram bins whole cycle-time days. binDays below 1 means 1.
func CycleTimeHistogram(t *table.Table, binDays int) []HistogramBin {
	if binDays < 1 {
		binDays = 1
	}
	values := CycleTimesDays(t)
	if len(values) == 0 {
		return nil
	}

	maxDay := int(math.Floor(values[len(values)-1]))
	bins := make([]HistogramBin, maxDay/binDays+1)
	for i := range bins {
		bins[i] = HistogramBin{From: i * binDays, To: (i + 1) * binDays}
	}
	for _, v := range values {
		bins[int(math.Floor(v))/binDays].Count++
	}
	return bins
}
