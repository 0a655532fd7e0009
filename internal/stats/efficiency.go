package stats

import (
	"math"

	"flow-metrics/internal/table"
)

// FlowEfficiency relates unblocked time to cycle time for completed issues.
type FlowEfficiency struct {
	Completed      int     `json:"completed"`
	Blocked        int     `json:"blocked"` // completed issues with at least one blocked day
	MeanEfficiency float64 `json:"mean_efficiency"`
	P50Efficiency  float64 `json:"p50_efficiency"`
	BlockedShare   float64 `json:"blocked_share"` // blocked days over total cycle days
}

// CalculateFlowEfficiency uses whole blocked days against cycle time in days.
// Issues with a zero cycle time are skipped.
func CalculateFlowEfficiency(t *table.Table) FlowEfficiency {
	var res FlowEfficiency
	var values []float64
	totalDays, blockedDays := 0.0, 0.0

	for _, r := range t.Records {
		days, ok := r.CycleTimeDays()
		if !ok || days <= 0 {
			continue
		}
		res.Completed++
		if r.BlockedDays > 0 {
			res.Blocked++
		}
		b := math.Min(float64(r.BlockedDays), days)
		values = append(values, (days-b)/days)
		totalDays += days
		blockedDays += b
	}

	if len(values) == 0 {
		return res
	}
	res.MeanEfficiency = round(Mean(values), 1000)
	res.P50Efficiency = round(Median(values), 1000)
	res.BlockedShare = round(blockedDays/totalDays, 1000)
	return res
}
