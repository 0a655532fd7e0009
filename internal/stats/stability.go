package stats

import (
	"math"
)

// XmRResult is an Individuals and Moving Range process behaviour chart.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"moving_ranges"`
	Signals     []Signal  `json:"signals"`
}

// Signal is a detected special cause variation.
type Signal struct {
	Index       int    `json:"index"`
	Key         string `json:"key"`
	Type        string `json:"type"` // "outlier", "shift", "wip_outlier"
	Description string `json:"description"`
}

// CalculateXmR computes the chart and binds keys to signals when given.
func CalculateXmR(values []float64, keys []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}

	result := XmRResult{Values: values, Average: Mean(values)}

	if len(values) > 1 {
		mrSum := 0.0
		result.MovingRange = make([]float64, len(values)-1)
		for i := 0; i < len(values)-1; i++ {
			mr := math.Abs(values[i+1] - values[i])
			result.MovingRange[i] = mr
			mrSum += mr
		}
		result.AmR = mrSum / float64(len(values)-1)
	}

	// Wheeler's scaling constant for individuals.
	result.UNPL = result.Average + (2.66 * result.AmR)
	result.LNPL = math.Max(0, result.Average-(2.66*result.AmR))
	result.Signals = detectSignals(values, result.Average, result.UNPL, result.LNPL, keys)

	return result
}

// StabilityResult compares completed cycle times with the age of current WIP.
type StabilityResult struct {
	CycleTime  XmRResult `json:"cycle_time"`
	WIPSignals []Signal  `json:"wip_signals,omitempty"`
	Status     string    `json:"status"` // "stable", "unstable", "warning"
}

// CycleTimeStability charts cycle times in completion order and flags
// in-progress items already older than the upper limit.
func CycleTimeStability(points []ScatterPoint, ageing []AgeingItem) StabilityResult {
	values := make([]float64, len(points))
	keys := make([]string, len(points))
	for i, p := range points {
		values[i] = p.CycleTimeDays
		keys[i] = p.Key
	}

	result := StabilityResult{CycleTime: CalculateXmR(values, keys), Status: "stable"}
	if len(values) == 0 {
		return result
	}
	if len(result.CycleTime.Signals) > 0 {
		result.Status = "unstable"
	}

	for i, item := range ageing {
		if item.AgeDays > result.CycleTime.UNPL {
			result.WIPSignals = append(result.WIPSignals, Signal{
				Index:       i,
				Key:         item.Key,
				Type:        "wip_outlier",
				Description: "WIP age exceeds the cycle-time Upper Natural Process Limit (UNPL)",
			})
			if result.Status == "stable" {
				result.Status = "warning"
			}
		}
	}
	return result
}

func detectSignals(values []float64, avg, unpl, lnpl float64, keys []string) []Signal {
	var signals []Signal
	keyAt := func(i int) string {
		if i < len(keys) {
			return keys[i]
		}
		return ""
	}

	for i, v := range values {
		if v > unpl {
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier", Description: "Point above Upper Natural Process Limit (UNPL)"})
		} else if v < lnpl {
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier", Description: "Point below Lower Natural Process Limit (LNPL)"})
		}
	}

	if len(values) < 8 {
		return signals
	}

	side, count := 0, 0
	for i, v := range values {
		current := 0
		if v > avg {
			current = 1
		} else if v < avg {
			current = -1
		}

		if current == side && current != 0 {
			count++
		} else {
			side = current
			count = 1
		}

		if count == 8 {
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "shift", Description: "8 consecutive points on one side of the average (process shift)"})
		}
	}
	return signals
}
