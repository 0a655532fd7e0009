package stats

import (
	"math"
	"slices"
	"time"

	"flow-metrics/internal/table"
)

// StatePersistence is the historical residency of one workflow state.
type StatePersistence struct {
	State        string  `json:"state"`
	Share        float64 `json:"share"` // fraction of issues that spent time in the state
	P50          float64 `json:"coin_toss"`
	P70          float64 `json:"probable"`
	P85          float64 `json:"likely"`
	P95          float64 `json:"safe_bet"`
	IQR          float64 `json:"iqr"`      // P75-P25
	Inner80      float64 `json:"inner_80"` // P90-P10
	BlockedCount int     `json:"blocked_count,omitempty"`
	BlockedP50   float64 `json:"blocked_p50,omitempty"`
	BlockedP85   float64 `json:"blocked_p85,omitempty"`
}

// minResidency hides states an issue only passed through.
const minResidency = time.Minute

// CalculateStatePersistence reports residency percentiles in days per state,
// in workflow order. Blocked figures come from closed impediments tagged
// with the state.
func CalculateStatePersistence(t *table.Table) []StatePersistence {
	if t.Len() == 0 {
		return nil
	}

	durations := make([][]float64, len(t.Steps))
	blocked := make([][]float64, len(t.Steps))

	for _, r := range t.Records {
		for s, name := range t.Steps {
			e, ok := r.State(name)
			if ok && e.Duration != nil && *e.Duration >= minResidency {
				durations[s] = append(durations[s], e.Duration.Hours()/24)
			}
		}
		for _, imp := range r.Impediments {
			s := t.StepIndex(imp.Status)
			if s < 0 || imp.End == nil {
				continue
			}
			blocked[s] = append(blocked[s], imp.End.Sub(imp.Start).Hours()/24)
		}
	}

	total := float64(t.Len())
	var results []StatePersistence
	for s, name := range t.Steps {
		d := durations[s]
		if len(d) == 0 {
			continue
		}
		slices.Sort(d)
		n := len(d)
		sp := StatePersistence{
			State:   name,
			Share:   round(float64(n)/total, 1000),
			P50:     round(d[int(float64(n)*0.50)], 10),
			P70:     round(d[int(float64(n)*0.70)], 10),
			P85:     round(d[int(float64(n)*0.85)], 10),
			P95:     round(d[int(float64(n)*0.95)], 10),
			IQR:     round(d[int(float64(n)*0.75)]-d[int(float64(n)*0.25)], 10),
			Inner80: round(d[int(float64(n)*0.90)]-d[int(float64(n)*0.10)], 10),
		}

		if bd := blocked[s]; len(bd) > 0 {
			slices.Sort(bd)
			bn := len(bd)
			sp.BlockedCount = bn
			sp.BlockedP50 = round(bd[int(float64(bn)*0.50)], 10)
			sp.BlockedP85 = round(bd[int(float64(bn)*0.85)], 10)
		}
		results = append(results, sp)
	}
	return results
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}
