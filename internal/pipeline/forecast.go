package pipeline

import (
	"math/rand"
	"time"

	"flow-metrics/internal/config"
	"flow-metrics/internal/simulation"
	"flow-metrics/internal/stats"
	"flow-metrics/internal/table"

	"github.com/rs/zerolog/log"
)

// Forecast samples historical throughput per period from the table and
// runs the Monte-Carlo simulation. simulation.ErrNoThroughput refuses
// the forecast when nothing was ever completed.
func Forecast(t *table.Table, fs config.ForecastSettings, now time.Time) (*simulation.ForecastResult, error) {
	points := stats.Throughput(t, stats.ThroughputOptions{Bucket: fs.Period, End: now})
	pool := stats.Counts(points)
	if fs.SamplePeriods > 0 && len(pool) > fs.SamplePeriods {
		pool = pool[len(pool)-fs.SamplePeriods:]
	}

	var rng *rand.Rand
	if fs.Seed != 0 {
		rng = rand.New(rand.NewSource(fs.Seed))
	}
	sampler, err := simulation.NewSampler(pool, rng)
	if err != nil {
		return nil, err
	}

	startCount := len(t.Completed())
	if fs.StartCount != nil {
		startCount = *fs.StartCount
	}
	start := fs.StartDate
	if start.IsZero() {
		start = now
	}

	log.Debug().Int("periods", sampler.Len()).Float64("mean", sampler.Mean()).Int("start", startCount).Int("target", fs.Target).Msg("Running forecast")
	return simulation.Forecast(simulation.ForecastConfig{
		StartCount:    startCount,
		Target:        fs.Target,
		StartDate:     start,
		Period:        fs.Period,
		Trials:        fs.Trials,
		MaxIterations: fs.MaxIterations,
	}, sampler)
}
