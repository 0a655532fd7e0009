package simulation

import (
	"errors"
	"math/rand"
	"sort"
)

// ErrNoThroughput is returned when the historical pool never delivered anything.
var ErrNoThroughput = errors.New("throughput sample pool sums to zero")

// Sampler draws periodic throughput values from historical completions.
type Sampler struct {
	pool []int
	rng  *rand.Rand
}

// NewSampler refuses pools that sum to zero, since no trial could ever finish.
// A nil rng is replaced with a time-seeded one.
func NewSampler(throughput []int, rng *rand.Rand) (*Sampler, error) {
	total := 0
	for _, c := range throughput {
		if c < 0 {
			return nil, errors.New("throughput sample pool contains negative counts")
		}
		total += c
	}
	if total == 0 {
		return nil, ErrNoThroughput
	}
	if rng == nil {
		rng = newRand()
	}
	pool := make([]int, len(throughput))
	copy(pool, throughput)
	return &Sampler{pool: pool, rng: rng}, nil
}

// Draw samples one period of throughput with replacement.
func (s *Sampler) Draw() int {
	return s.pool[s.rng.Intn(len(s.pool))]
}

func (s *Sampler) Len() int { return len(s.pool) }

// Mean is the average throughput per period.
func (s *Sampler) Mean() float64 {
	sum := 0
	for _, c := range s.pool {
		sum += c
	}
	return float64(sum) / float64(len(s.pool))
}

// FatTail is the P98/P50 ratio of the pool. Values above ~5.6 indicate a
// bursty process where forecasts deserve wider margins.
func (s *Sampler) FatTail() float64 {
	sorted := make([]int, len(s.pool))
	copy(sorted, s.pool)
	sort.Ints(sorted)

	p50 := float64(sorted[int(float64(len(sorted))*0.50)])
	p98 := float64(sorted[int(float64(len(sorted))*0.98)])

	if p50 == 0 {
		if p98 > 0 {
			return 10.0 // Symbolic high value for sparse processes
		}
		return 1.0
	}
	return p98 / p50
}
