package stats

import (
	"math/rand"
	"testing"

	"flow-metrics/internal/cycletime"
)

func TestCFD(t *testing.T) {
	tbl := testTable(t,
		rec("I1", 1, 2, 3, 4, 6),
		rec("I2", 2, 3),
		rec("I3", 1, 0, 4), // skipped Committed
	)

	res := CFD(tbl)

	if len(res.Dates) != 6 {
		t.Fatalf("Expected 6 days, got %d", len(res.Dates))
	}
	if !res.Dates[0].Equal(SnapToStart(d(1), Day)) {
		t.Errorf("Expected first day %v, got %v", SnapToStart(d(1), Day), res.Dates[0])
	}

	// Day 4 (index 3): all three entered Backlog, all three committed (I3 backfilled),
	// I1 and I3 in Build, I1 in Test.
	want := []int{3, 3, 2, 1, 0}
	for s, w := range want {
		if got := res.Counts[3][s]; got != w {
			t.Errorf("Day 4 %s: expected %d, got %d", res.States[s], w, got)
		}
	}

	// Quiet day 5 carries day 4 forward, day 6 adds the completion.
	if res.Counts[4][4] != 0 || res.Counts[5][4] != 1 {
		t.Errorf("Done counts mismatch: day5=%d day6=%d", res.Counts[4][4], res.Counts[5][4])
	}
	if got := res.Row(0); got[len(got)-1] != 3 {
		t.Errorf("Expected final backlog count 3, got %d", got[len(got)-1])
	}
}

func TestReachedDates_ClampsOutOfOrderEntries(t *testing.T) {
	// Build entered before Committed, e.g. after a reset and re-entry.
	tbl := testTable(t, rec("I1", 1, 5, 3))

	dates := ReachedDates(tbl, 0)

	if !dates[1].Equal(SnapToStart(d(3), Day)) {
		t.Errorf("Expected Committed clamped to day 3, got %v", dates[1])
	}
	if dates[3] != nil || dates[4] != nil {
		t.Errorf("Unreached states must stay empty, got %v %v", dates[3], dates[4])
	}
}

func TestCFD_MonotonicAcrossStates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var records []cycletime.Record
	for i := 0; i < 200; i++ {
		days := make([]int, len(testSteps))
		for s := range days {
			if rng.Intn(3) > 0 {
				days[s] = 1 + rng.Intn(28)
			}
		}
		records = append(records, rec("R", days...))
	}
	res := CFD(testTable(t, records...))

	for day, counts := range res.Counts {
		for s := 1; s < len(counts); s++ {
			if counts[s-1] < counts[s] {
				t.Fatalf("Day %d: %s count %d below %s count %d", day, res.States[s-1], counts[s-1], res.States[s], counts[s])
			}
		}
		if day > 0 {
			for s := range counts {
				if counts[s] < res.Counts[day-1][s] {
					t.Fatalf("Day %d: cumulative count for %s decreased", day, res.States[s])
				}
			}
		}
	}
}

func TestAggregators_EmptyTable(t *testing.T) {
	tbl := testTable(t)

	cfd := CFD(tbl)
	if len(cfd.Dates) != 0 || len(cfd.States) != len(testSteps) {
		t.Errorf("Expected no days and all states, got %+v", cfd)
	}
	if got := WIP(cfd, "Committed", "Done"); len(got) != 0 {
		t.Errorf("Expected empty WIP, got %v", got)
	}
	if got := Throughput(tbl, ThroughputOptions{Bucket: Week}); got != nil {
		t.Errorf("Expected nil throughput, got %v", got)
	}
	if got := CycleTimePercentiles(tbl, nil); got != nil {
		t.Errorf("Expected nil percentiles, got %v", got)
	}
	if got := CycleTimeHistogram(tbl, 1); got != nil {
		t.Errorf("Expected nil histogram, got %v", got)
	}
	if got := Scatterplot(tbl); len(got) != 0 {
		t.Errorf("Expected empty scatterplot, got %v", got)
	}
	if got := AgeingWIP(tbl, "Committed", "Done", d(10)); len(got) != 0 {
		t.Errorf("Expected empty ageing WIP, got %v", got)
	}
	if got := NetFlow(tbl, "Committed", "Done", Week); got != nil {
		t.Errorf("Expected nil net flow, got %v", got)
	}
	if got := CycleTimeStability(nil, nil); got.Status != "stable" {
		t.Errorf("Expected stable status, got %v", got.Status)
	}
}
