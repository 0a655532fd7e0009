package workflow

import (
	"errors"
	"testing"
)

func sampleSteps() []StepConfig {
	return []StepConfig{
		{Name: "Backlog", Statuses: []string{"Open", "Backlog"}},
		{Name: "Committed", Statuses: []string{"Selected for Development"}},
		{Name: "Build", Statuses: []string{"In Progress"}},
		{Name: "Test", Statuses: []string{"QA", "In Review"}},
		{Name: "Done", Statuses: []string{"Done", "Closed"}},
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		steps     []StepConfig
		committed string
		done      string
		policy    Policy
		wantErr   error
	}{
		{"Valid", sampleSteps(), "Committed", "Done", PolicyReset, nil},
		{"CaseInsensitiveColumns", sampleSteps(), "committed", "DONE", PolicyReset, nil},
		{"TooFewSteps", sampleSteps()[:1], "Backlog", "Backlog", PolicyReset, ErrTooFewSteps},
		{"UnknownCommitted", sampleSteps(), "Ready", "Done", PolicyReset, ErrUnknownColumn},
		{"UnknownDone", sampleSteps(), "Committed", "Shipped", PolicyReset, ErrUnknownColumn},
		{"ColumnsReversed", sampleSteps(), "Done", "Committed", PolicyReset, ErrColumnOrder},
		{"UnknownPolicy", sampleSteps(), "Committed", "Done", Policy("merge"), ErrUnknownPolicy},
		{
			"DuplicateStatus",
			[]StepConfig{{Name: "A", Statuses: []string{"Open"}}, {Name: "B", Statuses: []string{"open"}}},
			"A", "B", PolicyReset, ErrDuplicateStatus,
		},
		{
			"DuplicateStepName",
			[]StepConfig{{Name: "A"}, {Name: "a"}},
			"A", "A", PolicyReset, ErrDuplicateStepKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.steps, tt.committed, tt.done, tt.policy)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	wf, err := New(sampleSteps(), "Committed", "Done", PolicyReset)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		raw      string
		wantStep string
		wantOK   bool
	}{
		{"In Progress", "Build", true},
		{"in progress", "Build", true},
		{"  QA ", "Test", true},
		{"closed", "Done", true},
		{"Blocked", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		step, ok := wf.Resolve(tt.raw)
		if ok != tt.wantOK || step.Name != tt.wantStep {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.raw, step.Name, ok, tt.wantStep, tt.wantOK)
		}
	}
}

func TestKindsAndOrdinals(t *testing.T) {
	wf, err := New(sampleSteps(), "Committed", "Done", PolicyReset)
	if err != nil {
		t.Fatal(err)
	}

	steps := wf.Steps()
	if steps[0].Kind != Backlog || steps[len(steps)-1].Kind != Complete {
		t.Errorf("unexpected kinds at the edges: %v, %v", steps[0].Kind, steps[len(steps)-1].Kind)
	}
	for i, s := range steps {
		if s.Ordinal != i {
			t.Errorf("step %q has ordinal %d, want %d", s.Name, s.Ordinal, i)
		}
		if i > 0 && i < len(steps)-1 && s.Kind != Accepted {
			t.Errorf("step %q should be accepted, got %v", s.Name, s.Kind)
		}
	}
	if wf.Committed().Name != "Committed" || wf.Done().Name != "Done" {
		t.Errorf("unexpected columns %q/%q", wf.Committed().Name, wf.Done().Name)
	}
}

func TestIsActive(t *testing.T) {
	wf, err := New(sampleSteps(), "Committed", "Done", PolicyReset)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{
		"Backlog":   false,
		"Committed": true,
		"Build":     true,
		"Test":      true,
		"Done":      false,
		"Unknown":   false,
	}
	for name, active := range want {
		if got := wf.IsActive(name); got != active {
			t.Errorf("IsActive(%q) = %v, want %v", name, got, active)
		}
	}
}

func TestStepWithoutStatusesMatchesItsName(t *testing.T) {
	wf, err := New([]StepConfig{{Name: "Todo"}, {Name: "Doing"}, {Name: "Done"}}, "Doing", "Done", PolicyReset)
	if err != nil {
		t.Fatal(err)
	}
	if step, ok := wf.Resolve("doing"); !ok || step.Name != "Doing" {
		t.Errorf("expected step name to act as status, got %q %v", step.Name, ok)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyReset {
		t.Errorf("empty policy should default to reset, got %q %v", p, err)
	}
	if p, err := ParsePolicy("Accumulate"); err != nil || p != PolicyAccumulate {
		t.Errorf("expected accumulate, got %q %v", p, err)
	}
	if _, err := ParsePolicy("rewind"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}
