// Package workflow maps raw Jira statuses onto an ordered set of workflow steps.
//
// A Workflow is built once from configuration and never mutated afterwards.
// It is passed explicitly to every stage that needs status resolution.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTooFewSteps      = errors.New("workflow needs at least two steps")
	ErrUnknownColumn    = errors.New("column is not a workflow step")
	ErrDuplicateStatus  = errors.New("status is mapped to more than one step")
	ErrColumnOrder      = errors.New("committed column must come before done column")
	ErrUnknownPolicy    = errors.New("unknown backwards policy")
	ErrDuplicateStepKey = errors.New("duplicate step name")
)

// Kind classifies a step by its position in the workflow.
type Kind string

const (
	Backlog  Kind = "backlog"
	Accepted Kind = "accepted"
	Complete Kind = "complete"
)

// Policy selects what happens to later steps when an issue moves backwards.
type Policy string

const (
	// PolicyReset erases every later step that already has history.
	PolicyReset Policy = "reset"
	// PolicyAccumulate keeps earlier visits. Its reconciliation rules are not defined yet.
	PolicyAccumulate Policy = "accumulate"
)

// ParsePolicy accepts the configured policy name. An empty name means reset.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyReset:
		return PolicyReset, nil
	case PolicyAccumulate:
		return PolicyAccumulate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// StepConfig is the configured shape of a step before validation.
type StepConfig struct {
	Name     string
	Statuses []string
}

// Step is one validated workflow column.
type Step struct {
	Name     string
	Ordinal  int
	Statuses []string
	Kind     Kind
}

// Workflow is the immutable status-to-step lookup.
type Workflow struct {
	steps     []Step
	byStatus  map[string]int
	byName    map[string]int
	committed int
	done      int
	policy    Policy
}

// New validates the configured steps and column names.
func New(steps []StepConfig, committed, done string, policy Policy) (*Workflow, error) {
	if len(steps) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewSteps, len(steps))
	}
	if policy != PolicyReset && policy != PolicyAccumulate {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	wf := &Workflow{
		steps:    make([]Step, 0, len(steps)),
		byStatus: make(map[string]int),
		byName:   make(map[string]int),
		policy:   policy,
	}

	for i, sc := range steps {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return nil, fmt.Errorf("step %d has no name", i+1)
		}
		if _, dup := wf.byName[strings.ToLower(name)]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStepKey, name)
		}
		wf.byName[strings.ToLower(name)] = i

		kind := Accepted
		switch i {
		case 0:
			kind = Backlog
		case len(steps) - 1:
			kind = Complete
		}

		statuses := sc.Statuses
		if len(statuses) == 0 {
			// A step without explicit statuses matches its own name.
			statuses = []string{name}
		}
		step := Step{Name: name, Ordinal: i, Kind: kind, Statuses: make([]string, 0, len(statuses))}
		for _, raw := range statuses {
			key := normalize(raw)
			if key == "" {
				continue
			}
			if owner, dup := wf.byStatus[key]; dup {
				return nil, fmt.Errorf("%w: %q in %q and %q", ErrDuplicateStatus, raw, wf.steps[owner].Name, name)
			}
			wf.byStatus[key] = i
			step.Statuses = append(step.Statuses, raw)
		}
		wf.steps = append(wf.steps, step)
	}

	var ok bool
	if wf.committed, ok = wf.byName[strings.ToLower(strings.TrimSpace(committed))]; !ok {
		return nil, fmt.Errorf("%w: committed column %q", ErrUnknownColumn, committed)
	}
	if wf.done, ok = wf.byName[strings.ToLower(strings.TrimSpace(done))]; !ok {
		return nil, fmt.Errorf("%w: done column %q", ErrUnknownColumn, done)
	}
	if wf.committed >= wf.done {
		return nil, fmt.Errorf("%w: %q is not before %q", ErrColumnOrder, committed, done)
	}

	return wf, nil
}

// Resolve maps a raw status to its step, ignoring case and surrounding space.
func (w *Workflow) Resolve(rawStatus string) (Step, bool) {
	idx, ok := w.byStatus[normalize(rawStatus)]
	if !ok {
		return Step{}, false
	}
	return w.steps[idx], true
}

// Steps returns a copy of the steps in workflow order.
func (w *Workflow) Steps() []Step {
	out := make([]Step, len(w.steps))
	copy(out, w.steps)
	return out
}

// StepNames returns the step names in workflow order.
func (w *Workflow) StepNames() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Name
	}
	return names
}

// Step returns the step with the given name.
func (w *Workflow) Step(name string) (Step, bool) {
	idx, ok := w.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Step{}, false
	}
	return w.steps[idx], true
}

func (w *Workflow) Len() int { return len(w.steps) }
func (w *Workflow) Backlog() Step { return w.steps[0] }
func (w *Workflow) Committed() Step { return w.steps[w.committed] }
func (w *Workflow) Done() Step { return w.steps[w.done] }
func (w *Workflow) Policy() Policy { return w.policy }
func (w *Workflow) Final() Step { return w.steps[len(w.steps)-1] }
func (w *Workflow) At(ordinal int) Step { return w.steps[ordinal] }

// IsActive reports whether work in the named step counts as in progress:
// from the committed column up to, but not including, the done column.
func (w *Workflow) IsActive(stepName string) bool {
	idx, ok := w.byName[strings.ToLower(strings.TrimSpace(stepName))]
	if !ok {
		return false
	}
	return idx >= w.committed && idx < w.done
}

func normalize(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
