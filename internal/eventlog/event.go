package eventlog

import "time"

// Kind defines which tracked field an event changes.
type Kind string

const (
	// Status indicates a workflow status transition.
	Status Kind = "status"
	// Impediment indicates the impediment flag was set or cleared.
	Impediment Kind = "impediment"
)

// ChangeEvent is a single typed change in an issue's normalized history.
type ChangeEvent struct {
	Kind Kind `json:"kind"`
	// Timestamp is always UTC.
	Timestamp time.Time `json:"ts"`

	// From is empty for the initial event. For impediments an empty value means unset.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Initial marks the synthetic event that opens every sequence.
	Initial bool `json:"initial,omitempty"`

	// Seq is the position in the source changelog, -1 for the initial event.
	Seq int `json:"seq"`
}

// IsSet reports whether an impediment event raises the flag.
func (e ChangeEvent) IsSet() bool {
	return e.Kind == Impediment && e.To != ""
}

// Diagnostics collects recoverable findings from normalizing one issue.
type Diagnostics struct {
	OrphanClears    int
	RepeatedSets    int
	NoopTransitions int
	// ArrivedAt is set when history before a move into the project was discarded.
	ArrivedAt *time.Time
}
