package cycletime

import (
	"errors"
	"fmt"
)

var (
	ErrSpanNotOpen       = errors.New("timespan closed without being opened")
	ErrSpanAlreadyOpen   = errors.New("timespan opened twice")
	ErrNegativeDuration  = errors.New("timespan interval would be negative")
	ErrNegativeCycleTime = errors.New("negative cycle time")
	ErrPolicyUnsupported = errors.New("backwards policy is not supported")
)

// IssueError aborts the reconstruction of a single issue.
type IssueError struct {
	Key string
	Err error
}

func (e *IssueError) Error() string {
	return fmt.Sprintf("issue %s: %v", e.Key, e.Err)
}

func (e *IssueError) Unwrap() error {
	return e.Err
}
