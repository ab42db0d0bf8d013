package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the agent pipeline. Wrap them with AgentError to add
// operation context; match with errors.Is.
var (
	// ErrValidation indicates bad input to an operation.
	ErrValidation = errors.New("validation failed")

	// ErrTimeout indicates an external dependency exceeded its deadline.
	ErrTimeout = errors.New("external dependency timed out")

	// ErrPlanning indicates no strategy rule matched. Recovered by falling
	// back to the conversational strategy.
	ErrPlanning = errors.New("planning failed")

	// ErrCancelled indicates the caller cancelled the turn.
	ErrCancelled = errors.New("turn cancelled")
)

// AgentError wraps a pipeline failure with the operation that produced it.
//
// Example:
//
//	if err != nil {
//	    return nil, &AgentError{Op: "process", Err: err}
//	}
type AgentError struct {
	// Op is the operation that failed ("process", "respond", "consolidate").
	Op string

	// Err is the underlying error.
	Err error
}

func (e *AgentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("agent %s failed", e.Op)
	}
	return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is and errors.As.
func (e *AgentError) Unwrap() error {
	return e.Err
}
