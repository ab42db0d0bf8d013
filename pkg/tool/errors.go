package tool

import "fmt"

// DuplicateToolError reports a registration attempt under a name that is
// already taken. Registration happens at startup, so this error is fatal to
// initialization rather than to any single turn.
type DuplicateToolError struct {
	// Name is the conflicting tool name.
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// ValidationError reports parameters that failed schema validation. The tool
// is never invoked; the error is carried inside the CallResult so a bad call
// cannot crash the caller's batch.
type ValidationError struct {
	// Tool is the tool whose schema rejected the parameters.
	Tool string

	// Reason describes the mismatch.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for tool %q: %s", e.Tool, e.Reason)
}

// UnknownToolError reports a call to a name with no registered descriptor.
type UnknownToolError struct {
	// Name is the unknown tool name.
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Name)
}
