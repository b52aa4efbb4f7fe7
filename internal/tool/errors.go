package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry configuration faults.
var (
	// ErrEmptyToolName is returned when a tool name is empty.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name
	// that already exists. Registration happens once at startup, so this
	// is a fatal configuration error.
	ErrDuplicateTool = errors.New("tool already registered")
)

// ErrKind classifies a dispatch failure. The orchestration loop uses the
// kind to decide between terminating the run and feeding the failure back
// to the oracle as an observation.
type ErrKind string

// Dispatch failure kinds.
const (
	// KindUnknownTool: the oracle requested a capability that was never
	// registered. Contract mismatch; terminal.
	KindUnknownTool ErrKind = "unknown_tool"

	// KindInvalidArguments: arguments do not conform to the declared
	// parameter schema. Contract mismatch; terminal.
	KindInvalidArguments ErrKind = "invalid_arguments"

	// KindGuardrailBlocked: the guardrail pipeline rejected the arguments.
	// Policy violation; terminal and non-retriable.
	KindGuardrailBlocked ErrKind = "guardrail_blocked"

	// KindUnsafeQuery: the SQL firewall rejected the query. Policy
	// violation; terminal and non-retriable.
	KindUnsafeQuery ErrKind = "unsafe_query"

	// KindExecution: the handler itself failed or timed out. Treated as
	// transient; fed back to the oracle as an observation.
	KindExecution ErrKind = "execution_error"
)

// Error is a classified dispatch failure. Msg is safe to surface; the
// wrapped cause is for logs and never reaches the caller verbatim when the
// kind is a policy violation.
type Error struct {
	Kind  ErrKind
	Msg   string
	cause error
}

// NewError creates a classified error wrapping an optional cause.
func NewError(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// Error implements error.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("tool: %s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("tool: %s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// Retriable reports whether the loop may feed this failure back to the
// oracle instead of terminating the run.
func (e *Error) Retriable() bool { return e.Kind == KindExecution }
