package oracle

import "errors"

// Sentinel errors for oracle operations.
var (
	// ErrDecisionFailed indicates the oracle could not produce an action.
	ErrDecisionFailed = errors.New("oracle decision failed")

	// ErrTimeout indicates the decision did not complete within its deadline.
	ErrTimeout = errors.New("oracle decision timed out")

	// ErrMalformedAction indicates the oracle returned output that could not
	// be parsed into a tool call or a final answer.
	ErrMalformedAction = errors.New("oracle returned a malformed action")
)
