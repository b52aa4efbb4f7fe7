// Package agent implements the guarded ReAct loop that turns one user
// request into a final answer through iterative oracle calls and tool
// dispatches, recording every transition as an append-only trace.
package agent

import (
	"encoding/json"
	"time"
)

// Outcome is the terminal state of a Run.
type Outcome string

// Outcome constants. Every Run ends in exactly one of these.
const (
	// OutcomeAnswer means the oracle produced a final answer that cleared
	// the output guardrails.
	OutcomeAnswer Outcome = "answer"

	// OutcomeBlocked means a guardrail or the SQL firewall rejected the
	// request, a tool's parameters, or the final answer.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeFailed means the oracle failed or a tool contract mismatch
	// (unknown tool, invalid arguments) was detected.
	OutcomeFailed Outcome = "failed"

	// OutcomeExhausted means the step budget ran out before an answer.
	OutcomeExhausted Outcome = "exhausted"
)

// StepKind identifies the kind of one trace step.
type StepKind string

// StepKind constants.
const (
	KindThought     StepKind = "thought"
	KindToolCall    StepKind = "tool_call"
	KindToolResult  StepKind = "tool_result"
	KindFinalAnswer StepKind = "final_answer"
)

// Step is one entry in a Run's trace. Ordinals are assigned by the loop and
// are strictly increasing within a Run. Steps are never mutated after they
// are appended; the trace sink receives each one as a value snapshot.
type Step struct {
	Ordinal   int       `json:"ordinal"`
	Kind      StepKind  `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Thought steps.
	Thought string `json:"thought,omitempty"`

	// ToolCall steps.
	Tool string          `json:"tool,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// ToolResult steps.
	OK          bool          `json:"ok,omitempty"`
	Observation string        `json:"observation,omitempty"`
	ErrKind     string        `json:"err_kind,omitempty"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`

	// FinalAnswer steps.
	Answer string `json:"answer,omitempty"`
}

// Run is one end-to-end execution of the loop for a single request. It is
// owned exclusively by the loop until sealed, then handed off read-only.
type Run struct {
	ID        string    `json:"id"`
	Request   string    `json:"request"`
	Steps     []Step    `json:"steps"`
	Outcome   Outcome   `json:"outcome"`
	Answer    string    `json:"answer,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// TraceSink receives each step as it is appended, in execution order.
// Implementations must return quickly; anything slower than a bounded
// enqueue belongs behind an async emitter.
type TraceSink interface {
	Record(runID string, step Step)
}
