// Package tool defines the typed tool contract, the registry, and the
// dispatcher that gates every capability the reasoning oracle can invoke.
// Tools are the security boundary of a run: no handler executes without
// argument validation, guardrail screening, and (for the analytical tool)
// SQL firewall approval.
package tool

import (
	"context"
	"encoding/json"
	"log/slog"
)

// ParamType is the declared type of one tool parameter.
type ParamType string

// ParamType constants.
const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param declares one field of a tool's parameter schema, with constraints.
// The oracle-facing JSON Schema is generated from the same declaration the
// dispatcher validates against, so the two can never drift apart.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool

	// String length constraints. Zero means unconstrained.
	MinLen, MaxLen int

	// Numeric range. Nil means unconstrained.
	Min, Max *float64

	// Enum restricts a string parameter to a fixed value set.
	Enum []string
}

// Tool is the interface all capabilities implement.
type Tool interface {
	// Name returns the unique identifier the oracle addresses this tool by.
	Name() string

	// Description returns the oracle-facing explanation of the capability.
	Description() string

	// Params returns the declared parameter schema.
	Params() []Param

	// Execute runs the tool with validated arguments. Implementations
	// should honor ctx cancellation; the dispatcher bounds execution with
	// a timeout.
	Execute(ctx context.Context, args json.RawMessage, env ExecContext) (Output, error)
}

// ExecContext carries per-run state into a handler invocation. It is built
// fresh for every dispatch so concurrent runs cannot cross-contaminate.
type ExecContext struct {
	// RunID identifies the owning run.
	RunID string

	// Step is the ordinal of the ToolCall step being executed. Combined
	// with RunID it makes artifact identifiers unique per invocation.
	Step int

	Logger *slog.Logger
}

// Output is a successful tool result.
type Output struct {
	// Observation is the text fed back to the oracle.
	Observation string

	// Payload is the tool-specific structured value.
	Payload any

	// ArtifactRef is the resolved reference of a persisted artifact, set
	// by tools with a dual-return contract.
	ArtifactRef string
}

// Definition is the oracle-facing description of one registered tool.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}
