package agent

import "time"

// Default values for LoopConfig.
const (
	DefaultMaxSteps      = 10
	DefaultOracleTimeout = 60 * time.Second
)

// LoopConfig controls the behavior of the orchestration loop.
type LoopConfig struct {
	// MaxSteps is the planning-cycle budget: the maximum number of oracle
	// decisions acted upon per Run. When it runs out the Run is sealed
	// as exhausted and no further dispatch occurs.
	MaxSteps int

	// OracleTimeout bounds each individual oracle decision.
	OracleTimeout time.Duration

	// OracleRetries is how many times a failed oracle decision is retried
	// before the Run is sealed as failed. Zero means no retry.
	OracleRetries int

	// ExemptToolErrorsFromBudget controls whether a planning cycle that
	// ended in a retriable tool error consumes the step budget. By default
	// such cycles count; when set, up to ToolErrorRetryQuota of them are
	// free, keeping transient backend faults from starving the Run.
	ExemptToolErrorsFromBudget bool

	// ToolErrorRetryQuota caps the free cycles granted when
	// ExemptToolErrorsFromBudget is set.
	ToolErrorRetryQuota int
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = DefaultOracleTimeout
	}
	return c
}
