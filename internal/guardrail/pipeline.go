package guardrail

import "slices"

// Pipeline evaluates an ordered list of checks against content.
// Registration order is evaluation order; the first violating check
// determines the verdict and no later check runs.
//
// The check list is fixed after construction, so Evaluate is safe for
// unsynchronized concurrent use across runs.
type Pipeline struct {
	checks []Check
}

// NewPipeline creates a pipeline that runs checks in the given order.
func NewPipeline(checks ...Check) *Pipeline {
	return &Pipeline{checks: slices.Clone(checks)}
}

// Evaluate runs every applicable check in order and returns the aggregated
// verdict. It computes the verdict only; halting on failure is the caller's
// responsibility.
func (p *Pipeline) Evaluate(content Content) Verdict {
	for _, c := range p.checks {
		if !slices.Contains(c.Modes(), content.Mode) {
			continue
		}
		if v := c.Classify(content); v != nil {
			return Verdict{Passed: false, Violation: v}
		}
	}
	return Verdict{Passed: true}
}
