// Package guardrail implements the ordered content-check pipeline that gates
// every boundary of a run: the inbound request, tool arguments about to be
// dispatched, and outbound answers. Checks are independent and polymorphic;
// the pipeline short-circuits on the first violation so evaluation order is
// deterministic and cheap checks can be placed first.
package guardrail

import "encoding/json"

// Mode identifies which boundary a piece of content is crossing.
type Mode string

// Mode constants for pipeline evaluation.
const (
	ModeInput      Mode = "input"
	ModeParameters Mode = "parameters"
	ModeOutput     Mode = "output"
)

// Rule identifies the policy a check enforces.
type Rule string

// Rule constants for check classification.
const (
	RuleLengthLimit     Rule = "length_limit"
	RuleSensitiveData   Rule = "sensitive_data"
	RulePromptInjection Rule = "prompt_injection"
	RuleTone            Rule = "tone"
	RuleToolSchema      Rule = "tool_schema"
)

// Content is the unit of evaluation. Text carries free-form content for
// input and output modes. Tool and Args are set only in parameters mode.
type Content struct {
	Mode Mode
	Text string
	Tool string
	Args json.RawMessage
}

// Violation describes why a check rejected content. Excerpt is already
// redacted and safe to surface in audit trails; the raw content never is.
type Violation struct {
	Rule    Rule
	Detail  string
	Excerpt string
}

// Verdict is the aggregated result of one pipeline evaluation.
type Verdict struct {
	Passed    bool
	Violation *Violation
}

// Message returns a user-safe description of the verdict. It names the
// violated rule but never echoes the offending content.
func (v Verdict) Message() string {
	if v.Passed {
		return "passed"
	}
	return "request blocked by content policy: " + string(v.Violation.Rule)
}

// Check is the extension point for pipeline policies. Classify returns nil
// when the content is acceptable. Implementations must be safe for
// concurrent use: one pipeline is shared by all in-flight runs.
type Check interface {
	// Rule returns the policy this check enforces.
	Rule() Rule

	// Modes returns the boundaries this check applies to. Content in
	// other modes bypasses the check.
	Modes() []Mode

	// Classify inspects content and returns a violation, or nil.
	Classify(content Content) *Violation
}
