package guardrail

import (
	"strings"
	"testing"
)

// countingCheck records how many times it was classified.
type countingCheck struct {
	rule   Rule
	modes  []Mode
	reject bool
	calls  int
}

func (c *countingCheck) Rule() Rule    { return c.rule }
func (c *countingCheck) Modes() []Mode { return c.modes }
func (c *countingCheck) Classify(Content) *Violation {
	c.calls++
	if c.reject {
		return &Violation{Rule: c.rule, Detail: "rejected"}
	}
	return nil
}

func TestPipelineEvaluate_AllPass(t *testing.T) {
	t.Parallel()

	a := &countingCheck{rule: "a", modes: []Mode{ModeInput}}
	b := &countingCheck{rule: "b", modes: []Mode{ModeInput}}
	p := NewPipeline(a, b)

	verdict := p.Evaluate(Content{Mode: ModeInput, Text: "hello"})
	if !verdict.Passed {
		t.Fatalf("expected pass, got violation %+v", verdict.Violation)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("expected both checks to run once, got %d and %d", a.calls, b.calls)
	}
}

func TestPipelineEvaluate_FailFast(t *testing.T) {
	t.Parallel()

	first := &countingCheck{rule: "first", modes: []Mode{ModeInput}, reject: true}
	second := &countingCheck{rule: "second", modes: []Mode{ModeInput}, reject: true}
	p := NewPipeline(first, second)

	verdict := p.Evaluate(Content{Mode: ModeInput, Text: "hello"})
	if verdict.Passed {
		t.Fatal("expected violation")
	}
	if verdict.Violation.Rule != "first" {
		t.Fatalf("expected first check to determine verdict, got %s", verdict.Violation.Rule)
	}
	if second.calls != 0 {
		t.Fatalf("expected second check to be skipped, ran %d times", second.calls)
	}
}

func TestPipelineEvaluate_ModeFiltering(t *testing.T) {
	t.Parallel()

	inputOnly := &countingCheck{rule: "input_only", modes: []Mode{ModeInput}, reject: true}
	p := NewPipeline(inputOnly)

	verdict := p.Evaluate(Content{Mode: ModeOutput, Text: "anything"})
	if !verdict.Passed {
		t.Fatal("check outside its mode must not run")
	}
	if inputOnly.calls != 0 {
		t.Fatalf("expected 0 calls, got %d", inputOnly.calls)
	}
}

func TestVerdictMessage_NeverEchoesContent(t *testing.T) {
	t.Parallel()

	p := NewPipeline(NewSensitiveDataCheck())
	secret := "111.222.333-44"
	verdict := p.Evaluate(Content{Mode: ModeInput, Text: "my cpf is " + secret})
	if verdict.Passed {
		t.Fatal("expected violation")
	}
	msg := verdict.Message()
	if msg == "" || msg == "passed" {
		t.Fatalf("unexpected message %q", msg)
	}
	if strings.Contains(msg, secret) {
		t.Fatal("message must not echo blocked content")
	}
	if strings.Contains(verdict.Violation.Excerpt, secret) {
		t.Fatal("excerpt must be redacted")
	}
}
