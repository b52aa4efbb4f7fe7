// Package oracletest provides deterministic test doubles for the oracle
// package.
package oracletest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vigil-agent/vigil/internal/oracle"
)

// Scripted replays a fixed sequence of actions, one per Decide call.
// When the script runs out it keeps returning the last action, so a
// budget-exhaustion scenario can loop on a single scripted tool call.
// All methods are safe for concurrent use.
type Scripted struct {
	mu      sync.Mutex
	script  []step
	cursor  int
	calls   int
	history []oracle.State
}

type step struct {
	action oracle.Action
	err    error
}

// NewScripted creates an empty script. Chain Tool / Answer / Fail calls to
// populate it.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Tool appends a tool-call action to the script.
func (s *Scripted) Tool(name string, args string) *Scripted {
	s.script = append(s.script, step{action: oracle.Action{
		Kind: oracle.ActionToolCall,
		Tool: name,
		Args: json.RawMessage(args),
	}})
	return s
}

// Answer appends a final-answer action to the script.
func (s *Scripted) Answer(text string) *Scripted {
	s.script = append(s.script, step{action: oracle.Action{
		Kind:   oracle.ActionFinalAnswer,
		Answer: text,
	}})
	return s
}

// Fail appends a decision error to the script.
func (s *Scripted) Fail(err error) *Scripted {
	s.script = append(s.script, step{err: err})
	return s
}

// Decide returns the next scripted action. An empty script panics, which
// surfaces the test bug immediately.
func (s *Scripted) Decide(_ context.Context, state oracle.State) (oracle.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.script) == 0 {
		panic("oracletest: Decide called on an empty script")
	}
	s.calls++
	s.history = append(s.history, state)

	st := s.script[s.cursor]
	if s.cursor < len(s.script)-1 {
		s.cursor++
	}
	return st.action, st.err
}

// Calls reports how many times Decide was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StateAt returns the State passed to the i-th Decide call.
func (s *Scripted) StateAt(i int) oracle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[i]
}

// Interface guard.
var _ oracle.Oracle = (*Scripted)(nil)
