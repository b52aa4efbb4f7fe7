// Package oracle defines the interface to the external reasoning process
// that drives the orchestration loop. Concrete implementations live in
// separate packages (e.g., oracle.openai) and are injected; the loop and
// its tests only depend on the interface here.
package oracle

import (
	"context"
	"encoding/json"

	"github.com/vigil-agent/vigil/internal/tool"
)

// Role identifies the author of an Exchange entry.
type Role string

// Role constants for the conversation carried in State.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Exchange is one entry in the conversation presented to the oracle.
// Tool observations carry the originating tool name.
type Exchange struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Tool    string `json:"tool,omitempty"`
}

// State is everything the oracle sees when deciding the next action: the
// original request, the accumulated conversation, and the tool surface it
// may draw from. The loop builds a fresh State per planning cycle; the
// oracle must not retain or mutate it.
type State struct {
	Request      string
	SystemPrompt string
	History      []Exchange
	Tools        []tool.Definition
}

// ActionKind discriminates the two shapes of a Decision.
type ActionKind string

// ActionKind constants.
const (
	ActionToolCall    ActionKind = "tool_call"
	ActionFinalAnswer ActionKind = "final_answer"
)

// Action is the oracle's proposed next step: either one tool invocation or
// the final answer text. Exactly one shape is populated, per Kind. Thought
// carries optional reasoning text the model emitted alongside the action.
type Action struct {
	Kind    ActionKind
	Tool    string
	Args    json.RawMessage
	Answer  string
	Thought string
}

// Oracle proposes the next action given the current conversation state.
// Decide may block on network I/O and must honor ctx cancellation.
type Oracle interface {
	Decide(ctx context.Context, state State) (Action, error)
}
