package openai

import (
	"encoding/json"
	"fmt"

	"github.com/vigil-agent/vigil/internal/oracle"
)

// Wire types for the chat-completions API.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type responseToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string             `json:"content"`
			ToolCalls []responseToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// actionFromResponse maps one completion to exactly one action. A tool call
// wins over content; content alongside a call becomes the thought.
func actionFromResponse(resp *chatResponse) (oracle.Action, error) {
	if len(resp.Choices) == 0 {
		return oracle.Action{}, fmt.Errorf("%w: response has no choices", oracle.ErrMalformedAction)
	}
	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		if call.Function.Name == "" {
			return oracle.Action{}, fmt.Errorf("%w: tool call without a name", oracle.ErrMalformedAction)
		}
		args := call.Function.Arguments
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return oracle.Action{}, fmt.Errorf("%w: tool call arguments are not valid JSON", oracle.ErrMalformedAction)
		}
		return oracle.Action{
			Kind:    oracle.ActionToolCall,
			Tool:    call.Function.Name,
			Args:    json.RawMessage(args),
			Thought: msg.Content,
		}, nil
	}

	if msg.Content == "" {
		return oracle.Action{}, fmt.Errorf("%w: empty completion", oracle.ErrMalformedAction)
	}
	return oracle.Action{
		Kind:   oracle.ActionFinalAnswer,
		Answer: msg.Content,
	}, nil
}
