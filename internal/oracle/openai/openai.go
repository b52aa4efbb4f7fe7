// Package openai implements the reasoning oracle on the OpenAI
// chat-completions API with function calling.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vigil-agent/vigil/internal/oracle"
)

// maxResponseSize bounds API response bodies read into memory.
const maxResponseSize = 10 * 1024 * 1024

// Client is the OpenAI-backed oracle.
type Client struct {
	config Config
	client *http.Client
}

// New creates a Client with defaults applied.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Decide implements oracle.Oracle. The accumulated history is replayed as
// a chat transcript and the model's reply is mapped to exactly one action.
func (c *Client) Decide(ctx context.Context, state oracle.State) (oracle.Action, error) {
	payload := c.buildRequest(state)

	body, status, err := c.doPost(ctx, "/chat/completions", payload)
	if err != nil {
		return oracle.Action{}, err
	}
	if status != http.StatusOK {
		return oracle.Action{}, fmt.Errorf("%w: status %d: %s",
			oracle.ErrDecisionFailed, status, truncate(body, 300))
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return oracle.Action{}, fmt.Errorf("%w: unmarshal response: %w", oracle.ErrMalformedAction, err)
	}
	return actionFromResponse(&resp)
}

func (c *Client) buildRequest(state oracle.State) chatRequest {
	messages := make([]chatMessage, 0, len(state.History)+2)
	if state.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: state.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: state.Request})

	// Tool observations are replayed as user turns; the transcript is
	// rebuilt from scratch each cycle, so call ids are not preserved.
	for _, ex := range state.History {
		switch ex.Role {
		case oracle.RoleAssistant:
			messages = append(messages, chatMessage{Role: "assistant", Content: ex.Content})
		case oracle.RoleTool:
			messages = append(messages, chatMessage{
				Role:    "user",
				Content: fmt.Sprintf("Observation from %s:\n%s", ex.Tool, ex.Content),
			})
		case oracle.RoleUser:
			messages = append(messages, chatMessage{Role: "user", Content: ex.Content})
		}
	}

	req := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	for _, def := range state.Tools {
		req.Tools = append(req.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema,
			},
		})
	}
	return req
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", oracle.ErrDecisionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("openai: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Interface guard.
var _ oracle.Oracle = (*Client)(nil)
