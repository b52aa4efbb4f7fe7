// Package tooltest provides test doubles for the tool package.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vigil-agent/vigil/internal/tool"
)

// MockTool is a configurable test double for tool.Tool.
// Set ExecuteFunc to control behavior; when unset, Execute returns
// a fixed successful output. All methods are safe for concurrent use.
type MockTool struct {
	ToolName    string
	Desc        string
	ParamList   []tool.Param
	ExecuteFunc func(ctx context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error)

	mu           sync.Mutex
	ExecuteCalls int
	LastArgs     json.RawMessage
	LastEnv      tool.ExecContext
}

// Name implements tool.Tool.
func (m *MockTool) Name() string { return m.ToolName }

// Description implements tool.Tool.
func (m *MockTool) Description() string {
	if m.Desc == "" {
		return "mock tool"
	}
	return m.Desc
}

// Params implements tool.Tool.
func (m *MockTool) Params() []tool.Param { return m.ParamList }

// Execute implements tool.Tool and tracks invocations.
func (m *MockTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error) {
	m.mu.Lock()
	m.ExecuteCalls++
	m.LastArgs = args
	m.LastEnv = env
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args, env)
	}
	return tool.Output{Observation: "ok"}, nil
}

// Calls returns the number of Execute invocations.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCalls
}

// Interface guard.
var _ tool.Tool = (*MockTool)(nil)
