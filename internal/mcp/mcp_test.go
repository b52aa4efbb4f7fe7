package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/vigil-agent/vigil/internal/guardrail"
	"github.com/vigil-agent/vigil/internal/sqlguard"
	"github.com/vigil-agent/vigil/internal/tool"
)

type echoTool struct {
	name   string
	params []tool.Param
	calls  int
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes its query argument" }
func (t *echoTool) Params() []tool.Param {
	return t.params
}

func (t *echoTool) Execute(_ context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error) {
	t.calls++
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Output{}, err
	}
	return tool.Output{Observation: "echo: " + in.Query}, nil
}

func newTestServer(t *testing.T) (*Server, *echoTool) {
	t.Helper()

	echo := &echoTool{
		name: "srag_stats",
		params: []tool.Param{
			{Name: "query", Type: tool.TypeString, Required: true, MinLen: 8},
		},
	}

	reg := tool.NewRegistry()
	if err := reg.Register(echo); err != nil {
		t.Fatalf("register: %v", err)
	}

	pipeline := guardrail.NewPipeline(guardrail.NewInjectionCheck())
	disp := tool.NewDispatcher(tool.DispatcherConfig{
		Registry:     reg,
		Guards:       pipeline,
		SQLValidator: sqlguard.NewValidator([]string{"srag_cases"}),
		SQLTool:      "srag_stats",
		SQLParam:     "query",
	})

	return New(reg, disp, "test", slog.New(slog.DiscardHandler)), echo
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textOf(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		t.Fatal("result has no text content")
	}
	return strings.Join(parts, "\n")
}

func TestCallHandler_RoutesThroughDispatcher(t *testing.T) {
	t.Parallel()

	s, echo := newTestServer(t)
	handler := s.callHandler("srag_stats")

	result, err := handler(context.Background(), callRequest("srag_stats", map[string]any{
		"query": "SELECT COUNT(*) FROM srag_cases",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true: %s", textOf(t, result))
	}
	if got := textOf(t, result); !strings.Contains(got, "echo: SELECT COUNT(*)") {
		t.Errorf("text = %q", got)
	}
	if echo.calls != 1 {
		t.Errorf("calls = %d, want 1", echo.calls)
	}
}

func TestCallHandler_FirewallStillApplies(t *testing.T) {
	t.Parallel()

	s, echo := newTestServer(t)
	handler := s.callHandler("srag_stats")

	result, err := handler(context.Background(), callRequest("srag_stats", map[string]any{
		"query": "DROP TABLE srag_cases",
	}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("IsError = false, want firewall rejection")
	}
	if got := textOf(t, result); !strings.Contains(got, string(tool.KindUnsafeQuery)) {
		t.Errorf("text = %q, want unsafe_query classification", got)
	}
	if echo.calls != 0 {
		t.Errorf("handler executed %d times despite rejection", echo.calls)
	}
}

func TestCallHandler_InvalidArguments(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	handler := s.callHandler("srag_stats")

	result, err := handler(context.Background(), callRequest("srag_stats", map[string]any{}))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("IsError = false, want validation rejection")
	}
	if got := textOf(t, result); !strings.Contains(got, string(tool.KindInvalidArguments)) {
		t.Errorf("text = %q", got)
	}
}

func TestCatalogResource(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)

	contents, err := s.handleCatalog(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "vigil://tools/catalog"},
	})
	if err != nil {
		t.Fatalf("handleCatalog: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	text, ok := contents[0].(mcplib.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T", contents[0])
	}
	if !strings.Contains(text.Text, `"srag_stats"`) {
		t.Errorf("catalog missing tool: %s", text.Text)
	}

	var defs []tool.Definition
	if err := json.Unmarshal([]byte(text.Text), &defs); err != nil {
		t.Fatalf("catalog is not valid JSON: %v", err)
	}
}
