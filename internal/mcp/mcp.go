// Package mcp exposes the registered tools over the Model Context Protocol,
// so MCP-compatible clients can query the surveillance data through the same
// gate sequence the agent loop uses. Every call is routed through the
// dispatcher; the guardrail pipeline and the SQL firewall apply unchanged.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/vigil-agent/vigil/internal/tool"
)

// Server wraps the mcp-go server around the tool registry and dispatcher.
type Server struct {
	mcpServer  *mcpserver.MCPServer
	dispatcher *tool.Dispatcher
	registry   *tool.Registry
	logger     *slog.Logger
}

// New creates an MCP server exposing every tool in the registry.
func New(registry *tool.Registry, dispatcher *tool.Dispatcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"vigil",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// HTTPHandler returns the StreamableHTTP transport for mounting on a mux.
func (s *Server) HTTPHandler() *mcpserver.StreamableHTTPServer {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

func (s *Server) registerResources() {
	// vigil://tools/catalog lists every tool with its parameter schema.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"vigil://tools/catalog",
			"Tool Catalog",
			mcplib.WithResourceDescription("Registered tools with their JSON parameter schemas"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalog,
	)
}

func (s *Server) registerTools() {
	// The registry generates the same JSON Schema the dispatcher validates
	// against, so the MCP advertisement can never drift from enforcement.
	for _, def := range s.registry.Definitions() {
		t := mcplib.NewToolWithRawSchema(def.Name, def.Description, def.Schema)
		s.mcpServer.AddTool(t, s.callHandler(def.Name))
	}
}

func (s *Server) handleCatalog(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.registry.Definitions(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalog: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// callHandler adapts one registered tool into an MCP tool handler. A failed
// dispatch is reported as a tool error result, not a protocol error, so the
// client sees the classification message.
func (s *Server) callHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		// Each MCP call is a standalone single-step run.
		env := tool.ExecContext{
			RunID:  "mcp-" + uuid.NewString(),
			Step:   1,
			Logger: s.logger,
		}
		res := s.dispatcher.Dispatch(ctx, tool.Call{Tool: name, Args: args}, env)

		s.logger.Info("mcp tool call",
			"tool", name,
			"run_id", env.RunID,
			"ok", res.OK,
			"duration", res.Duration,
		)

		if !res.OK {
			return errorResult(fmt.Sprintf("%s: %s", res.Err.Kind, res.Err.Msg)), nil
		}

		content := []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: res.Output.Observation},
		}
		if res.Output.ArtifactRef != "" {
			content = append(content, mcplib.TextContent{
				Type: "text",
				Text: "artifact: " + res.Output.ArtifactRef,
			})
		}
		return &mcplib.CallToolResult{Content: content}, nil
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
