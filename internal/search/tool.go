package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-agent/vigil/internal/tool"
)

// ToolName is the registered name of the search tool.
const ToolName = "web_search"

// defaultMaxResults keeps observations small.
const defaultMaxResults = 5

// SearchTool exposes a Searcher to the agent.
type SearchTool struct {
	searcher Searcher
}

// NewSearchTool wraps a searcher.
func NewSearchTool(s Searcher) *SearchTool {
	return &SearchTool{searcher: s}
}

// Name implements tool.Tool.
func (t *SearchTool) Name() string { return ToolName }

// Description implements tool.Tool.
func (t *SearchTool) Description() string {
	return "Search the web for current news and guidance. Returns up to 5 results with title, snippet, and source URL."
}

// Params implements tool.Tool.
func (t *SearchTool) Params() []tool.Param {
	return []tool.Param{{
		Name:        "query",
		Type:        tool.TypeString,
		Description: "The search query.",
		Required:    true,
		MinLen:      3,
		MaxLen:      400,
	}}
}

// Execute implements tool.Tool.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage, _ tool.ExecContext) (tool.Output, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Output{}, fmt.Errorf("decode arguments: %w", err)
	}

	results, err := t.searcher.Search(ctx, in.Query, defaultMaxResults)
	if err != nil {
		return tool.Output{}, err
	}
	return tool.Output{
		Observation: FormatResults(results),
		Payload:     results,
	}, nil
}

// Interface guard.
var _ tool.Tool = (*SearchTool)(nil)
