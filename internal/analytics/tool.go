package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vigil-agent/vigil/internal/tool"
)

// Tool names registered by this package.
const (
	StatsToolName  = "srag_stats"
	SchemaToolName = "srag_schema"

	// QueryParam is the stats tool's SQL parameter; the dispatcher's
	// firewall is pointed at it.
	QueryParam = "query"
)

// StatsTool runs read-only SQL against the case database and returns the
// result as a markdown table the oracle can reason over.
type StatsTool struct {
	store Querier
}

// NewStatsTool wraps a query executor.
func NewStatsTool(store Querier) *StatsTool {
	return &StatsTool{store: store}
}

// Name implements tool.Tool.
func (t *StatsTool) Name() string { return StatsToolName }

// Description implements tool.Tool.
func (t *StatsTool) Description() string {
	return "Run a read-only SQL SELECT against the SRAG surveillance case table and return the result as a markdown table. Prefer aggregate queries; results are capped at 20 rows."
}

// Params implements tool.Tool.
func (t *StatsTool) Params() []tool.Param {
	return []tool.Param{{
		Name:        QueryParam,
		Type:        tool.TypeString,
		Description: "A single SQL SELECT statement over the srag_cases table.",
		Required:    true,
		MinLen:      8,
	}}
}

// Execute implements tool.Tool.
func (t *StatsTool) Execute(ctx context.Context, args json.RawMessage, _ tool.ExecContext) (tool.Output, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Output{}, fmt.Errorf("decode arguments: %w", err)
	}

	table, err := t.store.Query(ctx, in.Query)
	if err != nil {
		return tool.Output{}, err
	}

	obs := table.Markdown()
	if table.Truncated {
		obs += fmt.Sprintf("\n\n(result truncated to the first %d rows; use aggregates or LIMIT for complete answers)", len(table.Rows))
	}
	return tool.Output{Observation: obs, Payload: table}, nil
}

// Describer introspects one table. CaseStore implements it.
type Describer interface {
	DescribeTable(ctx context.Context, table string) ([]ColumnInfo, error)
}

// SchemaTool describes the case table's columns and typical values so the
// oracle can write correct filters.
type SchemaTool struct {
	store Describer
	table string
}

// NewSchemaTool binds the tool to one table.
func NewSchemaTool(store Describer, table string) *SchemaTool {
	return &SchemaTool{store: store, table: table}
}

// Name implements tool.Tool.
func (t *SchemaTool) Name() string { return SchemaToolName }

// Description implements tool.Tool.
func (t *SchemaTool) Description() string {
	return "Describe the SRAG case table: column names, types, and the most common values per column."
}

// Params implements tool.Tool.
func (t *SchemaTool) Params() []tool.Param { return nil }

// Execute implements tool.Tool.
func (t *SchemaTool) Execute(ctx context.Context, _ json.RawMessage, _ tool.ExecContext) (tool.Output, error) {
	cols, err := t.store.DescribeTable(ctx, t.table)
	if err != nil {
		return tool.Output{}, err
	}
	return tool.Output{
		Observation: SchemaMarkdown(t.table, cols),
		Payload:     cols,
	}, nil
}

// Interface guards.
var (
	_ tool.Tool = (*StatsTool)(nil)
	_ tool.Tool = (*SchemaTool)(nil)
)
