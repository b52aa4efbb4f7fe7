package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vigil-agent/vigil/internal/analytics"
	"github.com/vigil-agent/vigil/internal/artifact"
	"github.com/vigil-agent/vigil/internal/tool"
)

// PlotToolName is the registered name of the visualization tool.
const PlotToolName = "srag_plot"

// Kinds the plot tool can render.
const (
	KindTrend30d   = "trend_30d"
	KindHistory12m = "history_12m"
)

const (
	trendQuery = `SELECT date(notification_date) AS day, COUNT(*) AS cases
FROM srag_cases
WHERE notification_date >= date('now', '-30 day')
GROUP BY day
ORDER BY day`

	historyQuery = `SELECT strftime('%Y-%m', notification_date) AS month, COUNT(*) AS cases
FROM srag_cases
WHERE notification_date >= date('now', '-12 month')
GROUP BY month
ORDER BY month`
)

// SeriesQuerier fetches chart series with an explicit row cap, past the
// small oracle-facing default. analytics.CaseStore implements it.
type SeriesQuerier interface {
	QueryN(ctx context.Context, query string, maxRows int) (analytics.Table, error)
}

// seriesLimit comfortably covers a year of monthly buckets or a month of
// daily ones.
const seriesLimit = 400

// PlotTool renders a case-count series to the artifact store and returns
// both a statistical summary and the artifact reference, so the oracle can
// describe the chart and cite it without perceiving the image.
type PlotTool struct {
	store     SeriesQuerier
	artifacts artifact.Store
}

// NewPlotTool wraps a query executor and an artifact store.
func NewPlotTool(store SeriesQuerier, artifacts artifact.Store) *PlotTool {
	return &PlotTool{store: store, artifacts: artifacts}
}

// Name implements tool.Tool.
func (t *PlotTool) Name() string { return PlotToolName }

// Description implements tool.Tool.
func (t *PlotTool) Description() string {
	return "Render a chart of SRAG case counts: trend_30d (daily line, last 30 days) or history_12m (monthly bars, last 12 months). Returns a statistical summary and the saved chart's reference."
}

// Params implements tool.Tool.
func (t *PlotTool) Params() []tool.Param {
	return []tool.Param{{
		Name:        "kind",
		Type:        tool.TypeString,
		Description: "Which chart to render.",
		Required:    true,
		Enum:        []string{KindTrend30d, KindHistory12m},
	}}
}

// Execute implements tool.Tool.
func (t *PlotTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecContext) (tool.Output, error) {
	var in struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return tool.Output{}, fmt.Errorf("decode arguments: %w", err)
	}

	var (
		query string
		title string
	)
	switch in.Kind {
	case KindTrend30d:
		query, title = trendQuery, "SRAG cases, last 30 days"
	case KindHistory12m:
		query, title = historyQuery, "SRAG cases, last 12 months"
	default:
		return tool.Output{}, fmt.Errorf("unknown chart kind %q", in.Kind)
	}

	table, err := t.store.QueryN(ctx, query, seriesLimit)
	if err != nil {
		return tool.Output{}, err
	}
	points, err := pointsFromTable(table)
	if err != nil {
		return tool.Output{}, err
	}

	var png []byte
	if in.Kind == KindTrend30d {
		png, err = RenderLine(title, points)
	} else {
		png, err = RenderBars(title, points)
	}
	if err != nil {
		return tool.Output{}, err
	}

	id := artifact.ID(env.RunID, env.Step, in.Kind, "png")
	ref, err := t.artifacts.Write(id, png)
	if err != nil {
		return tool.Output{}, err
	}

	summary := Summarize(points)
	return tool.Output{
		Observation: summary.Text() + fmt.Sprintf(" Chart saved as %s.", ref),
		Payload:     summary,
		ArtifactRef: ref,
	}, nil
}

// pointsFromTable expects a two-column label/count result.
func pointsFromTable(table analytics.Table) ([]Point, error) {
	if len(table.Columns) != 2 {
		return nil, fmt.Errorf("chart: expected 2 columns, got %d", len(table.Columns))
	}
	points := make([]Point, 0, len(table.Rows))
	for _, row := range table.Rows {
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("chart: non-numeric count %q: %w", row[1], err)
		}
		points = append(points, Point{Label: row[0], Value: v})
	}
	if len(points) < 2 {
		return nil, ErrNotEnoughData
	}
	return points, nil
}

// Interface guard.
var _ tool.Tool = (*PlotTool)(nil)
