// Package chart renders surveillance series as PNG artifacts and computes
// the textual summaries the oracle reasons over in place of the image.
package chart

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
)

// Point is one labeled observation in a series.
type Point struct {
	Label string
	Value float64
}

// ErrNotEnoughData is returned when a series is too short to render.
var ErrNotEnoughData = fmt.Errorf("chart: need at least two data points")

// RenderLine draws a continuous line chart over the series, labels in
// series order.
func RenderLine(title string, points []Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughData
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 450,
		XAxis: chart.XAxis{
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					i := int(f)
					if i >= 0 && i < len(points) && f == float64(i) {
						return points[i].Label
					}
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{XValues: xs, YValues: ys},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart: render line: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBars draws a bar chart, one bar per point.
func RenderBars(title string, points []Point) ([]byte, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughData
	}

	bars := make([]chart.Value, len(points))
	for i, p := range points {
		bars[i] = chart.Value{Label: p.Label, Value: p.Value}
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    900,
		Height:   450,
		BarWidth: 40,
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart: render bars: %w", err)
	}
	return buf.Bytes(), nil
}

// Summary is the statistical digest of a series.
type Summary struct {
	Points int     `json:"points"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	First  Point   `json:"first"`
	Last   Point   `json:"last"`
}

// Summarize computes the digest of a non-empty series.
func Summarize(points []Point) Summary {
	s := Summary{
		Points: len(points),
		First:  points[0],
		Last:   points[len(points)-1],
		Min:    points[0].Value,
		Max:    points[0].Value,
	}
	for _, p := range points {
		s.Total += p.Value
		if p.Value < s.Min {
			s.Min = p.Value
		}
		if p.Value > s.Max {
			s.Max = p.Value
		}
	}
	s.Mean = s.Total / float64(len(points))
	return s
}

// Text renders the summary for an observation.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d points from %s to %s. ", s.Points, s.First.Label, s.Last.Label)
	fmt.Fprintf(&b, "Total %.0f, mean %.1f, min %.0f, max %.0f. ", s.Total, s.Mean, s.Min, s.Max)
	fmt.Fprintf(&b, "Latest value %.0f at %s.", s.Last.Value, s.Last.Label)
	return b.String()
}
