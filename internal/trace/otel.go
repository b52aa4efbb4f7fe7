package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/vigil-agent/vigil/internal/agent"
)

// SpanSink mirrors each trace record as an OpenTelemetry span so runs can
// be inspected alongside the rest of the service's traces.
type SpanSink struct {
	tracer oteltrace.Tracer
}

// NewSpanSink wraps a tracer.
func NewSpanSink(tracer oteltrace.Tracer) *SpanSink {
	return &SpanSink{tracer: tracer}
}

// Write implements Sink. Each step becomes a zero-duration span carrying
// the step's attributes; failed tool results are marked as errors.
func (s *SpanSink) Write(rec Record) {
	_, span := s.tracer.Start(context.Background(), "agent.step",
		oteltrace.WithTimestamp(rec.Step.Timestamp),
		oteltrace.WithAttributes(
			attribute.String("run.id", rec.RunID),
			attribute.Int("step.ordinal", rec.Step.Ordinal),
			attribute.String("step.kind", string(rec.Step.Kind)),
		),
	)
	if rec.Step.Tool != "" {
		span.SetAttributes(attribute.String("step.tool", rec.Step.Tool))
	}
	if rec.Step.Kind == agent.KindToolResult {
		span.SetAttributes(attribute.Bool("step.ok", rec.Step.OK))
		if !rec.Step.OK {
			span.SetStatus(codes.Error, rec.Step.ErrKind)
		}
	}
	if rec.Step.ArtifactRef != "" {
		span.SetAttributes(attribute.String("step.artifact_ref", rec.Step.ArtifactRef))
	}
	span.End(oteltrace.WithTimestamp(rec.Step.Timestamp.Add(rec.Step.Duration)))
}

// Interface guard.
var _ Sink = (*SpanSink)(nil)
