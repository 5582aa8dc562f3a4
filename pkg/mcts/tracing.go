package mcts

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Goer17/InnoTree/pkg/utils"
)

const tracerName = "github.com/Goer17/InnoTree/pkg/mcts"

// tracer wraps the otel tracer used for run, trial and rollout spans. The
// global provider is a no-op unless telemetry.Setup installed one.
type tracer struct {
	t trace.Tracer
}

func newTracer(provider trace.TracerProvider) *tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &tracer{t: provider.Tracer(tracerName)}
}

func (t *tracer) startRun(ctx context.Context, cfg Config) (context.Context, trace.Span) {
	return t.t.Start(ctx, "mcts.run",
		trace.WithAttributes(
			attribute.String("mcts.topic", utils.Truncate(cfg.Topic, 100)),
			attribute.String("mcts.policy", string(cfg.Policy)),
			attribute.Int("mcts.trials", cfg.Trials),
			attribute.Int("mcts.rollouts", cfg.Rollouts),
			attribute.Int("mcts.expand", cfg.Expand),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracer) startTrial(ctx context.Context, trial int) (context.Context, trace.Span) {
	return t.t.Start(ctx, "mcts.trial", trace.WithAttributes(attribute.Int("mcts.trial", trial)))
}

func (t *tracer) startRollout(ctx context.Context, depth int) (context.Context, trace.Span) {
	return t.t.Start(ctx, "mcts.rollout", trace.WithAttributes(attribute.Int("mcts.chain_length", depth)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
