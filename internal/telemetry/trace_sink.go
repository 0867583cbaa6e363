package telemetry

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"genalg/internal/evo"
	"genalg/internal/model"
)

const tracerName = "genalg/internal/telemetry"

// TraceSink records one span per generation with an event per phase and the
// statistics snapshot as span attributes.
type TraceSink struct {
	tracer trace.Tracer
	span   trace.Span
}

// NewTraceSink uses tp, or the global provider when tp is nil.
func NewTraceSink(tp trace.TracerProvider) *TraceSink {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TraceSink{tracer: tp.Tracer(tracerName)}
}

func (s *TraceSink) OnGenerationStart(ctx context.Context, ev evo.GenerationStart) {
	s.endSpan()
	_, s.span = s.tracer.Start(ctx, "genalg.generation", trace.WithAttributes(
		attribute.Int("genalg.step", ev.Step),
		attribute.Int("genalg.population_size", ev.PopulationSize),
	))
}

func (s *TraceSink) OnSelection(_ context.Context, ev evo.PhaseEvent) {
	s.addPhase(ev)
}

func (s *TraceSink) OnVariation(_ context.Context, ev evo.PhaseEvent) {
	s.addPhase(ev)
}

func (s *TraceSink) OnStatistics(_ context.Context, stats model.Statistics) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.Float64("genalg.current_max", stats.CurrentMax),
		attribute.Float64("genalg.current_min", stats.CurrentMin),
		attribute.Float64("genalg.current_mean", stats.CurrentMean),
		attribute.Float64("genalg.total_max", stats.TotalMax),
		attribute.Int("genalg.mutations", stats.Mutations),
		attribute.Int("genalg.crossovers", stats.Crossovers),
		attribute.Int("genalg.total_mutations", stats.TotalMutations),
		attribute.Int("genalg.total_crossovers", stats.TotalCrossovers),
		attribute.Int("genalg.improvements_through_crossover", stats.ImprovementsThroughCrossover),
		attribute.Int("genalg.improvements_through_mutation", stats.ImprovementsThroughMutation),
		attribute.Int("genalg.improvements_through_both", stats.ImprovementsThroughBoth),
	)
	// TotalMin stays +Inf until a generation has been evaluated.
	if !math.IsInf(stats.TotalMin, 1) {
		s.span.SetAttributes(attribute.Float64("genalg.total_min", stats.TotalMin))
	}
}

func (s *TraceSink) OnGenerationEnd(_ context.Context, _ evo.GenerationEnd) {
	s.endSpan()
}

func (s *TraceSink) OnGenerationError(_ context.Context, ev evo.GenerationError) {
	if s.span == nil {
		return
	}
	s.span.RecordError(ev.Err, trace.WithAttributes(attribute.String("genalg.phase", string(ev.Phase))))
	s.span.SetStatus(codes.Error, ev.Err.Error())
	s.endSpan()
}

func (s *TraceSink) addPhase(ev evo.PhaseEvent) {
	if s.span == nil {
		return
	}
	s.span.AddEvent(string(ev.Phase), trace.WithAttributes(attribute.Int("genalg.step", ev.Step)))
}

func (s *TraceSink) endSpan() {
	if s.span == nil {
		return
	}
	s.span.End()
	s.span = nil
}
