package evo

import (
	"context"

	"genalg/internal/model"
)

// Phase names the point in a generation at which an event was emitted.
type Phase string

const (
	PhaseStart      Phase = "start"
	PhaseSelection  Phase = "selection"
	PhaseVariation  Phase = "variation"
	PhaseEvaluation Phase = "evaluation"
	PhaseEnd        Phase = "end"
)

// ChromosomeSnapshot is the per-slot dump attached to events in verbose mode.
type ChromosomeSnapshot struct {
	Index   int
	ID      string
	Fitness float64
}

type GenerationStart struct {
	Step           int
	PopulationSize int
	Population     []ChromosomeSnapshot
}

type PhaseEvent struct {
	Step       int
	Phase      Phase
	Population []ChromosomeSnapshot
}

type GenerationEnd struct {
	Step       int
	Statistics model.Statistics
	Population []ChromosomeSnapshot
}

// GenerationError closes a generation that failed in Phase. No GenerationEnd
// follows it.
type GenerationError struct {
	Step  int
	Phase Phase
	Err   error
}

// ProgressSink receives structured progress events from an engine. Sinks
// decide formatting and destination; the engine never does.
type ProgressSink interface {
	OnGenerationStart(ctx context.Context, ev GenerationStart)
	OnSelection(ctx context.Context, ev PhaseEvent)
	OnVariation(ctx context.Context, ev PhaseEvent)
	OnStatistics(ctx context.Context, stats model.Statistics)
	OnGenerationEnd(ctx context.Context, ev GenerationEnd)
	OnGenerationError(ctx context.Context, ev GenerationError)
}

// NoopSink ignores every event.
type NoopSink struct{}

func (NoopSink) OnGenerationStart(context.Context, GenerationStart) {}
func (NoopSink) OnSelection(context.Context, PhaseEvent)            {}
func (NoopSink) OnVariation(context.Context, PhaseEvent)            {}
func (NoopSink) OnStatistics(context.Context, model.Statistics)     {}
func (NoopSink) OnGenerationEnd(context.Context, GenerationEnd)     {}
func (NoopSink) OnGenerationError(context.Context, GenerationError) {}

// MultiSink fans every event out to each sink in order.
type MultiSink []ProgressSink

func (m MultiSink) OnGenerationStart(ctx context.Context, ev GenerationStart) {
	for _, s := range m {
		s.OnGenerationStart(ctx, ev)
	}
}

func (m MultiSink) OnSelection(ctx context.Context, ev PhaseEvent) {
	for _, s := range m {
		s.OnSelection(ctx, ev)
	}
}

func (m MultiSink) OnVariation(ctx context.Context, ev PhaseEvent) {
	for _, s := range m {
		s.OnVariation(ctx, ev)
	}
}

func (m MultiSink) OnStatistics(ctx context.Context, stats model.Statistics) {
	for _, s := range m {
		s.OnStatistics(ctx, stats)
	}
}

func (m MultiSink) OnGenerationEnd(ctx context.Context, ev GenerationEnd) {
	for _, s := range m {
		s.OnGenerationEnd(ctx, ev)
	}
}

func (m MultiSink) OnGenerationError(ctx context.Context, ev GenerationError) {
	for _, s := range m {
		s.OnGenerationError(ctx, ev)
	}
}

func snapshot(population []Chromosome) []ChromosomeSnapshot {
	out := make([]ChromosomeSnapshot, len(population))
	for i, c := range population {
		out[i] = ChromosomeSnapshot{Index: i, ID: c.ID(), Fitness: c.Fitness()}
	}
	return out
}
