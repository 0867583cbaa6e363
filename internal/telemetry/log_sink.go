package telemetry

import (
	"context"
	"log/slog"

	"genalg/internal/evo"
	"genalg/internal/model"
)

// LogSink writes progress events to a slog logger. Generation boundaries go
// to Info, phase transitions and statistics snapshots to Debug, and population
// dumps (present only in verbose mode) to Info. Failed generations go to Error.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) OnGenerationStart(ctx context.Context, ev evo.GenerationStart) {
	s.logger.InfoContext(ctx, "start evolution", "step", ev.Step, "population_size", ev.PopulationSize)
	s.logPopulation(ctx, "start evolution", ev.Population)
}

func (s *LogSink) OnSelection(ctx context.Context, ev evo.PhaseEvent) {
	s.logger.DebugContext(ctx, "selection complete", "step", ev.Step)
	s.logPopulation(ctx, "after selection", ev.Population)
}

func (s *LogSink) OnVariation(ctx context.Context, ev evo.PhaseEvent) {
	s.logger.DebugContext(ctx, "mutation and crossover complete", "step", ev.Step)
	s.logPopulation(ctx, "after mutation", ev.Population)
}

func (s *LogSink) OnStatistics(ctx context.Context, stats model.Statistics) {
	s.logger.DebugContext(ctx, "generation statistics",
		"step", stats.Step,
		"current_max", stats.CurrentMax,
		"current_min", stats.CurrentMin,
		"current_mean", stats.CurrentMean,
		"total_max", stats.TotalMax,
		"total_min", stats.TotalMin,
		"crossovers", stats.Crossovers,
		"total_crossovers", stats.TotalCrossovers,
		"mutations", stats.Mutations,
		"total_mutations", stats.TotalMutations,
		"improvements_through_crossover", stats.ImprovementsThroughCrossover,
		"improvements_through_mutation", stats.ImprovementsThroughMutation,
		"improvements_through_both", stats.ImprovementsThroughBoth,
	)
}

func (s *LogSink) OnGenerationEnd(ctx context.Context, ev evo.GenerationEnd) {
	s.logger.InfoContext(ctx, "end evolution",
		"step", ev.Step,
		"current_max", ev.Statistics.CurrentMax,
		"current_mean", ev.Statistics.CurrentMean,
	)
	s.logPopulation(ctx, "end evolution", ev.Population)
}

func (s *LogSink) OnGenerationError(ctx context.Context, ev evo.GenerationError) {
	s.logger.ErrorContext(ctx, "generation failed",
		"step", ev.Step,
		"phase", string(ev.Phase),
		"error", ev.Err,
	)
}

func (s *LogSink) logPopulation(ctx context.Context, tag string, population []evo.ChromosomeSnapshot) {
	for _, c := range population {
		s.logger.InfoContext(ctx, "chromosome",
			"tag", tag,
			"slot", c.Index+1,
			"id", c.ID,
			"fitness", c.Fitness,
		)
	}
}
