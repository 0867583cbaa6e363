package telemetry

import (
	"context"
	"sync"

	"genalg/internal/evo"
	"genalg/internal/model"
)

// RecordingSink keeps every event in memory; used by tests and by callers that
// want to inspect a run after the fact.
type RecordingSink struct {
	mu         sync.Mutex
	Starts     []evo.GenerationStart
	Phases     []evo.PhaseEvent
	Statistics []model.Statistics
	Ends       []evo.GenerationEnd
	Errors     []evo.GenerationError
}

func (r *RecordingSink) OnGenerationStart(_ context.Context, ev evo.GenerationStart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Starts = append(r.Starts, ev)
}

func (r *RecordingSink) OnSelection(_ context.Context, ev evo.PhaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, ev)
}

func (r *RecordingSink) OnVariation(_ context.Context, ev evo.PhaseEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, ev)
}

func (r *RecordingSink) OnStatistics(_ context.Context, stats model.Statistics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statistics = append(r.Statistics, stats)
}

func (r *RecordingSink) OnGenerationEnd(_ context.Context, ev evo.GenerationEnd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ends = append(r.Ends, ev)
}

func (r *RecordingSink) OnGenerationError(_ context.Context, ev evo.GenerationError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, ev)
}
