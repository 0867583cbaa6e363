package storage

import (
	"context"

	"genalg/internal/model"
)

// Store persists runs, population checkpoints, and per-generation statistics.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveCheckpoint(ctx context.Context, checkpoint model.Checkpoint) error
	GetCheckpoint(ctx context.Context, runID string, step int) (model.Checkpoint, bool, error)
	LatestCheckpoint(ctx context.Context, runID string) (model.Checkpoint, bool, error)
	// AppendGeneration records a completed generation. Rows at or past the
	// record's step are discarded first so a resumed run rewrites its history.
	AppendGeneration(ctx context.Context, record model.GenerationRecord) error
	// GetGenerationHistory returns the generations ordered by step. found is
	// false when no generation has been recorded, whether or not the run exists.
	GetGenerationHistory(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
}
