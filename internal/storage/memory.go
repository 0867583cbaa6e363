package storage

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"genalg/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	checkpoints map[string]map[int]model.Checkpoint
	generations map[string][]model.GenerationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.checkpoints = make(map[string]map[int]model.Checkpoint)
	s.generations = make(map[string][]model.GenerationRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.RunRecord{}, false, err
	}
	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, checkpoint model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	byStep, ok := s.checkpoints[checkpoint.RunID]
	if !ok {
		byStep = make(map[int]model.Checkpoint)
		s.checkpoints[checkpoint.RunID] = byStep
	}
	byStep[checkpoint.Step] = cloneCheckpoint(checkpoint)
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, runID string, step int) (model.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.Checkpoint{}, false, err
	}
	checkpoint, ok := s.checkpoints[runID][step]
	if !ok {
		return model.Checkpoint{}, false, nil
	}
	return cloneCheckpoint(checkpoint), true, nil
}

func (s *MemoryStore) LatestCheckpoint(_ context.Context, runID string) (model.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return model.Checkpoint{}, false, err
	}
	byStep := s.checkpoints[runID]
	if len(byStep) == 0 {
		return model.Checkpoint{}, false, nil
	}
	latest := -1
	for step := range byStep {
		if step > latest {
			latest = step
		}
	}
	return cloneCheckpoint(byStep[latest]), true, nil
}

func (s *MemoryStore) AppendGeneration(_ context.Context, record model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	history := s.generations[record.RunID]
	kept := history[:0]
	for _, existing := range history {
		if existing.Statistics.Step < record.Statistics.Step {
			kept = append(kept, existing)
		}
	}
	s.generations[record.RunID] = append(kept, record)
	return nil
}

func (s *MemoryStore) GetGenerationHistory(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.ready(); err != nil {
		return nil, false, err
	}
	history := s.generations[runID]
	if len(history) == 0 {
		return nil, false, nil
	}
	return slices.Clone(history), true, nil
}

func (s *MemoryStore) ready() error {
	if !s.initialized {
		return errors.New("store is not initialized")
	}
	return nil
}

func cloneCheckpoint(c model.Checkpoint) model.Checkpoint {
	out := c
	out.Population = make([]model.ChromosomeRecord, len(c.Population))
	for i, record := range c.Population {
		record.Payload = slices.Clone(record.Payload)
		out.Population[i] = record
	}
	return out
}
