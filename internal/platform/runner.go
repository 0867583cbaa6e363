// Package platform ties problems, engines, progress sinks, and storage
// together into persisted, resumable evolution runs.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"genalg/internal/evo"
	"genalg/internal/model"
	"genalg/internal/problem"
	"genalg/internal/storage"
	"genalg/internal/telemetry"
)

var (
	ErrNotInitialized = errors.New("runner is not initialized")
	ErrRunNotFound    = errors.New("run not found")
	ErrNoCheckpoint   = errors.New("run has no checkpoint")
	ErrInvalidRequest = errors.New("invalid run request")
)

type Config struct {
	Store  storage.Store
	Logger *slog.Logger
	// TracerProvider enables one span per generation when set.
	TracerProvider trace.TracerProvider
	// Sinks receive every progress event next to the logging sink.
	Sinks []evo.ProgressSink
	Now   func() time.Time
}

type RunRequest struct {
	// RunID is generated when empty.
	RunID          string
	Problem        string
	Genes          int
	PopulationSize int
	Generations    int
	// FitnessGoal stops the run once the current maximum reaches it; 0
	// disables the check.
	FitnessGoal float64
	// CheckpointEvery saves a snapshot every N generations; the final state
	// is always saved.
	CheckpointEvery int
	Workers         int
	Engine          evo.Config
}

type RunResult struct {
	RunID       string
	Problem     string
	Generations int
	GoalReached bool
	Statistics  model.Statistics
	Fittest     model.ChromosomeRecord
	// CheckpointStep is the step of the last snapshot written by this call.
	CheckpointStep int
}

type Runner struct {
	store  storage.Store
	logger *slog.Logger
	tp     trace.TracerProvider
	sinks  []evo.ProgressSink
	now    func() time.Time

	mu      sync.RWMutex
	started bool
}

type session struct {
	run     model.RunRecord
	problem problem.Problem
	engine  *evo.Engine
}

func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		store:  cfg.Store,
		logger: logger,
		tp:     cfg.TracerProvider,
		sinks:  cfg.Sinks,
		now:    now,
	}
}

func (r *Runner) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	if r.store == nil {
		return errors.New("runner store is required")
	}
	if err := r.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	r.started = true
	return nil
}

func (r *Runner) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

func (r *Runner) ready() error {
	if !r.Started() {
		return ErrNotInitialized
	}
	return nil
}

func (req RunRequest) validate() error {
	switch {
	case req.Problem == "":
		return fmt.Errorf("%w: problem is required", ErrInvalidRequest)
	case req.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidRequest)
	case req.Generations <= 0:
		return fmt.Errorf("%w: generations must be > 0", ErrInvalidRequest)
	case req.CheckpointEvery < 0:
		return fmt.Errorf("%w: checkpoint interval must be >= 0", ErrInvalidRequest)
	case req.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidRequest)
	case req.FitnessGoal < 0:
		return fmt.Errorf("%w: fitness goal must be >= 0", ErrInvalidRequest)
	case req.Engine.Evaluator != nil:
		return fmt.Errorf("%w: fitness is evaluated by the problem, engine evaluator must be nil", ErrInvalidRequest)
	case req.Engine.Rand != nil:
		return fmt.Errorf("%w: the run derives its random source from the seed, engine rand must be nil", ErrInvalidRequest)
	}
	return req.Engine.Validate()
}

// Run starts a new run from a freshly generated population.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := r.ready(); err != nil {
		return RunResult{}, err
	}
	if err := req.validate(); err != nil {
		return RunResult{}, err
	}
	p, err := problem.Resolve(req.Problem, problem.Options{Genes: req.Genes})
	if err != nil {
		return RunResult{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	if _, exists, err := r.store.GetRun(ctx, runID); err != nil {
		return RunResult{}, err
	} else if exists {
		return RunResult{}, fmt.Errorf("%w: run %s already exists", ErrInvalidRequest, runID)
	}

	rng := rand.New(rand.NewSource(req.Engine.Seed))
	population, err := p.NewPopulation(rng, req.PopulationSize)
	if err != nil {
		return RunResult{}, fmt.Errorf("create population: %w", err)
	}

	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Problem:         p.Name(),
		Genes:           req.Genes,
		PopulationSize:  req.PopulationSize,
		Workers:         req.Workers,
		FitnessGoal:     req.FitnessGoal,
		CheckpointEvery: req.CheckpointEvery,
		Settings:        req.Engine.Settings(),
		CreatedAt:       r.now().UTC(),
	}
	s, err := r.newSession(run, p, population, req.Engine, rng)
	if err != nil {
		return RunResult{}, err
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	r.logger.InfoContext(ctx, "run started",
		"run_id", runID,
		"problem", run.Problem,
		"population_size", run.PopulationSize,
		"generations", req.Generations,
	)
	return r.drive(ctx, s, req.Generations)
}

// Resume continues a run from its latest checkpoint for the given number of
// generations. The random stream is reseeded from the run seed and the
// checkpoint step.
func (r *Runner) Resume(ctx context.Context, runID string, generations int) (RunResult, error) {
	if err := r.ready(); err != nil {
		return RunResult{}, err
	}
	if generations <= 0 {
		return RunResult{}, fmt.Errorf("%w: generations must be > 0", ErrInvalidRequest)
	}
	run, ok, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	checkpoint, ok, err := r.store.LatestCheckpoint(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ErrNoCheckpoint, runID)
	}

	p, err := problem.Resolve(run.Problem, problem.Options{Genes: run.Genes})
	if err != nil {
		return RunResult{}, err
	}
	population, err := problem.Restore(p, checkpoint.Population)
	if err != nil {
		return RunResult{}, fmt.Errorf("restore checkpoint %s@%d: %w", runID, checkpoint.Step, err)
	}

	cfg := engineConfig(checkpoint.Settings)
	rng := rand.New(rand.NewSource(cfg.Seed + int64(checkpoint.Step)))
	s, err := r.newSession(run, p, population, cfg, rng)
	if err != nil {
		return RunResult{}, err
	}
	if err := s.engine.Restore(checkpoint.Statistics); err != nil {
		return RunResult{}, err
	}
	r.logger.InfoContext(ctx, "run resumed",
		"run_id", runID,
		"step", checkpoint.Step,
		"generations", generations,
	)
	return r.drive(ctx, s, generations)
}

// RunBatch runs independent requests with at most parallel runs in flight.
// Results keep the order of reqs.
func (r *Runner) RunBatch(ctx context.Context, reqs []RunRequest, parallel int) ([]RunResult, error) {
	results := make([]RunResult, len(reqs))
	group, groupCtx := errgroup.WithContext(ctx)
	if parallel > 0 {
		group.SetLimit(parallel)
	}
	for i, req := range reqs {
		group.Go(func() error {
			result, err := r.Run(groupCtx, req)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) newSession(run model.RunRecord, p problem.Problem, population []evo.Chromosome, cfg evo.Config, rng *rand.Rand) (*session, error) {
	sinks := evo.MultiSink{telemetry.NewLogSink(r.logger.With("run_id", run.ID))}
	if r.tp != nil {
		sinks = append(sinks, telemetry.NewTraceSink(r.tp))
	}
	sinks = append(sinks, r.sinks...)
	if cfg.Sink != nil {
		sinks = append(sinks, cfg.Sink)
	}

	cfg.Sink = sinks
	cfg.Evaluator = problem.Evaluator(p, run.Workers)
	cfg.Rand = rng
	engine, err := evo.New(population, cfg)
	if err != nil {
		return nil, err
	}
	return &session{run: run, problem: p, engine: engine}, nil
}

func (r *Runner) drive(ctx context.Context, s *session, generations int) (RunResult, error) {
	result := RunResult{RunID: s.run.ID, Problem: s.run.Problem, CheckpointStep: -1}

	for result.Generations < generations {
		completed := s.engine.Step()
		if err := s.engine.EvolveN(ctx, 1); err != nil {
			// A cancellation seen before the generation started leaves the
			// population consistent, so it is saved for a later resume.
			if ctx.Err() != nil && s.engine.Step() == completed {
				if cpErr := r.checkpoint(context.WithoutCancel(ctx), s); cpErr != nil {
					return RunResult{}, errors.Join(err, cpErr)
				}
			}
			return RunResult{}, fmt.Errorf("run %s: %w", s.run.ID, err)
		}
		result.Generations++

		stats := s.engine.Statistics()
		record := model.GenerationRecord{
			RunID:      s.run.ID,
			Statistics: stats,
			FittestID:  s.engine.Fittest().ID(),
		}
		if err := r.store.AppendGeneration(ctx, record); err != nil {
			return RunResult{}, fmt.Errorf("append generation %d: %w", stats.Step, err)
		}
		if s.run.CheckpointEvery > 0 && stats.Step%s.run.CheckpointEvery == 0 {
			if err := r.checkpoint(ctx, s); err != nil {
				return RunResult{}, err
			}
			result.CheckpointStep = stats.Step
		}
		if s.run.FitnessGoal > 0 && stats.CurrentMax >= s.run.FitnessGoal {
			result.GoalReached = true
			r.logger.InfoContext(ctx, "fitness goal reached",
				"run_id", s.run.ID,
				"step", stats.Step,
				"fitness", stats.CurrentMax,
			)
			break
		}
	}

	result.Statistics = s.engine.Statistics()
	if result.CheckpointStep != result.Statistics.Step {
		if err := r.checkpoint(ctx, s); err != nil {
			return RunResult{}, err
		}
		result.CheckpointStep = result.Statistics.Step
	}
	fittest, err := problem.Snapshot(s.problem, []evo.Chromosome{s.engine.Fittest()})
	if err != nil {
		return RunResult{}, err
	}
	result.Fittest = fittest[0]

	r.logger.InfoContext(ctx, "run finished",
		"run_id", s.run.ID,
		"step", result.Statistics.Step,
		"total_max", result.Statistics.TotalMax,
		"goal_reached", result.GoalReached,
	)
	return result, nil
}

func (r *Runner) checkpoint(ctx context.Context, s *session) error {
	records, err := problem.Snapshot(s.problem, s.engine.Population())
	if err != nil {
		return err
	}
	stats := s.engine.Statistics()
	checkpoint := model.Checkpoint{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           s.run.ID,
		Step:            stats.Step,
		Settings:        s.engine.Config().Settings(),
		Statistics:      stats,
		Population:      records,
		CreatedAt:       r.now().UTC(),
	}
	if err := r.store.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("save checkpoint %s@%d: %w", s.run.ID, stats.Step, err)
	}
	r.logger.DebugContext(ctx, "checkpoint saved", "run_id", s.run.ID, "step", stats.Step)
	return nil
}

func (r *Runner) Runs(ctx context.Context) ([]model.RunRecord, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.store.ListRuns(ctx)
}

func (r *Runner) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	if err := r.ready(); err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (r *Runner) History(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	history, _, err := r.store.GetGenerationHistory(ctx, runID)
	return history, err
}

// Checkpoint loads the snapshot at step, or the latest one when step < 0.
func (r *Runner) Checkpoint(ctx context.Context, runID string, step int) (model.Checkpoint, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return model.Checkpoint{}, err
	}
	var (
		checkpoint model.Checkpoint
		ok         bool
		err        error
	)
	if step < 0 {
		checkpoint, ok, err = r.store.LatestCheckpoint(ctx, runID)
	} else {
		checkpoint, ok, err = r.store.GetCheckpoint(ctx, runID, step)
	}
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		return model.Checkpoint{}, fmt.Errorf("%w: %s@%d", ErrNoCheckpoint, runID, step)
	}
	return checkpoint, nil
}

func engineConfig(settings model.EngineSettings) evo.Config {
	return evo.Config{
		GenerationsPerCall: settings.GenerationsPerCall,
		MutationWeight:     settings.MutationWeight,
		CrossoverWeight:    settings.CrossoverWeight,
		EliteProtected:     settings.EliteProtected,
		Seed:               settings.Seed,
		Verbose:            settings.Verbose,
	}
}
