// Package genalg is the public entry point: the evolution engine types for
// embedding, and a Client that manages persisted runs.
package genalg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"genalg/internal/evo"
	"genalg/internal/model"
	"genalg/internal/platform"
	"genalg/internal/problem"
	"genalg/internal/stats"
	"genalg/internal/storage"
)

type (
	Chromosome     = evo.Chromosome
	Engine         = evo.Engine
	Config         = evo.Config
	Evaluator      = evo.Evaluator
	EvaluatorFunc  = evo.EvaluatorFunc
	ProgressSink   = evo.ProgressSink
	NoopSink       = evo.NoopSink
	GenerationInfo = model.GenerationRecord
	Statistics     = model.Statistics
	RunRecord      = model.RunRecord
	Checkpoint     = model.Checkpoint

	GenerationStart = evo.GenerationStart
	GenerationEnd   = evo.GenerationEnd
	GenerationError = evo.GenerationError
	PhaseEvent      = evo.PhaseEvent
)

var (
	ErrEmptyPopulation   = evo.ErrEmptyPopulation
	ErrContractViolation = evo.ErrContractViolation
	ErrInvalidConfig     = evo.ErrInvalidConfig
	ErrRunNotFound       = platform.ErrRunNotFound
	ErrNoCheckpoint      = platform.ErrNoCheckpoint
	ErrInvalidRequest    = platform.ErrInvalidRequest
)

// NewEngine builds an engine over population. See evo.New.
func NewEngine(population []Chromosome, cfg Config) (*Engine, error) {
	return evo.New(population, cfg)
}

func DefaultConfig() Config {
	return evo.DefaultConfig()
}

const (
	defaultExportsDir = "exports"
	defaultDBPath     = "genalg.db"
)

type Options struct {
	StoreKind      string
	DBPath         string
	ExportsDir     string
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

type Client struct {
	store  storage.Store
	runner *platform.Runner

	exportsDir string
}

type RunRequest struct {
	RunID           string
	Problem         string
	Genes           int
	Population      int
	Generations     int
	FitnessGoal     float64
	CheckpointEvery int
	Workers         int
	// Engine defaults to DefaultConfig when nil. Its Sink receives the run's
	// progress events. Evaluator and Rand must be nil: the problem scores
	// fitness and the run seeds its own source.
	Engine *Config
}

type RunSummary struct {
	RunID       string
	Problem     string
	Generations int
	GoalReached bool
	Statistics  Statistics
	FittestID   string
	Fittest     float64
}

type ResumeRequest struct {
	RunID       string
	Latest      bool
	Generations int
}

type RunsRequest struct {
	Limit int
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	// Limit keeps the most recent generations when > 0.
	Limit int
}

type CheckpointRequest struct {
	RunID  string
	Latest bool
	// Step selects a specific checkpoint; nil selects the newest.
	Step *int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ProblemItem struct {
	Name        string
	Description string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store: store,
		runner: platform.NewRunner(platform.Config{
			Store:          store,
			Logger:         opts.Logger,
			TracerProvider: opts.TracerProvider,
		}),
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.runner.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	result, err := c.runner.Run(ctx, toPlatformRequest(req))
	if err != nil {
		return RunSummary{}, err
	}
	return toSummary(result), nil
}

// RunBatch runs independent requests with at most parallel in flight and
// returns their summaries in request order.
func (c *Client) RunBatch(ctx context.Context, reqs []RunRequest, parallel int) ([]RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	platformReqs := make([]platform.RunRequest, 0, len(reqs))
	for _, req := range reqs {
		platformReqs = append(platformReqs, toPlatformRequest(req))
	}
	results, err := c.runner.RunBatch(ctx, platformReqs, parallel)
	if err != nil {
		return nil, err
	}
	summaries := make([]RunSummary, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, toSummary(result))
	}
	return summaries, nil
}

func (c *Client) Resume(ctx context.Context, req ResumeRequest) (RunSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return RunSummary{}, err
	}
	result, err := c.runner.Resume(ctx, runID, req.Generations)
	if err != nil {
		return RunSummary{}, err
	}
	return toSummary(result), nil
}

// Runs lists runs newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.runner.Runs(ctx)
	if err != nil {
		return nil, err
	}
	newest := make([]RunRecord, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		newest = append(newest, runs[i])
	}
	if req.Limit > 0 && len(newest) > req.Limit {
		newest = newest[:req.Limit]
	}
	return newest, nil
}

func (c *Client) History(ctx context.Context, req HistoryRequest) ([]GenerationInfo, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	history, err := c.runner.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[len(history)-req.Limit:]
	}
	return history, nil
}

func (c *Client) Checkpoint(ctx context.Context, req CheckpointRequest) (Checkpoint, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return Checkpoint{}, err
	}
	step := -1
	if req.Step != nil {
		if *req.Step < 0 {
			return Checkpoint{}, errors.New("checkpoint step must be >= 0")
		}
		step = *req.Step
	}
	return c.runner.Checkpoint(ctx, runID, step)
}

// Export writes the run record, history CSV, and latest checkpoint of a run
// under OutDir.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	run, err := c.runner.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	history, err := c.runner.History(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	checkpoint, err := c.runner.Checkpoint(ctx, runID, -1)
	if err != nil && !errors.Is(err, platform.ErrNoCheckpoint) {
		return ExportSummary{}, err
	}

	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{
		Run:        run,
		History:    history,
		Checkpoint: checkpoint,
	})
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Summary renders a terminal report for a run.
func (c *Client) Summary(ctx context.Context, runID string) (string, error) {
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	run, err := c.runner.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	history, err := c.runner.History(ctx, runID)
	if err != nil {
		return "", err
	}
	return stats.RenderSummary(run, history), nil
}

func (c *Client) Problems() []ProblemItem {
	defs := problem.List()
	items := make([]ProblemItem, 0, len(defs))
	for _, def := range defs {
		items = append(items, ProblemItem{Name: def.Name, Description: def.Description})
	}
	return items
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.runner.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: no runs recorded", ErrRunNotFound)
	}
	return runs[len(runs)-1].ID, nil
}

func toPlatformRequest(req RunRequest) platform.RunRequest {
	engine := DefaultConfig()
	if req.Engine != nil {
		engine = *req.Engine
	}
	return platform.RunRequest{
		RunID:           req.RunID,
		Problem:         req.Problem,
		Genes:           req.Genes,
		PopulationSize:  req.Population,
		Generations:     req.Generations,
		FitnessGoal:     req.FitnessGoal,
		CheckpointEvery: req.CheckpointEvery,
		Workers:         req.Workers,
		Engine:          engine,
	}
}

func toSummary(result platform.RunResult) RunSummary {
	return RunSummary{
		RunID:       result.RunID,
		Problem:     result.Problem,
		Generations: result.Generations,
		GoalReached: result.GoalReached,
		Statistics:  result.Statistics,
		FittestID:   result.Fittest.ID,
		Fittest:     result.Fittest.Fitness,
	}
}
