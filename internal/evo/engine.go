package evo

import (
	"context"
	"fmt"
	"math/rand"

	"genalg/internal/model"
)

const (
	DefaultGenerationsPerCall = 1
	DefaultMutationWeight     = 0.05
	DefaultCrossoverWeight    = 0.3
)

type Config struct {
	GenerationsPerCall int
	MutationWeight     float64
	CrossoverWeight    float64
	EliteProtected     bool
	Seed               int64
	// Verbose attaches a per-chromosome dump to every progress event.
	Verbose bool

	Sink      ProgressSink
	Evaluator Evaluator
	// Rand overrides the seeded source built from Seed.
	Rand *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		GenerationsPerCall: DefaultGenerationsPerCall,
		MutationWeight:     DefaultMutationWeight,
		CrossoverWeight:    DefaultCrossoverWeight,
		EliteProtected:     true,
		Seed:               1,
	}
}

func (c Config) Validate() error {
	if c.GenerationsPerCall <= 0 {
		return fmt.Errorf("%w: generations per call must be > 0", ErrInvalidConfig)
	}
	if err := validateWeight("mutation", c.MutationWeight); err != nil {
		return err
	}
	return validateWeight("crossover", c.CrossoverWeight)
}

// Settings returns the persistable part of the configuration.
func (c Config) Settings() model.EngineSettings {
	return model.EngineSettings{
		GenerationsPerCall: c.GenerationsPerCall,
		MutationWeight:     c.MutationWeight,
		CrossoverWeight:    c.CrossoverWeight,
		EliteProtected:     c.EliteProtected,
		Seed:               c.Seed,
		Verbose:            c.Verbose,
	}
}

func validateWeight(name string, w float64) error {
	if !(w >= 0 && w <= 1) {
		return fmt.Errorf("%w: %s weight must be in [0, 1], got %v", ErrInvalidConfig, name, w)
	}
	return nil
}

// Engine evolves one population in place. It is not safe for concurrent use.
type Engine struct {
	cfg        Config
	rng        *rand.Rand
	population []Chromosome
	stats      model.Statistics
}

// New validates cfg and the chromosome contract of every slot and returns a
// ready engine owning a private copy of the population slice. An empty
// population is accepted here and rejected by Evolve.
func New(population []Chromosome, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidatePopulation(population); err != nil {
		return nil, err
	}
	if cfg.Sink == nil {
		cfg.Sink = NoopSink{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	owned := make([]Chromosome, len(population))
	copy(owned, population)
	return &Engine{
		cfg:        cfg,
		rng:        rng,
		population: owned,
		stats:      model.NewStatistics(),
	}, nil
}

// Evolve runs GenerationsPerCall generations.
func (e *Engine) Evolve(ctx context.Context) error {
	return e.EvolveN(ctx, e.cfg.GenerationsPerCall)
}

// EvolveN runs n generations. The context is only checked between
// generations; a generation that has started always runs to completion or to
// the first error. After an error the population is partially varied and
// should be discarded or restored from a checkpoint.
func (e *Engine) EvolveN(ctx context.Context, n int) error {
	if len(e.population) == 0 {
		return ErrEmptyPopulation
	}
	if n <= 0 {
		return fmt.Errorf("%w: generation count must be > 0", ErrInvalidConfig)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.generation(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) generation(ctx context.Context) error {
	e.stats.Step++
	step := e.stats.Step
	sink := e.cfg.Sink
	fail := func(phase Phase, err error) error {
		sink.OnGenerationError(ctx, GenerationError{Step: step, Phase: phase, Err: err})
		return err
	}

	sink.OnGenerationStart(ctx, GenerationStart{
		Step:           step,
		PopulationSize: len(e.population),
		Population:     e.dump(),
	})

	if step > 1 {
		selector := RouletteSelector{EliteProtected: e.cfg.EliteProtected}
		if err := selector.Select(e.rng, e.population); err != nil {
			return fail(PhaseSelection, err)
		}
		sink.OnSelection(ctx, PhaseEvent{Step: step, Phase: PhaseSelection, Population: e.dump()})
	}

	counts, err := vary(e.rng, e.population, e.cfg)
	if err != nil {
		return fail(PhaseVariation, err)
	}
	recordVariation(&e.stats, counts)
	sink.OnVariation(ctx, PhaseEvent{Step: step, Phase: PhaseVariation, Population: e.dump()})

	if e.cfg.Evaluator != nil {
		if err := e.cfg.Evaluator.Evaluate(ctx, e.population); err != nil {
			return fail(PhaseEvaluation, err)
		}
	}

	recordFitness(&e.stats, e.population)
	recordImprovement(&e.stats, e.population)
	sink.OnStatistics(ctx, e.stats)
	sink.OnGenerationEnd(ctx, GenerationEnd{Step: step, Statistics: e.stats, Population: e.dump()})
	return nil
}

func (e *Engine) dump() []ChromosomeSnapshot {
	if !e.cfg.Verbose {
		return nil
	}
	return snapshot(e.population)
}

// Restore continues the step counter and cumulative statistics of an earlier
// run, typically after rebuilding the population from a checkpoint.
func (e *Engine) Restore(stats model.Statistics) error {
	if stats.Step < 0 {
		return fmt.Errorf("%w: step must be >= 0", ErrInvalidConfig)
	}
	e.stats = stats
	return nil
}

func (e *Engine) Step() int {
	return e.stats.Step
}

func (e *Engine) Size() int {
	return len(e.population)
}

func (e *Engine) Statistics() model.Statistics {
	return e.stats
}

// Fittest returns a reference to the fittest chromosome; later generations may
// change or replace it.
func (e *Engine) Fittest() Chromosome {
	return Fittest(e.population)
}

// Worst returns a reference to the least fit chromosome.
func (e *Engine) Worst() Chromosome {
	return Worst(e.population)
}

// Population returns a new slice holding the current chromosome references.
func (e *Engine) Population() []Chromosome {
	out := make([]Chromosome, len(e.population))
	copy(out, e.population)
	return out
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) MutationWeight() float64 {
	return e.cfg.MutationWeight
}

func (e *Engine) SetMutationWeight(w float64) error {
	if err := validateWeight("mutation", w); err != nil {
		return err
	}
	e.cfg.MutationWeight = w
	return nil
}

func (e *Engine) CrossoverWeight() float64 {
	return e.cfg.CrossoverWeight
}

func (e *Engine) SetCrossoverWeight(w float64) error {
	if err := validateWeight("crossover", w); err != nil {
		return err
	}
	e.cfg.CrossoverWeight = w
	return nil
}

func (e *Engine) EliteProtected() bool {
	return e.cfg.EliteProtected
}

func (e *Engine) SetEliteProtected(protected bool) {
	e.cfg.EliteProtected = protected
}

func (e *Engine) GenerationsPerCall() int {
	return e.cfg.GenerationsPerCall
}

func (e *Engine) SetGenerationsPerCall(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: generations per call must be > 0", ErrInvalidConfig)
	}
	e.cfg.GenerationsPerCall = n
	return nil
}
