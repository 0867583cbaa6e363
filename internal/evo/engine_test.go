package evo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"genalg/internal/model"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MutationWeight = 1.5
	if _, err := New(newPopulation(1), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.CrossoverWeight = math.NaN()
	if _, err := New(newPopulation(1), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config error for NaN weight, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.GenerationsPerCall = 0
	if _, err := New(newPopulation(1), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config error for zero generations, got %v", err)
	}
}

type nilCloneChromosome struct{ testChromosome }

func (*nilCloneChromosome) Clone() Chromosome { return nil }

type renamingCloneChromosome struct{ testChromosome }

func (c *renamingCloneChromosome) Clone() Chromosome {
	return &testChromosome{id: c.id + "-copy", fitness: c.fitness}
}

func TestNewRejectsContractViolations(t *testing.T) {
	cases := map[string][]Chromosome{
		"nil entry":    {&testChromosome{id: "a"}, nil},
		"nil clone":    {&nilCloneChromosome{testChromosome{id: "a"}}},
		"renamed copy": {&testChromosome{id: "a"}, &renamingCloneChromosome{testChromosome{id: "b"}}},
	}
	for name, population := range cases {
		_, err := New(population, DefaultConfig())
		if !errors.Is(err, ErrContractViolation) {
			t.Fatalf("%s: expected contract violation, got %v", name, err)
		}
		var violation *ContractViolationError
		if !errors.As(err, &violation) {
			t.Fatalf("%s: expected *ContractViolationError, got %T", name, err)
		}
		if violation.Index != len(population)-1 {
			t.Fatalf("%s: unexpected violating slot %d", name, violation.Index)
		}
	}
}

func TestEvolveEmptyPopulationHasNoSideEffects(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.Sink = sink
	engine, err := New(nil, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	before := engine.Statistics()

	if err := engine.Evolve(context.Background()); !errors.Is(err, ErrEmptyPopulation) {
		t.Fatalf("expected empty population error, got %v", err)
	}
	if engine.Step() != 0 {
		t.Fatalf("expected step to stay 0, got %d", engine.Step())
	}
	if engine.Statistics() != before {
		t.Fatal("expected statistics to stay unchanged")
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestEvolveKeepsPopulationSize(t *testing.T) {
	for size := 1; size <= 6; size++ {
		fitness := make([]float64, size)
		for i := range fitness {
			fitness[i] = float64(i % 3)
		}
		cfg := DefaultConfig()
		cfg.MutationWeight = 0.5
		cfg.CrossoverWeight = 0.5
		cfg.Seed = int64(size)
		engine, err := New(newPopulation(fitness...), cfg)
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		if err := engine.EvolveN(context.Background(), 5); err != nil {
			t.Fatalf("evolve size=%d: %v", size, err)
		}
		if engine.Size() != size || len(engine.Population()) != size {
			t.Fatalf("population size changed: got=%d want=%d", engine.Size(), size)
		}
		if engine.Step() != 5 {
			t.Fatalf("unexpected step: %d", engine.Step())
		}
	}
}

func TestEvolveDoesNotAliasCallerSlice(t *testing.T) {
	population := newPopulation(1, 5, 2, 8)
	engine, err := New(population, quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), 2); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if population[0].ID() != "c0" {
		t.Fatal("expected caller slice to be left untouched by selection")
	}
}

func TestEvolveSelectionScenarioAfterRestore(t *testing.T) {
	cfg := quietConfig()
	cfg.Seed = 11
	engine, err := New(newPopulation(1, 5, 2, 8), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	stats := model.NewStatistics()
	stats.Step = 1
	if err := engine.Restore(stats); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if engine.Step() != 2 {
		t.Fatalf("expected step 2, got %d", engine.Step())
	}

	population := engine.Population()
	if population[0].Fitness() != 8 || population[1].Fitness() != 8 {
		t.Fatalf("expected elite and its duplicate at fitness 8, got %v", fitnessOf(population))
	}

	entries := BuildSelectionEntries(newPopulation(1, 5, 2, 8))
	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 2; i < 4; i++ {
		want := entries[Pick(entries, rng.Float64()*16)].Chromosome.Fitness()
		if population[i].Fitness() != want {
			t.Fatalf("slot %d: got=%v want=%v", i, population[i].Fitness(), want)
		}
	}
}

func TestEvolveFirstGenerationSkipsSelection(t *testing.T) {
	sink := &recordingSink{}
	cfg := quietConfig()
	cfg.Sink = sink
	engine, err := New(newPopulation(1, 5, 2, 8), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if got := engine.Population()[0].ID(); got != "c0" {
		t.Fatalf("expected slot 0 untouched in generation 1, got %s", got)
	}
	for _, ev := range sink.events {
		if ev.kind == "selection" {
			t.Fatal("unexpected selection event in generation 1")
		}
	}
}

func TestEvolveEmitsEventsInOrder(t *testing.T) {
	sink := &recordingSink{}
	cfg := quietConfig()
	cfg.Sink = sink
	cfg.Verbose = true
	engine, err := New(newPopulation(1, 2, 3), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), 2); err != nil {
		t.Fatalf("evolve: %v", err)
	}

	want := []string{
		"start", "variation", "statistics", "end",
		"start", "selection", "variation", "statistics", "end",
	}
	if len(sink.events) != len(want) {
		t.Fatalf("event count mismatch: got=%d want=%d", len(sink.events), len(want))
	}
	for i, kind := range want {
		if sink.events[i].kind != kind {
			t.Fatalf("event %d: got=%s want=%s", i, sink.events[i].kind, kind)
		}
		if kind != "statistics" && len(sink.events[i].population) != 3 {
			t.Fatalf("event %d: expected verbose population dump", i)
		}
	}
	if sink.events[len(want)-1].step != 2 {
		t.Fatalf("unexpected final step: %d", sink.events[len(want)-1].step)
	}
}

func TestEvolveOmitsPopulationDumpWhenQuiet(t *testing.T) {
	sink := &recordingSink{}
	cfg := quietConfig()
	cfg.Sink = sink
	engine, err := New(newPopulation(1, 2, 3), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	for _, ev := range sink.events {
		if ev.population != nil {
			t.Fatalf("expected no population dump on %s event", ev.kind)
		}
	}
}

func TestEliteFittestAfterSelection(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 20; trial++ {
		fitness := make([]float64, 2+rng.Intn(8))
		for i := range fitness {
			fitness[i] = float64(rng.Intn(20))
		}
		sink := &recordingSink{}
		cfg := DefaultConfig()
		cfg.MutationWeight = 0.5
		cfg.CrossoverWeight = 0.5
		cfg.Seed = int64(trial)
		cfg.Sink = sink
		cfg.Verbose = true
		engine, err := New(newPopulation(fitness...), cfg)
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		if err := engine.EvolveN(context.Background(), 4); err != nil {
			t.Fatalf("evolve: %v", err)
		}
		for _, ev := range sink.events {
			if ev.kind != "selection" {
				continue
			}
			for _, slot := range ev.population[1:] {
				if slot.Fitness > ev.population[0].Fitness {
					t.Fatalf("trial %d step %d: slot %d fitter than elite", trial, ev.step, slot.Index)
				}
			}
		}
	}
}

func TestMutationCountWithEliteProtection(t *testing.T) {
	const generations, size = 4, 5
	population := make([]Chromosome, size)
	for i := range population {
		population[i] = &testChromosome{id: "m", fitness: 1, alwaysMutate: true}
	}
	cfg := DefaultConfig()
	cfg.MutationWeight = 1
	cfg.CrossoverWeight = 0
	engine, err := New(population, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), generations); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	stats := engine.Statistics()
	if stats.TotalMutations != generations*(size-2) {
		t.Fatalf("unexpected total mutations: got=%d want=%d", stats.TotalMutations, generations*(size-2))
	}
	if stats.Mutations != size-2 {
		t.Fatalf("unexpected per-generation mutations: %d", stats.Mutations)
	}
}

func TestMutationCountWithoutEliteProtection(t *testing.T) {
	const generations, size = 3, 4
	population := make([]Chromosome, size)
	for i := range population {
		population[i] = &testChromosome{id: "m", fitness: 1, alwaysMutate: true}
	}
	cfg := DefaultConfig()
	cfg.MutationWeight = 1
	cfg.CrossoverWeight = 0
	cfg.EliteProtected = false
	engine, err := New(population, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), generations); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if got := engine.Statistics().TotalMutations; got != generations*(size-1) {
		t.Fatalf("unexpected total mutations: got=%d want=%d", got, generations*(size-1))
	}
}

func TestCumulativeCountsNeverDecrease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MutationWeight = 0.4
	cfg.CrossoverWeight = 0.6
	cfg.Seed = 21
	engine, err := New(newPopulation(3, 1, 4, 1, 5, 9, 2, 6), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	prevMutations, prevCrossovers := 0, 0
	for call := 0; call < 10; call++ {
		if err := engine.Evolve(context.Background()); err != nil {
			t.Fatalf("evolve: %v", err)
		}
		stats := engine.Statistics()
		if stats.TotalMutations < prevMutations || stats.TotalCrossovers < prevCrossovers {
			t.Fatalf("cumulative counters decreased at call %d", call)
		}
		prevMutations, prevCrossovers = stats.TotalMutations, stats.TotalCrossovers
	}
	if prevCrossovers == 0 {
		t.Fatal("expected at least one crossover with weight 0.6")
	}
}

func TestEvolveAllZeroFitness(t *testing.T) {
	engine, err := New(newPopulation(0, 0, 0, 0), quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), 3); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	stats := engine.Statistics()
	if stats.CurrentMean != 0 || stats.CurrentMax != 0 || stats.CurrentMin != 0 {
		t.Fatalf("unexpected statistics for zero population: %+v", stats)
	}
	for i, c := range engine.Population() {
		if c.ID() != "c0" {
			t.Fatalf("slot %d: expected clone of first entry, got %s", i, c.ID())
		}
	}
}

func TestEvolvePropagatesChromosomeErrors(t *testing.T) {
	errBoom := errors.New("boom")
	population := newPopulation(1, 2, 3)
	population[2].(*testChromosome).mutateErr = errBoom
	engine, err := New(population, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Evolve(context.Background()); err != errBoom {
		t.Fatalf("expected unmodified chromosome error, got %v", err)
	}

	population = newPopulation(1, 2, 3)
	population[2].(*testChromosome).crossErr = errBoom
	cfg := DefaultConfig()
	cfg.CrossoverWeight = 1
	engine, err = New(population, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.Evolve(context.Background()); err != errBoom {
		t.Fatalf("expected unmodified crossover error, got %v", err)
	}
}

func TestEvolveEmitsGenerationErrorOnFailure(t *testing.T) {
	errBoom := errors.New("boom")
	cases := []struct {
		name  string
		setup func(cfg *Config, population []Chromosome)
		kind  string
	}{
		{
			name: "variation",
			setup: func(_ *Config, population []Chromosome) {
				population[2].(*testChromosome).mutateErr = errBoom
			},
			kind: "error:variation",
		},
		{
			name: "evaluation",
			setup: func(cfg *Config, _ []Chromosome) {
				cfg.Evaluator = EvaluatorFunc(func(context.Context, []Chromosome) error { return errBoom })
			},
			kind: "error:evaluation",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			cfg := quietConfig()
			cfg.Sink = sink
			population := newPopulation(1, 2, 3)
			tc.setup(&cfg, population)
			engine, err := New(population, cfg)
			if err != nil {
				t.Fatalf("new engine: %v", err)
			}
			if err := engine.Evolve(context.Background()); !errors.Is(err, errBoom) {
				t.Fatalf("expected boom, got %v", err)
			}
			last := sink.events[len(sink.events)-1]
			if last.kind != tc.kind || last.step != 1 {
				t.Fatalf("expected %s at step 1 as the last event, got %+v", tc.kind, last)
			}
			for _, ev := range sink.events {
				if ev.kind == "end" || ev.kind == "statistics" {
					t.Fatalf("unexpected %s event after a failed generation", ev.kind)
				}
			}
		})
	}
}

func TestEvolveRunsEvaluatorBeforeStatistics(t *testing.T) {
	cfg := quietConfig()
	calls := 0
	cfg.Evaluator = EvaluatorFunc(func(_ context.Context, population []Chromosome) error {
		calls++
		for _, c := range population {
			c.(*testChromosome).fitness = 10
		}
		return nil
	})
	engine, err := New(newPopulation(1, 2), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(context.Background(), 2); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected evaluator once per generation, got %d", calls)
	}
	if engine.Statistics().CurrentMean != 10 {
		t.Fatalf("expected statistics over evaluated fitness, got %v", engine.Statistics().CurrentMean)
	}
}

func TestEvolveStopsAtGenerationBoundaryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := quietConfig()
	cfg.Evaluator = EvaluatorFunc(func(context.Context, []Chromosome) error {
		cancel()
		return nil
	})
	engine, err := New(newPopulation(1, 2), cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.EvolveN(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if engine.Step() != 1 {
		t.Fatalf("expected the started generation to complete, got step %d", engine.Step())
	}
}

func TestStatisticsTracking(t *testing.T) {
	engine, err := New(newPopulation(2, 4, 6), quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	initial := engine.Statistics()
	if !math.IsInf(initial.CurrentMin, 1) || !math.IsInf(initial.TotalMin, 1) {
		t.Fatal("expected unset minimums to start at +Inf")
	}

	if err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	stats := engine.Statistics()
	if stats.CurrentMax != 6 || stats.CurrentMin != 2 || stats.CurrentMean != 4 {
		t.Fatalf("unexpected current statistics: %+v", stats)
	}
	if stats.TotalMax != 6 || stats.TotalMin != 2 {
		t.Fatalf("unexpected all-time statistics: %+v", stats)
	}
}

func TestAllTimeExtremesAreRunning(t *testing.T) {
	stats := model.NewStatistics()
	recordFitness(&stats, newPopulation(3, 7))
	recordFitness(&stats, newPopulation(4, 5))
	if stats.CurrentMax != 5 || stats.CurrentMin != 4 {
		t.Fatalf("unexpected current extremes: %+v", stats)
	}
	if stats.TotalMax != 7 || stats.TotalMin != 3 {
		t.Fatalf("unexpected all-time extremes: %+v", stats)
	}
}

func TestImprovementAttribution(t *testing.T) {
	cases := []struct {
		mutated, crossed            bool
		wantCross, wantMut, wantAll int
	}{
		{mutated: true, crossed: true, wantAll: 1},
		{crossed: true, wantCross: 1},
		{mutated: true, wantMut: 1},
		{},
	}
	for i, tc := range cases {
		population := newPopulation(1, 9, 9)
		champion := population[1].(*testChromosome)
		champion.mutated, champion.crossed = tc.mutated, tc.crossed
		population[2].(*testChromosome).mutated = true

		stats := model.NewStatistics()
		recordImprovement(&stats, population)
		if stats.ImprovementsThroughBoth != tc.wantAll ||
			stats.ImprovementsThroughCrossover != tc.wantCross ||
			stats.ImprovementsThroughMutation != tc.wantMut {
			t.Fatalf("case %d: unexpected attribution %+v", i, stats)
		}
	}
}

func TestFittestAndWorstPreferEarliestIndex(t *testing.T) {
	engine, err := New(newPopulation(2, 7, 1, 7, 1), quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if got := engine.Fittest().ID(); got != "c1" {
		t.Fatalf("expected earliest fittest c1, got %s", got)
	}
	if got := engine.Worst().ID(); got != "c2" {
		t.Fatalf("expected earliest worst c2, got %s", got)
	}
	if Fittest(nil) != nil || Worst(nil) != nil {
		t.Fatal("expected nil for empty population")
	}
}

func TestConfigMutators(t *testing.T) {
	engine, err := New(newPopulation(1), DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := engine.SetMutationWeight(0.7); err != nil || engine.MutationWeight() != 0.7 {
		t.Fatalf("set mutation weight: %v", err)
	}
	if err := engine.SetCrossoverWeight(-0.1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid crossover weight, got %v", err)
	}
	if engine.CrossoverWeight() != DefaultCrossoverWeight {
		t.Fatal("expected rejected weight to leave config unchanged")
	}
	if err := engine.SetGenerationsPerCall(3); err != nil || engine.GenerationsPerCall() != 3 {
		t.Fatalf("set generations per call: %v", err)
	}
	if err := engine.SetGenerationsPerCall(0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid generations per call, got %v", err)
	}
	engine.SetEliteProtected(false)
	if engine.EliteProtected() {
		t.Fatal("expected elite protection disabled")
	}

	if err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if engine.Step() != 3 {
		t.Fatalf("expected Evolve to honour generations per call, got step %d", engine.Step())
	}
}

func TestEnginesDoNotShareState(t *testing.T) {
	a, err := New(newPopulation(1, 2), quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	b, err := New(newPopulation(1, 2), quietConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := a.EvolveN(context.Background(), 3); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if b.Step() != 0 || b.Statistics().TotalMax != 0 {
		t.Fatal("expected second engine untouched by the first")
	}
}

func TestRestoreRejectsNegativeStep(t *testing.T) {
	engine, err := New(newPopulation(1), DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	stats := model.NewStatistics()
	stats.Step = -1
	if err := engine.Restore(stats); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid restore, got %v", err)
	}
}
