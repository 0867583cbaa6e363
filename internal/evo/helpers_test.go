package evo

import (
	"context"
	"fmt"
	"math/rand"

	"genalg/internal/model"
)

// testChromosome is a minimal contract implementation whose behaviour the
// tests can script.
type testChromosome struct {
	id           string
	fitness      float64
	alwaysMutate bool
	mutateErr    error
	crossErr     error
	mutated      bool
	crossed      bool
	partners     []string
}

func (c *testChromosome) ID() string       { return c.id }
func (c *testChromosome) Fitness() float64 { return c.fitness }
func (c *testChromosome) Mutated() bool    { return c.mutated }
func (c *testChromosome) Crossovered() bool {
	return c.crossed
}

func (c *testChromosome) Mutate(rng *rand.Rand, rate float64) (int, error) {
	if c.mutateErr != nil {
		return 0, c.mutateErr
	}
	c.crossed = false
	n := 0
	if c.alwaysMutate || rng.Float64() < rate {
		n = 1
		c.fitness += 0.5
	}
	c.mutated = n > 0
	return n, nil
}

func (c *testChromosome) Crossover(_ *rand.Rand, partner Chromosome) error {
	if c.crossErr != nil {
		return c.crossErr
	}
	c.crossed = true
	c.partners = append(c.partners, partner.ID())
	return nil
}

func (c *testChromosome) Clone() Chromosome {
	clone := *c
	clone.partners = append([]string(nil), c.partners...)
	return &clone
}

func newPopulation(fitness ...float64) []Chromosome {
	population := make([]Chromosome, len(fitness))
	for i, f := range fitness {
		population[i] = &testChromosome{id: fmt.Sprintf("c%d", i), fitness: f}
	}
	return population
}

func fitnessOf(population []Chromosome) []float64 {
	out := make([]float64, len(population))
	for i, c := range population {
		out[i] = c.Fitness()
	}
	return out
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.MutationWeight = 0
	cfg.CrossoverWeight = 0
	return cfg
}

type recordedEvent struct {
	kind       string
	step       int
	population []ChromosomeSnapshot
}

type recordingSink struct {
	events []recordedEvent
	stats  []model.Statistics
}

func (s *recordingSink) OnGenerationStart(_ context.Context, ev GenerationStart) {
	s.events = append(s.events, recordedEvent{kind: "start", step: ev.Step, population: ev.Population})
}

func (s *recordingSink) OnSelection(_ context.Context, ev PhaseEvent) {
	s.events = append(s.events, recordedEvent{kind: "selection", step: ev.Step, population: ev.Population})
}

func (s *recordingSink) OnVariation(_ context.Context, ev PhaseEvent) {
	s.events = append(s.events, recordedEvent{kind: "variation", step: ev.Step, population: ev.Population})
}

func (s *recordingSink) OnStatistics(_ context.Context, stats model.Statistics) {
	s.events = append(s.events, recordedEvent{kind: "statistics", step: stats.Step})
	s.stats = append(s.stats, stats)
}

func (s *recordingSink) OnGenerationEnd(_ context.Context, ev GenerationEnd) {
	s.events = append(s.events, recordedEvent{kind: "end", step: ev.Step, population: ev.Population})
}

func (s *recordingSink) OnGenerationError(_ context.Context, ev GenerationError) {
	s.events = append(s.events, recordedEvent{kind: "error:" + string(ev.Phase), step: ev.Step})
}
