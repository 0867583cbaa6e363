// Package problem holds sample optimisation problems that plug chromosome
// encodings and fitness functions into the evolution engine.
package problem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/google/uuid"

	"genalg/internal/evo"
	"genalg/internal/model"
)

var ErrIncompatiblePartner = errors.New("crossover partner has a different encoding")

// Options parameterise problem construction.
type Options struct {
	// Genes is the chromosome length or vector dimension; 0 selects the
	// problem default.
	Genes int
}

// Problem creates, scores, and (de)serialises the chromosomes of one encoding.
type Problem interface {
	Name() string
	NewPopulation(rng *rand.Rand, size int) ([]evo.Chromosome, error)
	// Score recomputes and caches the fitness of c. It touches only c.
	Score(ctx context.Context, c evo.Chromosome) error
	Encode(c evo.Chromosome) (json.RawMessage, error)
	Decode(record model.ChromosomeRecord) (evo.Chromosome, error)
	// GoalFitness is the best fitness the problem can reach.
	GoalFitness() float64
}

// Evaluator scores a whole population with up to workers goroutines.
func Evaluator(p Problem, workers int) evo.Evaluator {
	return evo.ParallelEvaluator{Workers: workers, Score: p.Score}
}

// Snapshot converts a population into persisted records.
func Snapshot(p Problem, population []evo.Chromosome) ([]model.ChromosomeRecord, error) {
	records := make([]model.ChromosomeRecord, 0, len(population))
	for i, c := range population {
		payload, err := p.Encode(c)
		if err != nil {
			return nil, fmt.Errorf("encode slot %d: %w", i, err)
		}
		records = append(records, model.ChromosomeRecord{
			ID:          c.ID(),
			Fitness:     c.Fitness(),
			Mutated:     c.Mutated(),
			Crossovered: c.Crossovered(),
			Payload:     payload,
		})
	}
	return records, nil
}

// Restore rebuilds a population from persisted records.
func Restore(p Problem, records []model.ChromosomeRecord) ([]evo.Chromosome, error) {
	population := make([]evo.Chromosome, 0, len(records))
	for i, record := range records {
		c, err := p.Decode(record)
		if err != nil {
			return nil, fmt.Errorf("decode slot %d: %w", i, err)
		}
		population = append(population, c)
	}
	return population, nil
}

// newID draws a UUID from rng so seeded runs are reproducible.
func newID(rng io.Reader) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// flags is the per-generation bookkeeping shared by the sample encodings.
type flags struct {
	id          string
	fitness     float64
	mutated     bool
	crossovered bool
}

func (f *flags) ID() string        { return f.id }
func (f *flags) Fitness() float64  { return f.fitness }
func (f *flags) Mutated() bool     { return f.mutated }
func (f *flags) Crossovered() bool { return f.crossovered }

func flagsFromRecord(record model.ChromosomeRecord) flags {
	return flags{
		id:          record.ID,
		fitness:     record.Fitness,
		mutated:     record.Mutated,
		crossovered: record.Crossovered,
	}
}
