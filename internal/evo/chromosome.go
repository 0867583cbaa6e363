package evo

import (
	"math"
	"math/rand"
)

// Chromosome is the capability set every candidate solution implements.
//
// Fitness is a cached value maintained by problem code; the engine only reads
// it. A chromosome that has never been evaluated reports 0.
//
// Mutate is the per-generation reset point for both flags: it must set
// Mutated() to count > 0 and clear Crossovered(). rate is the engine's
// mutation weight; the chromosome decides how many mutation events it applies.
//
// Crossover recombines the receiver in place with partner, which may be the
// receiver itself, and must set Crossovered().
//
// Clone returns a deep copy with identical ID, fitness, and flags.
type Chromosome interface {
	ID() string
	Fitness() float64
	Mutate(rng *rand.Rand, rate float64) (int, error)
	Mutated() bool
	Crossover(rng *rand.Rand, partner Chromosome) error
	Crossovered() bool
	Clone() Chromosome
}

// ValidatePopulation checks every slot against the parts of the contract that
// can be observed without side effects.
func ValidatePopulation(population []Chromosome) error {
	for i, c := range population {
		if err := validateChromosome(i, c); err != nil {
			return err
		}
	}
	return nil
}

func validateChromosome(index int, c Chromosome) error {
	if c == nil {
		return &ContractViolationError{Index: index, Reason: "chromosome is nil"}
	}
	clone := c.Clone()
	if clone == nil {
		return &ContractViolationError{Index: index, Reason: "clone returned nil"}
	}
	if clone.ID() != c.ID() {
		return &ContractViolationError{Index: index, Reason: "clone changed identity"}
	}
	if !sameFitness(clone.Fitness(), c.Fitness()) {
		return &ContractViolationError{Index: index, Reason: "clone changed fitness"}
	}
	return nil
}

func sameFitness(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func cloneAt(population []Chromosome, index int) (Chromosome, error) {
	return cloneOf(population[index], index)
}

func cloneOf(c Chromosome, index int) (Chromosome, error) {
	clone := c.Clone()
	if clone == nil {
		return nil, &ContractViolationError{Index: index, Reason: "clone returned nil"}
	}
	return clone, nil
}
