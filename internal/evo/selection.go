package evo

import (
	"math/rand"
)

// SelectionEntry pairs a chromosome with the cumulative fitness of the
// population up to and including it.
type SelectionEntry struct {
	Chromosome        Chromosome
	CumulativeFitness float64
}

// BuildSelectionEntries freezes the roulette wheel over population in order.
func BuildSelectionEntries(population []Chromosome) []SelectionEntry {
	entries := make([]SelectionEntry, len(population))
	sum := 0.0
	for i, c := range population {
		sum += c.Fitness()
		entries[i] = SelectionEntry{Chromosome: c, CumulativeFitness: sum}
	}
	return entries
}

// TotalMass returns the last cumulative sum, or 0 for no entries.
func TotalMass(entries []SelectionEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].CumulativeFitness
}

// Pick returns the index of the first entry whose cumulative fitness is >= r.
// When r is 0 (all fitness zero) the first entry is chosen. If rounding leaves
// r above every sum, the last entry is chosen.
func Pick(entries []SelectionEntry, r float64) int {
	for i, entry := range entries {
		if entry.CumulativeFitness >= r {
			return i
		}
	}
	return len(entries) - 1
}

// RouletteSelector performs fitness-proportionate selection in place.
type RouletteSelector struct {
	EliteProtected bool
}

func (RouletteSelector) Name() string {
	return "roulette"
}

// Select promotes the fittest chromosome into slot 0, duplicates it into slot 1
// when the elite is protected, and refills the remaining slots with clones
// drawn against the frozen pre-selection wheel.
func (s RouletteSelector) Select(rng *rand.Rand, population []Chromosome) error {
	if len(population) == 0 {
		return ErrEmptyPopulation
	}
	entries := BuildSelectionEntries(population)
	totalMass := TotalMass(entries)

	if err := promoteFittest(population); err != nil {
		return err
	}

	start := 1
	if s.EliteProtected && len(population) > 1 {
		elite, err := cloneAt(population, 0)
		if err != nil {
			return err
		}
		population[1] = elite
		start = 2
	}

	for i := start; i < len(population); i++ {
		r := rng.Float64() * totalMass
		j := Pick(entries, r)
		survivor, err := cloneOf(entries[j].Chromosome, j)
		if err != nil {
			return err
		}
		population[i] = survivor
	}
	return nil
}

// promoteFittest folds left over the population: any chromosome strictly
// fitter than the current slot 0 replaces it with a clone, and later
// comparisons see the updated slot 0.
func promoteFittest(population []Chromosome) error {
	for i := range population {
		if population[0].Fitness() < population[i].Fitness() {
			best, err := cloneAt(population, i)
			if err != nil {
				return err
			}
			population[0] = best
		}
	}
	return nil
}
