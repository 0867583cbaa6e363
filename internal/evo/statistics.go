package evo

import (
	"math"

	"genalg/internal/model"
)

// Fittest returns the first chromosome whose fitness no later chromosome
// exceeds. It returns nil for an empty population.
func Fittest(population []Chromosome) Chromosome {
	var fittest Chromosome
	for _, c := range population {
		if fittest == nil || c.Fitness() > fittest.Fitness() {
			fittest = c
		}
	}
	return fittest
}

// Worst returns the first chromosome whose fitness no later chromosome
// undercuts. It returns nil for an empty population.
func Worst(population []Chromosome) Chromosome {
	var worst Chromosome
	for _, c := range population {
		if worst == nil || c.Fitness() < worst.Fitness() {
			worst = c
		}
	}
	return worst
}

// recordVariation stores the per-generation counts and adds them to the totals.
func recordVariation(stats *model.Statistics, counts VariationCounts) {
	stats.Mutations = counts.Mutations
	stats.Crossovers = counts.Crossovers
	stats.TotalMutations += counts.Mutations
	stats.TotalCrossovers += counts.Crossovers
}

// recordFitness recomputes the current max/min/mean in one scan and folds them
// into the all-time extremes. The current max starts at 0, so it assumes
// non-negative fitness.
func recordFitness(stats *model.Statistics, population []Chromosome) {
	currentMax := 0.0
	currentMin := math.Inf(1)
	sum := 0.0
	for _, c := range population {
		fitness := c.Fitness()
		currentMax = math.Max(currentMax, fitness)
		currentMin = math.Min(currentMin, fitness)
		sum += fitness
	}
	stats.CurrentMax = currentMax
	stats.CurrentMin = currentMin
	stats.CurrentMean = sum / float64(len(population))
	stats.TotalMax = math.Max(stats.TotalMax, currentMax)
	stats.TotalMin = math.Min(stats.TotalMin, currentMin)
}

// recordImprovement credits the operators that last touched the fittest
// chromosome. It looks at one chromosome only, so it approximates which
// operator drove the generation's best rather than proving it.
func recordImprovement(stats *model.Statistics, population []Chromosome) {
	fittest := Fittest(population)
	if fittest == nil {
		return
	}
	crossed, mutated := fittest.Crossovered(), fittest.Mutated()
	switch {
	case crossed && mutated:
		stats.ImprovementsThroughBoth++
	case crossed:
		stats.ImprovementsThroughCrossover++
	case mutated:
		stats.ImprovementsThroughMutation++
	}
}
