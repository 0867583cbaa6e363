package evo

import "math/rand"

// VariationCounts are the mutation and crossover events of one pass.
type VariationCounts struct {
	Mutations  int
	Crossovers int
}

// variationStart is the first slot the mutation/crossover pass visits. Slot 0
// holds the elite and is never varied; with elite protection its duplicate in
// slot 1 is left untouched too.
func variationStart(size int, eliteProtected bool) int {
	if eliteProtected && size > 1 {
		return 2
	}
	return 1
}

// crossoverPartner draws a uniform partner position, excluding the elite slot
// when it is protected.
func crossoverPartner(rng *rand.Rand, size int, eliteProtected bool) int {
	low := 0
	if eliteProtected && size > 1 {
		low = 1
	}
	return low + rng.Intn(size-low)
}

func vary(rng *rand.Rand, population []Chromosome, cfg Config) (VariationCounts, error) {
	var counts VariationCounts
	for i := variationStart(len(population), cfg.EliteProtected); i < len(population); i++ {
		c := population[i]
		n, err := c.Mutate(rng, cfg.MutationWeight)
		if err != nil {
			return counts, err
		}
		counts.Mutations += n

		if !c.Crossovered() && rng.Float64() < cfg.CrossoverWeight {
			partner := population[crossoverPartner(rng, len(population), cfg.EliteProtected)]
			if err := c.Crossover(rng, partner); err != nil {
				return counts, err
			}
			counts.Crossovers++
		}
	}
	return counts, nil
}
