package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"genalg/internal/evo"
	"genalg/internal/model"
)

const (
	SphereName             = "sphere"
	defaultSphereDimension = 5
	sphereBound            = 5.12
	sphereMutationSigma    = 0.3
)

// RealVector is a real-valued chromosome bounded to [-5.12, 5.12] per gene.
type RealVector struct {
	flags
	genes []float64
}

func (v *RealVector) Genes() []float64 {
	return append([]float64(nil), v.genes...)
}

// Mutate adds Gaussian noise to each gene independently with probability rate.
func (v *RealVector) Mutate(rng *rand.Rand, rate float64) (int, error) {
	v.crossovered = false
	n := 0
	for i := range v.genes {
		if rng.Float64() < rate {
			v.genes[i] = clamp(v.genes[i]+rng.NormFloat64()*sphereMutationSigma, -sphereBound, sphereBound)
			n++
		}
	}
	v.mutated = n > 0
	return n, nil
}

// Crossover blends the receiver toward the partner by a random factor.
func (v *RealVector) Crossover(rng *rand.Rand, partner evo.Chromosome) error {
	other, ok := partner.(*RealVector)
	if !ok || len(other.genes) != len(v.genes) {
		return fmt.Errorf("%w: %T", ErrIncompatiblePartner, partner)
	}
	alpha := rng.Float64()
	for i := range v.genes {
		v.genes[i] = alpha*v.genes[i] + (1-alpha)*other.genes[i]
	}
	v.crossovered = true
	return nil
}

func (v *RealVector) Clone() evo.Chromosome {
	return &RealVector{flags: v.flags, genes: append([]float64(nil), v.genes...)}
}

// Sphere scores vectors as 1/(1+Σx²), so fitness lies in (0, 1] and peaks at
// the origin.
type Sphere struct {
	dimension int
}

func NewSphere(dimension int) (*Sphere, error) {
	if dimension == 0 {
		dimension = defaultSphereDimension
	}
	if dimension < 0 {
		return nil, fmt.Errorf("sphere dimension must be > 0, got %d", dimension)
	}
	return &Sphere{dimension: dimension}, nil
}

func (*Sphere) Name() string {
	return SphereName
}

func (*Sphere) GoalFitness() float64 {
	return 1
}

func (p *Sphere) NewPopulation(rng *rand.Rand, size int) ([]evo.Chromosome, error) {
	population := make([]evo.Chromosome, size)
	for i := range population {
		genes := make([]float64, p.dimension)
		for j := range genes {
			genes[j] = (rng.Float64()*2 - 1) * sphereBound
		}
		v := &RealVector{flags: flags{id: newID(rng)}, genes: genes}
		v.fitness = sphereFitness(genes)
		population[i] = v
	}
	return population, nil
}

func (p *Sphere) Score(_ context.Context, c evo.Chromosome) error {
	v, ok := c.(*RealVector)
	if !ok {
		return fmt.Errorf("sphere cannot score %T", c)
	}
	v.fitness = sphereFitness(v.genes)
	return nil
}

type realVectorPayload struct {
	Genes []float64 `json:"genes"`
}

func (p *Sphere) Encode(c evo.Chromosome) (json.RawMessage, error) {
	v, ok := c.(*RealVector)
	if !ok {
		return nil, fmt.Errorf("sphere cannot encode %T", c)
	}
	return json.Marshal(realVectorPayload{Genes: v.genes})
}

func (p *Sphere) Decode(record model.ChromosomeRecord) (evo.Chromosome, error) {
	var payload realVectorPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode real vector %s: %w", record.ID, err)
	}
	if len(payload.Genes) != p.dimension {
		return nil, fmt.Errorf("real vector %s has dimension %d, want %d", record.ID, len(payload.Genes), p.dimension)
	}
	return &RealVector{flags: flagsFromRecord(record), genes: payload.Genes}, nil
}

func sphereFitness(genes []float64) float64 {
	sum := 0.0
	for _, x := range genes {
		sum += x * x
	}
	return 1 / (1 + sum)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
