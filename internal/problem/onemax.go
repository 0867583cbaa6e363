package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"genalg/internal/evo"
	"genalg/internal/model"
)

const (
	OneMaxName          = "onemax"
	defaultOneMaxLength = 32
)

// BitString is a fixed-length bit chromosome. Its fitness is the number of set
// bits once scored.
type BitString struct {
	flags
	bits []bool
}

func (b *BitString) Bits() []bool {
	return append([]bool(nil), b.bits...)
}

// Mutate flips each bit independently with probability rate.
func (b *BitString) Mutate(rng *rand.Rand, rate float64) (int, error) {
	b.crossovered = false
	n := 0
	for i := range b.bits {
		if rng.Float64() < rate {
			b.bits[i] = !b.bits[i]
			n++
		}
	}
	b.mutated = n > 0
	return n, nil
}

// Crossover copies the partner's tail after a random cut point.
func (b *BitString) Crossover(rng *rand.Rand, partner evo.Chromosome) error {
	other, ok := partner.(*BitString)
	if !ok || len(other.bits) != len(b.bits) {
		return fmt.Errorf("%w: %T", ErrIncompatiblePartner, partner)
	}
	cut := rng.Intn(len(b.bits) + 1)
	copy(b.bits[cut:], other.bits[cut:])
	b.crossovered = true
	return nil
}

func (b *BitString) Clone() evo.Chromosome {
	return &BitString{flags: b.flags, bits: append([]bool(nil), b.bits...)}
}

func (b *BitString) String() string {
	var sb strings.Builder
	sb.Grow(len(b.bits))
	for _, bit := range b.bits {
		if bit {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

type OneMax struct {
	length int
}

func NewOneMax(length int) (*OneMax, error) {
	if length == 0 {
		length = defaultOneMaxLength
	}
	if length < 0 {
		return nil, fmt.Errorf("onemax length must be > 0, got %d", length)
	}
	return &OneMax{length: length}, nil
}

func (*OneMax) Name() string {
	return OneMaxName
}

func (p *OneMax) GoalFitness() float64 {
	return float64(p.length)
}

func (p *OneMax) NewPopulation(rng *rand.Rand, size int) ([]evo.Chromosome, error) {
	population := make([]evo.Chromosome, size)
	for i := range population {
		bits := make([]bool, p.length)
		for j := range bits {
			bits[j] = rng.Intn(2) == 1
		}
		b := &BitString{flags: flags{id: newID(rng)}, bits: bits}
		b.fitness = countOnes(bits)
		population[i] = b
	}
	return population, nil
}

func (p *OneMax) Score(_ context.Context, c evo.Chromosome) error {
	b, ok := c.(*BitString)
	if !ok {
		return fmt.Errorf("onemax cannot score %T", c)
	}
	b.fitness = countOnes(b.bits)
	return nil
}

type bitStringPayload struct {
	Bits string `json:"bits"`
}

func (p *OneMax) Encode(c evo.Chromosome) (json.RawMessage, error) {
	b, ok := c.(*BitString)
	if !ok {
		return nil, fmt.Errorf("onemax cannot encode %T", c)
	}
	return json.Marshal(bitStringPayload{Bits: b.String()})
}

func (p *OneMax) Decode(record model.ChromosomeRecord) (evo.Chromosome, error) {
	var payload bitStringPayload
	if err := json.Unmarshal(record.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode bit string %s: %w", record.ID, err)
	}
	if len(payload.Bits) != p.length {
		return nil, fmt.Errorf("bit string %s has length %d, want %d", record.ID, len(payload.Bits), p.length)
	}
	bits := make([]bool, len(payload.Bits))
	for i, r := range payload.Bits {
		switch r {
		case '0':
		case '1':
			bits[i] = true
		default:
			return nil, fmt.Errorf("bit string %s: invalid bit %q", record.ID, r)
		}
	}
	return &BitString{flags: flagsFromRecord(record), bits: bits}, nil
}

func countOnes(bits []bool) float64 {
	n := 0
	for _, bit := range bits {
		if bit {
			n++
		}
	}
	return float64(n)
}
