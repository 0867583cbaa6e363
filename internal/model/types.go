package model

import (
	"encoding/json"
	"math"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Statistics is the rolling per-generation and all-time bookkeeping of an engine.
//
// Current and all-time minimums start at +Inf and maximums at 0, which assumes
// non-negative fitness.
type Statistics struct {
	Step int `json:"step"`

	CurrentMax  float64 `json:"current_max"`
	CurrentMin  float64 `json:"current_min"`
	CurrentMean float64 `json:"current_mean"`
	TotalMax    float64 `json:"total_max"`
	TotalMin    float64 `json:"total_min"`

	Mutations       int `json:"mutations"`
	TotalMutations  int `json:"total_mutations"`
	Crossovers      int `json:"crossovers"`
	TotalCrossovers int `json:"total_crossovers"`

	ImprovementsThroughCrossover int `json:"improvements_through_crossover"`
	ImprovementsThroughMutation  int `json:"improvements_through_mutation"`
	ImprovementsThroughBoth      int `json:"improvements_through_both"`
}

// NewStatistics returns the statistics of an engine that has not evolved yet.
func NewStatistics() Statistics {
	return Statistics{
		CurrentMin: math.Inf(1),
		TotalMin:   math.Inf(1),
	}
}

// statisticsJSON mirrors Statistics with the unset minimums encoded as null,
// since JSON has no representation for infinity.
type statisticsJSON struct {
	Step                         int      `json:"step"`
	CurrentMax                   float64  `json:"current_max"`
	CurrentMin                   *float64 `json:"current_min"`
	CurrentMean                  float64  `json:"current_mean"`
	TotalMax                     float64  `json:"total_max"`
	TotalMin                     *float64 `json:"total_min"`
	Mutations                    int      `json:"mutations"`
	TotalMutations               int      `json:"total_mutations"`
	Crossovers                   int      `json:"crossovers"`
	TotalCrossovers              int      `json:"total_crossovers"`
	ImprovementsThroughCrossover int      `json:"improvements_through_crossover"`
	ImprovementsThroughMutation  int      `json:"improvements_through_mutation"`
	ImprovementsThroughBoth      int      `json:"improvements_through_both"`
}

func (s Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(statisticsJSON{
		Step:                         s.Step,
		CurrentMax:                   s.CurrentMax,
		CurrentMin:                   finiteOrNil(s.CurrentMin),
		CurrentMean:                  s.CurrentMean,
		TotalMax:                     s.TotalMax,
		TotalMin:                     finiteOrNil(s.TotalMin),
		Mutations:                    s.Mutations,
		TotalMutations:               s.TotalMutations,
		Crossovers:                   s.Crossovers,
		TotalCrossovers:              s.TotalCrossovers,
		ImprovementsThroughCrossover: s.ImprovementsThroughCrossover,
		ImprovementsThroughMutation:  s.ImprovementsThroughMutation,
		ImprovementsThroughBoth:      s.ImprovementsThroughBoth,
	})
}

func (s *Statistics) UnmarshalJSON(data []byte) error {
	var raw statisticsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Statistics{
		Step:                         raw.Step,
		CurrentMax:                   raw.CurrentMax,
		CurrentMin:                   infIfNil(raw.CurrentMin),
		CurrentMean:                  raw.CurrentMean,
		TotalMax:                     raw.TotalMax,
		TotalMin:                     infIfNil(raw.TotalMin),
		Mutations:                    raw.Mutations,
		TotalMutations:               raw.TotalMutations,
		Crossovers:                   raw.Crossovers,
		TotalCrossovers:              raw.TotalCrossovers,
		ImprovementsThroughCrossover: raw.ImprovementsThroughCrossover,
		ImprovementsThroughMutation:  raw.ImprovementsThroughMutation,
		ImprovementsThroughBoth:      raw.ImprovementsThroughBoth,
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func infIfNil(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}

// EngineSettings is the persisted form of the engine configuration.
type EngineSettings struct {
	GenerationsPerCall int     `json:"generations_per_call"`
	MutationWeight     float64 `json:"mutation_weight"`
	CrossoverWeight    float64 `json:"crossover_weight"`
	EliteProtected     bool    `json:"elite_protected"`
	Seed               int64   `json:"seed"`
	Verbose            bool    `json:"verbose,omitempty"`
}

// ChromosomeRecord is a persisted chromosome. Payload is problem-specific.
type ChromosomeRecord struct {
	ID          string          `json:"id"`
	Fitness     float64         `json:"fitness"`
	Mutated     bool            `json:"mutated"`
	Crossovered bool            `json:"crossovered"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Checkpoint is a full population snapshot taken between generations.
type Checkpoint struct {
	VersionedRecord
	RunID      string             `json:"run_id"`
	Step       int                `json:"step"`
	Settings   EngineSettings     `json:"settings"`
	Statistics Statistics         `json:"statistics"`
	Population []ChromosomeRecord `json:"population"`
	CreatedAt  time.Time          `json:"created_at"`
}

// RunRecord describes one evolution run.
type RunRecord struct {
	VersionedRecord
	ID              string         `json:"id"`
	Problem         string         `json:"problem"`
	Genes           int            `json:"genes,omitempty"`
	PopulationSize  int            `json:"population_size"`
	Workers         int            `json:"workers,omitempty"`
	FitnessGoal     float64        `json:"fitness_goal,omitempty"`
	CheckpointEvery int            `json:"checkpoint_every,omitempty"`
	Settings        EngineSettings `json:"settings"`
	CreatedAt       time.Time      `json:"created_at"`
}

// GenerationRecord is the statistics row stored for every completed generation.
type GenerationRecord struct {
	RunID      string     `json:"run_id"`
	Statistics Statistics `json:"statistics"`
	FittestID  string     `json:"fittest_id"`
}
