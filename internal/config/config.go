// Package config loads run configuration from TOML or YAML files with
// GENALG_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"genalg/internal/evo"
	"genalg/internal/storage"
)

const envPrefix = "GENALG_"

// Config holds everything a run needs.
type Config struct {
	Problem        string `toml:"problem" yaml:"problem" env:"PROBLEM"`
	Genes          int    `toml:"genes" yaml:"genes" env:"GENES"`
	PopulationSize int    `toml:"population_size" yaml:"population_size" env:"POPULATION_SIZE"`
	// Generations is the total number of generations a run evolves.
	Generations int `toml:"generations" yaml:"generations" env:"GENERATIONS"`
	// FitnessGoal stops a run early once reached; 0 disables it.
	FitnessGoal float64 `toml:"fitness_goal" yaml:"fitness_goal" env:"FITNESS_GOAL"`
	// CheckpointEvery persists a population snapshot every N generations;
	// 0 keeps only the final snapshot.
	CheckpointEvery int `toml:"checkpoint_every" yaml:"checkpoint_every" env:"CHECKPOINT_EVERY"`
	Workers         int `toml:"workers" yaml:"workers" env:"WORKERS"`

	Engine    EngineConfig    `toml:"engine" yaml:"engine" envPrefix:"ENGINE_"`
	Store     StoreConfig     `toml:"store" yaml:"store" envPrefix:"STORE_"`
	Log       LogConfig       `toml:"log" yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry" envPrefix:"OTEL_"`
}

type EngineConfig struct {
	GenerationsPerCall int     `toml:"generations_per_call" yaml:"generations_per_call" env:"GENERATIONS_PER_CALL"`
	MutationWeight     float64 `toml:"mutation_weight" yaml:"mutation_weight" env:"MUTATION_WEIGHT"`
	CrossoverWeight    float64 `toml:"crossover_weight" yaml:"crossover_weight" env:"CROSSOVER_WEIGHT"`
	EliteProtected     bool    `toml:"elite_protected" yaml:"elite_protected" env:"ELITE_PROTECTED"`
	Seed               int64   `toml:"seed" yaml:"seed" env:"SEED"`
	Verbose            bool    `toml:"verbose" yaml:"verbose" env:"VERBOSE"`
}

type StoreConfig struct {
	Kind string `toml:"kind" yaml:"kind" env:"KIND"`
	Path string `toml:"path" yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level" env:"LEVEL"`
	Format string `toml:"format" yaml:"format" env:"FORMAT"`
}

type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `toml:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
}

// Default mirrors the engine defaults: one generation per call, mutation
// weight 0.05, crossover weight 0.3, elite protected.
func Default() Config {
	engine := evo.DefaultConfig()
	return Config{
		Problem:        "onemax",
		PopulationSize: 50,
		Generations:    100,
		Workers:        4,
		Engine: EngineConfig{
			GenerationsPerCall: engine.GenerationsPerCall,
			MutationWeight:     engine.MutationWeight,
			CrossoverWeight:    engine.CrossoverWeight,
			EliteProtected:     engine.EliteProtected,
			Seed:               engine.Seed,
		},
		Store: StoreConfig{
			Kind: storage.DefaultStoreKind(),
			Path: "genalg.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "genalg",
		},
	}
}

// Load starts from Default, decodes path when non-empty, applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode toml config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg with any GENALG_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Problem == "" {
		errs = append(errs, errors.New("problem is required"))
	}
	if c.PopulationSize <= 0 {
		errs = append(errs, errors.New("population size must be > 0"))
	}
	if c.Generations <= 0 {
		errs = append(errs, errors.New("generations must be > 0"))
	}
	if c.CheckpointEvery < 0 {
		errs = append(errs, errors.New("checkpoint interval must be >= 0"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must be >= 0"))
	}
	if err := storage.CheckKind(c.Store.Kind); err != nil {
		errs = append(errs, err)
	}
	if err := c.EvoConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EvoConfig maps the engine section onto evo.Config. Collaborators (sink,
// evaluator, rand) are left for the caller to fill in.
func (c Config) EvoConfig() evo.Config {
	return evo.Config{
		GenerationsPerCall: c.Engine.GenerationsPerCall,
		MutationWeight:     c.Engine.MutationWeight,
		CrossoverWeight:    c.Engine.CrossoverWeight,
		EliteProtected:     c.Engine.EliteProtected,
		Seed:               c.Engine.Seed,
		Verbose:            c.Engine.Verbose,
	}
}
