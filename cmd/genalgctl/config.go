package main

import (
	"flag"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"genalg/internal/config"
	"genalg/pkg/genalg"
)

type appConfig = config.Config

type commonFlags struct {
	config       *string
	store        *string
	dbPath       *string
	logLevel     *string
	logFormat    *string
	otelEndpoint *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	defaults := config.Default()
	return &commonFlags{
		config:       fs.String("config", "", "config file (.toml, .yaml, .yml)"),
		store:        fs.String("store", defaults.Store.Kind, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaults.Store.Path, "sqlite database path"),
		logLevel:     fs.String("log-level", defaults.Log.Level, "log level: debug|info|warn|error"),
		logFormat:    fs.String("log-format", defaults.Log.Format, "log format: text|json"),
		otelEndpoint: fs.String("otel-endpoint", "", "OTLP/HTTP trace endpoint; tracing is off when empty"),
	}
}

type runFlags struct {
	runID           *string
	problem         *string
	genes           *int
	population      *int
	generations     *int
	generationsCall *int
	mutationWeight  *float64
	crossoverWeight *float64
	elite           *bool
	seed            *int64
	workers         *int
	verbose         *bool
	checkpointEvery *int
	fitnessGoal     *float64
	replicas        *int
	parallel        *int
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	defaults := config.Default()
	return &runFlags{
		runID:           fs.String("run-id", "", "explicit run id; generated when empty"),
		problem:         fs.String("problem", defaults.Problem, "problem name (see the problems command)"),
		genes:           fs.Int("genes", defaults.Genes, "chromosome length or dimension; 0 uses the problem default"),
		population:      fs.Int("population", defaults.PopulationSize, "population size"),
		generations:     fs.Int("generations", defaults.Generations, "generations to evolve"),
		generationsCall: fs.Int("generations-per-call", defaults.Engine.GenerationsPerCall, "generations per Evolve call"),
		mutationWeight:  fs.Float64("mutation-weight", defaults.Engine.MutationWeight, "mutation weight in [0, 1]"),
		crossoverWeight: fs.Float64("crossover-weight", defaults.Engine.CrossoverWeight, "crossover probability in [0, 1]"),
		elite:           fs.Bool("elite", defaults.Engine.EliteProtected, "protect the fittest chromosome from variation"),
		seed:            fs.Int64("seed", defaults.Engine.Seed, "random seed"),
		workers:         fs.Int("workers", defaults.Workers, "fitness evaluation workers"),
		verbose:         fs.Bool("verbose", defaults.Engine.Verbose, "log every chromosome at each phase"),
		checkpointEvery: fs.Int("checkpoint-every", defaults.CheckpointEvery, "checkpoint every N generations; 0 keeps only the final one"),
		fitnessGoal:     fs.Float64("fitness-goal", defaults.FitnessGoal, "stop once the best fitness reaches this value; 0 disables"),
		replicas:        fs.Int("replicas", 1, "independent runs with consecutive seeds"),
		parallel:        fs.Int("parallel", 0, "replica runs in flight; 0 runs all at once"),
	}
}

// load reads the config file and environment, then applies the flags that
// were set explicitly on the command line.
func (c *commonFlags) load(fs *flag.FlagSet, run *runFlags) (appConfig, error) {
	cfg := config.Default()
	if *c.config != "" {
		loaded, err := config.Load(*c.config)
		if err != nil {
			return appConfig{}, err
		}
		cfg = loaded
	} else if err := config.ApplyEnv(&cfg); err != nil {
		return appConfig{}, err
	}

	set := setFlags(fs)
	if set["store"] {
		cfg.Store.Kind = *c.store
	}
	if set["db-path"] {
		cfg.Store.Path = *c.dbPath
	}
	if set["log-level"] {
		cfg.Log.Level = *c.logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *c.logFormat
	}
	if set["otel-endpoint"] {
		cfg.Telemetry.Endpoint = *c.otelEndpoint
	}
	if run != nil {
		run.apply(set, &cfg)
	}
	if err := cfg.Validate(); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func (r *runFlags) apply(set map[string]bool, cfg *appConfig) {
	if set["problem"] {
		cfg.Problem = *r.problem
	}
	if set["genes"] {
		cfg.Genes = *r.genes
	}
	if set["population"] {
		cfg.PopulationSize = *r.population
	}
	if set["generations"] {
		cfg.Generations = *r.generations
	}
	if set["generations-per-call"] {
		cfg.Engine.GenerationsPerCall = *r.generationsCall
	}
	if set["mutation-weight"] {
		cfg.Engine.MutationWeight = *r.mutationWeight
	}
	if set["crossover-weight"] {
		cfg.Engine.CrossoverWeight = *r.crossoverWeight
	}
	if set["elite"] {
		cfg.Engine.EliteProtected = *r.elite
	}
	if set["seed"] {
		cfg.Engine.Seed = *r.seed
	}
	if set["workers"] {
		cfg.Workers = *r.workers
	}
	if set["verbose"] {
		cfg.Engine.Verbose = *r.verbose
	}
	if set["checkpoint-every"] {
		cfg.CheckpointEvery = *r.checkpointEvery
	}
	if set["fitness-goal"] {
		cfg.FitnessGoal = *r.fitnessGoal
	}
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func runRequestFromConfig(cfg appConfig, runID string) genalg.RunRequest {
	engine := cfg.EvoConfig()
	return genalg.RunRequest{
		RunID:           runID,
		Problem:         cfg.Problem,
		Genes:           cfg.Genes,
		Population:      cfg.PopulationSize,
		Generations:     cfg.Generations,
		FitnessGoal:     cfg.FitnessGoal,
		CheckpointEvery: cfg.CheckpointEvery,
		Workers:         cfg.Workers,
		Engine:          &engine,
	}
}

func tracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}
