package evo

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Evaluator recomputes the fitness of every chromosome after the
// mutation/crossover pass and before statistics are taken.
type Evaluator interface {
	Evaluate(ctx context.Context, population []Chromosome) error
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, population []Chromosome) error

func (f EvaluatorFunc) Evaluate(ctx context.Context, population []Chromosome) error {
	return f(ctx, population)
}

// ParallelEvaluator scores chromosomes concurrently with at most Workers
// goroutines. Score must only touch the chromosome it is given.
type ParallelEvaluator struct {
	Workers int
	Score   func(ctx context.Context, c Chromosome) error
}

func (p ParallelEvaluator) Evaluate(ctx context.Context, population []Chromosome) error {
	if p.Score == nil {
		return errors.New("parallel evaluator requires a score function")
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, c := range population {
		g.Go(func() error {
			return p.Score(gCtx, c)
		})
	}
	return g.Wait()
}
