// Package oracle computes baseline generation probabilities (pgen) for CDR3
// sequences. A Scorer handles one sequence; a Pool fans a batch out across
// workers and returns the probabilities in input order, or an error and no
// values at all.
package oracle

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cdr3q/internal/logging"
	"cdr3q/internal/metrics"
	"cdr3q/internal/model"
)

// Scorer returns the generation probability of a single sequence.
type Scorer interface {
	Pgen(ctx context.Context, chain string, s model.Sequence) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, chain string, s model.Sequence) (float64, error)

func (f ScorerFunc) Pgen(ctx context.Context, chain string, s model.Sequence) (float64, error) {
	return f(ctx, chain, s)
}

// Pool scores batches with bounded parallelism.
type Pool struct {
	scorer  Scorer
	limiter *rate.Limiter
}

// NewPool returns a pool over s. limiter may be nil for unthrottled scoring.
func NewPool(s Scorer, limiter *rate.Limiter) *Pool {
	return &Pool{scorer: s, limiter: limiter}
}

// GenerationProbabilities scores seqs with up to workers concurrent calls
// (all CPUs when workers <= 0). The first failure cancels the rest.
func (p *Pool) GenerationProbabilities(ctx context.Context, seqs []model.Sequence, chain string, workers int) ([]float64, error) {
	start := time.Now()
	defer metrics.ObserveOracleDuration(start)
	metrics.OracleCalls.Inc()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]float64, len(seqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range seqs {
		i, s := i, s
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			v, err := p.scorer.Pgen(gctx, chain, s)
			if err != nil {
				return fmt.Errorf("sequence %d (%s): %w", i, s.CDR3, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.OracleErrors.Inc()
		logging.Error("oracle_batch_failed", map[string]any{"chain": chain, "sequences": len(seqs), "error": err.Error()})
		return nil, err
	}
	return out, nil
}
