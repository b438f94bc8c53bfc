package oracle

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"

	"cdr3q/internal/metrics"
	"cdr3q/internal/model"
	"cdr3q/internal/store/sqlitestore"
)

// PgenStore is the persistent tier of a CachedScorer.
type PgenStore interface {
	GetPgen(ctx context.Context, chain string, s model.Sequence) (float64, error)
	PutPgen(ctx context.Context, chain string, s model.Sequence, p float64) error
}

type cacheKey struct {
	chain string
	seq   model.Sequence
}

// CachedScorer serves repeated sequences from an in-memory LRU and, when a
// store is set, from SQLite before falling back to the wrapped scorer.
type CachedScorer struct {
	next  Scorer
	mem   *lru.Cache[cacheKey, float64]
	store PgenStore
}

// NewCachedScorer wraps next. store may be nil.
func NewCachedScorer(next Scorer, size int, store PgenStore) (*CachedScorer, error) {
	if size <= 0 {
		size = 4096
	}
	mem, err := lru.New[cacheKey, float64](size)
	if err != nil {
		return nil, err
	}
	return &CachedScorer{next: next, mem: mem, store: store}, nil
}

func (c *CachedScorer) Pgen(ctx context.Context, chain string, s model.Sequence) (float64, error) {
	k := cacheKey{chain: chain, seq: s}
	if p, ok := c.mem.Get(k); ok {
		metrics.OracleCacheHits.Inc()
		return p, nil
	}
	if c.store != nil {
		p, err := c.store.GetPgen(ctx, chain, s)
		switch {
		case err == nil:
			metrics.OracleCacheHits.Inc()
			c.mem.Add(k, p)
			return p, nil
		case !errors.Is(err, sqlitestore.ErrNotFound):
			return 0, err
		}
	}
	p, err := c.next.Pgen(ctx, chain, s)
	if err != nil {
		return 0, err
	}
	c.mem.Add(k, p)
	if c.store != nil {
		if err := c.store.PutPgen(ctx, chain, s, p); err != nil {
			return 0, err
		}
	}
	return p, nil
}
