package jobs

import (
	"context"
	"errors"
	"time"

	"cdr3q/internal/base"
	"cdr3q/internal/config"
	"cdr3q/internal/genomic"
	"cdr3q/internal/logging"
	"cdr3q/internal/model"
	"cdr3q/internal/oracle"
	"cdr3q/internal/qerr"
	"cdr3q/internal/qmodel"
	"cdr3q/internal/seqio"
	"cdr3q/internal/store/sqlitestore"
)

// RunStore records sampling runs.
type RunStore interface {
	PutRun(ctx context.Context, r sqlitestore.Run) (string, error)
}

// Deps are the collaborators of RunSelection. Genes is needed only when
// gene features are modeled; Store may be nil.
type Deps struct {
	Oracle qmodel.Oracle
	Genes  genomic.FamilySource
	Store  RunStore
}

// SelectionResult is the outcome of one pipeline run.
type SelectionResult struct {
	RunID     string
	Data      []model.Sequence
	Gen       []model.Sequence
	Model     *qmodel.Model
	Base      *base.Model
	Selection qmodel.Selection
	Posterior qmodel.Posterior
}

// RunSelection builds the model over data and gen, seeds its parameters,
// fetches generation probabilities, draws a selection mask, computes
// post-selection probabilities and reweighted model marginals, then records
// the run. When every generated sequence is rejected the result is still
// completed and returned together with qerr.ErrAllRejected.
func RunSelection(ctx context.Context, cfg config.Config, data, gen []model.Sequence, deps Deps) (*SelectionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Oracle == nil {
		return nil, errors.New("no pgen oracle configured")
	}
	start := time.Now()
	b := base.New()
	m, err := qmodel.New(b, deps.Genes, data, gen, qmodel.Options{
		MinL:         cfg.Model.MinL,
		MaxL:         cfg.Model.MaxL,
		Alphabet:     cfg.Model.Alphabet,
		IncludeGenes: cfg.Model.IncludeGenes,
		Chain:        cfg.Model.ChainType,
		Workers:      cfg.Oracle.Workers,
		Seed:         cfg.Sampling.Seed,
	})
	if err != nil {
		return nil, err
	}
	b.SeedParams(cfg.Model.Pseudocount)

	_, rejectErr := m.ComputePgen(ctx, deps.Oracle, cfg.Sampling.UpperBound)
	if rejectErr != nil && !errors.Is(rejectErr, qerr.ErrAllRejected) {
		return nil, rejectErr
	}
	post, err := m.ComputePpost()
	if err != nil {
		return nil, err
	}
	if err := b.UpdateModelMarginals(m.EnergiesGen()); err != nil {
		return nil, err
	}
	sel, _ := m.Selection()
	res := &SelectionResult{Data: data, Gen: gen, Model: m, Base: b, Selection: sel, Posterior: post}

	if deps.Store != nil {
		id, err := deps.Store.PutRun(ctx, sqlitestore.Run{
			Chain:      m.Chain(),
			UpperBound: cfg.Sampling.UpperBound,
			Z:          sel.Z,
			Accepted:   sel.Accepted,
			Mask:       sel.Mask,
			Params:     b.Params(),
		})
		if err != nil {
			return nil, err
		}
		res.RunID = id
	}
	logging.Info("selection_run", map[string]any{
		"run_id":     res.RunID,
		"chain":      m.Chain(),
		"features":   m.Index().Len(),
		"data":       len(data),
		"gen":        len(gen),
		"accepted":   sel.Accepted,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return res, rejectErr
}

// Rows flattens the result into a probability table: data sequences first,
// then generated sequences with their selection flag.
func (r *SelectionResult) Rows() []seqio.Row {
	pgenData, _ := r.Model.PgenData()
	pgenGen, _ := r.Model.PgenGen()
	ed, eg := r.Model.EnergiesData(), r.Model.EnergiesGen()
	rows := make([]seqio.Row, 0, len(r.Data)+len(r.Gen))
	for i, s := range r.Data {
		rows = append(rows, seqio.Row{Seq: s, Set: model.SetData, Pgen: pgenData[i], Energy: ed[i], Ppost: r.Posterior.Data[i]})
	}
	for i, s := range r.Gen {
		selected := r.Selection.Mask[i]
		rows = append(rows, seqio.Row{Seq: s, Set: model.SetGen, Pgen: pgenGen[i], Energy: eg[i], Ppost: r.Posterior.Gen[i], Selected: &selected})
	}
	return rows
}

// NewOracle assembles the pgen oracle from configuration: an HTTP scorer
// behind the LRU and, when db is set, the SQLite cache.
func NewOracle(cfg config.Config, db *sqlitestore.DB) (*oracle.Pool, error) {
	scorer := oracle.NewHTTPScorer(cfg.Oracle.URL, oracle.HTTPOptions{
		RPS:         cfg.Oracle.RPS,
		Burst:       cfg.Oracle.Burst,
		MaxAttempts: cfg.Oracle.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Oracle.BaseBackoffMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.Oracle.TimeoutSec) * time.Second,
	})
	var store oracle.PgenStore
	if db != nil {
		store = db
	}
	cached, err := oracle.NewCachedScorer(scorer, cfg.Storage.CacheSize, store)
	if err != nil {
		return nil, err
	}
	return oracle.NewPool(cached, nil), nil
}

// NewGenes returns the genomic source for cfg, or nil when gene features
// are off.
func NewGenes(cfg config.Config) genomic.FamilySource {
	if !cfg.Model.IncludeGenes {
		return nil
	}
	return genomic.TableSource{Dir: cfg.Genomic.Dir}
}
