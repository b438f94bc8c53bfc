// Package qmodel is the selection model over CDR3 length, position and amino
// acid (optionally V/J family pairs). It fixes the gauge of the position
// parameters, evaluates per-sequence energies, rejection-samples generated
// sequences into a post-selection sample and combines generation
// probabilities with energies into post-selection probabilities.
//
// A Model is not safe for concurrent use: gauge fixing mutates the parameter
// vector that energy evaluation reads.
package qmodel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"cdr3q/internal/feature"
	"cdr3q/internal/genomic"
	"cdr3q/internal/logging"
	"cdr3q/internal/metrics"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

// Base is the modeling collaborator that owns features, marginals and
// parameters. UpdateModel is called exactly once by New.
type Base interface {
	UpdateModel(idx *feature.Index, constant []int, data, gen []model.Sequence) error
	SeqFeatures(set model.Set) [][]int
	GenMarginals() []float64
	Params() []float64
}

// Oracle computes baseline generation probabilities, one per sequence and in
// input order. A failed call must not return a partial result.
type Oracle interface {
	GenerationProbabilities(ctx context.Context, seqs []model.Sequence, chain string, workers int) ([]float64, error)
}

// Options configures New. Zero MinL/MaxL are derived from the sequences.
type Options struct {
	MinL         int
	MaxL         int
	Alphabet     string
	IncludeGenes bool
	Chain        string
	Workers      int
	Seed         int64 // 0 seeds from the clock
}

// Model is the selection model bound to one data set and one generated set.
type Model struct {
	base    Base
	idx     *feature.Index
	chain   string
	workers int
	rng     *rand.Rand

	dataSeqs []model.Sequence
	genSeqs  []model.Sequence

	energiesData []float64
	energiesGen  []float64

	selection *Selection // nil until the sampler has run

	pgenData []float64 // nil until fetched from the oracle
	pgenGen  []float64
}

// New builds the feature space, installs it in b together with both
// sequence sets, and returns the model.
func New(b Base, genes genomic.FamilySource, data, gen []model.Sequence, opts Options) (*Model, error) {
	if err := genomic.CheckChain(opts.Chain); err != nil {
		return nil, err
	}
	minL, maxL, err := feature.DeriveBounds(opts.MinL, opts.MaxL, data, gen)
	if err != nil {
		return nil, err
	}
	fo := feature.Options{MinL: minL, MaxL: maxL, Alphabet: opts.Alphabet, IncludeGenes: opts.IncludeGenes}
	if opts.IncludeGenes {
		if genes == nil {
			return nil, fmt.Errorf("%w: gene features need a genomic source", qerr.ErrConfiguration)
		}
		if fo.VFamilies, fo.JFamilies, err = genes.FamilyLabels(opts.Chain); err != nil {
			return nil, err
		}
	}
	idx, err := feature.Build(fo)
	if err != nil {
		return nil, err
	}
	if err := b.UpdateModel(idx, idx.LengthFeatures(), data, gen); err != nil {
		return nil, err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Model{
		base:     b,
		idx:      idx,
		chain:    opts.Chain,
		workers:  opts.Workers,
		rng:      rand.New(rand.NewSource(seed)),
		dataSeqs: data,
		genSeqs:  gen,
	}, nil
}

func (m *Model) Index() *feature.Index { return m.idx }
func (m *Model) Chain() string         { return m.chain }

// SetRand replaces the random source used by the sampler.
func (m *Model) SetRand(r *rand.Rand) { m.rng = r }

// SetGauge fixes the gauge of the base parameters in place over the
// model's full length range.
func (m *Model) SetGauge() error {
	n, err := FixGauge(m.base.Params(), m.base.GenMarginals(), m.idx, m.idx.MinL(), m.idx.MaxL())
	if err != nil {
		return err
	}
	metrics.GaugeFixes.Inc()
	logging.Debug("gauge_fixed", map[string]any{"groups": n})
	return nil
}

// SeqEnergy returns the energy of one active feature list under the current
// parameters. Call SetGauge first for energies to be proper log-weights.
func (m *Model) SeqEnergy(seqFeatures []int) float64 {
	return SeqEnergy(m.base.Params(), seqFeatures)
}

// ComputeEnergies fixes the gauge, then recomputes energies for the full data
// set and the full generated set. The gauge pass runs on every call.
func (m *Model) ComputeEnergies() error {
	if err := m.SetGauge(); err != nil {
		return err
	}
	params := m.base.Params()
	dataFeatures := m.base.SeqFeatures(model.SetData)
	genFeatures := m.base.SeqFeatures(model.SetGen)
	m.energiesData = Energies(params, dataFeatures)
	m.energiesGen = Energies(params, genFeatures)
	metrics.EnergyEvaluations.Add(float64(len(dataFeatures) + len(genFeatures)))
	logging.Debug("energies_computed", map[string]any{"data": len(dataFeatures), "gen": len(genFeatures)})
	return nil
}

// EnergiesData returns the last computed data energies (nil before
// ComputeEnergies). The slice must not be modified.
func (m *Model) EnergiesData() []float64 { return m.energiesData }

// EnergiesGen returns the last computed generated-set energies.
func (m *Model) EnergiesGen() []float64 { return m.energiesGen }

// RejectionVector recomputes energies and draws a fresh selection mask over
// the generated set, replacing any previous one. On ErrAllRejected the
// all-false selection is still installed and returned.
func (m *Model) RejectionVector(upperBound float64) (Selection, error) {
	if err := CheckUpperBound(upperBound); err != nil {
		return Selection{}, err
	}
	if err := m.ComputeEnergies(); err != nil {
		return Selection{}, err
	}
	sel, err := Sample(m.energiesGen, upperBound, m.rng)
	if err != nil && !errors.Is(err, qerr.ErrAllRejected) {
		return sel, err
	}
	m.selection = &sel
	allRejected := err != nil
	metrics.ObserveSampling(sel.Frequency, sel.Z, allRejected)
	fields := map[string]any{
		"acceptance_frequency": sel.Frequency,
		"accepted":             sel.Accepted,
		"generated":            len(sel.Mask),
		"upper_bound":          upperBound,
	}
	if allRejected {
		fields["error"] = err.Error()
		logging.Warn("rejection_sampled", fields)
		return sel, err
	}
	fields["z"] = sel.Z
	logging.Info("rejection_sampled", fields)
	return sel, nil
}

// Selection returns the most recent sampler output.
func (m *Model) Selection() (Selection, bool) {
	if m.selection == nil {
		return Selection{}, false
	}
	return *m.selection, true
}
