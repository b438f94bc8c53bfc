// Package base is the base modeling collaborator of the selection model. It
// owns the installed feature list, the per-sequence active features, the
// data/generated/model marginals and the parameter vector. Training is not
// implemented here.
package base

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"cdr3q/internal/feature"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

// Model holds everything the selection core reads. It is not safe for
// concurrent mutation.
type Model struct {
	idx      *feature.Index
	constant map[int]struct{}

	dataSeqs []model.Sequence
	genSeqs  []model.Sequence

	dataFeatures [][]int
	genFeatures  [][]int

	dataMarginals  []float64
	genMarginals   []float64
	modelMarginals []float64

	params []float64
}

func New() *Model { return &Model{} }

// UpdateModel installs the feature index, marks the constant features,
// computes active features for both sequence sets and their marginals, and
// resets the parameters to zero.
func (m *Model) UpdateModel(idx *feature.Index, constant []int, data, gen []model.Sequence) error {
	dataFeatures, err := FeaturizeAll(idx, data)
	if err != nil {
		return fmt.Errorf("data sequences: %w", err)
	}
	genFeatures, err := FeaturizeAll(idx, gen)
	if err != nil {
		return fmt.Errorf("generated sequences: %w", err)
	}
	m.idx = idx
	m.constant = make(map[int]struct{}, len(constant))
	for _, c := range constant {
		m.constant[c] = struct{}{}
	}
	m.dataSeqs = data
	m.genSeqs = gen
	m.dataFeatures = dataFeatures
	m.genFeatures = genFeatures
	m.dataMarginals = Marginals(idx.Len(), dataFeatures, nil)
	m.genMarginals = Marginals(idx.Len(), genFeatures, nil)
	m.modelMarginals = append([]float64(nil), m.genMarginals...)
	m.params = make([]float64, idx.Len())
	return nil
}

// Index returns the installed feature index (nil before UpdateModel).
func (m *Model) Index() *feature.Index { return m.idx }

// IsConstant reports whether feature i was installed as a constant feature.
func (m *Model) IsConstant(i int) bool {
	_, ok := m.constant[i]
	return ok
}

// Sequences returns the installed sequences of a set.
func (m *Model) Sequences(set model.Set) []model.Sequence {
	if set == model.SetData {
		return m.dataSeqs
	}
	return m.genSeqs
}

// SeqFeatures returns the active feature lists of a set, in sequence order.
func (m *Model) SeqFeatures(set model.Set) [][]int {
	if set == model.SetData {
		return m.dataFeatures
	}
	return m.genFeatures
}

func (m *Model) DataMarginals() []float64  { return m.dataMarginals }
func (m *Model) GenMarginals() []float64   { return m.genMarginals }
func (m *Model) ModelMarginals() []float64 { return m.modelMarginals }

// Params returns the live parameter vector. Gauge fixing mutates it in place.
func (m *Model) Params() []float64 { return m.params }

// SetParams replaces the parameter vector.
func (m *Model) SetParams(p []float64) error {
	if len(p) != len(m.params) {
		return fmt.Errorf("%w: %d parameters for %d features", qerr.ErrConfiguration, len(p), len(m.params))
	}
	copy(m.params, p)
	return nil
}

// UpdateModelMarginals reweights the generated set by exp(-energy).
func (m *Model) UpdateModelMarginals(energiesGen []float64) error {
	if len(energiesGen) != len(m.genFeatures) {
		return fmt.Errorf("%w: %d energies for %d generated sequences", qerr.ErrPrecomputationMissing, len(energiesGen), len(m.genFeatures))
	}
	w := make([]float64, len(energiesGen))
	for i, e := range energiesGen {
		w[i] = math.Exp(-e)
	}
	m.modelMarginals = Marginals(len(m.params), m.genFeatures, w)
	return nil
}

// SeedParams sets an independent-site estimate of the parameters:
// log(gen/data) for length and gene-pair features and the same ratio of
// length-conditioned frequencies for position features. pseudocount keeps
// unobserved features finite.
func (m *Model) SeedParams(pseudocount float64) {
	if m.idx == nil {
		return
	}
	ratio := func(gen, data float64) float64 {
		return math.Log((gen + pseudocount) / (data + pseudocount))
	}
	for i := range m.params {
		k := m.idx.Key(i)
		if k.Kind != feature.KindLengthPosAA {
			m.params[i] = ratio(m.genMarginals[i], m.dataMarginals[i])
			continue
		}
		li, _ := m.idx.LengthIndex(k.L)
		g, d := m.genMarginals[i], m.dataMarginals[i]
		if m.genMarginals[li] > 0 {
			g /= m.genMarginals[li]
		}
		if m.dataMarginals[li] > 0 {
			d /= m.dataMarginals[li]
		}
		m.params[i] = ratio(g, d)
	}
}

// Marginals averages the feature indicator vectors of a sequence set. With
// nil weights every sequence counts equally; otherwise weights are
// normalized to sum to 1. A zero total weight yields all zeros.
func Marginals(n int, seqFeatures [][]int, weights []float64) []float64 {
	out := make([]float64, n)
	if len(seqFeatures) == 0 {
		return out
	}
	total := float64(len(seqFeatures))
	if weights != nil {
		total = floats.Sum(weights)
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return out
	}
	for s, fs := range seqFeatures {
		w := 1.0
		if weights != nil {
			w = weights[s]
		}
		for _, f := range fs {
			out[f] += w
		}
	}
	floats.Scale(1/total, out)
	return out
}
