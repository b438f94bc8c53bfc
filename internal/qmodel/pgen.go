package qmodel

import (
	"context"
	"errors"
	"fmt"

	"cdr3q/internal/logging"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

// Posterior holds post-selection probabilities. The model arrays cover only
// the generated sequences accepted by the current selection mask, in
// generated-set order.
type Posterior struct {
	Data       []float64
	Gen        []float64
	PgenModel  []float64
	PpostModel []float64
}

// PgenData returns the cached data-set generation probabilities, if any.
func (m *Model) PgenData() ([]float64, bool) { return m.pgenData, m.pgenData != nil }

// PgenGen returns the cached generated-set generation probabilities, if any.
func (m *Model) PgenGen() ([]float64, bool) { return m.pgenGen, m.pgenGen != nil }

// InvalidatePgen drops both cached generation probability arrays.
func (m *Model) InvalidatePgen() {
	m.pgenData = nil
	m.pgenGen = nil
}

// ComputePgen fills the generation probability caches that are still empty,
// then recomputes energies and draws a new selection mask. It returns the
// generation probabilities of the accepted generated sequences. A failed
// oracle call stores nothing.
func (m *Model) ComputePgen(ctx context.Context, o Oracle, upperBound float64) ([]float64, error) {
	if m.pgenData == nil {
		p, err := m.fetch(ctx, o, m.dataSeqs, model.SetData)
		if err != nil {
			return nil, err
		}
		m.pgenData = p
	}
	if m.pgenGen == nil {
		p, err := m.fetch(ctx, o, m.genSeqs, model.SetGen)
		if err != nil {
			return nil, err
		}
		m.pgenGen = p
	}
	sel, err := m.RejectionVector(upperBound)
	if err != nil && !errors.Is(err, qerr.ErrAllRejected) {
		return nil, err
	}
	return Filter(m.pgenGen, sel.Mask), err
}

func (m *Model) fetch(ctx context.Context, o Oracle, seqs []model.Sequence, set model.Set) ([]float64, error) {
	p, err := o.GenerationProbabilities(ctx, seqs, m.chain, m.workers)
	if err != nil {
		return nil, fmt.Errorf("pgen %s: %w", set, err)
	}
	if len(p) != len(seqs) {
		return nil, fmt.Errorf("pgen %s: oracle returned %d values for %d sequences", set, len(p), len(seqs))
	}
	logging.Info("pgen_computed", map[string]any{"set": string(set), "sequences": len(seqs)})
	return p, nil
}

// ComputePpost recomputes energies on the full data and generated sets and
// weights the cached generation probabilities by exp(-energy). The model
// arrays are taken from the full generated arrays through the current mask,
// after the recomputation. It needs both pgen caches and a selection mask.
func (m *Model) ComputePpost() (Posterior, error) {
	if m.pgenData == nil || m.pgenGen == nil {
		return Posterior{}, fmt.Errorf("%w: generation probabilities not computed", qerr.ErrPrecomputationMissing)
	}
	if m.selection == nil {
		return Posterior{}, fmt.Errorf("%w: no selection mask, run the rejection sampler first", qerr.ErrPrecomputationMissing)
	}
	if len(m.selection.Mask) != len(m.genSeqs) {
		return Posterior{}, fmt.Errorf("%w: selection mask covers %d of %d generated sequences",
			qerr.ErrPrecomputationMissing, len(m.selection.Mask), len(m.genSeqs))
	}
	if err := m.ComputeEnergies(); err != nil {
		return Posterior{}, err
	}
	var (
		post Posterior
		err  error
	)
	if post.Data, err = Combine(m.pgenData, m.energiesData); err != nil {
		return Posterior{}, err
	}
	if post.Gen, err = Combine(m.pgenGen, m.energiesGen); err != nil {
		return Posterior{}, err
	}
	post.PgenModel = Filter(m.pgenGen, m.selection.Mask)
	post.PpostModel = Filter(post.Gen, m.selection.Mask)
	logging.Info("ppost_computed", map[string]any{
		"data":     len(post.Data),
		"gen":      len(post.Gen),
		"selected": len(post.PpostModel),
	})
	return post, nil
}
