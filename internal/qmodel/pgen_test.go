package qmodel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

type fakeOracle struct {
	calls int
	fail  bool
}

func (f *fakeOracle) GenerationProbabilities(ctx context.Context, seqs []model.Sequence, chain string, workers int) ([]float64, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("oracle down")
	}
	out := make([]float64, len(seqs))
	for i, s := range seqs {
		out[i] = 1e-6 * float64(len(s.CDR3)+i)
	}
	return out, nil
}

func TestComputePpostBeforeSampler(t *testing.T) {
	m, _ := newTwoSymbolModel(t)
	_, err := m.ComputePpost()
	assert.True(t, errors.Is(err, qerr.ErrPrecomputationMissing))

	// a mask alone is not enough without pgen
	_, err = m.RejectionVector(DefaultUpperBound)
	require.NoError(t, err)
	_, err = m.ComputePpost()
	assert.True(t, errors.Is(err, qerr.ErrPrecomputationMissing))
}

func TestComputePgenCachesAndInvalidates(t *testing.T) {
	m, _ := newTwoSymbolModel(t)
	o := &fakeOracle{}
	ctx := context.Background()

	_, err := m.ComputePgen(ctx, o, DefaultUpperBound)
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)

	_, err = m.ComputePgen(ctx, o, DefaultUpperBound)
	require.NoError(t, err)
	assert.Equal(t, 2, o.calls)

	m.InvalidatePgen()
	_, ok := m.PgenData()
	assert.False(t, ok)
	_, err = m.ComputePgen(ctx, o, DefaultUpperBound)
	require.NoError(t, err)
	assert.Equal(t, 4, o.calls)
}

func TestComputePgenFailureStoresNothing(t *testing.T) {
	m, _ := newTwoSymbolModel(t)
	_, err := m.ComputePgen(context.Background(), &fakeOracle{fail: true}, DefaultUpperBound)
	require.Error(t, err)
	_, ok := m.PgenData()
	assert.False(t, ok)
	_, ok = m.PgenGen()
	assert.False(t, ok)
	_, ok = m.Selection()
	assert.False(t, ok)
}

func TestComputePpost(t *testing.T) {
	m, b := newTwoSymbolModel(t)
	require.NoError(t, b.SetParams([]float64{0.2, math.Log(1.5), math.Log(0.5), 0, 0, 0, 0}))

	pgenModel, err := m.ComputePgen(context.Background(), &fakeOracle{}, 2)
	require.NoError(t, err)

	post, err := m.ComputePpost()
	require.NoError(t, err)

	pgenData, _ := m.PgenData()
	pgenGen, _ := m.PgenGen()
	for i, p := range post.Data {
		assert.InDelta(t, pgenData[i]*math.Exp(-m.EnergiesData()[i]), p, 1e-18)
	}
	for i, p := range post.Gen {
		assert.InDelta(t, pgenGen[i]*math.Exp(-m.EnergiesGen()[i]), p, 1e-18)
	}

	sel, ok := m.Selection()
	require.True(t, ok)
	accepted := 0
	for _, v := range sel.Mask {
		if v {
			accepted++
		}
	}
	assert.Len(t, post.PgenModel, accepted)
	assert.Len(t, post.PpostModel, accepted)
	assert.Equal(t, pgenModel, post.PgenModel)

	j := 0
	for i, v := range sel.Mask {
		if !v {
			continue
		}
		assert.Equal(t, pgenGen[i], post.PgenModel[j])
		assert.InDelta(t, pgenGen[i]*math.Exp(-m.EnergiesGen()[i]), post.PpostModel[j], 1e-18)
		j++
	}
}

func TestComputePgenReportsAllRejected(t *testing.T) {
	m, b := newTwoSymbolModel(t)
	p := make([]float64, 7)
	p[0] = 1e6
	require.NoError(t, b.SetParams(p))

	selected, err := m.ComputePgen(context.Background(), &fakeOracle{}, DefaultUpperBound)
	assert.True(t, errors.Is(err, qerr.ErrAllRejected))
	assert.Empty(t, selected)

	post, err := m.ComputePpost()
	require.NoError(t, err)
	assert.Empty(t, post.PpostModel)
	assert.Len(t, post.Gen, 4)
}
