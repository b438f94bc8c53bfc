package qmodel

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr3q/internal/base"
	"cdr3q/internal/feature"
	"cdr3q/internal/genomic"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

func seqs(cdr3s ...string) []model.Sequence {
	out := make([]model.Sequence, len(cdr3s))
	for i, s := range cdr3s {
		out[i] = model.Sequence{CDR3: s}
	}
	return out
}

func newTwoSymbolModel(t *testing.T) (*Model, *base.Model) {
	t.Helper()
	b := base.New()
	m, err := New(b, nil, seqs("AAB", "ABB"), seqs("AAA", "ABA", "BAB", "BBB"),
		Options{Alphabet: "AB", Chain: "humanTRB", Seed: 7})
	require.NoError(t, err)
	return m, b
}

func TestNewTwoSymbolScenario(t *testing.T) {
	m, b := newTwoSymbolModel(t)
	idx := m.Index()
	require.Equal(t, 7, idx.Len())
	assert.Equal(t, 3, idx.MinL())
	assert.Equal(t, 3, idx.MaxL())
	for i, k := range idx.Keys() {
		j, err := idx.Lookup(k)
		require.NoError(t, err)
		assert.Equal(t, i, j)
	}
	assert.True(t, b.IsConstant(0))

	// pos0 parameters already satisfy the gauge: 0.5*1.5 + 0.5*0.5 == 1
	params := []float64{0.7, math.Log(1.5), math.Log(0.5), 0, 0, 0, 0}
	require.NoError(t, b.SetParams(params))
	require.NoError(t, m.ComputeEnergies())

	want := []float64{0.7 + math.Log(1.5), 0.7 + math.Log(1.5), 0.7 + math.Log(0.5), 0.7 + math.Log(0.5)}
	require.Len(t, m.EnergiesGen(), 4)
	for i := range want {
		assert.InDelta(t, want[i], m.EnergiesGen()[i], 1e-12)
	}
	assert.InDelta(t, 0.7+math.Log(1.5), m.EnergiesData()[0], 1e-12)
}

func TestNewConfigurationErrors(t *testing.T) {
	_, err := New(base.New(), nil, nil, nil, Options{Chain: "humanTRB"})
	assert.True(t, errors.Is(err, qerr.ErrConfiguration))

	_, err = New(base.New(), nil, seqs("AAA"), nil, Options{Chain: "dogTRB"})
	assert.True(t, errors.Is(err, qerr.ErrConfiguration))

	_, err = New(base.New(), nil, seqs("AAA"), nil, Options{Chain: "humanTRB", IncludeGenes: true})
	assert.True(t, errors.Is(err, qerr.ErrConfiguration))
}

func TestNewWithGenes(t *testing.T) {
	src := genomic.StaticSource{
		VGenes: []string{"TRBV5-1*01", "TRBV5-1*02", "TRBV7-9*01"},
		JGenes: []string{"TRBJ2-7*01"},
	}
	data := []model.Sequence{{CDR3: "CASSF", V: "TRBV5-1*01", J: "TRBJ2-7*01"}}
	gen := []model.Sequence{{CDR3: "CASF", V: "TRBV7-9*01", J: "TRBJ2-7*01"}}
	m, err := New(base.New(), src, data, gen, Options{Chain: "humanTRB", IncludeGenes: true})
	require.NoError(t, err)
	assert.Equal(t, 2+(4+5)*20+2, m.Index().Len())
	assert.True(t, m.Index().IncludesGenes())
}

func randomModel(t *testing.T, minL int) (*Model, *base.Model) {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	const alphabet = "ACDE"
	gen := make([]model.Sequence, 200)
	for i := range gen {
		n := 3 + r.Intn(3)
		b := make([]byte, n)
		for j := range b {
			b[j] = alphabet[r.Intn(len(alphabet))]
		}
		gen[i] = model.Sequence{CDR3: string(b)}
	}
	bm := base.New()
	m, err := New(bm, nil, gen[:50], gen, Options{MinL: minL, MaxL: 5, Alphabet: alphabet, Chain: "humanTRB", Seed: 1})
	require.NoError(t, err)
	p := make([]float64, m.Index().Len())
	for i := range p {
		p[i] = r.NormFloat64()
	}
	require.NoError(t, bm.SetParams(p))
	return m, bm
}

func TestGaugeInvariantAndIdempotence(t *testing.T) {
	m, b := randomModel(t, 3)
	require.NoError(t, m.SetGauge())
	once := append([]float64(nil), b.Params()...)

	gen := b.GenMarginals()
	idx := m.Index()
	for _, g := range idx.Groups() {
		li, _ := idx.LengthIndex(g.L)
		sum := 0.0
		for _, fi := range g.Members {
			sum += gen[fi] / gen[li] * math.Exp(b.Params()[fi])
		}
		assert.InDeltaf(t, 1.0, sum, 1e-9, "group l=%d i=%d", g.L, g.Pos)
	}

	require.NoError(t, m.SetGauge())
	assert.InDeltaSlice(t, once, b.Params(), 1e-9)
}

func TestGaugeSkipsEmptyLength(t *testing.T) {
	m, b := randomModel(t, 2) // no sequence has length 2
	before := append([]float64(nil), b.Params()...)
	require.NoError(t, m.SetGauge())
	for _, g := range m.Index().GroupsForLength(2) {
		for _, fi := range g.Members {
			assert.Equal(t, before[fi], b.Params()[fi])
		}
	}
	fixed := m.Index().GroupsForLength(3)[0].Members[0]
	assert.NotEqual(t, before[fixed], b.Params()[fixed])
}

func TestEnergyLinearity(t *testing.T) {
	m, b := randomModel(t, 3)
	genFeatures := b.SeqFeatures(model.SetGen)
	params := append([]float64(nil), b.Params()...)
	before := Energies(params, genFeatures)

	target := genFeatures[0][2]
	const delta = 0.37
	params[target] += delta
	after := Energies(params, genFeatures)

	for i, fs := range genFeatures {
		active := false
		sum := 0.0
		for _, f := range fs {
			sum += params[f]
			if f == target {
				active = true
			}
		}
		assert.Equal(t, sum, after[i])
		if active {
			assert.InDelta(t, before[i]+delta, after[i], 1e-12)
		} else {
			assert.Equal(t, before[i], after[i])
		}
	}
	assert.Equal(t, SeqEnergy(b.Params(), genFeatures[1]), m.SeqEnergy(genFeatures[1]))
}

func TestRejectionVectorAllRejected(t *testing.T) {
	m, b := newTwoSymbolModel(t)
	p := make([]float64, 7)
	p[0] = 1e6 // l3 carries no gauge
	require.NoError(t, b.SetParams(p))

	sel, err := m.RejectionVector(10)
	require.True(t, errors.Is(err, qerr.ErrAllRejected))
	assert.Equal(t, []bool{false, false, false, false}, sel.Mask)
	assert.Zero(t, sel.Accepted)

	installed, ok := m.Selection()
	require.True(t, ok)
	assert.Equal(t, sel.Mask, installed.Mask)
}

func TestRejectionVectorReplacesMask(t *testing.T) {
	m, _ := newTwoSymbolModel(t)
	_, ok := m.Selection()
	assert.False(t, ok)

	sel, err := m.RejectionVector(1) // zero params: Q/Z == 1 everywhere
	require.NoError(t, err)
	assert.Equal(t, 4, sel.Accepted)
	assert.Equal(t, 1.0, sel.Frequency)
	assert.InDelta(t, 1.0, sel.Z, 1e-12)

	_, err = m.RejectionVector(0)
	assert.True(t, errors.Is(err, qerr.ErrConfiguration))
}

func TestComputeEnergiesAlwaysFixesGauge(t *testing.T) {
	m, b := newTwoSymbolModel(t)
	p := []float64{0, 1, 1, 0, 0, 0, 0}
	require.NoError(t, b.SetParams(p))
	require.NoError(t, m.ComputeEnergies())
	// G = 0.5e + 0.5e = e, so both pos0 parameters drop to 0
	assert.InDelta(t, 0, b.Params()[1], 1e-12)
	assert.InDelta(t, 0, b.Params()[2], 1e-12)
	for _, e := range m.EnergiesGen() {
		assert.InDelta(t, 0, e, 1e-12)
	}
}

func TestLookupMissSurfaces(t *testing.T) {
	_, err := New(base.New(), nil, seqs("AAA"), seqs("ABZ"), Options{Alphabet: "AB", Chain: "humanTRB"})
	assert.True(t, errors.Is(err, qerr.ErrFeatureLookupMiss))
}

var _ Base = (*base.Model)(nil)

func TestFixGaugeRejectsMismatchedVectors(t *testing.T) {
	idx, err := feature.Build(feature.Options{MinL: 1, MaxL: 1, Alphabet: "AB"})
	require.NoError(t, err)
	_, err = FixGauge(make([]float64, 2), make([]float64, 3), idx, 1, 1)
	assert.True(t, errors.Is(err, qerr.ErrConfiguration))
}
