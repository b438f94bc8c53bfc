// Package analytics summarizes marginal vectors: the length distribution,
// V and J family usage and length-normalized amino-acid tables.
package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"cdr3q/internal/feature"
	"cdr3q/internal/qerr"
)

// Bin is one labeled entry of a distribution.
type Bin struct {
	Label string
	P     float64
}

// Summary collects the distributions of one marginal vector.
type Summary struct {
	Name    string
	Lengths []Bin
	V       []Bin
	J       []Bin
}

func checkLen(marg []float64, idx *feature.Index) error {
	if len(marg) != idx.Len() {
		return fmt.Errorf("%w: marginal has %d entries, index has %d", qerr.ErrConfiguration, len(marg), idx.Len())
	}
	return nil
}

// LengthDistribution returns P(L) for every modeled length, read from the
// unit length features.
func LengthDistribution(marg []float64, idx *feature.Index) ([]Bin, error) {
	if err := checkLen(marg, idx); err != nil {
		return nil, err
	}
	out := make([]Bin, 0, idx.MaxL()-idx.MinL()+1)
	for l := idx.MinL(); l <= idx.MaxL(); l++ {
		li, _ := idx.LengthIndex(l)
		out = append(out, Bin{Label: idx.Key(li).Tags()[0], P: marg[li]})
	}
	return out, nil
}

// GeneMatrix returns the gene-pair marginals as a V by J matrix, rows and
// columns in the order of idx.VFamilies and idx.JFamilies.
func GeneMatrix(marg []float64, idx *feature.Index) ([][]float64, error) {
	if err := checkLen(marg, idx); err != nil {
		return nil, err
	}
	if !idx.IncludesGenes() {
		return nil, fmt.Errorf("%w: no gene features", qerr.ErrConfiguration)
	}
	vs, js := idx.VFamilies(), idx.JFamilies()
	m := make([][]float64, len(vs))
	for i, v := range vs {
		m[i] = make([]float64, len(js))
		for j, jf := range js {
			fi, err := idx.Lookup(feature.GenePairKey(v, jf))
			if err != nil {
				return nil, err
			}
			m[i][j] = marg[fi]
		}
	}
	return m, nil
}

// GeneUsage returns P(V) and P(J), summing the gene-pair matrix over the
// other gene.
func GeneUsage(marg []float64, idx *feature.Index) (v, j []Bin, err error) {
	m, err := GeneMatrix(marg, idx)
	if err != nil {
		return nil, nil, err
	}
	vs, js := idx.VFamilies(), idx.JFamilies()
	v = make([]Bin, len(vs))
	for r, name := range vs {
		v[r] = Bin{Label: "v" + name, P: floats.Sum(m[r])}
	}
	j = make([]Bin, len(js))
	col := make([]float64, len(vs))
	for c, name := range js {
		for r := range vs {
			col[r] = m[r][c]
		}
		j[c] = Bin{Label: "j" + name, P: floats.Sum(col)}
	}
	return v, j, nil
}

// PositionTable returns the amino-acid frequencies of every position of
// length l, conditioned on the length: rows are positions, columns follow
// idx.Alphabet. marg is not modified.
func PositionTable(marg []float64, idx *feature.Index, l int) ([][]float64, error) {
	if err := checkLen(marg, idx); err != nil {
		return nil, err
	}
	if !idx.HasLength(l) {
		return nil, fmt.Errorf("%w: %s", qerr.ErrFeatureLookupMiss, feature.LengthKey(l))
	}
	norm, err := feature.NormalizeMarginals(append([]float64(nil), marg...), idx, l, l)
	if err != nil {
		return nil, err
	}
	groups := idx.GroupsForLength(l)
	out := make([][]float64, len(groups))
	for i, g := range groups {
		out[i] = make([]float64, len(g.Members))
		for a, fi := range g.Members {
			out[i][a] = norm[fi]
		}
	}
	return out, nil
}

// Summarize builds the length and, when modeled, gene usage distributions.
func Summarize(name string, marg []float64, idx *feature.Index) (Summary, error) {
	s := Summary{Name: name}
	var err error
	if s.Lengths, err = LengthDistribution(marg, idx); err != nil {
		return Summary{}, err
	}
	if idx.IncludesGenes() {
		if s.V, s.J, err = GeneUsage(marg, idx); err != nil {
			return Summary{}, err
		}
	}
	return s, nil
}
