package base

import (
	"fmt"

	"cdr3q/internal/feature"
	"cdr3q/internal/genomic"
	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

// Featurize returns the active feature indices of s: its length feature, one
// position feature per amino acid and, when idx carries gene pairs, the
// feature of its V/J family pair.
func Featurize(idx *feature.Index, s model.Sequence) ([]int, error) {
	l := s.Len()
	li, ok := idx.LengthIndex(l)
	if !ok {
		return nil, fmt.Errorf("%w: %s (sequence %q)", qerr.ErrFeatureLookupMiss, feature.LengthKey(l), s.CDR3)
	}
	n := l + 1
	if idx.IncludesGenes() {
		n++
	}
	out := make([]int, 0, n)
	out = append(out, li)

	groups := idx.GroupsForLength(l)
	alphabet := idx.Alphabet()
	for i := 0; i < l; i++ {
		a := indexByte(alphabet, s.CDR3[i])
		if a < 0 {
			return nil, fmt.Errorf("%w: %s (sequence %q)", qerr.ErrFeatureLookupMiss, feature.PositionKey(l, i, s.CDR3[i]), s.CDR3)
		}
		out = append(out, groups[i].Members[a])
	}

	if idx.IncludesGenes() {
		if !s.HasGenes() {
			return nil, fmt.Errorf("%w: sequence %q has no V/J calls", qerr.ErrFeatureLookupMiss, s.CDR3)
		}
		gi, err := idx.Lookup(feature.GenePairKey(genomic.VLabel(s.V), genomic.JLabel(s.J)))
		if err != nil {
			return nil, err
		}
		out = append(out, gi)
	}
	return out, nil
}

// FeaturizeAll featurizes every sequence, failing on the first lookup miss.
func FeaturizeAll(idx *feature.Index, seqs []model.Sequence) ([][]int, error) {
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		f, err := Featurize(idx, s)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
