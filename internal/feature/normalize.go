package feature

import (
	"fmt"

	"cdr3q/internal/qerr"
)

// NormalizeMarginals divides every (length, position, amino acid) entry of
// marg by its length's unit marginal, in place, so the entries of each
// position sum to 1 across amino acids. Lengths whose unit marginal is zero
// are left unmodified. marg is returned for convenience.
func NormalizeMarginals(marg []float64, idx *Index, minL, maxL int) ([]float64, error) {
	if len(marg) != idx.Len() {
		return marg, fmt.Errorf("%w: marginal has %d entries, index has %d", qerr.ErrConfiguration, len(marg), idx.Len())
	}
	for l := minL; l <= maxL; l++ {
		li, ok := idx.LengthIndex(l)
		if !ok {
			return marg, fmt.Errorf("%w: %s", qerr.ErrFeatureLookupMiss, LengthKey(l))
		}
		norm := marg[li]
		if norm <= 0 {
			continue
		}
		for _, g := range idx.GroupsForLength(l) {
			for _, fi := range g.Members {
				marg[fi] /= norm
			}
		}
	}
	return marg, nil
}
