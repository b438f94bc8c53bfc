package qmodel

import (
	"fmt"
	"math"

	"cdr3q/internal/feature"
	"cdr3q/internal/qerr"
)

// FixGauge rescales the amino-acid parameters of every (length, position)
// group so that
//
//	sum_aa gen(l,i,aa)/gen(l) * exp(param(l,i,aa)) == 1
//
// by subtracting log(G) from each member, where G is the current value of
// that sum. Lengths outside [minL, maxL] are not touched; lengths with no
// generated mass are skipped. It returns the number of groups rescaled.
// Re-running on fixed parameters leaves them unchanged up to rounding.
func FixGauge(params, genMarginals []float64, idx *feature.Index, minL, maxL int) (int, error) {
	if len(params) != idx.Len() || len(genMarginals) != idx.Len() {
		return 0, fmt.Errorf("%w: vectors of %d/%d entries for %d features",
			qerr.ErrConfiguration, len(params), len(genMarginals), idx.Len())
	}
	fixed := 0
	for l := minL; l <= maxL; l++ {
		li, ok := idx.LengthIndex(l)
		if !ok {
			return fixed, fmt.Errorf("%w: %s", qerr.ErrFeatureLookupMiss, feature.LengthKey(l))
		}
		norm := genMarginals[li]
		if !(norm > 0) {
			continue
		}
		for _, g := range idx.GroupsForLength(l) {
			G := 0.0
			for _, fi := range g.Members {
				G += genMarginals[fi] / norm * math.Exp(params[fi])
			}
			// an all-zero or overflowing group has no defined gauge
			if !(G > 0) || math.IsInf(G, 0) {
				continue
			}
			shift := math.Log(G)
			for _, fi := range g.Members {
				params[fi] -= shift
			}
			fixed++
		}
	}
	return fixed, nil
}
