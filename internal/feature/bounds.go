package feature

import (
	"fmt"

	"cdr3q/internal/model"
	"cdr3q/internal/qerr"
)

// DeriveBounds resolves the modeled length range. A positive minL or maxL is
// taken as given; a missing bound is the minimum (maximum) CDR3 length
// observed across all sets.
func DeriveBounds(minL, maxL int, sets ...[]model.Sequence) (int, int, error) {
	lo, hi, seen := 0, 0, false
	for _, set := range sets {
		for _, s := range set {
			n := s.Len()
			if !seen || n < lo {
				lo = n
			}
			if !seen || n > hi {
				hi = n
			}
			seen = true
		}
	}
	if minL <= 0 {
		if !seen {
			return 0, 0, fmt.Errorf("%w: no sequences and no minimum length", qerr.ErrConfiguration)
		}
		minL = lo
	}
	if maxL <= 0 {
		if !seen {
			return 0, 0, fmt.Errorf("%w: no sequences and no maximum length", qerr.ErrConfiguration)
		}
		maxL = hi
	}
	if minL < 1 || maxL < minL {
		return 0, 0, fmt.Errorf("%w: invalid length bounds [%d, %d]", qerr.ErrConfiguration, minL, maxL)
	}
	return minL, maxL, nil
}
