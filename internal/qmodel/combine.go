package qmodel

import (
	"fmt"
	"math"

	"cdr3q/internal/qerr"
)

// Combine returns pgen * exp(-energy) elementwise.
func Combine(pgen, energies []float64) ([]float64, error) {
	if len(pgen) != len(energies) {
		return nil, fmt.Errorf("%w: %d generation probabilities for %d energies", qerr.ErrPrecomputationMissing, len(pgen), len(energies))
	}
	out := make([]float64, len(pgen))
	for i := range pgen {
		out[i] = pgen[i] * math.Exp(-energies[i])
	}
	return out, nil
}

// Filter keeps the entries of xs whose mask entry is true, preserving order.
func Filter(xs []float64, mask []bool) []float64 {
	out := make([]float64, 0, len(xs))
	for i, keep := range mask {
		if keep && i < len(xs) {
			out = append(out, xs[i])
		}
	}
	return out
}
