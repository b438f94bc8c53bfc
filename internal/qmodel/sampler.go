package qmodel

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"cdr3q/internal/qerr"
)

// DefaultUpperBound is the default clip on Q/Z.
const DefaultUpperBound = 10.0

// Selection is the outcome of one rejection sampling run.
type Selection struct {
	Mask      []bool  // one entry per generated sequence
	Z         float64 // mean of exp(-energy) over the generated set
	Accepted  int
	Frequency float64 // Accepted / len(Mask)
}

// CheckUpperBound rejects non-positive or non-finite bounds.
func CheckUpperBound(upperBound float64) error {
	if !(upperBound > 0) || math.IsInf(upperBound, 0) {
		return fmt.Errorf("%w: rejection upper bound must be positive and finite, got %v", qerr.ErrConfiguration, upperBound)
	}
	return nil
}

// SelectionFactors returns Q = exp(-energy) per sequence.
func SelectionFactors(energies []float64) []float64 {
	q := make([]float64, len(energies))
	for i, e := range energies {
		q[i] = math.Exp(-e)
	}
	return q
}

// AcceptanceProbabilities returns clip(Q/Z, 0, upperBound) / upperBound.
// Sequences with Q/Z above upperBound are always accepted; this truncates the
// tail of the target distribution and is left to the caller to tolerate.
func AcceptanceProbabilities(q []float64, z, upperBound float64) []float64 {
	p := make([]float64, len(q))
	for i, v := range q {
		r := v / z
		switch {
		case math.IsNaN(r) || r < 0:
			r = 0
		case r > upperBound:
			r = upperBound
		}
		p[i] = r / upperBound
	}
	return p
}

// Sample draws one accept/reject decision per generated sequence so that the
// accepted set is distributed as pgen * exp(-energy) / Z. One uniform value is
// drawn per sequence before anything else, so a seeded rng reproduces the
// mask exactly. A zero or non-finite Z yields an all-false mask together with
// ErrAllRejected.
func Sample(energies []float64, upperBound float64, rng *rand.Rand) (Selection, error) {
	if err := CheckUpperBound(upperBound); err != nil {
		return Selection{}, err
	}
	draws := make([]float64, len(energies))
	for i := range draws {
		draws[i] = rng.Float64()
	}
	sel := Selection{Mask: make([]bool, len(energies))}
	if len(energies) == 0 {
		return sel, fmt.Errorf("%w: no generated sequences", qerr.ErrAllRejected)
	}

	q := SelectionFactors(energies)
	sel.Z = stat.Mean(q, nil)
	if !(sel.Z > 0) || math.IsInf(sel.Z, 0) {
		return sel, fmt.Errorf("%w: normalizing estimate Z=%v", qerr.ErrAllRejected, sel.Z)
	}
	for i, p := range AcceptanceProbabilities(q, sel.Z, upperBound) {
		if draws[i] < p {
			sel.Mask[i] = true
			sel.Accepted++
		}
	}
	sel.Frequency = float64(sel.Accepted) / float64(len(sel.Mask))
	return sel, nil
}
