package qmodel

// SeqEnergy sums params over a sequence's active feature indices.
func SeqEnergy(params []float64, seqFeatures []int) float64 {
	e := 0.0
	for _, f := range seqFeatures {
		e += params[f]
	}
	return e
}

// Energies evaluates SeqEnergy for every sequence, in order.
func Energies(params []float64, seqFeatures [][]int) []float64 {
	out := make([]float64, len(seqFeatures))
	for i, fs := range seqFeatures {
		out[i] = SeqEnergy(params, fs)
	}
	return out
}
