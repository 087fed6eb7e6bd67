package nystrom

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// sampleIndices draws m distinct row indices from [0, n) uniformly at
// random. Sampling is without replacement within a draw, so duplicate
// landmarks cannot bias a single approximation; independent ensemble draws
// may still overlap.
func sampleIndices(rng *rand.Rand, n, m int) []int {
	return rng.Perm(n)[:m]
}

// landmarks copies the sampled rows of the data matrix into a contiguous
// m×p block.
func (a *Approximator) landmarks(idx []int) *mat.Dense {
	l := mat.NewDense(len(idx), a.p, nil)
	for i, row := range idx {
		l.SetRow(i, a.x.RawRowView(row))
	}
	return l
}
