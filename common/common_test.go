package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParallelForCoversAllIndices(t *testing.T) {
	for _, n := range []int{1, 7, 100, 1001} {
		for _, grain := range []int{1, 3, 100, 2000} {
			hits := make([]int32, n)
			var mu sync.Mutex
			ParallelFor(n, grain, func(start, end int) {
				mu.Lock()
				for i := start; i < end; i++ {
					hits[i]++
				}
				mu.Unlock()
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("n=%d grain=%d: index %d visited %d times", n, grain, i, h)
				}
			}
		}
	}
}

func TestGetGrainSizeBounds(t *testing.T) {
	g := GetGrainSize(10, 100, 1000)
	require.Equal(t, 100, g, "small workloads clamp to the minimum grain")
	g = GetGrainSize(1e7, 100, 1000)
	require.Equal(t, 1000, g, "large workloads clamp to the maximum grain")
}

func TestVerifyInputs(t *testing.T) {
	in := mat.NewDense(4, 2, nil)
	out := mat.NewDense(4, 1, nil)

	require.NoError(t, VerifyInputs(in, out, nil))
	require.NoError(t, VerifyInputs(in, out, make([]float64, 4)))

	err := VerifyInputs(in, mat.NewDense(3, 1, nil), nil)
	require.Error(t, err)
	var dm DataMismatch
	require.ErrorAs(t, err, &dm)
	require.Equal(t, 4, dm.Input)
	require.Equal(t, 3, dm.Output)

	require.Error(t, VerifyInputs(in, out, make([]float64, 2)))
	require.ErrorIs(t, VerifyInputs(nil, out, nil), ErrNoData)
}
