package nystrom

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// clusteredData builds an n×p matrix of points drawn around a handful of
// well-separated centers. The resulting RBF kernel matrix has low numerical
// rank, which is the regime landmark approximation targets.
func clusteredData(seed int64, n, p, nClusters int, spread float64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	centers := make([][]float64, nClusters)
	for c := range centers {
		centers[c] = make([]float64, p)
		for j := range centers[c] {
			centers[c][j] = 3 * rng.NormFloat64()
		}
	}
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		c := centers[rng.Intn(nClusters)]
		for j := 0; j < p; j++ {
			x.Set(i, j, c[j]+spread*rng.NormFloat64())
		}
	}
	return x
}

func finite(a *mat.Dense) bool {
	n, m := a.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if math.IsNaN(a.At(i, j)) || math.IsInf(a.At(i, j), 0) {
				return false
			}
		}
	}
	return true
}

func TestSettingsValidation(t *testing.T) {
	x := clusteredData(1, 20, 3, 2, 0.3)
	cases := []struct {
		name     string
		settings Settings
		want     error
	}{
		{"pick exceeds rows", Settings{NumberToPick: 21, Sigma: 1}, ErrSampleSize},
		{"pick zero", Settings{NumberToPick: 0, Sigma: 1}, ErrSampleSize},
		{"pick negative", Settings{NumberToPick: -3, Sigma: 1}, ErrSampleSize},
		{"bandwidth zero", Settings{NumberToPick: 5, Sigma: 0}, ErrBandwidth},
		{"bandwidth negative", Settings{NumberToPick: 5, Sigma: -1}, ErrBandwidth},
		{"rank exceeds pick", Settings{NumberToPick: 5, Sigma: 1, Rank: 6}, ErrRank},
		{"rank negative", Settings{NumberToPick: 5, Sigma: 1, Rank: -1}, ErrRank},
		{"ensemble negative", Settings{NumberToPick: 5, Sigma: 1, NumberOfMatrices: -2}, ErrEnsembleSize},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(x, c.settings)
			require.ErrorIs(t, err, c.want)
		})
	}

	_, err := New(nil, Settings{NumberToPick: 5, Sigma: 1})
	require.ErrorIs(t, err, ErrNoData)
}

func TestApproximationShapes(t *testing.T) {
	x := clusteredData(2, 40, 3, 3, 0.3)
	orig := mat.DenseCopyOf(x)

	a, err := New(x, Settings{NumberToPick: 12, Sigma: 1, Rank: 6, Src: rand.NewSource(7)})
	require.NoError(t, err)

	for name, f := range map[string]func() (*mat.Dense, error){
		"standard": a.Standard,
		"ensemble": a.Ensemble,
		"qr":       a.QR,
	} {
		k, err := f()
		require.NoError(t, err, name)
		n, m := k.Dims()
		require.Equal(t, 40, n, name)
		require.Equal(t, 40, m, name)
		require.True(t, finite(k), name)
	}

	// The data matrix is read-only input
	require.True(t, mat.Equal(orig, x), "input matrix must not be mutated")
}

func TestStandardIsSymmetric(t *testing.T) {
	x := clusteredData(3, 50, 4, 3, 0.3)
	a, err := New(x, Settings{NumberToPick: 15, Sigma: 1, Src: rand.NewSource(1)})
	require.NoError(t, err)
	k, err := a.Standard()
	require.NoError(t, err)
	n, _ := k.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			require.InDelta(t, k.At(j, i), k.At(i, j), 1e-9)
		}
	}
}

func TestQRIsExactlySymmetric(t *testing.T) {
	x := clusteredData(4, 50, 4, 3, 0.3)
	a, err := New(x, Settings{NumberToPick: 15, Sigma: 1, Rank: 8, Src: rand.NewSource(1)})
	require.NoError(t, err)
	k, err := a.QR()
	require.NoError(t, err)
	n, _ := k.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			require.InDelta(t, k.At(j, i), k.At(i, j), 1e-12)
		}
	}
}

func TestStandardRecoversExactKernelWithAllRowsPicked(t *testing.T) {
	x := clusteredData(5, 30, 3, 3, 0.4)
	a, err := New(x, Settings{NumberToPick: 30, Sigma: 1, Src: rand.NewSource(3)})
	require.NoError(t, err)

	k, err := a.Standard()
	require.NoError(t, err)
	require.Less(t, RelativeError(k, a.Exact()), 1e-6)
}

func TestErrorDecreasesWithMoreLandmarks(t *testing.T) {
	x := clusteredData(6, 200, 4, 5, 0.3)
	exact := exactFor(t, x)

	errFor := func(m int) float64 {
		a, err := New(x, Settings{NumberToPick: m, Sigma: 1, Src: rand.NewSource(11)})
		require.NoError(t, err)
		k, err := a.Standard()
		require.NoError(t, err)
		return RelativeError(k, exact)
	}

	small := errFor(4)
	large := errFor(100)
	require.Less(t, large, small, "m=100 should beat m=4 (got %v vs %v)", large, small)
	require.Less(t, large, 0.5)
}

func exactFor(t *testing.T, x *mat.Dense) *mat.Dense {
	t.Helper()
	a, err := New(x, Settings{NumberToPick: 1, Sigma: 1})
	require.NoError(t, err)
	return a.Exact()
}

func TestQRErrorDecreasesWithRank(t *testing.T) {
	x := clusteredData(7, 150, 4, 5, 0.3)
	exact := exactFor(t, x)

	errFor := func(rank int) float64 {
		a, err := New(x, Settings{NumberToPick: 60, Sigma: 1, Rank: rank, Src: rand.NewSource(5)})
		require.NoError(t, err)
		k, err := a.QR()
		require.NoError(t, err)
		return RelativeError(k, exact)
	}

	low := errFor(2)
	high := errFor(40)
	require.Less(t, high, low, "rank 40 should beat rank 2 (got %v vs %v)", high, low)
}

func TestEnsembleNoWorseThanSingleDrawOnAverage(t *testing.T) {
	x := clusteredData(8, 120, 4, 5, 0.3)
	exact := exactFor(t, x)

	var stdSum, ensSum float64
	const seeds = 6
	for s := int64(0); s < seeds; s++ {
		as, err := New(x, Settings{NumberToPick: 10, Sigma: 1, Src: rand.NewSource(100 + s)})
		require.NoError(t, err)
		ks, err := as.Standard()
		require.NoError(t, err)
		stdSum += RelativeError(ks, exact)

		ae, err := New(x, Settings{NumberToPick: 10, Sigma: 1, NumberOfMatrices: 8, Src: rand.NewSource(100 + s)})
		require.NoError(t, err)
		ke, err := ae.Ensemble()
		require.NoError(t, err)
		ensSum += RelativeError(ke, exact)
	}
	require.LessOrEqual(t, ensSum/seeds, stdSum/seeds+0.02,
		"averaged over seeds the ensemble should not lose to a single draw")
}

func TestEnsembleReproducibleForFixedSeed(t *testing.T) {
	x := clusteredData(9, 80, 3, 4, 0.3)

	run := func() *mat.Dense {
		a, err := New(x, Settings{NumberToPick: 12, Sigma: 1, NumberOfMatrices: 6, Src: rand.NewSource(42)})
		require.NoError(t, err)
		k, err := a.Ensemble()
		require.NoError(t, err)
		return k
	}
	require.True(t, mat.EqualApprox(run(), run(), 1e-13),
		"parallel draws must not change the result for a fixed seed")
}

func TestQRHandlesNearDuplicateLandmarks(t *testing.T) {
	// Every observation appears twice, so any sizable landmark draw
	// contains duplicate rows and the landmark block is singular.
	base := clusteredData(10, 20, 3, 3, 0.3)
	x := mat.NewDense(40, 3, nil)
	for i := 0; i < 20; i++ {
		x.SetRow(2*i, base.RawRowView(i))
		x.SetRow(2*i+1, base.RawRowView(i))
	}

	a, err := New(x, Settings{NumberToPick: 30, Sigma: 1, Rank: 10, Src: rand.NewSource(2)})
	require.NoError(t, err)

	kq, err := a.QR()
	require.NoError(t, err)
	require.True(t, finite(kq), "QR must stay finite on singular landmark blocks")

	ks, err := a.Standard()
	require.NoError(t, err)
	require.True(t, finite(ks), "pseudo-inverse must keep the standard variant finite too")
}

func TestQRRankTruncation(t *testing.T) {
	x := clusteredData(11, 60, 3, 4, 0.3)
	const rank = 7
	a, err := New(x, Settings{NumberToPick: 20, Sigma: 1, Rank: rank, Src: rand.NewSource(6)})
	require.NoError(t, err)
	k, err := a.QR()
	require.NoError(t, err)

	var svd mat.SVD
	require.True(t, svd.Factorize(k, mat.SVDNone))
	vals := svd.Values(nil)
	for i := rank; i < len(vals); i++ {
		require.InDelta(t, 0, vals[i], 1e-8*vals[0],
			"singular values beyond the target rank should vanish")
	}
}

func TestReferenceScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 2000-observation scenario in short mode")
	}
	x := clusteredData(12, 2000, 5, 6, 0.3)
	a, err := New(x, Settings{NumberToPick: 100, Sigma: 1, Rank: 30, Src: rand.NewSource(1)})
	require.NoError(t, err)

	k, err := a.QR()
	require.NoError(t, err)
	n, m := k.Dims()
	require.Equal(t, 2000, n)
	require.Equal(t, 2000, m)

	relErr := RelativeError(k, a.Exact())
	require.False(t, math.IsNaN(relErr) || math.IsInf(relErr, 0))
	require.Less(t, relErr, 0.5)
}
