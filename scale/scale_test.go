package scale

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func flatten(data [][]float64) *mat.Dense {
	nSamples := len(data)
	nDim := len(data[0])
	m := mat.NewDense(nSamples, nDim, nil)
	for i := range data {
		m.SetRow(i, data[i])
	}
	return m
}

func roundTrip(t *testing.T, s Scaler, data *mat.Dense) {
	t.Helper()
	orig := mat.DenseCopyOf(data)
	require.NoError(t, ScaleData(s, data))
	require.NoError(t, UnscaleData(s, data))
	require.True(t, mat.EqualApprox(orig, data, 1e-13), "scale/unscale must round-trip")
}

func TestLinear(t *testing.T) {
	data := flatten([][]float64{
		{0, 10},
		{2, 30},
		{1, 20},
	})
	l := &Linear{}
	require.NoError(t, l.SetScale(data))
	require.True(t, l.IsScaled())
	require.Equal(t, 2, l.Dimensions())
	require.True(t, floats.EqualApprox([]float64{0, 10}, l.Min, 1e-14))
	require.True(t, floats.EqualApprox([]float64{2, 30}, l.Max, 1e-14))

	p := []float64{1, 20}
	require.NoError(t, l.Scale(p))
	require.True(t, floats.EqualApprox([]float64{0.5, 0.5}, p, 1e-14))
	require.NoError(t, l.Unscale(p))
	require.True(t, floats.EqualApprox([]float64{1, 20}, p, 1e-14))

	roundTrip(t, l, data)
}

func TestLinearUniformDimension(t *testing.T) {
	data := flatten([][]float64{
		{1, 5},
		{1, 7},
	})
	l := &Linear{}
	err := l.SetScale(data)
	var ud *UniformDimension
	require.ErrorAs(t, err, &ud)
	require.Equal(t, []int{0}, ud.Dims)

	// The widened scale is still usable
	p := []float64{1, 6}
	require.NoError(t, l.Scale(p))
	require.InDelta(t, 0.5, p[0], 1e-14)
}

func TestNormal(t *testing.T) {
	data := flatten([][]float64{
		{1, -4},
		{3, 0},
		{5, 4},
	})
	n := &Normal{}
	require.NoError(t, n.SetScale(data))
	require.True(t, floats.EqualApprox([]float64{3, 0}, n.Mu, 1e-14))
	require.True(t, floats.EqualApprox([]float64{2, 4}, n.Sigma, 1e-14))

	p := []float64{5, -4}
	require.NoError(t, n.Scale(p))
	require.True(t, floats.EqualApprox([]float64{1, -1}, p, 1e-14))

	roundTrip(t, n, data)
}

func TestNormalZeroVarianceDimension(t *testing.T) {
	data := flatten([][]float64{
		{2, 1},
		{2, 3},
		{2, 5},
	})
	n := &Normal{}
	err := n.SetScale(data)
	var ud *UniformDimension
	require.ErrorAs(t, err, &ud)
	require.Equal(t, []int{0}, ud.Dims)
	require.Equal(t, 1.0, n.Sigma[0])
}

func TestNoneIsIdentity(t *testing.T) {
	data := flatten([][]float64{{1, 2}, {3, 4}})
	n := &None{}
	require.NoError(t, n.SetScale(data))
	roundTrip(t, n, data)
	require.True(t, mat.EqualApprox(flatten([][]float64{{1, 2}, {3, 4}}), data, 0))
}

func TestScaleErrors(t *testing.T) {
	n := &Normal{}
	require.ErrorIs(t, n.SetScale(flatten([][]float64{{1, 2}})), ErrTooFewPoints)

	l := &Linear{Min: []float64{0}, Max: []float64{1}, Dim: 1, Scaled: true}
	err := l.Scale([]float64{1, 2})
	var ul UnequalLength
	require.ErrorAs(t, err, &ul)
}

func TestScaleTrainingData(t *testing.T) {
	in := flatten([][]float64{{0}, {2}, {4}})
	out := flatten([][]float64{{10}, {20}, {30}})
	require.NoError(t, ScaleTrainingData(in, out, &Normal{}, &Linear{}))
	require.InDelta(t, 0.0, in.At(0, 0)+in.At(2, 0), 1e-13, "normal scaling symmetric about the mean")
	require.InDelta(t, 0.0, out.At(0, 0), 1e-13)
	require.InDelta(t, 1.0, out.At(2, 0), 1e-13)
}
