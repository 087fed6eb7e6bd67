package regularize

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func testRegularizer(t *testing.T, r Regularizer, name string, parameters []float64, wantLoss float64, wantDeriv []float64) {
	t.Helper()

	require.InDelta(t, wantLoss, r.Loss(parameters), 1e-14, name)

	derivative := make([]float64, len(wantDeriv))
	require.InDelta(t, wantLoss, r.LossDeriv(parameters, derivative), 1e-14, name)
	require.True(t, floats.EqualApprox(wantDeriv, derivative, 1e-14), "%v: LossDeriv derivative", name)

	for i := range derivative {
		derivative[i] = float64(i)
	}
	require.InDelta(t, wantLoss, r.LossAddDeriv(parameters, derivative), 1e-14, name)
	for i := range derivative {
		derivative[i] -= float64(i)
	}
	require.True(t, floats.EqualApprox(wantDeriv, derivative, 1e-14), "%v: LossAddDeriv derivative", name)
}

func TestNone(t *testing.T) {
	testRegularizer(t, None{}, "none", []float64{1, -2, 3}, 0, []float64{0, 0, 0})
}

func TestTwoNorm(t *testing.T) {
	testRegularizer(t, TwoNorm{Gamma: 0.5}, "twonorm",
		[]float64{3, -4}, 12.5, []float64{3, -4})
}

func TestOneNorm(t *testing.T) {
	testRegularizer(t, OneNorm{Gamma: 2}, "onenorm",
		[]float64{3, -4, 0}, 14, []float64{2, -2, 0})
}
