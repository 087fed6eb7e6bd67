package nnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// fdDeriv is a central finite difference of Activate
func fdDeriv(a Activator, x float64) float64 {
	const h = 1e-6
	return (a.Activate(x+h) - a.Activate(x-h)) / (2 * h)
}

func TestActivatorValues(t *testing.T) {
	require.InDelta(t, 0.5, Sigmoid{}.Activate(0), 1e-14)
	require.InDelta(t, 1/(1+math.Exp(-2)), Sigmoid{}.Activate(2), 1e-14)

	require.InDelta(t, 0, Tanh{}.Activate(0), 1e-14)
	require.InDelta(t, math.Tanh(-1.3), Tanh{}.Activate(-1.3), 1e-14)

	require.Equal(t, 3.7, Linear{}.Activate(3.7))

	require.Equal(t, 0.0, ReLU{}.Activate(-2))
	require.Equal(t, 2.5, ReLU{}.Activate(2.5))

	l := LeakyReLU{Alpha: 0.01}
	require.Equal(t, 2.5, l.Activate(2.5))
	require.InDelta(t, -0.02, l.Activate(-2), 1e-14)
}

func TestActivatorDerivatives(t *testing.T) {
	activators := []Activator{
		Sigmoid{},
		Tanh{},
		Linear{},
		ReLU{},
		LeakyReLU{Alpha: 0.01},
	}
	// avoid the ReLU kink at zero
	points := []float64{-2.1, -0.4, 0.3, 1.7}
	for _, a := range activators {
		for _, x := range points {
			out := a.Activate(x)
			require.InDelta(t, fdDeriv(a, x), a.DActivateDCombination(x, out), 1e-6,
				"activator %s at %v", a.Name(), x)
		}
	}
}

func TestActivatorByName(t *testing.T) {
	for _, name := range []string{"sigmoid", "tanh", "linear", "relu", "leaky_relu"} {
		a, err := ActivatorByName(name)
		require.NoError(t, err)
		require.Equal(t, name, a.Name())
	}

	a, err := ActivatorByName("leaky_relu")
	require.NoError(t, err)
	require.Equal(t, DefaultLeakyAlpha, a.(LeakyReLU).Alpha)

	_, err = ActivatorByName("softplus")
	require.Error(t, err)
}

func TestActivatorMarshalerKeepsAlpha(t *testing.T) {
	m := marshalActivator(LeakyReLU{Alpha: 0.2})
	a, err := m.activator()
	require.NoError(t, err)
	require.Equal(t, LeakyReLU{Alpha: 0.2}, a)
}
