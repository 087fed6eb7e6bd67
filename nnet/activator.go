package nnet

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultLeakyAlpha is the slope of LeakyReLU for negative combinations
// when none is specified.
const DefaultLeakyAlpha = 1e-4

// Activator is an interface for the activation function of the neuron,
// allowing neurons with custom activation functions. Activate is the
// activation itself, taking in the weighted sum of the inputs.
// DActivateDCombination is its derivative with respect to the sum; it
// receives both the sum and the output of Activate because some
// derivatives are much cheaper to compute from one or the other.
// Name is the stable identifier used in checkpoints.
type Activator interface {
	Activate(combination float64) float64
	DActivateDCombination(combination, output float64) float64
	Name() string
}

// Sigmoid is the logistic activation, out = 1/(1 + exp(-sum))
type Sigmoid struct{}

func (Sigmoid) Activate(combination float64) float64 {
	return 1.0 / (1.0 + math.Exp(-combination))
}

func (Sigmoid) DActivateDCombination(combination, output float64) float64 {
	return output * (1 - output)
}

func (Sigmoid) Name() string { return "sigmoid" }

// Tanh is the hyperbolic tangent activation
type Tanh struct{}

func (Tanh) Activate(combination float64) float64 {
	return math.Tanh(combination)
}

func (Tanh) DActivateDCombination(combination, output float64) float64 {
	return 1 - output*output
}

func (Tanh) Name() string { return "tanh" }

// Linear is the identity activation
type Linear struct{}

func (Linear) Activate(combination float64) float64 { return combination }

func (Linear) DActivateDCombination(combination, output float64) float64 { return 1 }

func (Linear) Name() string { return "linear" }

// ReLU is the rectified linear activation, out = max(0, sum)
type ReLU struct{}

func (ReLU) Activate(combination float64) float64 {
	if combination > 0 {
		return combination
	}
	return 0
}

func (ReLU) DActivateDCombination(combination, output float64) float64 {
	if combination > 0 {
		return 1
	}
	return 0
}

func (ReLU) Name() string { return "relu" }

// LeakyReLU keeps a small slope Alpha for negative combinations so that
// dead units can recover
type LeakyReLU struct {
	Alpha float64
}

func (l LeakyReLU) Activate(combination float64) float64 {
	if combination > 0 {
		return combination
	}
	return l.Alpha * combination
}

func (l LeakyReLU) DActivateDCombination(combination, output float64) float64 {
	if combination > 0 {
		return 1
	}
	return l.Alpha
}

func (LeakyReLU) Name() string { return "leaky_relu" }

// activatorMarshaler is the checkpoint representation of an activator
type activatorMarshaler struct {
	Name  string  `json:"name"`
	Alpha float64 `json:"alpha,omitempty"`
}

func marshalActivator(a Activator) activatorMarshaler {
	m := activatorMarshaler{Name: a.Name()}
	if l, ok := a.(LeakyReLU); ok {
		m.Alpha = l.Alpha
	}
	return m
}

func (m activatorMarshaler) activator() (Activator, error) {
	switch m.Name {
	case "sigmoid":
		return Sigmoid{}, nil
	case "tanh":
		return Tanh{}, nil
	case "linear":
		return Linear{}, nil
	case "relu":
		return ReLU{}, nil
	case "leaky_relu":
		alpha := m.Alpha
		if alpha == 0 {
			alpha = DefaultLeakyAlpha
		}
		return LeakyReLU{Alpha: alpha}, nil
	}
	return nil, fmt.Errorf("nnet: unknown activator %q", m.Name)
}

// ActivatorByName resolves the activators the recipes accept by name.
// leaky_relu is constructed with DefaultLeakyAlpha.
func ActivatorByName(name string) (Activator, error) {
	return activatorMarshaler{Name: name}.activator()
}

var _ json.Marshaler = SumNeuron{}
