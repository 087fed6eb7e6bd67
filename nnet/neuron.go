package nnet

import (
	"encoding/json"
	"math"
	"math/rand"
)

// Neuron doesn't provide its own memory, just a definition. Net
// interfaces with the parameters directly
type Neuron interface {
	NumParameters(nInputs int) int // How many parameters as a function of the number of inputs

	Activate(combination float64) (output float64)
	Combine(parameters, inputs []float64) (combination float64)

	Randomize(parameters []float64) // Set to a random initial condition

	DActivateDCombination(combination, output float64) (derivative float64)
	DCombineDParameters(params, inputs []float64, combination float64, deriv []float64)
	DCombineDInput(params, inputs []float64, combination float64, deriv []float64)
}

// A SumNeuron takes a weighted sum of all the inputs plus a bias and
// pipes it through the activation function
type SumNeuron struct {
	Activator
}

// NumParameters returns the number of weights plus one for the bias
func (s SumNeuron) NumParameters(nInputs int) int {
	return nInputs + 1
}

// Combine takes the weighted sum of the inputs with the weights set by
// parameters. The last element of parameters is the bias term, so
// len(parameters) = len(inputs) + 1
func (s SumNeuron) Combine(parameters, inputs []float64) (combination float64) {
	for i, val := range inputs {
		combination += parameters[i] * val
	}
	combination += parameters[len(parameters)-1]
	return combination
}

// Randomize sets the parameters to a normal random initial condition
// scaled by the fan-in
func (s SumNeuron) Randomize(parameters []float64) {
	scale := math.Pow(float64(len(parameters)), -0.5)
	for i := range parameters {
		parameters[i] = rand.NormFloat64() * scale
	}
}

func (s SumNeuron) DCombineDParameters(params, inputs []float64, combination float64, deriv []float64) {
	// The derivative with respect to a weight is the input value, and 1
	// for the bias term
	for i, val := range inputs {
		deriv[i] = val
	}
	deriv[len(deriv)-1] = 1
}

// DCombineDInput finds the derivative of the combination with respect to
// the inputs, which is the value of the weight. This intentionally does
// not touch the bias parameter.
func (s SumNeuron) DCombineDInput(params, inputs []float64, combination float64, deriv []float64) {
	for i := range inputs {
		deriv[i] = params[i]
	}
}

func (s SumNeuron) MarshalJSON() ([]byte, error) {
	return json.Marshal(marshalActivator(s.Activator))
}

func (s *SumNeuron) UnmarshalJSON(data []byte) error {
	var m activatorMarshaler
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	act, err := m.activator()
	if err != nil {
		return err
	}
	s.Activator = act
	return nil
}
