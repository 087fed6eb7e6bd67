// package regularize implements penalties on the parameter values used to
// discourage overfitting during training
package regularize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Regularizer is a type that puts pressure on the values of parameters
// to prevent overfitting
type Regularizer interface {
	// Loss is the penalty generated by the current parameter values
	Loss(parameters []float64) float64

	// LossDeriv returns the penalty and stores its derivative with
	// respect to the parameters in place into derivative. The caller
	// guarantees len(parameters) == len(derivative), but derivative is
	// not assumed to be zeroed.
	LossDeriv(parameters, derivative []float64) float64

	// LossAddDeriv adds the derivative instead of storing it in place
	LossAddDeriv(parameters, derivative []float64) float64
}

// TwoNorm penalizes ɣ‖w‖₂²
type TwoNorm struct {
	Gamma float64 // Relative weight compared to the loss function
}

func (t TwoNorm) Loss(parameters []float64) float64 {
	nrm := floats.Norm(parameters, 2)
	return t.Gamma * nrm * nrm
}

func (t TwoNorm) LossDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] = 2 * t.Gamma * p
	}
	return t.Loss(parameters)
}

func (t TwoNorm) LossAddDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] += 2 * t.Gamma * p
	}
	return t.Loss(parameters)
}

// OneNorm penalizes ɣ‖w‖₁
type OneNorm struct {
	Gamma float64
}

func (o OneNorm) Loss(parameters []float64) float64 {
	return o.Gamma * floats.Norm(parameters, 1)
}

func (o OneNorm) LossDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] = o.Gamma * sign(p)
	}
	return o.Loss(parameters)
}

func (o OneNorm) LossAddDeriv(parameters, derivative []float64) float64 {
	for i, p := range parameters {
		derivative[i] += o.Gamma * sign(p)
	}
	return o.Loss(parameters)
}

func sign(p float64) float64 {
	if p == 0 {
		return 0
	}
	return math.Copysign(1, p)
}

// None is the zero penalty
type None struct{}

func (None) Loss(parameters []float64) float64 { return 0 }

func (None) LossDeriv(parameters, derivative []float64) float64 {
	for i := range derivative {
		derivative[i] = 0
	}
	return 0
}

func (None) LossAddDeriv(parameters, derivative []float64) float64 {
	return 0
}
