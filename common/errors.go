package common

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DataMismatch is returned when the number of observations in the inputs,
// outputs, or weights disagree.
type DataMismatch struct {
	Input  int
	Output int
	Weight int
}

func (d DataMismatch) Error() string {
	return fmt.Sprintf("modelling: observation count mismatch. inputs: %v, outputs: %v, weights: %v", d.Input, d.Output, d.Weight)
}

var (
	ErrInputDimension  = errors.New("modelling: input dimension mismatch")
	ErrOutputDimension = errors.New("modelling: output dimension mismatch")
	ErrNoData          = errors.New("modelling: nil data")
)

// VerifyInputs checks that inputs and outputs have the same number of rows,
// and that the length of weights matches as well. As a special case a
// zero-length weight slice is always allowed.
func VerifyInputs(inputs, outputs mat.Matrix, weights []float64) error {
	if inputs == nil || outputs == nil {
		return ErrNoData
	}
	nSamples, _ := inputs.Dims()
	nOutputSamples, _ := outputs.Dims()
	nWeights := len(weights)
	if nSamples != nOutputSamples || (nWeights != 0 && nSamples != nWeights) {
		return DataMismatch{
			Input:  nSamples,
			Output: nOutputSamples,
			Weight: nWeights,
		}
	}
	return nil
}
