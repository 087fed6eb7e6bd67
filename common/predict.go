package common

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// BatchPredictor constructs per-goroutine predictors so that batch
// prediction can reuse temporary memory without a race
type BatchPredictor interface {
	NewPredictor() RowPredictor
}

// RowPredictor predicts a single row. Predict may assume the slices have
// the advertised dimensions
type RowPredictor interface {
	Predict(input, output []float64)
}

var (
	ErrBatchInputDim  = errors.New("modelling: batch input dimension mismatch")
	ErrBatchOutputDim = errors.New("modelling: batch output dimension mismatch")
	ErrBatchRows      = errors.New("modelling: batch row count mismatch")
)

// BatchPredict evaluates the predictor over every row of inputs in parallel.
// If outputs is nil a new dense matrix is allocated and returned; otherwise
// the predictions are stored in place. Row data is accessed through
// RawRowView when the concrete types allow it, avoiding copies.
func BatchPredict(batch BatchPredictor, inputs RowMatrix, outputs MutableRowMatrix, inputDim, outputDim, grainSize int) (MutableRowMatrix, error) {
	nSamples, dimInputs := inputs.Dims()
	if inputDim != dimInputs {
		return outputs, ErrBatchInputDim
	}

	if outputs == nil {
		outputs = mat.NewDense(nSamples, outputDim, nil)
	} else {
		nOutputSamples, dimOutputs := outputs.Dims()
		if dimOutputs != outputDim {
			return outputs, ErrBatchOutputDim
		}
		if nSamples != nOutputSamples {
			return outputs, ErrBatchRows
		}
	}

	inputRV, inputIsRaw := inputs.(mat.RawRowViewer)
	outputRV, outputIsRaw := outputs.(mat.RawRowViewer)

	var f func(start, end int)
	switch {
	case inputIsRaw && outputIsRaw:
		f = func(start, end int) {
			p := batch.NewPredictor()
			for i := start; i < end; i++ {
				p.Predict(inputRV.RawRowView(i), outputRV.RawRowView(i))
			}
		}
	case inputIsRaw && !outputIsRaw:
		f = func(start, end int) {
			p := batch.NewPredictor()
			output := make([]float64, outputDim)
			for i := start; i < end; i++ {
				p.Predict(inputRV.RawRowView(i), output)
				outputs.SetRow(i, output)
			}
		}
	case !inputIsRaw && outputIsRaw:
		f = func(start, end int) {
			p := batch.NewPredictor()
			input := make([]float64, inputDim)
			for i := start; i < end; i++ {
				mat.Row(input, i, inputs)
				p.Predict(input, outputRV.RawRowView(i))
			}
		}
	default:
		f = func(start, end int) {
			p := batch.NewPredictor()
			input := make([]float64, inputDim)
			output := make([]float64, outputDim)
			for i := start; i < end; i++ {
				mat.Row(input, i, inputs)
				p.Predict(input, output)
				outputs.SetRow(i, output)
			}
		}
	}

	ParallelFor(nSamples, grainSize, f)
	return outputs, nil
}
