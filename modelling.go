// Package modelling provides exploratory model-order-reduction and
// neural-network utilities for scientific-computing datasets, such as
// reactive-flow simulation outputs.
//
// Two independent subsystems exist, sharing no runtime state:
//
//   - Kernel approximation (nystrom, kernel): low-rank approximations
//     of an RBF kernel matrix from landmark sampling, with standard,
//     ensemble and QR-based formulations.
//   - Network training recipes (ann, nnet, train): classifier,
//     autoencoder and regressor recipes over a feed-forward network
//     with minibatch Adam and early stopping.
//
// Tabular data is loaded with dataset, centered and scaled with scale,
// and handed to either subsystem as a dense matrix.
package modelling

import "github.com/burn-research/PyTROModelling/common"

// A Predictor is a fitted model that can make predictions on data.
type Predictor interface {
	// Predict makes a prediction on a single data point. If output is
	// nil a new slice is created and returned, otherwise the prediction
	// is stored in place.
	Predict(input, output []float64) ([]float64, error)

	// PredictBatch predicts every row of inputs, possibly concurrently.
	// If outputs is nil a new matrix is allocated.
	PredictBatch(inputs common.RowMatrix, outputs common.MutableRowMatrix) (common.MutableRowMatrix, error)

	// InputDim and OutputDim report the expected row widths.
	InputDim() int
	OutputDim() int
}

var _ Predictor = common.Predictor(nil)
