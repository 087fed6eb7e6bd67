// Package train drives the gradient-based fitting of trainable models.
// It owns the minibatch sampling, the optimizer, and the early-stopping
// loop; the models themselves provide derivatives through the LossDeriver
// interface.
package train

import "github.com/burn-research/PyTROModelling/common"

type Featurizer interface {
	// Featurize transforms the input into the elements of the feature
	// matrix. feature has length NumFeatures(). Must not modify input.
	Featurize(input, feature []float64)
}

// Trainable is a model whose parameters can be fit with gradient-based
// optimization
type Trainable interface {
	NumFeatures() int
	InputDim() int
	OutputDim() int
	NumParameters() int
	Parameters([]float64) []float64 // Copies the parameters into the input, or allocates if nil. Panics on wrong size
	SetParameters([]float64)        // Sets new parameters. Panics on wrong size
	RandomizeParameters()
	NewFeaturizer() Featurizer   // Returns a type whose Featurize method can be called concurrently
	NewLossDeriver() LossDeriver // Returns a type holding the temporary memory for derivative computation
	GrainSize() int
	Predictor() common.Predictor // Returns the predictor for the current parameters
}

// LossDeriver computes predictions and loss derivatives with respect to
// the parameters. Deriv is always called after Predict with the same
// featurized input, so implementations may cache intermediate values.
type LossDeriver interface {
	Predict(parameters, featurizedInput, predOutput []float64)

	// Deriv computes the derivative of the loss with respect to the
	// parameters given the predicted output and the derivative of the
	// loss with respect to the prediction
	Deriv(parameters, featurizedInput, predOutput, dLossDPred, dLossDWeight []float64)
}

// MaskResampler is implemented by loss derivers that carry stochastic
// state which must be redrawn once per minibatch, such as dropout masks
type MaskResampler interface {
	Resample()
}
