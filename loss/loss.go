// package loss implements the loss functions used to train the networks
package loss

import "math"

var lenMismatch = "loss: length mismatch"

// Losser is an interface for a loss function, a measure of the quality of
// a prediction with lower values being better. The loss is zero iff
// prediction == truth and is always non-negative. A Losser panics if
// len(prediction) != len(truth) and must not modify the slices.
type Losser interface {
	Loss(prediction, truth []float64) float64
}

// A DerivLosser additionally computes the derivative of the loss with
// respect to the prediction, stored in place into derivative. It panics
// unless prediction, truth, and derivative all have equal length.
type DerivLosser interface {
	Losser
	LossDeriv(prediction, truth, derivative []float64) float64
}

// SquaredDistance is the squared two-norm of (prediction - truth) divided
// by the length
type SquaredDistance struct{}

func (SquaredDistance) Loss(prediction, truth []float64) (loss float64) {
	if len(prediction) != len(truth) {
		panic(lenMismatch)
	}
	for i := range prediction {
		diff := prediction[i] - truth[i]
		loss += diff * diff
	}
	return loss / float64(len(prediction))
}

func (SquaredDistance) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	if len(prediction) != len(truth) || len(prediction) != len(derivative) {
		panic(lenMismatch)
	}
	n := float64(len(prediction))
	for i := range prediction {
		diff := prediction[i] - truth[i]
		derivative[i] = 2 * diff / n
		loss += diff * diff
	}
	return loss / n
}

// crossEntropyEps keeps the logarithms finite when a prediction saturates
const crossEntropyEps = 1e-12

// CrossEntropy is the mean binary cross-entropy over the output
// dimensions. Predictions are expected to lie in (0,1), as produced by a
// sigmoid output layer; with one-hot truth vectors it plays the role of a
// categorical cross-entropy.
type CrossEntropy struct{}

func (CrossEntropy) Loss(prediction, truth []float64) (loss float64) {
	if len(prediction) != len(truth) {
		panic(lenMismatch)
	}
	for i := range prediction {
		p := clamp(prediction[i])
		loss -= truth[i]*math.Log(p) + (1-truth[i])*math.Log(1-p)
	}
	return loss / float64(len(prediction))
}

func (CrossEntropy) LossDeriv(prediction, truth, derivative []float64) (loss float64) {
	if len(prediction) != len(truth) || len(prediction) != len(derivative) {
		panic(lenMismatch)
	}
	n := float64(len(prediction))
	for i := range prediction {
		p := clamp(prediction[i])
		loss -= truth[i]*math.Log(p) + (1-truth[i])*math.Log(1-p)
		derivative[i] = (p - truth[i]) / (p * (1 - p)) / n
	}
	return loss / n
}

func clamp(p float64) float64 {
	if p < crossEntropyEps {
		return crossEntropyEps
	}
	if p > 1-crossEntropyEps {
		return 1 - crossEntropyEps
	}
	return p
}
