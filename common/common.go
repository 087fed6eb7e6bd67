// Package common holds the shared interfaces and helpers used by the
// modelling packages. It exists to avoid circular imports between the
// algorithm packages and the training code.
package common

import "gonum.org/v1/gonum/mat"

// RowMatrix is a read-only matrix of observations stored as rows.
// Rows are extracted with mat.Row, or through the mat.RawRowViewer
// fast path when the concrete type supports it.
type RowMatrix interface {
	mat.Matrix
}

// MutableRowMatrix is a RowMatrix whose rows can also be set.
// *mat.Dense satisfies it.
type MutableRowMatrix interface {
	mat.Mutable
	SetRow(i int, src []float64)
}

// Predictor is a type that can make predictions on data. See the root
// package for a description of the methods. Declared here so that the
// algorithm packages can return predictors without importing each other.
type Predictor interface {
	Predict(input, output []float64) ([]float64, error)
	PredictBatch(inputs RowMatrix, outputs MutableRowMatrix) (MutableRowMatrix, error)
	InputDim() int
	OutputDim() int
}
