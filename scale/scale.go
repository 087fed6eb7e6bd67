// Package scale centers and scales observation matrices before they are
// handed to the reduction or training code. Kernel approximation assumes
// its input has already been through one of these scalers; nothing
// downstream normalizes implicitly.
package scale

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/burn-research/PyTROModelling/common"
)

// UniformDimension is an error recording the dimensions in which every
// observation had the same value, so no scale could be derived from the
// data. The affected dimensions are widened by a fixed margin instead.
type UniformDimension struct {
	Dims []int
}

func (u *UniformDimension) Error() string {
	return fmt.Sprintf("scale: dimensions %v had all values equal", u.Dims)
}

// UnequalLength is returned when a point's length does not match the
// dimension the scale was set with.
type UnequalLength struct{}

func (UnequalLength) Error() string {
	return "scale: point length mismatch"
}

var ErrTooFewPoints = errors.New("scale: fewer than two observations")

// Scaler transforms data points so they are appropriately scaled for the
// downstream algorithm. Scale and Unscale work in place on a single point;
// SetScale derives the transformation from the rows of the data matrix.
type Scaler interface {
	Scale(point []float64) error
	Unscale(point []float64) error
	IsScaled() bool
	Dimensions() int
	SetScale(data *mat.Dense) error
}

// SliceError records the row at which scaling failed
type SliceError struct {
	Header string
	Idx    int
	Err    error
}

func (s *SliceError) Error() string {
	return fmt.Sprintf("%v: element %v, error %v", s.Header, s.Idx, s.Err)
}

type ErrorList []*SliceError

func (e ErrorList) Error() string {
	return fmt.Sprintf("%v errors found", len(e))
}

// ScaleData scales every row of data in place, in parallel
func ScaleData(scaler Scaler, data *mat.Dense) error {
	return applyRows(scaler.Scale, data)
}

// UnscaleData reverses ScaleData
func UnscaleData(scaler Scaler, data *mat.Dense) error {
	return applyRows(scaler.Unscale, data)
}

func applyRows(f func([]float64) error, data *mat.Dense) error {
	var mu sync.Mutex
	var e ErrorList
	nSamples, _ := data.Dims()
	grain := common.GetGrainSize(nSamples, 1, 500)
	common.ParallelFor(nSamples, grain, func(start, end int) {
		for r := start; r < end; r++ {
			if err := f(data.RawRowView(r)); err != nil {
				mu.Lock()
				e = append(e, &SliceError{Header: "scale", Idx: r, Err: err})
				mu.Unlock()
			}
		}
	})
	if len(e) != 0 {
		return e
	}
	return nil
}

// None applies no transformation
type None struct {
	Dim    int
	Scaled bool
}

func (n None) IsScaled() bool          { return n.Scaled }
func (n None) Scale(x []float64) error { return nil }

func (n None) Unscale(x []float64) error { return nil }

func (n None) Dimensions() int { return n.Dim }

func (n *None) SetScale(data *mat.Dense) error {
	rows, cols := data.Dims()
	if rows < 2 {
		return ErrTooFewPoints
	}
	n.Dim = cols
	n.Scaled = true
	return nil
}

// Linear scales each dimension to lie between 0 and 1
type Linear struct {
	Min    []float64
	Max    []float64
	Scaled bool
	Dim    int
}

func (l *Linear) IsScaled() bool { return l.Scaled }

func (l *Linear) Dimensions() int { return l.Dim }

// SetScale finds the per-dimension minimum and maximum. Dimensions where
// the two coincide are widened by 0.5 on each side and reported through
// UniformDimension; the scale is still usable.
func (l *Linear) SetScale(data *mat.Dense) error {
	rows, dim := data.Dims()
	if rows < 2 {
		return ErrTooFewPoints
	}

	l.Min = make([]float64, dim)
	l.Max = make([]float64, dim)
	for j := 0; j < dim; j++ {
		l.Min[j] = math.Inf(1)
		l.Max[j] = math.Inf(-1)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < dim; j++ {
			val := data.At(i, j)
			if val < l.Min[j] {
				l.Min[j] = val
			}
			if val > l.Max[j] {
				l.Max[j] = val
			}
		}
	}
	l.Scaled = true
	l.Dim = dim

	var unifError *UniformDimension
	for j := range l.Min {
		if l.Min[j] == l.Max[j] {
			if unifError == nil {
				unifError = &UniformDimension{}
			}
			unifError.Dims = append(unifError.Dims, j)
			l.Min[j] -= 0.5
			l.Max[j] += 0.5
		}
	}
	if unifError != nil {
		return unifError
	}
	return nil
}

func (l *Linear) Scale(point []float64) error {
	if len(point) != l.Dim {
		return UnequalLength{}
	}
	for i, val := range point {
		point[i] = (val - l.Min[i]) / (l.Max[i] - l.Min[i])
	}
	return nil
}

func (l *Linear) Unscale(point []float64) error {
	if len(point) != l.Dim {
		return UnequalLength{}
	}
	for i, val := range point {
		point[i] = val*(l.Max[i]-l.Min[i]) + l.Min[i]
	}
	return nil
}

// Normal centers each dimension on its mean and scales it to unit standard
// deviation. This is the "center on the mean, auto scale" convention the
// kernel-approximation input is expected to go through.
type Normal struct {
	Mu     []float64
	Sigma  []float64
	Dim    int
	Scaled bool
}

func (n *Normal) IsScaled() bool { return n.Scaled }

func (n *Normal) Dimensions() int { return n.Dim }

// SetScale computes the per-dimension mean and standard deviation.
// Dimensions with zero deviation get a unit scale and are reported
// through UniformDimension.
func (n *Normal) SetScale(data *mat.Dense) error {
	rows, dim := data.Dims()
	if rows < 2 {
		return ErrTooFewPoints
	}

	n.Mu = make([]float64, dim)
	n.Sigma = make([]float64, dim)
	col := make([]float64, rows)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, data)
		mu, sigma := stat.MeanStdDev(col, nil)
		n.Mu[j] = mu
		n.Sigma[j] = sigma
	}
	n.Scaled = true
	n.Dim = dim

	var unifError *UniformDimension
	for j, sigma := range n.Sigma {
		if sigma == 0 {
			if unifError == nil {
				unifError = &UniformDimension{}
			}
			unifError.Dims = append(unifError.Dims, j)
			n.Sigma[j] = 1
		}
	}
	if unifError != nil {
		return unifError
	}
	return nil
}

func (n *Normal) Scale(point []float64) error {
	if len(point) != n.Dim {
		return UnequalLength{}
	}
	for i, val := range point {
		point[i] = (val - n.Mu[i]) / n.Sigma[i]
	}
	return nil
}

func (n *Normal) Unscale(point []float64) error {
	if len(point) != n.Dim {
		return UnequalLength{}
	}
	for i, val := range point {
		point[i] = val*n.Sigma[i] + n.Mu[i]
	}
	return nil
}

// ScaleTrainingData sets the scale of the two scalers if needed and scales
// both matrices, undoing the input scaling if the output scaling fails
func ScaleTrainingData(inputs, outputs *mat.Dense, inputScaler, outputScaler Scaler) error {
	if !inputScaler.IsScaled() {
		if err := inputScaler.SetScale(inputs); err != nil {
			return err
		}
	}
	if !outputScaler.IsScaled() {
		if err := outputScaler.SetScale(outputs); err != nil {
			return err
		}
	}
	if err := ScaleData(inputScaler, inputs); err != nil {
		return err
	}
	if err := ScaleData(outputScaler, outputs); err != nil {
		UnscaleData(inputScaler, inputs)
		return err
	}
	return nil
}

// UnscaleTrainingData reverses ScaleTrainingData
func UnscaleTrainingData(inputs, outputs *mat.Dense, inputScaler, outputScaler Scaler) error {
	if err := UnscaleData(inputScaler, inputs); err != nil {
		return err
	}
	return UnscaleData(outputScaler, outputs)
}
