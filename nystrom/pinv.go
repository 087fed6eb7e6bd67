package nystrom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrFactorization is returned when an eigendecomposition fails to
// converge. It indicates pathological input, not a configuration mistake.
var ErrFactorization = errors.New("nystrom: eigendecomposition failed to converge")

const machEps = 0x1p-52

// pinvSym computes the Moore-Penrose pseudo-inverse of the symmetric
// matrix a through its eigendecomposition. Eigenvalues with magnitude
// below n·eps·max|λ| are truncated to zero rather than inverted, so
// rank-deficient and ill-conditioned blocks produce a finite result.
func pinvSym(a *mat.Dense) (*mat.Dense, error) {
	n, m := a.Dims()
	if n != m {
		panic("nystrom: pseudo-inverse of non-square matrix")
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, ErrFactorization
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var maxAbs float64
	for _, v := range vals {
		if av := math.Abs(v); av > maxAbs {
			maxAbs = av
		}
	}
	tol := float64(n) * machEps * maxAbs

	// Columns of vecs scaled by the inverted spectrum, then recomposed.
	scaled := mat.DenseCopyOf(&vecs)
	for j, v := range vals {
		inv := 0.0
		if math.Abs(v) > tol {
			inv = 1 / v
		}
		for i := 0; i < n; i++ {
			scaled.Set(i, j, scaled.At(i, j)*inv)
		}
	}

	var pinv mat.Dense
	pinv.Mul(scaled, vecs.T())
	return &pinv, nil
}
