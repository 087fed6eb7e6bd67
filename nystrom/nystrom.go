// Package nystrom computes low-rank approximations of radial-basis-function
// kernel matrices by landmark sampling. Given an n×p data matrix (already
// centered and scaled by the caller) it produces an n×n approximation of the
// kernel matrix at O(n·m) or O(n·m²) cost, m ≪ n, instead of the O(n²) exact
// computation.
//
// Three formulations are provided: the standard Nyström reconstruction
// C·W⁺·Cᵀ, an ensemble average over independent landmark draws, and a
// QR-based reconstruction that truncates to a target rank through an
// orthogonal factorization instead of sandwiching an explicit inverse
// between the large factors.
package nystrom

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/kernel"
)

// Configuration errors. All settings are checked up front, before any
// landmark is sampled.
var (
	ErrSampleSize   = errors.New("nystrom: number to pick must be positive and at most the observation count")
	ErrBandwidth    = errors.New("nystrom: bandwidth must be positive")
	ErrRank         = errors.New("nystrom: rank must be positive and at most the number to pick")
	ErrEnsembleSize = errors.New("nystrom: number of matrices must be positive")
	ErrNoData       = errors.New("nystrom: nil or empty data matrix")
)

// DefaultNumberOfMatrices is the ensemble size used when Settings leaves
// NumberOfMatrices unset.
const DefaultNumberOfMatrices = 10

// Settings configures an Approximator.
type Settings struct {
	// NumberToPick is the number of landmark rows sampled per draw.
	// Must be positive and at most the number of observations.
	NumberToPick int

	// Sigma is the RBF bandwidth, k(x,y) = exp(-‖x-y‖²/(2·Sigma²)).
	// Must be positive.
	Sigma float64

	// Rank is the target rank of the QR-based formulation. Must be at
	// most NumberToPick. A zero value defaults to NumberToPick.
	Rank int

	// NumberOfMatrices is the number of independent landmark draws
	// averaged by the ensemble variant. A zero value defaults to
	// DefaultNumberOfMatrices.
	NumberOfMatrices int

	// Src is the randomness source for landmark selection. Fix it for
	// reproducible draws. A nil Src is seeded from the global source.
	Src rand.Source
}

func (s Settings) validate(n int) error {
	if s.NumberToPick <= 0 || s.NumberToPick > n {
		return fmt.Errorf("%w: picked %d of %d observations", ErrSampleSize, s.NumberToPick, n)
	}
	if s.Sigma <= 0 {
		return fmt.Errorf("%w: got %v", ErrBandwidth, s.Sigma)
	}
	if s.Rank < 0 || s.Rank > s.NumberToPick {
		return fmt.Errorf("%w: rank %d with %d landmarks", ErrRank, s.Rank, s.NumberToPick)
	}
	if s.NumberOfMatrices < 0 {
		return fmt.Errorf("%w: got %d", ErrEnsembleSize, s.NumberOfMatrices)
	}
	return nil
}

// Approximator holds the data matrix and validated settings. The data
// matrix is treated as read-only; approximations never mutate it and no
// state persists between calls other than the advancing random stream.
type Approximator struct {
	x    *mat.Dense
	n, p int

	numberToPick int
	rank         int
	nMatrices    int

	kern kernel.RBF
	rng  *rand.Rand
}

// New validates the settings against the data matrix and returns an
// Approximator. The data must already be centered and scaled; no
// normalization is applied here.
func New(x *mat.Dense, s Settings) (*Approximator, error) {
	if x == nil {
		return nil, ErrNoData
	}
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, ErrNoData
	}
	if err := s.validate(n); err != nil {
		return nil, err
	}

	rank := s.Rank
	if rank == 0 {
		rank = s.NumberToPick
	}
	nMatrices := s.NumberOfMatrices
	if nMatrices == 0 {
		nMatrices = DefaultNumberOfMatrices
	}
	src := s.Src
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}

	return &Approximator{
		x:            x,
		n:            n,
		p:            p,
		numberToPick: s.NumberToPick,
		rank:         rank,
		nMatrices:    nMatrices,
		kern:         kernel.RBF{Sigma: s.Sigma},
		rng:          rand.New(src),
	}, nil
}

// draw samples one landmark set and computes the n×m cross block C and the
// m×m landmark block W.
func (a *Approximator) draw(rng *rand.Rand) (c, w *mat.Dense) {
	l := a.landmarks(sampleIndices(rng, a.n, a.numberToPick))
	c = kernel.Gram(nil, a.x, l, a.kern)
	w = kernel.GramSym(nil, l, a.kern)
	return c, w
}

// standard reconstructs C·W⁺·Cᵀ for a single draw taken from rng.
func (a *Approximator) standard(rng *rand.Rand) (*mat.Dense, error) {
	c, w := a.draw(rng)
	winv, err := pinvSym(w)
	if err != nil {
		return nil, err
	}
	var cw mat.Dense
	cw.Mul(c, winv)
	var k mat.Dense
	k.Mul(&cw, c.T())
	return &k, nil
}

// Standard computes the standard Nyström approximation from a single
// landmark draw. The landmark block is inverted through a pseudo-inverse,
// so rank-deficient draws degrade gracefully instead of failing.
func (a *Approximator) Standard() (*mat.Dense, error) {
	return a.standard(a.rng)
}

// Ensemble averages the standard approximation over NumberOfMatrices
// independent landmark draws to reduce sampling variance. The seeds of all
// draws are taken from the approximator's stream before any computation
// starts, and the simple mean is order-invariant, so the result does not
// depend on the order in which the draws complete. Draws are evaluated in
// parallel.
func (a *Approximator) Ensemble() (*mat.Dense, error) {
	k := a.nMatrices
	seeds := make([]int64, k)
	for i := range seeds {
		seeds[i] = a.rng.Int63()
	}
	log.Debug().Int("draws", k).Int("landmarks", a.numberToPick).Msg("averaging ensemble of Nystrom draws")

	results := make([]*mat.Dense, k)
	errs := make([]error, k)
	common.ParallelFor(k, 1, func(start, end int) {
		for i := start; i < end; i++ {
			results[i], errs[i] = a.standard(rand.New(rand.NewSource(seeds[i])))
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	mean := results[0]
	for _, r := range results[1:] {
		mean.Add(mean, r)
	}
	mean.Scale(1/float64(k), mean)
	return mean, nil
}

// QR computes the rank-truncated approximation from a single landmark
// draw. The cross block is orthogonalized by a thin QR factorization and
// the reconstruction keeps only the leading Rank eigenpairs of the small
// projected block R·W⁺·Rᵀ, with negative eigenvalues clamped to zero. The
// result is symmetric positive semi-definite by construction and remains
// well behaved when the landmark block is near-singular.
func (a *Approximator) QR() (*mat.Dense, error) {
	c, w := a.draw(a.rng)
	m := a.numberToPick

	var qr mat.QR
	qr.Factorize(c)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)
	qThin := q.Slice(0, a.n, 0, m)
	rThin := r.Slice(0, m, 0, m)

	winv, err := pinvSym(w)
	if err != nil {
		return nil, err
	}

	// Small m×m projected block, forced symmetric before factorizing.
	var rw, s mat.Dense
	rw.Mul(rThin, winv)
	s.Mul(&rw, rThin.T())
	sym := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			sym.SetSym(i, j, 0.5*(s.At(i, j)+s.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, ErrFactorization
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come out ascending; the kept block is the trailing
	// rank columns.
	lead := m - a.rank
	var b mat.Dense
	b.Mul(qThin, vecs.Slice(0, m, lead, m))
	for j := 0; j < a.rank; j++ {
		ev := vals[lead+j]
		if ev < 0 {
			ev = 0
		}
		root := math.Sqrt(ev)
		for i := 0; i < a.n; i++ {
			b.Set(i, j, b.At(i, j)*root)
		}
	}

	var k mat.Dense
	k.Mul(&b, b.T())
	return &k, nil
}

// Exact computes the full n×n kernel matrix with the same bandwidth
// convention as the approximations. It is the baseline the relative error
// of an approximation is measured against.
func (a *Approximator) Exact() *mat.Dense {
	return kernel.GramSym(nil, a.x, a.kern)
}

// RelativeError returns the relative Frobenius-norm error of approx
// against exact, ‖approx-exact‖_F / ‖exact‖_F.
func RelativeError(approx, exact mat.Matrix) float64 {
	var diff mat.Dense
	diff.Sub(approx, exact)
	return mat.Norm(&diff, 2) / mat.Norm(exact, 2)
}
