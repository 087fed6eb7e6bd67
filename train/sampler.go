package train

import "math/rand"

// Sampler produces the sample indices evaluated at each iteration
type Sampler interface {
	Init(nSamples int) error
	// Iterate returns the indices to use. The caller may assume the
	// slice is valid until the next call and must not modify it.
	Iterate() []int
}

// Batch returns all of the samples at every iteration
type Batch struct {
	batch []int
}

func (b *Batch) Init(nSamples int) error {
	b.batch = make([]int, nSamples)
	for i := range b.batch {
		b.batch[i] = i
	}
	return nil
}

func (b *Batch) Iterate() []int {
	return b.batch
}

// Stochastic iterates through random permutations of the data in fixed
// size minibatches, reshuffling whenever a permutation is exhausted. No
// sample repeats before the whole permutation has been consumed.
type Stochastic struct {
	BatchSize int
	Src       rand.Source // fix for reproducible batches; nil seeds from the global source

	rng      *rand.Rand
	nSamples int
	batch    []int
	perm     []int
	next     int
}

func (s *Stochastic) Init(nSamples int) error {
	if s.BatchSize <= 0 {
		s.BatchSize = 1
	}
	src := s.Src
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	s.rng = rand.New(src)
	s.nSamples = nSamples
	s.batch = make([]int, s.BatchSize)
	s.perm = s.rng.Perm(nSamples)
	s.next = 0
	return nil
}

func (s *Stochastic) Iterate() []int {
	for i := range s.batch {
		if s.next == len(s.perm) {
			s.perm = s.rng.Perm(s.nSamples)
			s.next = 0
		}
		s.batch[i] = s.perm[s.next]
		s.next++
	}
	return s.batch
}
