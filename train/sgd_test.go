package train_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/nnet"
	"github.com/burn-research/PyTROModelling/train"
)

func TestBatchSampler(t *testing.T) {
	var b train.Batch
	require.NoError(t, b.Init(5))
	idxs := b.Iterate()
	require.Equal(t, []int{0, 1, 2, 3, 4}, idxs)
	require.Equal(t, idxs, b.Iterate())
}

func TestStochasticSamplerNoRepeatWithinPermutation(t *testing.T) {
	const n = 20
	s := train.Stochastic{BatchSize: 4, Src: rand.NewSource(1)}
	require.NoError(t, s.Init(n))

	seen := make(map[int]int)
	for i := 0; i < n/4; i++ {
		for _, idx := range s.Iterate() {
			seen[idx]++
		}
	}
	require.Len(t, seen, n)
	for idx, count := range seen {
		require.Equal(t, 1, count, "sample %d drawn more than once before reshuffle", idx)
	}
}

func TestStochasticSamplerReproducible(t *testing.T) {
	a := train.Stochastic{BatchSize: 3, Src: rand.NewSource(7)}
	b := train.Stochastic{BatchSize: 3, Src: rand.NewSource(7)}
	require.NoError(t, a.Init(11))
	require.NoError(t, b.Init(11))
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Iterate(), b.Iterate())
	}
}

// linearProblem generates rows of y = X w + c with a fixed rule so the
// net has something learnable.
func linearProblem(rng *rand.Rand, n int) (inputs, outputs *mat.Dense) {
	inputs = mat.NewDense(n, 2, nil)
	outputs = mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := rng.Float64()
		x1 := rng.Float64()
		inputs.SetRow(i, []float64{x0, x1})
		outputs.Set(i, 0, 0.7*x0-0.3*x1+0.1)
	}
	return inputs, outputs
}

func TestSGDReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	trainIn, trainOut := linearProblem(rng, 200)
	valIn, valOut := linearProblem(rng, 50)

	trainer, err := nnet.NewSimpleTrainer(2, 1, 1, 6, nnet.Tanh{}, nnet.Linear{})
	require.NoError(t, err)
	trainer.RandomizeParameters()

	res, err := train.SGD(trainer, train.Settings{
		BatchSize: 32,
		Epochs:    400,
		Patience:  -1,
		Src:       rand.NewSource(5),
	}, trainIn, trainOut, valIn, valOut)
	require.NoError(t, err)

	require.Len(t, res.TrainLoss, 400)
	require.Len(t, res.ValLoss, 400)
	first := res.TrainLoss[0]
	last := res.TrainLoss[len(res.TrainLoss)-1]
	require.Less(t, last, first, "training loss did not decrease")
	require.Less(t, res.BestLoss, 0.02, "net failed to fit a linear target")
}

func TestSGDEarlyStopsAndCheckpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	trainIn, trainOut := linearProblem(rng, 120)
	valIn, valOut := linearProblem(rng, 40)

	trainer, err := nnet.NewSimpleTrainer(2, 1, 1, 4, nnet.Tanh{}, nnet.Linear{})
	require.NoError(t, err)
	trainer.RandomizeParameters()

	var checkpoints int
	var lastLoss float64
	res, err := train.SGD(trainer, train.Settings{
		BatchSize: 16,
		Epochs:    5000,
		Patience:  5,
		Src:       rand.NewSource(13),
		Checkpoint: func(params []float64, epoch int, valLoss float64) error {
			require.Len(t, params, trainer.NumParameters())
			checkpoints++
			lastLoss = valLoss
			return nil
		},
	}, trainIn, trainOut, valIn, valOut)
	require.NoError(t, err)

	require.True(t, res.EarlyStopped, "training ran all 5000 epochs without stalling")
	require.Less(t, len(res.ValLoss), 5000)
	require.Greater(t, checkpoints, 0)
	require.Equal(t, res.BestLoss, lastLoss)
	require.Equal(t, res.BestLoss, res.ValLoss[res.BestEpoch])
}

func TestSGDTracksMetric(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	trainIn, trainOut := linearProblem(rng, 60)

	trainer, err := nnet.NewSimpleTrainer(2, 1, 1, 3, nnet.Tanh{}, nnet.Linear{})
	require.NoError(t, err)
	trainer.RandomizeParameters()

	res, err := train.SGD(trainer, train.Settings{
		Epochs:   5,
		Patience: -1,
		Src:      rand.NewSource(19),
		Metric: func(pred, truth []float64) float64 {
			d := pred[0] - truth[0]
			return d * d
		},
	}, trainIn, trainOut, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.TrainMetric, 5)
	require.Empty(t, res.ValMetric)
	require.Empty(t, res.ValLoss)
}

func TestSGDDimensionMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	trainIn, trainOut := linearProblem(rng, 10)

	trainer, err := nnet.NewSimpleTrainer(3, 1, 1, 3, nnet.Tanh{}, nnet.Linear{})
	require.NoError(t, err)

	_, err = train.SGD(trainer, train.Settings{Epochs: 1}, trainIn, trainOut, nil, nil)
	require.ErrorIs(t, err, train.ErrDimensions)
}
