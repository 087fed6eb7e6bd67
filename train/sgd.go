package train

import (
	"errors"
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/loss"
	"github.com/burn-research/PyTROModelling/regularize"
)

// Defaults used by Settings when the corresponding field is zero.
const (
	DefaultBatchSize = 64
	DefaultEpochs    = 1000
	DefaultPatience  = 5
	DefaultStepSize  = 1e-3
)

var (
	ErrDimensions = errors.New("train: dimension mismatch between trainable and data")
	ErrNoTrain    = errors.New("train: no training data")
)

// Settings configures a run of SGD. Zero values fall back to the
// defaults above.
type Settings struct {
	BatchSize int
	Epochs    int

	// Patience is the number of epochs without improvement of the
	// monitored loss before training stops early. A negative value
	// disables early stopping.
	Patience int

	StepSize float64

	Losser      loss.DerivLosser       // defaults to loss.SquaredDistance
	Regularizer regularize.Regularizer // defaults to regularize.None

	Src rand.Source // randomness for minibatch shuffling

	// Metric is an optional per-sample quality measure (higher is not
	// assumed better; it is only recorded). When set, its mean over the
	// training and validation sets is tracked per epoch.
	Metric func(prediction, truth []float64) float64

	// Checkpoint is called whenever the monitored loss improves, with a
	// copy-safe view of the best parameters so far. An error aborts
	// training.
	Checkpoint func(parameters []float64, epoch int, valLoss float64) error
}

// Result records the history of a training run.
type Result struct {
	TrainLoss []float64
	ValLoss   []float64 // empty when no validation set was supplied

	TrainMetric []float64 // filled when Settings.Metric is set
	ValMetric   []float64

	BestEpoch      int
	BestLoss       float64
	BestParameters []float64

	EarlyStopped bool
}

// SGD fits the trainable on the training set with minibatch Adam,
// monitoring the loss on the validation set after every epoch and
// stopping early when it has not improved for Patience epochs. The
// trainable's parameters are left at the final iterate; the best iterate
// is recorded in the result. Parameters are not randomized here, so the
// caller controls initialization.
//
// valIn and valOut may both be nil, in which case the training loss is
// monitored instead.
func SGD(t Trainable, s Settings, trainIn, trainOut, valIn, valOut common.RowMatrix) (*Result, error) {
	if err := common.VerifyInputs(trainIn, trainOut, nil); err != nil {
		return nil, err
	}
	hasVal := valIn != nil || valOut != nil
	if hasVal {
		if err := common.VerifyInputs(valIn, valOut, nil); err != nil {
			return nil, err
		}
	}
	nTrain, inputDim := trainIn.Dims()
	_, outputDim := trainOut.Dims()
	if nTrain == 0 {
		return nil, ErrNoTrain
	}
	if inputDim != t.InputDim() || outputDim != t.OutputDim() {
		return nil, ErrDimensions
	}

	if s.BatchSize == 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.Epochs == 0 {
		s.Epochs = DefaultEpochs
	}
	if s.Patience == 0 {
		s.Patience = DefaultPatience
	}
	if s.StepSize == 0 {
		s.StepSize = DefaultStepSize
	}
	if s.Losser == nil {
		s.Losser = loss.SquaredDistance{}
	}
	if s.Regularizer == nil {
		s.Regularizer = regularize.None{}
	}

	var sampler Sampler
	if s.BatchSize >= nTrain {
		s.BatchSize = nTrain
		sampler = &Batch{}
	} else {
		sampler = &Stochastic{BatchSize: s.BatchSize, Src: s.Src}
	}
	if err := sampler.Init(nTrain); err != nil {
		return nil, err
	}

	params := t.Parameters(nil)
	deriver := t.NewLossDeriver()
	featurizer := t.NewFeaturizer()
	resampler, hasMasks := deriver.(MaskResampler)

	opt := newAdam(len(params), s.StepSize)

	input := make([]float64, inputDim)
	truth := make([]float64, outputDim)
	feature := make([]float64, t.NumFeatures())
	pred := make([]float64, outputDim)
	dLossDPred := make([]float64, outputDim)
	dLossDWeight := make([]float64, len(params))
	grad := make([]float64, len(params))

	batchesPerEpoch := (nTrain + s.BatchSize - 1) / s.BatchSize

	res := &Result{
		BestLoss:       math.Inf(1),
		BestParameters: make([]float64, len(params)),
	}

	for epoch := 0; epoch < s.Epochs; epoch++ {
		var epochLoss float64
		var nSeen int
		for b := 0; b < batchesPerEpoch; b++ {
			batch := sampler.Iterate()
			if hasMasks {
				resampler.Resample()
			}
			for i := range grad {
				grad[i] = 0
			}
			for _, idx := range batch {
				mat.Row(input, idx, trainIn)
				mat.Row(truth, idx, trainOut)
				featurizer.Featurize(input, feature)
				deriver.Predict(params, feature, pred)
				epochLoss += s.Losser.LossDeriv(pred, truth, dLossDPred)
				deriver.Deriv(params, feature, pred, dLossDPred, dLossDWeight)
				floats.Add(grad, dLossDWeight)
			}
			nSeen += len(batch)
			floats.Scale(1/float64(len(batch)), grad)
			s.Regularizer.LossAddDeriv(params, grad)
			opt.update(params, grad)
		}

		t.SetParameters(params)
		predictor := t.Predictor()

		trainLoss := epochLoss / float64(nSeen)
		res.TrainLoss = append(res.TrainLoss, trainLoss)
		monitored := trainLoss
		if hasVal {
			valLoss := meanLoss(predictor, valIn, valOut, s.Losser)
			res.ValLoss = append(res.ValLoss, valLoss)
			monitored = valLoss
		}
		if s.Metric != nil {
			res.TrainMetric = append(res.TrainMetric, meanMetric(predictor, trainIn, trainOut, s.Metric))
			if hasVal {
				res.ValMetric = append(res.ValMetric, meanMetric(predictor, valIn, valOut, s.Metric))
			}
		}

		log.Debug().
			Int("epoch", epoch).
			Float64("train_loss", trainLoss).
			Float64("monitored", monitored).
			Msg("epoch finished")

		if monitored < res.BestLoss {
			res.BestLoss = monitored
			res.BestEpoch = epoch
			copy(res.BestParameters, params)
			if s.Checkpoint != nil {
				if err := s.Checkpoint(res.BestParameters, epoch, monitored); err != nil {
					return res, err
				}
			}
		} else if s.Patience >= 0 && epoch-res.BestEpoch > s.Patience {
			res.EarlyStopped = true
			log.Info().
				Int("epoch", epoch).
				Int("best_epoch", res.BestEpoch).
				Float64("best_loss", res.BestLoss).
				Msg("early stopping: monitored loss stopped improving")
			break
		}
	}

	t.SetParameters(params)
	return res, nil
}

func meanLoss(p common.Predictor, inputs, outputs common.RowMatrix, losser loss.Losser) float64 {
	n, inputDim := inputs.Dims()
	_, outputDim := outputs.Dims()
	input := make([]float64, inputDim)
	truth := make([]float64, outputDim)
	pred := make([]float64, outputDim)
	var sum float64
	for i := 0; i < n; i++ {
		mat.Row(input, i, inputs)
		mat.Row(truth, i, outputs)
		p.Predict(input, pred)
		sum += losser.Loss(pred, truth)
	}
	return sum / float64(n)
}

func meanMetric(p common.Predictor, inputs, outputs common.RowMatrix, metric func(prediction, truth []float64) float64) float64 {
	n, inputDim := inputs.Dims()
	_, outputDim := outputs.Dims()
	input := make([]float64, inputDim)
	truth := make([]float64, outputDim)
	pred := make([]float64, outputDim)
	var sum float64
	for i := 0; i < n; i++ {
		mat.Row(input, i, inputs)
		mat.Row(truth, i, outputs)
		p.Predict(input, pred)
		sum += metric(pred, truth)
	}
	return sum / float64(n)
}

// adam is the Adam update rule with the usual bias-corrected first and
// second moment estimates
type adam struct {
	stepSize float64
	beta1    float64
	beta2    float64
	eps      float64

	m []float64
	v []float64
	t int
}

func newAdam(n int, stepSize float64) *adam {
	return &adam{
		stepSize: stepSize,
		beta1:    0.9,
		beta2:    0.999,
		eps:      1e-8,
		m:        make([]float64, n),
		v:        make([]float64, n),
	}
}

func (a *adam) update(params, grad []float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.stepSize * mHat / (math.Sqrt(vHat) + a.eps)
	}
}
