package ann

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/loss"
	"github.com/burn-research/PyTROModelling/nnet"
	"github.com/burn-research/PyTROModelling/train"
)

// fitNet runs the shared portion of every recipe: run directory, recap
// file, train/validation split, Adam training with early stopping and a
// best-weights checkpoint, history plots, optional weight dumps. The
// trainer is left holding the best parameters found.
func fitNet(c config, model string, trainer *nnet.Trainer, x, y *mat.Dense, losser loss.DerivLosser, metric func(pred, truth []float64) float64, extras [][2]string, rng *rand.Rand) (string, *train.Result, error) {
	dir, err := makeRunDir(c.outputDir, model, time.Now())
	if err != nil {
		return "", nil, err
	}
	if err := writeRecap(dir, model, c, extras); err != nil {
		return dir, nil, err
	}

	trainer.RandomizeParameters()
	if c.dropout > 0 {
		if err := trainer.SetDropout(c.dropout, rand.NewSource(rng.Int63())); err != nil {
			return dir, nil, err
		}
	}

	trainIn, trainOut, valIn, valOut := split(x, y, rng)
	// avoid handing a typed nil *mat.Dense to the trainer as a non-nil
	// interface
	var vIn, vOut common.RowMatrix
	if valIn != nil {
		vIn, vOut = valIn, valOut
	}

	weightsPath := filepath.Join(dir, "best_weights.json")
	checkpoint := func(parameters []float64, epoch int, valLoss float64) error {
		// the trainer already holds these parameters when the hook fires
		data, err := json.Marshal(trainer.Net)
		if err != nil {
			return err
		}
		return os.WriteFile(weightsPath, data, 0o644)
	}

	log.Info().
		Str("model", model).
		Int("observations", rows(x)).
		Int("epochs", c.epochs).
		Msg("training started")

	res, err := train.SGD(trainer, train.Settings{
		BatchSize:  c.batchSize,
		Epochs:     c.epochs,
		Patience:   patience,
		StepSize:   c.stepSize,
		Losser:     losser,
		Src:        rand.NewSource(rng.Int63()),
		Metric:     metric,
		Checkpoint: checkpoint,
	}, trainIn, trainOut, vIn, vOut)
	if err != nil {
		return dir, nil, err
	}
	trainer.SetParameters(res.BestParameters)

	log.Info().
		Str("model", model).
		Int("best_epoch", res.BestEpoch).
		Float64("best_loss", res.BestLoss).
		Bool("early_stopped", res.EarlyStopped).
		Msg("training finished")

	if err := plotHistory(filepath.Join(dir, "loss_history.png"), model, "loss", res.TrainLoss, res.ValLoss); err != nil {
		return dir, res, err
	}
	if metric != nil {
		if err := plotHistory(filepath.Join(dir, "accuracy_history.png"), model, "accuracy", res.TrainMetric, res.ValMetric); err != nil {
			return dir, res, err
		}
	}
	if c.saveTxt {
		if err := dumpLayers(dir, trainer.Net); err != nil {
			return dir, res, err
		}
	}
	return dir, res, nil
}

// split shuffles the observations and carves off the trailing 30% as the
// validation set. With fewer than four observations everything trains
// and validation falls back to the training loss.
func split(x, y *mat.Dense, rng *rand.Rand) (trainIn, trainOut, valIn, valOut *mat.Dense) {
	n, _ := x.Dims()
	nTrain := int(trainFraction * float64(n))
	if nTrain < 1 {
		nTrain = 1
	}
	nVal := n - nTrain
	if nVal == 0 {
		return x, y, nil, nil
	}
	perm := rng.Perm(n)
	trainIn, trainOut = takeRows(x, y, perm[:nTrain])
	valIn, valOut = takeRows(x, y, perm[nTrain:])
	return trainIn, trainOut, valIn, valOut
}

func takeRows(x, y *mat.Dense, idx []int) (*mat.Dense, *mat.Dense) {
	_, p := x.Dims()
	_, q := y.Dims()
	xOut := mat.NewDense(len(idx), p, nil)
	yOut := mat.NewDense(len(idx), q, nil)
	for i, src := range idx {
		xOut.SetRow(i, x.RawRowView(src))
		yOut.SetRow(i, y.RawRowView(src))
	}
	return xOut, yOut
}

func rows(a mat.Matrix) int {
	n, _ := a.Dims()
	return n
}

// predictAll runs the fitted net over the full input matrix.
func predictAll(trainer *nnet.Trainer, x *mat.Dense) (*mat.Dense, error) {
	out, err := trainer.PredictBatch(x, nil)
	if err != nil {
		return nil, err
	}
	return out.(*mat.Dense), nil
}
