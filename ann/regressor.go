package ann

import (
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/loss"
	"github.com/burn-research/PyTROModelling/nnet"
	"github.com/burn-research/PyTROModelling/train"
)

// Regressor trains a feed-forward network with a linear output layer and
// squared loss to map the input variables onto one or more continuous
// targets.
type Regressor struct {
	cfg config
	x   *mat.Dense
	y   *mat.Dense

	trainer *nnet.Trainer
	result  *train.Result
	runDir  string
}

// NewRegressor validates the options and that x and y hold the same
// number of observations. No training or file-system work happens here.
func NewRegressor(x, y *mat.Dense, opts ...Option) (*Regressor, error) {
	cfg := defaultConfig()
	if err := cfg.apply(opts); err != nil {
		return nil, err
	}
	if err := common.VerifyInputs(x, y, nil); err != nil {
		return nil, err
	}
	n, _ := x.Dims()
	if n == 0 {
		return nil, common.ErrNoData
	}
	return &Regressor{cfg: cfg, x: x, y: y}, nil
}

// Fit trains the regressor with the best checkpoint restored afterwards
// and returns the predictions on the full input.
func (r *Regressor) Fit() (*mat.Dense, error) {
	_, p := r.x.Dims()
	_, q := r.y.Dims()

	trainer, err := nnet.NewSimpleTrainer(p, q, r.cfg.layers, r.cfg.neurons, r.cfg.activation, nnet.Linear{})
	if err != nil {
		return nil, err
	}

	dir, res, err := fitNet(r.cfg, "regressor", trainer, r.x, r.y, loss.SquaredDistance{}, nil, nil, r.cfg.rng())
	r.runDir = dir
	if err != nil {
		return nil, err
	}
	r.trainer = trainer
	r.result = res
	return predictAll(trainer, r.x)
}

// RunDir returns the output directory of the last Fit call.
func (r *Regressor) RunDir() string { return r.runDir }

// Result returns the training history of the last Fit call.
func (r *Regressor) Result() *train.Result { return r.result }

// Predictor returns the fitted network. Only valid after Fit.
func (r *Regressor) Predictor() common.Predictor { return r.trainer.Predictor() }
