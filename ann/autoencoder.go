package ann

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/dataset"
	"github.com/burn-research/PyTROModelling/loss"
	"github.com/burn-research/PyTROModelling/nnet"
	"github.com/burn-research/PyTROModelling/train"
)

// Autoencoder trains a network that reconstructs its own input through a
// single hidden bottleneck layer, yielding a nonlinear reduction of the
// data to Neurons dimensions. The Layers option is ignored; the topology
// is always input - bottleneck - output.
type Autoencoder struct {
	cfg config
	x   *mat.Dense

	trainer *nnet.Trainer
	result  *train.Result
	runDir  string
}

// NewAutoencoder validates the options against the data; the bottleneck
// must be strictly smaller than the input dimension.
func NewAutoencoder(x *mat.Dense, opts ...Option) (*Autoencoder, error) {
	cfg := defaultConfig()
	if err := cfg.apply(opts); err != nil {
		return nil, err
	}
	if x == nil {
		return nil, common.ErrNoData
	}
	n, p := x.Dims()
	if n == 0 {
		return nil, common.ErrNoData
	}
	if cfg.neurons >= p {
		return nil, ErrBottleneck
	}
	return &Autoencoder{cfg: cfg, x: x}, nil
}

// Fit trains the autoencoder and returns the encoded matrix, the
// bottleneck activations for every input row. With SaveTxt the encoded
// matrix is also dumped as Encoded_matrix.txt alongside the weights.
func (a *Autoencoder) Fit() (*mat.Dense, error) {
	_, p := a.x.Dims()

	trainer, err := nnet.NewSimpleTrainer(p, p, 1, a.cfg.neurons, a.cfg.activation, nnet.Linear{})
	if err != nil {
		return nil, err
	}

	extras := [][2]string{{"Bottleneck dimension", fmt.Sprintf("%d", a.cfg.neurons)}}
	dir, res, err := fitNet(a.cfg, "autoencoder", trainer, a.x, a.x, loss.SquaredDistance{}, nil, extras, a.cfg.rng())
	a.runDir = dir
	if err != nil {
		return nil, err
	}
	a.trainer = trainer
	a.result = res

	encoded, err := a.encode(trainer)
	if err != nil {
		return nil, err
	}
	if a.cfg.saveTxt {
		if err := dataset.WriteMatrix(filepath.Join(dir, "Encoded_matrix.txt"), encoded); err != nil {
			return nil, err
		}
	}
	return encoded, nil
}

// encode evaluates only the bottleneck layer of the fitted net by
// rebuilding it as a standalone single-layer network.
func (a *Autoencoder) encode(trainer *nnet.Trainer) (*mat.Dense, error) {
	_, p := a.x.Dims()
	m := a.cfg.neurons

	encoder, err := nnet.NewSimpleTrainer(p, m, 0, 1, nnet.Linear{}, a.cfg.activation)
	if err != nil {
		return nil, err
	}
	weights, biases := trainer.LayerWeights(0)
	params := make([]float64, 0, encoder.NumParameters())
	for j := 0; j < m; j++ {
		for i := 0; i < p; i++ {
			params = append(params, weights.At(i, j))
		}
		params = append(params, biases[j])
	}
	encoder.SetParameters(params)
	return predictAll(encoder, a.x)
}

// RunDir returns the output directory of the last Fit call.
func (a *Autoencoder) RunDir() string { return a.runDir }

// Result returns the training history of the last Fit call.
func (a *Autoencoder) Result() *train.Result { return a.result }

// Predictor returns the fitted reconstruction network, mapping inputs to
// their decoded reconstructions. Only valid after Fit.
func (a *Autoencoder) Predictor() common.Predictor { return a.trainer.Predictor() }
