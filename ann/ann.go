// Package ann provides the three feed-forward network training recipes:
// Classifier, Autoencoder and Regressor. Each recipe validates its
// hyperparameters at construction, trains with minibatch Adam and early
// stopping on a held-out validation split, and persists a recap file,
// history plots and the best weights into a timestamped run directory.
package ann

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/burn-research/PyTROModelling/nnet"
)

// Hyperparameter defaults shared by the recipes.
const (
	DefaultNeurons    = 10
	DefaultLayers     = 1
	DefaultBatchSize  = 64
	DefaultEpochs     = 1000
	DefaultActivation = "relu"
	DefaultStepSize   = 1e-3

	trainFraction = 0.7
	patience      = 5
)

var (
	ErrNeurons    = errors.New("ann: neuron count must be positive")
	ErrLayers     = errors.New("ann: layer count must be positive")
	ErrBatchSize  = errors.New("ann: batch size must be positive")
	ErrEpochs     = errors.New("ann: epoch count must be positive")
	ErrDropout    = errors.New("ann: dropout must be in [0,1)")
	ErrBottleneck = errors.New("ann: bottleneck must be smaller than the input dimension")
)

type config struct {
	neurons    int
	layers     int
	batchSize  int
	epochs     int
	dropout    float64
	activation nnet.Activator
	stepSize   float64
	saveTxt    bool
	outputDir  string
	src        rand.Source
}

func defaultConfig() config {
	act, _ := nnet.ActivatorByName(DefaultActivation)
	return config{
		neurons:    DefaultNeurons,
		layers:     DefaultLayers,
		batchSize:  DefaultBatchSize,
		epochs:     DefaultEpochs,
		activation: act,
		stepSize:   DefaultStepSize,
		outputDir:  ".",
	}
}

func (c *config) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *config) rng() *rand.Rand {
	src := c.src
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	return rand.New(src)
}

// Option configures a recipe. Invalid values error out of the recipe
// constructor before any training or file-system work starts.
type Option func(*config) error

// Neurons sets the number of neurons per hidden layer. For the
// autoencoder this is the bottleneck dimension.
func Neurons(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrNeurons
		}
		c.neurons = n
		return nil
	}
}

// Layers sets the number of hidden layers. The autoencoder ignores this
// and always uses a single bottleneck layer.
func Layers(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrLayers
		}
		c.layers = n
		return nil
	}
}

// BatchSize sets the minibatch size used during training.
func BatchSize(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrBatchSize
		}
		c.batchSize = n
		return nil
	}
}

// Epochs sets the maximum number of training epochs. Early stopping may
// end training sooner.
func Epochs(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return ErrEpochs
		}
		c.epochs = n
		return nil
	}
}

// Dropout enables dropout of hidden neurons during training with the
// given drop probability, in [0,1). Zero disables.
func Dropout(p float64) Option {
	return func(c *config) error {
		if p < 0 || p >= 1 {
			return ErrDropout
		}
		c.dropout = p
		return nil
	}
}

// Activation sets the hidden-layer activation by name, one of relu,
// leaky_relu, sigmoid, tanh or linear.
func Activation(name string) Option {
	return func(c *config) error {
		act, err := nnet.ActivatorByName(name)
		if err != nil {
			return fmt.Errorf("ann: %w", err)
		}
		c.activation = act
		return nil
	}
}

// StepSize sets the Adam learning rate.
func StepSize(s float64) Option {
	return func(c *config) error {
		if s <= 0 {
			return errors.New("ann: step size must be positive")
		}
		c.stepSize = s
		return nil
	}
}

// SaveTxt additionally dumps per-layer weights and biases as plain-text
// files into the run directory.
func SaveTxt() Option {
	return func(c *config) error {
		c.saveTxt = true
		return nil
	}
}

// OutputDir sets the directory under which the timestamped run directory
// is created. Defaults to the current directory; the working directory
// itself is never changed.
func OutputDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return errors.New("ann: empty output directory")
		}
		c.outputDir = dir
		return nil
	}
}

// Source fixes the randomness used for the train/validation split,
// minibatch shuffling and dropout masks, making a run reproducible.
func Source(src rand.Source) Option {
	return func(c *config) error {
		c.src = src
		return nil
	}
}
