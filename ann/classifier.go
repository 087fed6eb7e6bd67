package ann

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/loss"
	"github.com/burn-research/PyTROModelling/nnet"
	"github.com/burn-research/PyTROModelling/train"
)

// Classifier trains a feed-forward network with a sigmoid output layer
// and cross-entropy loss on one-hot targets. A single-column target of
// class labels is expanded to one-hot automatically.
type Classifier struct {
	cfg     config
	x       *mat.Dense
	targets *mat.Dense
	classes []float64 // label for each output column, nil when the
	// caller supplied one-hot targets directly

	trainer *nnet.Trainer
	result  *train.Result
	runDir  string
}

// NewClassifier validates the options and the shapes of x (observations
// by variables) and y (either one column of class labels or an already
// one-hot matrix). No training or file-system work happens here.
func NewClassifier(x, y *mat.Dense, opts ...Option) (*Classifier, error) {
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

	c := &Classifier{cfg: cfg, x: x}
	_, q := y.Dims()
	if q == 1 {
		targets, classes, err := oneHot(y)
		if err != nil {
			return nil, err
		}
		c.targets = targets
		c.classes = classes
	} else {
		c.targets = y
	}
	return c, nil
}

// Fit trains the classifier and returns the per-class output activations
// for every input row. Side effects land in the run directory: recap
// file, best weights, loss and accuracy history plots.
func (c *Classifier) Fit() (*mat.Dense, error) {
	_, p := c.x.Dims()
	_, k := c.targets.Dims()

	trainer, err := nnet.NewSimpleTrainer(p, k, c.cfg.layers, c.cfg.neurons, c.cfg.activation, nnet.Sigmoid{})
	if err != nil {
		return nil, err
	}

	extras := [][2]string{{"Number of classes", fmt.Sprintf("%d", k)}}
	dir, res, err := fitNet(c.cfg, "classifier", trainer, c.x, c.targets, loss.CrossEntropy{}, accuracy, extras, c.cfg.rng())
	c.runDir = dir
	if err != nil {
		return nil, err
	}
	c.trainer = trainer
	c.result = res
	return predictAll(trainer, c.x)
}

// Classes returns the label associated with each output column when the
// targets were expanded from a label column, nil otherwise.
func (c *Classifier) Classes() []float64 { return c.classes }

// RunDir returns the output directory of the last Fit call.
func (c *Classifier) RunDir() string { return c.runDir }

// Result returns the training history of the last Fit call.
func (c *Classifier) Result() *train.Result { return c.result }

// Predictor returns the fitted network. Only valid after Fit.
func (c *Classifier) Predictor() common.Predictor { return c.trainer.Predictor() }

// oneHot expands a single column of class labels into an n-by-k one-hot
// matrix, with columns ordered by sorted distinct label value.
func oneHot(y *mat.Dense) (*mat.Dense, []float64, error) {
	n, _ := y.Dims()
	seen := make(map[float64]bool)
	for i := 0; i < n; i++ {
		seen[y.At(i, 0)] = true
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	if len(classes) < 2 {
		return nil, nil, fmt.Errorf("ann: need at least two classes, got %d", len(classes))
	}
	column := make(map[float64]int, len(classes))
	for j, v := range classes {
		column[v] = j
	}
	targets := mat.NewDense(n, len(classes), nil)
	for i := 0; i < n; i++ {
		targets.Set(i, column[y.At(i, 0)], 1)
	}
	return targets, classes, nil
}

// accuracy is 1 when the largest output activation lines up with the
// one-hot target, 0 otherwise. Averaged per epoch by the trainer.
func accuracy(prediction, truth []float64) float64 {
	if argmax(prediction) == argmax(truth) {
		return 1
	}
	return 0
}

func argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
