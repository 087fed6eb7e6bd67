package ann

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/dataset"
	"github.com/burn-research/PyTROModelling/nnet"
)

// makeRunDir creates "<prefix> - YYYY_MM_DD-HHMM" under base, appending
// -2, -3, ... when a run from the same minute already exists.
func makeRunDir(base, prefix string, now time.Time) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	stamp := now.Format("2006_01_02-1504")
	name := fmt.Sprintf("%s - %s", prefix, stamp)
	dir := filepath.Join(base, name)
	for i := 2; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			log.Info().Str("dir", dir).Msg("created run directory")
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		dir = filepath.Join(base, fmt.Sprintf("%s-%d", name, i))
	}
}

// writeRecap writes the hyperparameter recap into the run directory. The
// extra pairs let each recipe append its own lines.
func writeRecap(dir, model string, c config, extras [][2]string) error {
	f, err := os.Create(filepath.Join(dir, "recap_training.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "Model: %s\n", model)
	fmt.Fprintf(f, "Number of neurons: %d\n", c.neurons)
	fmt.Fprintf(f, "Number of hidden layers: %d\n", c.layers)
	fmt.Fprintf(f, "Activation function: %s\n", c.activation.Name())
	fmt.Fprintf(f, "Batch size: %d\n", c.batchSize)
	fmt.Fprintf(f, "Number of epochs: %d\n", c.epochs)
	fmt.Fprintf(f, "Dropout: %g\n", c.dropout)
	fmt.Fprintf(f, "Learning rate: %g\n", c.stepSize)
	fmt.Fprintf(f, "Early stopping patience: %d\n", patience)
	for _, e := range extras {
		fmt.Fprintf(f, "%s: %s\n", e[0], e[1])
	}
	return nil
}

// dumpLayers writes Weights_HL{i}.txt and Biases_HL{i}.txt for every
// layer of the net.
func dumpLayers(dir string, net *nnet.Net) error {
	for l := 0; l < net.NumLayers(); l++ {
		weights, biases := net.LayerWeights(l)
		wPath := filepath.Join(dir, fmt.Sprintf("Weights_HL%d.txt", l))
		if err := dataset.WriteMatrix(wPath, weights); err != nil {
			return err
		}
		bPath := filepath.Join(dir, fmt.Sprintf("Biases_HL%d.txt", l))
		if err := dataset.WriteMatrix(bPath, mat.NewDense(1, len(biases), biases)); err != nil {
			return err
		}
	}
	return nil
}
