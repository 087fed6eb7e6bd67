package nnet

import "math/rand"

// dropoutState holds the per-minibatch masks over the hidden-layer
// neurons. The output layer is never masked. Inverted dropout is used:
// kept activations are rescaled by 1/(1-p) during training so inference
// needs no adjustment.
type dropoutState struct {
	prob  float64
	rng   *rand.Rand
	masks [][]bool // true means dropped; one slice per hidden layer
}

func newDropoutState(p float64, neurons [][]Neuron, src rand.Source) *dropoutState {
	nHidden := len(neurons) - 1
	masks := make([][]bool, nHidden)
	for i := 0; i < nHidden; i++ {
		masks[i] = make([]bool, len(neurons[i]))
	}
	return &dropoutState{
		prob:  p,
		rng:   rand.New(src),
		masks: masks,
	}
}

func (d *dropoutState) resample() {
	for _, mask := range d.masks {
		for j := range mask {
			mask[j] = d.rng.Float64() < d.prob
		}
	}
}

// outputScale returns the factor applied to the activation of neuron j in
// the given layer: 0 when dropped, 1/(1-p) when kept in a hidden layer,
// and 1 in the output layer or when dropout is disabled. A nil state
// always returns 1.
func (d *dropoutState) outputScale(layer, j, nLayers int) float64 {
	if d == nil || layer == nLayers-1 {
		return 1
	}
	if d.masks[layer][j] {
		return 0
	}
	return 1 / (1 - d.prob)
}
