// Implementation of a feed-forward neural network and its trainer
package nnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/burn-research/PyTROModelling/common"
	"github.com/burn-research/PyTROModelling/train"
)

// Net is a simple feed-forward neural net
type Net struct {
	inputDim           int
	outputDim          int
	totalNumParameters int

	grainSize int

	neurons    [][]Neuron
	parameters [][][]float64
}

type netMarshaler struct {
	InputDim           int                    `json:"input_dim"`
	OutputDim          int                    `json:"output_dim"`
	TotalNumParameters int                    `json:"total_num_parameters"`
	Neurons            [][]activatorMarshaler `json:"neurons"`
	Parameters         [][][]float64          `json:"parameters"`
}

// ErrNotCheckpointable is returned when a net contains neurons other than
// SumNeuron, which is the only neuron the checkpoint format covers.
var ErrNotCheckpointable = errors.New("nnet: only sum neurons can be checkpointed")

func (n *Net) MarshalJSON() ([]byte, error) {
	m := netMarshaler{
		InputDim:           n.inputDim,
		OutputDim:          n.outputDim,
		TotalNumParameters: n.totalNumParameters,
		Parameters:         n.parameters,
	}
	m.Neurons = make([][]activatorMarshaler, len(n.neurons))
	for i, layer := range n.neurons {
		m.Neurons[i] = make([]activatorMarshaler, len(layer))
		for j, neur := range layer {
			sn, ok := neur.(SumNeuron)
			if !ok {
				return nil, ErrNotCheckpointable
			}
			m.Neurons[i][j] = marshalActivator(sn.Activator)
		}
	}
	return json.Marshal(m)
}

func (n *Net) UnmarshalJSON(data []byte) error {
	var m netMarshaler
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if err := n.unmarshal(m); err != nil {
		return err
	}
	n.setGrainSize()
	return nil
}

func (n *Net) unmarshal(m netMarshaler) error {
	n.inputDim = m.InputDim
	n.outputDim = m.OutputDim
	n.totalNumParameters = m.TotalNumParameters
	n.parameters = m.Parameters

	if len(n.parameters) != len(m.Neurons) {
		return errors.New("nnet: layer count mismatch between parameters and neurons")
	}
	var sum int
	for i := range n.parameters {
		if len(n.parameters[i]) != len(m.Neurons[i]) {
			return fmt.Errorf("nnet: neuron count mismatch in layer %d: %d parameter sets, %d neurons", i, len(n.parameters[i]), len(m.Neurons[i]))
		}
		for j := range n.parameters[i] {
			sum += len(n.parameters[i][j])
		}
	}
	if sum != n.totalNumParameters {
		return errors.New("nnet: sum of parameters does not match the total")
	}

	n.neurons = make([][]Neuron, len(m.Neurons))
	nLayerInputs := n.inputDim
	for i := range m.Neurons {
		n.neurons[i] = make([]Neuron, len(m.Neurons[i]))
		for j, am := range m.Neurons[i] {
			act, err := am.activator()
			if err != nil {
				return err
			}
			neur := SumNeuron{Activator: act}
			if np := neur.NumParameters(nLayerInputs); np != len(n.parameters[i][j]) {
				return fmt.Errorf("nnet: neuron %d,%d has %d parameters, expected %d", i, j, len(n.parameters[i][j]), np)
			}
			n.neurons[i][j] = neur
		}
		nLayerInputs = len(m.Neurons[i])
	}
	return nil
}

// InputDim returns the number of inputs expected by the net
func (n *Net) InputDim() int { return n.inputDim }

// OutputDim returns the number of outputs produced by the net
func (n *Net) OutputDim() int { return n.outputDim }

// NumLayers returns the number of layers, hidden layers plus the output
// layer
func (n *Net) NumLayers() int { return len(n.neurons) }

// LayerWeights returns a copy of the weights and biases of layer l. The
// weight matrix is nInputs×nNeurons, matching the usual dump convention.
func (n *Net) LayerWeights(l int) (weights *mat.Dense, biases []float64) {
	nNeurons := len(n.neurons[l])
	nInputs := len(n.parameters[l][0]) - 1
	weights = mat.NewDense(nInputs, nNeurons, nil)
	biases = make([]float64, nNeurons)
	for j := 0; j < nNeurons; j++ {
		p := n.parameters[l][j]
		for i := 0; i < nInputs; i++ {
			weights.Set(i, j, p[i])
		}
		biases[j] = p[nInputs]
	}
	return weights, biases
}

func (n *Net) Predict(input, output []float64) ([]float64, error) {
	if len(input) != n.inputDim {
		return nil, common.ErrInputDimension
	}
	if output == nil {
		output = make([]float64, n.outputDim)
	} else if len(output) != n.outputDim {
		return nil, common.ErrOutputDimension
	}
	prevOutput, tmpOutput := newPredictMemory(n.neurons)
	predict(input, n.neurons, n.parameters, prevOutput, tmpOutput, output)
	return output, nil
}

func (n *Net) PredictBatch(inputs common.RowMatrix, outputs common.MutableRowMatrix) (common.MutableRowMatrix, error) {
	batch := batchPredictor{
		neurons:    n.neurons,
		parameters: n.parameters,
		inputDim:   n.inputDim,
		outputDim:  n.outputDim,
	}
	return common.BatchPredict(batch, inputs, outputs, n.inputDim, n.outputDim, n.grainSize)
}

func (n *Net) setGrainSize() {
	// The number of floating point operations is roughly the number of
	// parameters, plus overhead per neuron and per layer in function
	// calls. Constants determined unscientifically from benchmarks.
	const (
		neuronOverhead = 70
		layerOverhead  = 200
		nsPerOp        = 0.7
	)

	var nNeurons int
	for _, layer := range n.neurons {
		nNeurons += len(layer)
	}
	nOps := n.totalNumParameters + nNeurons*neuronOverhead + layerOverhead*len(n.neurons)

	// Aim for roughly 100µs of work per batch
	grainSize := int(math.Ceil(100000 / (nsPerOp * float64(nOps))))
	if grainSize < 1 {
		grainSize = 1
	}
	n.grainSize = grainSize
}

func (n *Net) GrainSize() int { return n.grainSize }

// batchPredictor implements common.BatchPredictor so predictions can be
// computed in parallel
type batchPredictor struct {
	neurons    [][]Neuron
	parameters [][][]float64
	inputDim   int
	outputDim  int
}

// NewPredictor generates the necessary temporary memory to allow for
// concurrent prediction
func (b batchPredictor) NewPredictor() common.RowPredictor {
	prevOutput, tmpOutput := newPredictMemory(b.neurons)
	return predictor{
		neurons:       b.neurons,
		parameters:    b.parameters,
		tmpOutput:     tmpOutput,
		prevTmpOutput: prevOutput,
	}
}

// predictor contains temporary memory reused during successive calls to
// Predict
type predictor struct {
	neurons       [][]Neuron
	parameters    [][][]float64
	tmpOutput     []float64
	prevTmpOutput []float64
}

func (p predictor) Predict(input, output []float64) {
	predict(input, p.neurons, p.parameters, p.prevTmpOutput, p.tmpOutput, output)
}

func newPredictMemory(neurons [][]Neuron) (prevOutput, output []float64) {
	max := len(neurons[0])
	for i := 1; i < len(neurons); i++ {
		if l := len(neurons[i]); l > max {
			max = l
		}
	}
	return make([]float64, max), make([]float64, max)
}

func predict(input []float64, neurons [][]Neuron, parameters [][][]float64, prevTmpOutput, tmpOutput, output []float64) {
	nLayers := len(neurons)
	if nLayers == 1 {
		processLayer(input, neurons[0], parameters[0], output)
		return
	}

	// first layer uses the real input as the input
	tmpOutput = tmpOutput[:len(neurons[0])]
	processLayer(input, neurons[0], parameters[0], tmpOutput)

	// middle layers use the previous output as input
	for i := 1; i < nLayers-1; i++ {
		prevTmpOutput, tmpOutput = tmpOutput, prevTmpOutput
		tmpOutput = tmpOutput[:len(neurons[i])]
		processLayer(prevTmpOutput, neurons[i], parameters[i], tmpOutput)
	}
	// the final layer is the actual output
	processLayer(tmpOutput, neurons[nLayers-1], parameters[nLayers-1], output)
}

func processLayer(input []float64, neurons []Neuron, parameters [][]float64, output []float64) {
	for i, neuron := range neurons {
		combination := neuron.Combine(parameters[i], input)
		output[i] = neuron.Activate(combination)
	}
}

// Trainer is a wrapper for the feed-forward net for training
type Trainer struct {
	*Net

	dropProb float64
	dropRng  *rand.Rand
}

// NewSimpleTrainer constructs a trainable feed-forward neural net with
// nHiddenLayers hidden layers of nNeuronsPerLayer sum neurons each, using
// the given hidden activator, and an output layer of outputDim sum
// neurons with the final activator. Common choices for the final layer
// are Linear for regression and Sigmoid for classification.
func NewSimpleTrainer(inputDim, outputDim, nHiddenLayers, nNeuronsPerLayer int, hiddenLayerActivator, finalLayerActivator Activator) (*Trainer, error) {
	if inputDim <= 0 {
		return nil, errors.New("nnet: non-positive input dimension")
	}
	if outputDim <= 0 {
		return nil, errors.New("nnet: non-positive output dimension")
	}
	if nHiddenLayers < 0 {
		return nil, errors.New("nnet: negative number of hidden layers")
	}
	if nNeuronsPerLayer <= 0 {
		return nil, errors.New("nnet: non-positive number of neurons per layer")
	}

	neurons := make([][]Neuron, nHiddenLayers+1)
	for i := 0; i < nHiddenLayers; i++ {
		neurons[i] = make([]Neuron, nNeuronsPerLayer)
		for j := 0; j < nNeuronsPerLayer; j++ {
			neurons[i][j] = SumNeuron{Activator: hiddenLayerActivator}
		}
	}
	neurons[nHiddenLayers] = make([]Neuron, outputDim)
	for i := 0; i < outputDim; i++ {
		neurons[nHiddenLayers][i] = SumNeuron{Activator: finalLayerActivator}
	}
	return NewTrainer(inputDim, outputDim, neurons)
}

// NewTrainer creates a new feed-forward neural net with the given layers
func NewTrainer(inputDim, outputDim int, neurons [][]Neuron) (*Trainer, error) {
	if len(neurons) == 0 {
		return nil, errors.New("nnet: no neurons given")
	}
	for i := range neurons {
		if len(neurons[i]) == 0 {
			return nil, errors.New("nnet: layer with no neurons")
		}
	}

	nLayers := len(neurons)
	parameters := make([][][]float64, nLayers)
	totalNumParameters := 0
	nLayerInputs := inputDim
	for i, layer := range neurons {
		parameters[i] = make([][]float64, len(layer))
		for j, neuron := range layer {
			nParameters := neuron.NumParameters(nLayerInputs)
			parameters[i][j] = make([]float64, nParameters)
			totalNumParameters += nParameters
		}
		nLayerInputs = len(layer)
	}
	net := &Net{
		inputDim:           inputDim,
		outputDim:          outputDim,
		totalNumParameters: totalNumParameters,
		neurons:            neurons,
		parameters:         parameters,
	}
	net.setGrainSize()
	return &Trainer{Net: net}, nil
}

// SetDropout enables dropout of the hidden-layer neurons during training
// with the given drop probability. p must be in [0,1); zero disables.
// Inference through the net is unaffected, the kept activations are
// rescaled during training instead.
func (s *Trainer) SetDropout(p float64, src rand.Source) error {
	if p < 0 || p >= 1 {
		return errors.New("nnet: dropout probability must be in [0,1)")
	}
	s.dropProb = p
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	s.dropRng = rand.New(src)
	return nil
}

// Predictor returns the predictor for the current parameter values
func (s *Trainer) Predictor() common.Predictor {
	return s.Net
}

// NumFeatures returns the input dimension because a feed-forward neural
// network works on the raw inputs
func (s *Trainer) NumFeatures() int {
	return s.inputDim
}

// NumParameters returns the total number of parameters in all of the
// neurons of the net
func (s *Trainer) NumParameters() int {
	return s.totalNumParameters
}

func (s *Trainer) Featurize(input, feature []float64) {
	if len(feature) != len(input) {
		panic("nnet: feature length mismatch")
	}
	copy(feature, input)
}

func (s *Trainer) RandomizeParameters() {
	for i, layer := range s.neurons {
		for j, neuron := range layer {
			neuron.Randomize(s.parameters[i][j])
		}
	}
}

// Parameters returns a copy of all the parameters as a flattened slice.
// Creates a new slice if nil. Panics if non-nil and the incorrect length.
func (s *Trainer) Parameters(p []float64) []float64 {
	if p == nil {
		p = make([]float64, s.NumParameters())
	} else if len(p) != s.NumParameters() {
		panic("nnet: parameter size mismatch")
	}
	getparameters(p, s.parameters)
	return p
}

func getparameters(p []float64, parameters [][][]float64) {
	idx := 0
	for _, layer := range parameters {
		for _, neuron := range layer {
			idx += copy(p[idx:idx+len(neuron)], neuron)
		}
	}
}

// SetParameters copies the input slice into the parameters of the
// trainer. Panics if the length does not match NumParameters.
func (s *Trainer) SetParameters(p []float64) {
	setparameters(s.parameters, p, s.NumParameters())
}

func setparameters(params [][][]float64, p []float64, nParameters int) {
	if len(p) != nParameters {
		panic("nnet: parameter size mismatch")
	}
	idx := 0
	for _, layer := range params {
		for _, neuron := range layer {
			idx += copy(neuron, p[idx:idx+len(neuron)])
		}
	}
}

func (s *Trainer) NewFeaturizer() train.Featurizer {
	// Featurize can be called in parallel, so just return self
	return s
}

func (s *Trainer) NewLossDeriver() train.LossDeriver {
	w := &lossDerivWrapper{
		neurons:      s.neurons,
		parameters:   newPerParameterMemory(s.parameters),
		activations:  newPerNeuronMemory(s.neurons),
		outputs:      newPerNeuronMemory(s.neurons),
		combinations: newPerNeuronMemory(s.neurons),
		nParameters:  s.NumParameters(),
		dLossDOutput: newPerNeuronMemory(s.neurons),
		dLossDInput:  newPerParameterMemory(s.parameters),
		dLossDParam:  newPerParameterMemory(s.parameters),
	}
	if s.dropProb > 0 {
		w.drop = newDropoutState(s.dropProb, s.neurons, rand.NewSource(s.dropRng.Int63()))
	}
	return w
}

func newPerParameterMemory(params [][][]float64) [][][]float64 {
	n := make([][][]float64, len(params))
	for i, layer := range params {
		n[i] = make([][]float64, len(layer))
		for j := range layer {
			n[i][j] = make([]float64, len(params[i][j]))
		}
	}
	return n
}

func newPerNeuronMemory(n [][]Neuron) [][]float64 {
	sos := make([][]float64, len(n))
	for i, layer := range n {
		sos[i] = make([]float64, len(layer))
	}
	return sos
}

type lossDerivWrapper struct {
	neurons      [][]Neuron
	parameters   [][][]float64
	activations  [][]float64 // raw activation per neuron
	outputs      [][]float64 // activation after dropout masking/rescale
	combinations [][]float64
	nParameters  int
	dLossDOutput [][]float64
	dLossDInput  [][][]float64
	dLossDParam  [][][]float64

	drop *dropoutState
}

// Resample draws fresh dropout masks. The trainer calls this once per
// minibatch through the train.MaskResampler interface.
func (l *lossDerivWrapper) Resample() {
	if l.drop != nil {
		l.drop.resample()
	}
}

func (l *lossDerivWrapper) Predict(parameters, input, predOutput []float64) {
	setparameters(l.parameters, parameters, l.nParameters)
	cachePredict(input, l.neurons, l.parameters, l.combinations, l.activations, l.outputs, predOutput, l.drop)
}

// cachePredict predicts the output while caching the per-neuron
// combinations and activations for the derivative pass
func cachePredict(input []float64, neurons [][]Neuron, parameters [][][]float64, combinations, activations, outputs [][]float64, predOutput []float64, drop *dropoutState) {
	nLayers := len(neurons)
	layerInput := input
	for i := 0; i < nLayers; i++ {
		for j, neuron := range neurons[i] {
			comb := neuron.Combine(parameters[i][j], layerInput)
			act := neuron.Activate(comb)
			combinations[i][j] = comb
			activations[i][j] = act
			outputs[i][j] = act * drop.outputScale(i, j, nLayers)
		}
		layerInput = outputs[i]
	}
	copy(predOutput, outputs[nLayers-1])
}

// Deriv computes the derivatives of the loss function with respect to the
// parameters. It must be called after Predict so the cached values hold.
//
// For each layer, dL/dp_{k,i,L} = dL/dout_{i,L} · dout_{i,L}/dcomb_{i,L}
// · dcomb_{i,L}/dp_{k,i,L}, where out is the activation output and comb
// the combination output, indexed by the kth weight of the ith neuron in
// the Lth layer. The derivative of the loss with respect to a layer's
// output is the sum of its influences on the next layer's combinations,
// which is where backpropagation spends its work.
func (l *lossDerivWrapper) Deriv(parameters, featurizedInput, predOutput, dLossDPred, dLossDWeight []float64) {
	nLayers := len(l.parameters)
	copy(l.dLossDOutput[nLayers-1], dLossDPred)

	for layer := nLayers - 1; layer > 0; layer-- {
		// Inputs to the layer are the (masked) outputs of the previous one
		derivativesLayer(l.neurons[layer], l.parameters[layer], l.outputs[layer-1], l.combinations[layer], l.activations[layer], l.dLossDOutput[layer], l.dLossDInput[layer], l.dLossDParam[layer], l.drop, layer, nLayers)
		dInputToDOutput(l.dLossDInput[layer], l.dLossDOutput[layer-1])
	}
	derivativesLayer(l.neurons[0], l.parameters[0], featurizedInput, l.combinations[0], l.activations[0], l.dLossDOutput[0], l.dLossDInput[0], l.dLossDParam[0], l.drop, 0, nLayers)

	getparameters(dLossDWeight, l.dLossDParam)
}

func derivativesLayer(neurons []Neuron, parameters [][]float64, inputs, combinations, activations, dLossDOutput []float64, dLossDInput, dLossDParam [][]float64, drop *dropoutState, layer, nLayers int) {
	for i, neuron := range neurons {
		scale := drop.outputScale(layer, i, nLayers)
		dLossNeuron(neuron, parameters[i], inputs, combinations[i], activations[i], dLossDOutput[i]*scale, dLossDParam[i], dLossDInput[i])
	}
}

func dLossNeuron(n Neuron, parameters, inputs []float64, combination, activation, dLossDOutput float64, dLossDParam, dLossDInput []float64) {
	dOutputDCombination := n.DActivateDCombination(combination, activation)
	dLossDCombination := dLossDOutput * dOutputDCombination

	n.DCombineDParameters(parameters, inputs, combination, dLossDParam)
	for i := range dLossDParam {
		dLossDParam[i] *= dLossDCombination
	}

	n.DCombineDInput(parameters, inputs, combination, dLossDInput)
	for i := range dLossDInput {
		dLossDInput[i] *= dLossDCombination
	}
}

// dInputToDOutput accumulates the derivative of the loss with respect to
// the previous layer's outputs from the derivatives with respect to the
// next layer's inputs
func dInputToDOutput(nextLayerDLossDInput [][]float64, previousLayerDLossDOutput []float64) {
	for i := range previousLayerDLossDOutput {
		previousLayerDLossDOutput[i] = 0
	}
	for i := range previousLayerDLossDOutput {
		for _, neurDLossDInput := range nextLayerDLossDInput {
			previousLayerDLossDOutput[i] += neurDLossDInput[i]
		}
	}
}
