package main

import "fmt"

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements a character-level LSTM language model: the cell
// math, the stack of layers, and the unrolling of the recurrence across a
// fixed number of time steps.
//
// INTENTION:
// Model text one character at a time. At each step the network reads one
// character (as a one-hot index into the vocabulary) and predicts a
// probability distribution over the NEXT character. Train it on a corpus
// and the recurrent state learns to carry context: quotes get closed,
// words get finished, indentation gets matched.
//
// THE LSTM CELL:
// A plain RNN squashes its entire memory through one tanh every step, so
// gradients die (or explode) over long sequences. The LSTM fixes this with
// an explicit cell memory c and three sigmoid gates that control it:
//
//	z = x·Wx + h·Wh + b            (fused pre-activations, 4H wide)
//	i = σ(z[0:H])                  input gate: how much new info to write
//	f = σ(z[H:2H])                 forget gate: how much old memory to keep
//	o = σ(z[2H:3H])                output gate: how much memory to expose
//	g = tanh(z[3H:4H])             candidate: the new info itself
//	c' = f ⊙ c + i ⊙ g             memory update is ADDITIVE
//	h' = o ⊙ tanh(c')              hidden output
//
// The additive update is the whole trick: gradients flow back through
// c' = f⊙c + ... without repeated squashing, so the error signal survives
// across many time steps.
//
// UNROLLING:
// Weights are defined once per layer and applied at every time step. The
// forward pass replays the same cell SeqLen times, threading (c, h)
// through; the backward pass walks the same steps in reverse, accumulating
// each step's contribution into the shared weight gradients. That reverse
// walk is backpropagation through time (BPTT).
//
// ONE-HOT INPUT:
// The bottom layer's input is a one-hot vector, so x·Wx is just row x of
// Wx. We index instead of multiplying. Same math, V times cheaper.
//
// KEY DESIGN DECISIONS:
//
// 1. Fused gates: one (in, 4H) matrix per layer instead of four (in, H)
//    matrices. One big matmul beats four small ones, and the split into
//    i/f/o/g is a cheap column slice.
//
// 2. Forget-gate bias starts at 1.0. A fresh LSTM with zero biases forgets
//    everything immediately and takes ages to learn not to. Biasing the
//    forget gate open is the standard fix (Jozefowicz et al., 2015).
//
// 3. State is explicit. Training resets it per sequence (the unroll is the
//    whole graph); sampling threads one State through the generation loop
//    so the model has unbounded context.
//
// ===========================================================================

// Config holds the model architecture hyperparameters.
// JSON tags are for the checkpoint header.
type Config struct {
	VocabSize  int `json:"vocab_size"`
	HiddenSize int `json:"hidden_size"`
	NumLayers  int `json:"num_layers"`
	SeqLen     int `json:"seq_len"`
}

// DefaultConfig returns a model sized for quick CPU experiments.
func DefaultConfig() Config {
	return Config{
		VocabSize:  0, // set from the vocabulary
		HiddenSize: 128,
		NumLayers:  2,
		SeqLen:     64,
	}
}

// lstmLayer holds one layer's parameters, shared across all time steps.
//
// The four gates are fused along the column dimension of wx/wh/b in the
// order [input | forget | output | candidate], each HiddenSize wide.
type lstmLayer struct {
	wx     *Tensor // (inSize, 4H) applied to the layer input
	wh     *Tensor // (H, 4H) applied to the previous hidden state
	b      *Tensor // (1, 4H) gate biases
	inSize int
}

// initScale is the stddev for weight init. Char-RNN practice: small
// uniform-ish weights keep the gates in their linear region early on.
const initScale = 0.08

func newLSTMLayer(inSize, hiddenSize int) *lstmLayer {
	layer := &lstmLayer{
		wx:     NewTensorRand(initScale, inSize, 4*hiddenSize),
		wh:     NewTensorRand(initScale, hiddenSize, 4*hiddenSize),
		b:      NewTensor(1, 4*hiddenSize),
		inSize: inSize,
	}

	// Open the forget gate at init (decision 2 above)
	for j := hiddenSize; j < 2*hiddenSize; j++ {
		layer.b.data[j] = 1.0
	}

	return layer
}

// CharLSTM is a stacked LSTM with a linear projection to vocab logits.
type CharLSTM struct {
	config Config
	layers []*lstmLayer
	why    *Tensor // (H, V) hidden-to-logits projection
	by     *Tensor // (1, V)
}

// NewCharLSTM creates a model with randomly initialized weights.
func NewCharLSTM(config Config) *CharLSTM {
	if config.VocabSize <= 0 {
		panic("lstm: config.VocabSize must be positive")
	}
	if config.HiddenSize <= 0 || config.NumLayers <= 0 {
		panic("lstm: hidden size and layer count must be positive")
	}

	layers := make([]*lstmLayer, config.NumLayers)
	for l := range layers {
		inSize := config.HiddenSize
		if l == 0 {
			inSize = config.VocabSize
		}
		layers[l] = newLSTMLayer(inSize, config.HiddenSize)
	}

	return &CharLSTM{
		config: config,
		layers: layers,
		why:    NewTensorRand(initScale, config.HiddenSize, config.VocabSize),
		by:     NewTensor(1, config.VocabSize),
	}
}

// Config returns the model configuration.
func (m *CharLSTM) Config() Config {
	return m.config
}

// Parameters returns all trainable tensors in a fixed order:
// per layer wx, wh, b; then why, by. The checkpoint format and the
// optimizer state both rely on this order being stable.
func (m *CharLSTM) Parameters() []*Tensor {
	params := make([]*Tensor, 0, 3*len(m.layers)+2)
	for _, layer := range m.layers {
		params = append(params, layer.wx, layer.wh, layer.b)
	}
	params = append(params, m.why, m.by)
	return params
}

// NumParameters returns the total trainable parameter count.
func (m *CharLSTM) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Size()
	}
	return total
}

// State holds the recurrent state: one (cell, hidden) pair per layer.
type State struct {
	h []*Tensor // per layer (1, H)
	c []*Tensor // per layer (1, H)
}

// NewState returns a zeroed recurrent state for this model.
func (m *CharLSTM) NewState() *State {
	s := &State{
		h: make([]*Tensor, len(m.layers)),
		c: make([]*Tensor, len(m.layers)),
	}
	for l := range m.layers {
		s.h[l] = NewTensor(1, m.config.HiddenSize)
		s.c[l] = NewTensor(1, m.config.HiddenSize)
	}
	return s
}

// Reset zeroes the state in place.
func (s *State) Reset() {
	for l := range s.h {
		for i := range s.h[l].data {
			s.h[l].data[i] = 0
			s.c[l].data[i] = 0
		}
	}
}

// stepCache records one time step's activations for the backward pass.
type stepCache struct {
	inputID int       // one-hot index fed to layer 0
	xs      []*Tensor // per layer input; nil for layer 0 (one-hot)
	hPrev   []*Tensor // per layer previous hidden
	cPrev   []*Tensor // per layer previous cell
	iGate   []*Tensor
	fGate   []*Tensor
	oGate   []*Tensor
	gGate   []*Tensor
	cNew    []*Tensor // per layer updated cell
	tanhC   []*Tensor // per layer tanh(cNew)
	hTop    *Tensor   // top layer hidden (feeds the logit projection)
}

// forwardCache holds the per-step caches of one unrolled forward pass.
type forwardCache struct {
	steps []*stepCache
}

// step advances the recurrence one tick: feeds character id through all
// layers, updating state in place. Returns the top layer's hidden output.
// If cache is non-nil the activations are recorded for BPTT.
func (m *CharLSTM) step(id int, state *State, cache *stepCache) *Tensor {
	if id < 0 || id >= m.config.VocabSize {
		panic(fmt.Sprintf("lstm: input id %d out of vocab range [0,%d)", id, m.config.VocabSize))
	}

	hidden := m.config.HiddenSize
	var x *Tensor

	for l, layer := range m.layers {
		// Fused pre-activations z = x·Wx + hPrev·Wh + b
		z := MatMul(state.h[l], layer.wh)
		if l == 0 {
			// One-hot input: x·Wx is row id of Wx
			wxRow := layer.wx.data[id*4*hidden : (id+1)*4*hidden]
			for j := range z.data {
				z.data[j] += wxRow[j] + layer.b.data[j]
			}
		} else {
			xw := MatMul(x, layer.wx)
			for j := range z.data {
				z.data[j] += xw.data[j] + layer.b.data[j]
			}
		}

		i := Sigmoid(sliceCols(z, 0, hidden))
		f := Sigmoid(sliceCols(z, hidden, 2*hidden))
		o := Sigmoid(sliceCols(z, 2*hidden, 3*hidden))
		g := Tanh(sliceCols(z, 3*hidden, 4*hidden))

		cNew := Add(Mul(f, state.c[l]), Mul(i, g))
		tanhC := Tanh(cNew)
		hNew := Mul(o, tanhC)

		if cache != nil {
			if l == 0 {
				cache.inputID = id
				cache.xs[l] = nil
			} else {
				cache.xs[l] = x
			}
			cache.hPrev[l] = state.h[l]
			cache.cPrev[l] = state.c[l]
			cache.iGate[l] = i
			cache.fGate[l] = f
			cache.oGate[l] = o
			cache.gGate[l] = g
			cache.cNew[l] = cNew
			cache.tanhC[l] = tanhC
		}

		state.c[l] = cNew
		state.h[l] = hNew
		x = hNew
	}

	if cache != nil {
		cache.hTop = x
	}
	return x
}

// StepLogits advances the state by one character and returns the logits
// for the next character. This is the sampling-time entry point.
func (m *CharLSTM) StepLogits(id int, state *State) *Tensor {
	h := m.step(id, state, nil)
	return AddBias(MatMul(h, m.why), m.by)
}

// Forward unrolls the model over an input sequence from a zero state and
// returns logits of shape (len(inputs), VocabSize). Row t is the
// predicted distribution for the character FOLLOWING inputs[t].
func (m *CharLSTM) Forward(inputs []int) *Tensor {
	logits, _ := m.forward(inputs, false)
	return logits
}

// ForwardWithCache is Forward plus the per-step activation record needed
// by Backward.
func (m *CharLSTM) ForwardWithCache(inputs []int) (*Tensor, *forwardCache) {
	return m.forward(inputs, true)
}

func (m *CharLSTM) forward(inputs []int, withCache bool) (*Tensor, *forwardCache) {
	if len(inputs) == 0 {
		panic("lstm: empty input sequence")
	}

	state := m.NewState()
	logits := NewTensor(len(inputs), m.config.VocabSize)

	var cache *forwardCache
	if withCache {
		cache = &forwardCache{steps: make([]*stepCache, len(inputs))}
	}

	vocab := m.config.VocabSize
	for t, id := range inputs {
		var sc *stepCache
		if withCache {
			sc = newStepCache(len(m.layers))
			cache.steps[t] = sc
		}

		h := m.step(id, state, sc)
		y := AddBias(MatMul(h, m.why), m.by)
		copy(logits.data[t*vocab:(t+1)*vocab], y.data)
	}

	return logits, cache
}

func newStepCache(numLayers int) *stepCache {
	return &stepCache{
		xs:    make([]*Tensor, numLayers),
		hPrev: make([]*Tensor, numLayers),
		cPrev: make([]*Tensor, numLayers),
		iGate: make([]*Tensor, numLayers),
		fGate: make([]*Tensor, numLayers),
		oGate: make([]*Tensor, numLayers),
		gGate: make([]*Tensor, numLayers),
		cNew:  make([]*Tensor, numLayers),
		tanhC: make([]*Tensor, numLayers),
	}
}
