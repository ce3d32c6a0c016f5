package main

import "fmt"

// ===========================================================================
// BACKPROPAGATION THROUGH TIME
// ===========================================================================
//
// The forward pass unrolled the cell across SeqLen steps; the backward
// pass walks those steps in REVERSE. At each step t the hidden state
// gradient has two sources:
//
//	1. the loss at step t itself (through the logit projection), and
//	2. the loss at steps t+1..T-1, carried backwards through the
//	   recurrent connections (dhNext and dcNext below).
//
// Inside a step, layers unwind top-down: the top layer receives the logit
// gradient, each lower layer receives the input gradient of the layer
// above it.
//
// The cell gradient bookkeeping mirrors the forward equations exactly:
//
//	h' = o ⊙ tanh(c')    =>  do = dh ⊙ tanh(c'),  dc += dh ⊙ o ⊙ (1-tanh²(c'))
//	c' = f ⊙ c + i ⊙ g   =>  df = dc ⊙ c,  di = dc ⊙ g,  dg = dc ⊙ i,
//	                         and dc flows to step t-1 as dc ⊙ f
//
// Every step accumulates into the SAME wx/wh/b gradients, because the
// weights are shared across the unroll.
//
// ===========================================================================

// Backward propagates the logit gradient through the unrolled graph,
// accumulating parameter gradients. gradLogits must be (T, VocabSize)
// with T matching the cached forward pass.
func (m *CharLSTM) Backward(gradLogits *Tensor, cache *forwardCache) {
	steps := len(cache.steps)
	if len(gradLogits.shape) != 2 || gradLogits.shape[0] != steps || gradLogits.shape[1] != m.config.VocabSize {
		panic(fmt.Sprintf("lstm: gradLogits shape %v does not match %d cached steps, vocab %d",
			gradLogits.shape, steps, m.config.VocabSize))
	}

	hidden := m.config.HiddenSize
	vocab := m.config.VocabSize
	numLayers := len(m.layers)

	// Recurrent gradient carriers, one per layer, flowing from step t+1
	// back into step t.
	dhNext := make([]*Tensor, numLayers)
	dcNext := make([]*Tensor, numLayers)
	for l := 0; l < numLayers; l++ {
		dhNext[l] = NewTensor(1, hidden)
		dcNext[l] = NewTensor(1, hidden)
	}

	whyT := Transpose(m.why)

	for t := steps - 1; t >= 0; t-- {
		sc := cache.steps[t]

		// Gradient from this step's loss through the logit projection
		dy := NewTensor(1, vocab)
		copy(dy.data, gradLogits.data[t*vocab:(t+1)*vocab])

		m.why.AccumulateGrad(MatMul(Transpose(sc.hTop), dy))
		m.by.AccumulateGrad(dy)

		// dh entering the top layer at step t
		dxAbove := MatMul(dy, whyT)

		for l := numLayers - 1; l >= 0; l-- {
			layer := m.layers[l]

			dh := Add(dxAbove, dhNext[l])

			// h' = o ⊙ tanh(c')
			do := Mul(dh, sc.tanhC[l])
			dc := Add(dcNext[l], TanhBackward(sc.tanhC[l], Mul(dh, sc.oGate[l])))

			// c' = f ⊙ c + i ⊙ g
			di := Mul(dc, sc.gGate[l])
			df := Mul(dc, sc.cPrev[l])
			dg := Mul(dc, sc.iGate[l])

			// Through the gate nonlinearities to the pre-activations
			dz := NewTensor(1, 4*hidden)
			setCols(dz, SigmoidBackward(sc.iGate[l], di), 0)
			setCols(dz, SigmoidBackward(sc.fGate[l], df), hidden)
			setCols(dz, SigmoidBackward(sc.oGate[l], do), 2*hidden)
			setCols(dz, TanhBackward(sc.gGate[l], dg), 3*hidden)

			// Shared parameter gradients accumulate across steps
			layer.b.AccumulateGrad(dz)
			layer.wh.AccumulateGrad(MatMul(Transpose(sc.hPrev[l]), dz))

			// Carry recurrent gradients to step t-1
			dhNext[l] = MatMul(dz, Transpose(layer.wh))
			dcNext[l] = Mul(dc, sc.fGate[l])

			if l == 0 {
				// One-hot input: dWx touches only row inputID
				row := sc.inputID * 4 * hidden
				for j := 0; j < 4*hidden; j++ {
					layer.wx.grad[row+j] += dz.data[j]
				}
				dxAbove = nil // bottom of the stack
			} else {
				layer.wx.AccumulateGrad(MatMul(Transpose(sc.xs[l]), dz))
				dxAbove = MatMul(dz, Transpose(layer.wx))
			}
		}
	}
}
