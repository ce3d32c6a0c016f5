package main

// ===========================================================================
// BACKWARD PASS BUILDING BLOCKS
// ===========================================================================
//
// There is no general autodiff graph here. The LSTM backward pass is
// hand-derived, and these are the per-operation gradient rules it chains
// together. Each function answers one question: given the gradient of the
// loss with respect to an operation's OUTPUT, what is the gradient with
// respect to its INPUTS?
//
// Two conventions keep the code honest:
//
// 1. Activations are differentiated FROM THEIR OUTPUT. Sigmoid and tanh
//    have derivatives expressible in terms of their own output
//    (σ' = σ(1-σ), tanh' = 1-tanh²), and the forward pass already cached
//    the output. No need to keep pre-activations around.
//
// 2. Parameter gradients ACCUMULATE. The same weight matrices are applied
//    at every unrolled time step, so each step's contribution adds into
//    the shared grad buffer rather than overwriting it.
//
// ===========================================================================

// MatMulBackward computes gradients for C = A @ B.
//
//	∂L/∂A = ∂L/∂C @ B^T
//	∂L/∂B = A^T @ ∂L/∂C
func MatMulBackward(a, b, gradC *Tensor) (gradA, gradB *Tensor) {
	gradA = MatMul(gradC, Transpose(b))
	gradB = MatMul(Transpose(a), gradC)
	return gradA, gradB
}

// SigmoidBackward computes the input gradient for y = σ(x), given y.
//
//	∂L/∂x = ∂L/∂y * y * (1 - y)
func SigmoidBackward(y, gradY *Tensor) *Tensor {
	out := NewTensor(y.shape...)
	for i := range y.data {
		out.data[i] = gradY.data[i] * y.data[i] * (1.0 - y.data[i])
	}
	return out
}

// TanhBackward computes the input gradient for y = tanh(x), given y.
//
//	∂L/∂x = ∂L/∂y * (1 - y²)
func TanhBackward(y, gradY *Tensor) *Tensor {
	out := NewTensor(y.shape...)
	for i := range y.data {
		out.data[i] = gradY.data[i] * (1.0 - y.data[i]*y.data[i])
	}
	return out
}

// CrossEntropyBackward computes the gradient of mean cross-entropy loss
// with respect to the logits.
//
// For softmax + cross-entropy the combined gradient collapses to the
// famously simple form:
//
//	∂L/∂logits = softmax(logits) - onehot(target)
//
// averaged over the rows (one row per unrolled time step).
func CrossEntropyBackward(logits *Tensor, targets []int) *Tensor {
	if len(logits.shape) != 2 {
		panic("autograd: CrossEntropyBackward expects 2D logits")
	}
	rows, vocab := logits.shape[0], logits.shape[1]
	if len(targets) != rows {
		panic("autograd: target length must match logit rows")
	}

	grad := Softmax(logits)
	for r := 0; r < rows; r++ {
		grad.data[r*vocab+targets[r]] -= 1.0
	}

	// Average so the loss scale is independent of sequence length
	scale := 1.0 / float64(rows)
	for i := range grad.data {
		grad.data[i] *= scale
	}

	return grad
}

// AccumulateGrad adds grad's DATA into t's gradient buffer.
// Shapes must match.
func (t *Tensor) AccumulateGrad(grad *Tensor) {
	if !shapeEqual(t.shape, grad.shape) {
		panic("autograd: gradient shape mismatch")
	}
	for i := range t.grad {
		t.grad[i] += grad.data[i]
	}
}
