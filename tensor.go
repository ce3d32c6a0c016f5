package main

import (
	"fmt"
	"math"
	"math/rand"
)

// RECOMMENDED READING:
//
// - "Deep Learning" by Goodfellow, Bengio, Courville (2016)
//   Chapter 2: Linear Algebra - tensor operations
//   Chapter 10: Sequence Modeling - recurrent networks
//
// - "Numerical Linear Algebra" by Trefethen & Bau (1997)
//   Stability and conditioning of matrix operations

// Tensor represents a multi-dimensional array of float64 values.
// It stores data in row-major (C-contiguous) order and carries a
// gradient buffer of the same size for backpropagation.
//
// Tensor is not safe for concurrent use. Synchronization must be
// handled by the caller if needed.
type Tensor struct {
	data  []float64 // Flat array storing all elements
	shape []int     // Dimensions [rows, cols, ...]
	grad  []float64 // Gradient accumulated by the backward pass
}

// NewTensor creates a tensor with the given shape, initialized to zero.
// Panics if shape is invalid (empty or contains non-positive dimensions).
//
// Shape errors are programmer bugs, not runtime conditions that should
// be handled gracefully.
func NewTensor(shape ...int) *Tensor {
	if len(shape) == 0 {
		panic("tensor: shape cannot be empty")
	}

	size := 1
	for i, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: shape[%d] must be positive, got %d", i, dim))
		}
		size *= dim
	}

	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		data:  make([]float64, size),
		shape: shapeCopy,
		grad:  make([]float64, size),
	}
}

// NewTensorRand creates a tensor with values drawn from a normal
// distribution with the given standard deviation. Recurrent nets are
// touchy about init scale; char-RNN practice is stddev around 0.08.
func NewTensorRand(stddev float64, shape ...int) *Tensor {
	t := NewTensor(shape...)

	// Box-Muller transform for normal samples
	for i := 0; i < len(t.data); i += 2 {
		u1, u2 := rand.Float64(), rand.Float64()
		mag := stddev * math.Sqrt(-2*math.Log(u1))
		t.data[i] = mag * math.Cos(2*math.Pi*u2)
		if i+1 < len(t.data) {
			t.data[i+1] = mag * math.Sin(2*math.Pi*u2)
		}
	}

	return t
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Size returns the total number of elements in the tensor.
func (t *Tensor) Size() int {
	return len(t.data)
}

// At returns the element at the given indices.
// Panics if indices are invalid - this is a programmer error.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.flatIndex(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are invalid.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.flatIndex(indices)] = value
}

// flatIndex converts multi-dimensional indices to a flat index.
func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: expected %d indices, got %d", len(t.shape), len(indices)))
	}

	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index[%d]=%d out of bounds [0,%d)", i, indices[i], t.shape[i]))
		}
		idx += indices[i] * stride
		stride *= t.shape[i]
	}

	return idx
}

// ZeroGrad clears the gradient buffer. Call before a backward pass.
func (t *Tensor) ZeroGrad() {
	for i := range t.grad {
		t.grad[i] = 0
	}
}

// Clone creates a deep copy of the tensor, gradient included.
func (t *Tensor) Clone() *Tensor {
	clone := NewTensor(t.shape...)
	copy(clone.data, t.data)
	copy(clone.grad, t.grad)
	return clone
}

// String returns a short description for debugging.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, size=%d)", t.shape, len(t.data))
}

// ===========================================================================
// OPERATIONS
// ===========================================================================

// Add performs element-wise addition: out = a + b.
// Panics if shapes don't match.
func Add(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot add shapes %v and %v", a.shape, b.shape))
	}

	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] + b.data[i]
	}
	return out
}

// Mul performs element-wise multiplication (Hadamard product).
// This is the workhorse of the LSTM gating equations.
// Panics if shapes don't match.
func Mul(a, b *Tensor) *Tensor {
	if !shapeEqual(a.shape, b.shape) {
		panic(fmt.Sprintf("tensor: cannot multiply shapes %v and %v", a.shape, b.shape))
	}

	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * b.data[i]
	}
	return out
}

// Scale multiplies all elements by a scalar: out = a * scalar.
func Scale(a *Tensor, scalar float64) *Tensor {
	out := NewTensor(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] * scalar
	}
	return out
}

// MatMul performs matrix multiplication: C = A @ B.
// A must be (M, K), B must be (K, N), result is (M, N).
// Uses the global compute configuration to decide on parallelism
// and kernel choice.
func MatMul(a, b *Tensor) *Tensor {
	return MatMulWithConfig(a, b, globalComputeConfig)
}

// Transpose returns the transpose of a 2D matrix.
// A: (M, N) -> A^T: (N, M).
func Transpose(a *Tensor) *Tensor {
	if len(a.shape) != 2 {
		panic("tensor: Transpose requires 2D tensor")
	}

	m, n := a.shape[0], a.shape[1]
	out := NewTensor(n, m)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.data[j*m+i] = a.data[i*n+j]
		}
	}
	return out
}

// AddBias adds a bias row vector to every row of x.
// x: (M, N), bias: (1, N).
func AddBias(x, bias *Tensor) *Tensor {
	if len(x.shape) != 2 || len(bias.shape) != 2 || bias.shape[0] != 1 || bias.shape[1] != x.shape[1] {
		panic(fmt.Sprintf("tensor: cannot broadcast bias %v over %v", bias.shape, x.shape))
	}

	m, n := x.shape[0], x.shape[1]
	out := NewTensor(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out.data[i*n+j] = x.data[i*n+j] + bias.data[j]
		}
	}
	return out
}

// ===========================================================================
// ACTIVATION FUNCTIONS
// ===========================================================================

// Sigmoid applies the logistic function element-wise: f(x) = 1/(1+e^-x).
// The LSTM gates (input, forget, output) all squash through sigmoid so
// they act as soft switches in [0, 1].
func Sigmoid(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)
	for i := range x.data {
		out.data[i] = 1.0 / (1.0 + math.Exp(-x.data[i]))
	}
	return out
}

// Tanh applies the hyperbolic tangent element-wise.
// Used for the candidate cell value and the cell output squashing.
func Tanh(x *Tensor) *Tensor {
	out := NewTensor(x.shape...)
	for i := range x.data {
		out.data[i] = math.Tanh(x.data[i])
	}
	return out
}

// Softmax converts logits to probabilities row by row: p_i = exp(x_i) / Σ exp(x_j).
// Numerically stable version: subtract the row max before exponentiating.
// Only supports 2D tensors (rows, features).
func Softmax(x *Tensor) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: Softmax requires 2D tensor")
	}

	rows, features := x.shape[0], x.shape[1]
	out := NewTensor(rows, features)

	for r := 0; r < rows; r++ {
		maxVal := x.data[r*features]
		for f := 1; f < features; f++ {
			if v := x.data[r*features+f]; v > maxVal {
				maxVal = v
			}
		}

		sum := 0.0
		for f := 0; f < features; f++ {
			e := math.Exp(x.data[r*features+f] - maxVal)
			out.data[r*features+f] = e
			sum += e
		}

		for f := 0; f < features; f++ {
			out.data[r*features+f] /= sum
		}
	}

	return out
}

// ===========================================================================
// HELPERS
// ===========================================================================

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sliceCols copies columns [lo, hi) of a 2D tensor into a new tensor.
// Used to split the fused gate pre-activations into the four gates.
func sliceCols(x *Tensor, lo, hi int) *Tensor {
	if len(x.shape) != 2 {
		panic("tensor: sliceCols requires 2D tensor")
	}
	if lo < 0 || hi > x.shape[1] || lo >= hi {
		panic(fmt.Sprintf("tensor: invalid column range [%d,%d) for %v", lo, hi, x.shape))
	}

	m, n := x.shape[0], x.shape[1]
	out := NewTensor(m, hi-lo)
	for i := 0; i < m; i++ {
		copy(out.data[i*(hi-lo):(i+1)*(hi-lo)], x.data[i*n+lo:i*n+hi])
	}
	return out
}

// setCols writes src into columns [lo, lo+src cols) of a 2D tensor in place.
func setCols(dst *Tensor, src *Tensor, lo int) {
	if len(dst.shape) != 2 || len(src.shape) != 2 || dst.shape[0] != src.shape[0] {
		panic("tensor: setCols requires 2D tensors with matching rows")
	}
	m, n, w := dst.shape[0], dst.shape[1], src.shape[1]
	if lo < 0 || lo+w > n {
		panic(fmt.Sprintf("tensor: setCols range [%d,%d) out of bounds for %v", lo, lo+w, dst.shape))
	}
	for i := 0; i < m; i++ {
		copy(dst.data[i*n+lo:i*n+lo+w], src.data[i*w:(i+1)*w])
	}
}
