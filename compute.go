package main

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// ===========================================================================
// PARALLEL MATRIX MULTIPLICATION
// ===========================================================================
//
// Training an LSTM is dominated by the gate matmuls (x·Wx and h·Wh at every
// unrolled time step, for every layer). Everything else is element-wise and
// cheap. So this file is where the compute budget goes.
//
// Two levers:
//
// 1. Parallelism: partition output rows across worker goroutines. Matrix
//    multiplication is embarrassingly parallel along the M dimension - each
//    output row only reads A's row and all of B, so workers never contend.
//
// 2. Kernel choice: on CPUs with wide vector units the cache-blocked loop
//    order (i, k, j with the A element hoisted) keeps B's rows streaming
//    through cache and lets the compiler vectorize the inner j loop. On
//    narrow cores the naive triple loop is not worth the bookkeeping.
//    Detection goes through github.com/klauspost/cpuid.
//
// Small matrices stay single-threaded: goroutine startup costs more than
// the multiply itself below a few thousand elements.
//
// ===========================================================================

// ComputeConfig controls parallel execution of tensor operations.
type ComputeConfig struct {
	// Parallel enables multi-goroutine execution.
	Parallel bool

	// NumWorkers is the number of worker goroutines.
	// If 0, uses runtime.NumCPU().
	NumWorkers int

	// MinSizeForParallel is the minimum output size (M*N) to bother
	// parallelizing. Smaller operations run single-threaded.
	MinSizeForParallel int
}

// DefaultComputeConfig returns a config suitable for training.
func DefaultComputeConfig() ComputeConfig {
	return ComputeConfig{
		Parallel:           true,
		NumWorkers:         0, // NumCPU
		MinSizeForParallel: 64 * 64,
	}
}

// SingleThreadedConfig returns a config that disables parallelism.
// Useful for benchmarking and for deterministic profiling.
func SingleThreadedConfig() ComputeConfig {
	return ComputeConfig{
		Parallel: false,
	}
}

func (c ComputeConfig) numWorkers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return runtime.NumCPU()
}

func (c ComputeConfig) shouldParallelize(size int) bool {
	return c.Parallel && size >= c.MinSizeForParallel
}

var globalComputeConfig = DefaultComputeConfig()

// SetGlobalComputeConfig replaces the global compute configuration.
func SetGlobalComputeConfig(cfg ComputeConfig) {
	globalComputeConfig = cfg
}

// GetGlobalComputeConfig returns the current global compute configuration.
func GetGlobalComputeConfig() ComputeConfig {
	return globalComputeConfig
}

// vectorCapable reports whether the CPU has vector units wide enough to
// make the blocked kernel pay off. AVX2 on x86, ASIMD on arm64.
var vectorCapable = cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.ASIMD)

// MatMulWithConfig performs C = A @ B with the given compute config.
func MatMulWithConfig(a, b *Tensor, cfg ComputeConfig) *Tensor {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		panic("compute: MatMul requires 2D tensors")
	}
	if a.shape[1] != b.shape[0] {
		panic(fmt.Sprintf("compute: cannot multiply (%d,%d) @ (%d,%d)",
			a.shape[0], a.shape[1], b.shape[0], b.shape[1]))
	}

	m, k := a.shape[0], a.shape[1]
	n := b.shape[1]
	out := NewTensor(m, n)

	if !cfg.shouldParallelize(m * n) {
		matmulRange(a, b, out, 0, m, n, k)
		return out
	}

	workers := cfg.numWorkers()
	if workers > m {
		workers = m
	}

	rowsPerWorker := (m + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if endRow > m {
			endRow = m
		}
		if startRow >= endRow {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			matmulRange(a, b, out, start, end, n, k)
		}(startRow, endRow)
	}
	wg.Wait()

	return out
}

// matmulRange computes output rows [startRow, endRow).
// Dispatches to the blocked kernel on vector-capable CPUs.
func matmulRange(a, b, out *Tensor, startRow, endRow, n, k int) {
	if vectorCapable {
		matmulBlocked(a, b, out, startRow, endRow, n, k)
		return
	}
	matmulNaive(a, b, out, startRow, endRow, n, k)
}

// matmulNaive is the textbook triple loop.
func matmulNaive(a, b, out *Tensor, startRow, endRow, n, k int) {
	for i := startRow; i < endRow; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for kk := 0; kk < k; kk++ {
				sum += a.data[i*k+kk] * b.data[kk*n+j]
			}
			out.data[i*n+j] = sum
		}
	}
}

// matmulBlocked uses the i-k-j loop order with the A element hoisted out
// of the inner loop. B is walked row-wise so accesses are sequential, and
// the inner loop over j is a scaled vector accumulate the compiler can
// unroll and vectorize.
func matmulBlocked(a, b, out *Tensor, startRow, endRow, n, k int) {
	for i := startRow; i < endRow; i++ {
		outRow := out.data[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			aik := a.data[i*k+kk]
			if aik == 0 {
				continue
			}
			bRow := b.data[kk*n : (kk+1)*n]
			for j := range outRow {
				outRow[j] += aik * bRow[j]
			}
		}
	}
}
