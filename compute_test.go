package main

import (
	"math"
	"math/rand"
	"testing"
)

// TestParallelMatMulMatchesSingleThreaded verifies the worker-partitioned
// path produces the same result as the single-threaded path.
func TestParallelMatMulMatchesSingleThreaded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	a := NewTensor(37, 53)
	b := NewTensor(53, 29)
	for i := range a.data {
		a.data[i] = rng.NormFloat64()
	}
	for i := range b.data {
		b.data[i] = rng.NormFloat64()
	}

	single := MatMulWithConfig(a, b, SingleThreadedConfig())
	parallel := MatMulWithConfig(a, b, ComputeConfig{
		Parallel:           true,
		NumWorkers:         4,
		MinSizeForParallel: 1,
	})

	for i := range single.data {
		if math.Abs(single.data[i]-parallel.data[i]) > 1e-9 {
			t.Fatalf("element %d: single=%g parallel=%g", i, single.data[i], parallel.data[i])
		}
	}
}

// TestMatMulKernelsAgree checks the blocked kernel against the naive one.
func TestMatMulKernelsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	a := NewTensor(13, 17)
	b := NewTensor(17, 19)
	for i := range a.data {
		a.data[i] = rng.NormFloat64()
	}
	for i := range b.data {
		b.data[i] = rng.NormFloat64()
	}

	naive := NewTensor(13, 19)
	blocked := NewTensor(13, 19)
	matmulNaive(a, b, naive, 0, 13, 19, 17)
	matmulBlocked(a, b, blocked, 0, 13, 19, 17)

	for i := range naive.data {
		if math.Abs(naive.data[i]-blocked.data[i]) > 1e-9 {
			t.Fatalf("element %d: naive=%g blocked=%g", i, naive.data[i], blocked.data[i])
		}
	}
}

func TestShouldParallelize(t *testing.T) {
	cfg := ComputeConfig{Parallel: true, MinSizeForParallel: 100}
	if cfg.shouldParallelize(99) {
		t.Error("should not parallelize below threshold")
	}
	if !cfg.shouldParallelize(100) {
		t.Error("should parallelize at threshold")
	}

	off := SingleThreadedConfig()
	if off.shouldParallelize(1 << 20) {
		t.Error("single-threaded config must never parallelize")
	}
}
