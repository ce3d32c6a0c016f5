package main

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatMulBackward(t *testing.T) {
	// C = A @ B with A (2,3), B (3,2); seed gradC with ones so the
	// input gradients are just the row/column sums of the other factor.
	a := NewTensor(2, 3)
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		a.data[i] = v
	}
	b := NewTensor(3, 2)
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		b.data[i] = v
	}
	gradC := NewTensor(2, 2)
	for i := range gradC.data {
		gradC.data[i] = 1
	}

	gradA, gradB := MatMulBackward(a, b, gradC)

	// gradA = gradC @ B^T: each row is the row sums of B
	wantA := []float64{3, 7, 11, 3, 7, 11}
	if diff := cmp.Diff(wantA, gradA.data); diff != "" {
		t.Errorf("gradA mismatch (-want +got):\n%s", diff)
	}

	// gradB = A^T @ gradC: each column is the column sums of A
	wantB := []float64{5, 5, 7, 7, 9, 9}
	if diff := cmp.Diff(wantB, gradB.data); diff != "" {
		t.Errorf("gradB mismatch (-want +got):\n%s", diff)
	}
}

func TestActivationBackward(t *testing.T) {
	gradY := NewTensor(1, 3)
	for i := range gradY.data {
		gradY.data[i] = 1
	}

	// σ' = y(1-y), maximal 0.25 at y=0.5
	y := NewTensor(1, 3)
	y.data[0] = 0.5
	y.data[1] = 0.9
	y.data[2] = 0.1
	gs := SigmoidBackward(y, gradY)
	if math.Abs(gs.data[0]-0.25) > 1e-12 {
		t.Errorf("sigmoid backward at 0.5: got %f, want 0.25", gs.data[0])
	}
	if math.Abs(gs.data[1]-gs.data[2]) > 1e-12 {
		t.Errorf("sigmoid backward should be symmetric around 0.5")
	}

	// tanh' = 1 - y²
	yt := NewTensor(1, 2)
	yt.data[0] = 0
	yt.data[1] = 0.5
	ones := NewTensor(1, 2)
	ones.data[0] = 1
	ones.data[1] = 1
	gt := TanhBackward(yt, ones)
	if math.Abs(gt.data[0]-1.0) > 1e-12 || math.Abs(gt.data[1]-0.75) > 1e-12 {
		t.Errorf("tanh backward: got %v, want [1 0.75]", gt.data)
	}
}

func TestCrossEntropyBackwardRowsSumToZero(t *testing.T) {
	logits := NewTensor(3, 4)
	for i := range logits.data {
		logits.data[i] = float64(i%4) - 1.5
	}
	targets := []int{0, 2, 3}

	grad := CrossEntropyBackward(logits, targets)

	// softmax sums to 1, the one-hot subtracts 1: each row sums to 0
	for r := 0; r < 3; r++ {
		sum := 0.0
		for v := 0; v < 4; v++ {
			sum += grad.At(r, v)
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("row %d sums to %g, want 0", r, sum)
		}
	}

	// The target entry must be the only negative one (softmax - 1 < 0)
	for r, tgt := range targets {
		if grad.At(r, tgt) >= 0 {
			t.Errorf("row %d target entry should be negative, got %g", r, grad.At(r, tgt))
		}
	}
}

func TestAccumulateGrad(t *testing.T) {
	p := NewTensor(1, 3)
	g := NewTensor(1, 3)
	for i := range g.data {
		g.data[i] = float64(i + 1)
	}

	p.AccumulateGrad(g)
	p.AccumulateGrad(g)

	if diff := cmp.Diff([]float64{2, 4, 6}, p.grad); diff != "" {
		t.Errorf("grad accumulation mismatch (-want +got):\n%s", diff)
	}
}
