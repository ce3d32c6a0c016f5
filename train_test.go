package main

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestLRSchedulerPhases(t *testing.T) {
	sched := NewLRScheduler(1.0, 0.1, 10, 100)

	// Warmup: step 1 of 10
	if lr := sched.GetLR(); math.Abs(lr-0.1) > 1e-12 {
		t.Errorf("warmup step 1: got %g, want 0.1", lr)
	}

	// Advance to the end of warmup
	var lr float64
	for i := 2; i <= 10; i++ {
		lr = sched.GetLR()
	}
	if math.Abs(lr-1.0) > 1e-9 {
		t.Errorf("end of warmup: got %g, want 1.0", lr)
	}

	// Decay should be monotonically non-increasing down to minLR
	prev := lr
	for i := 11; i <= 120; i++ {
		lr = sched.GetLR()
		if lr > prev+1e-12 {
			t.Fatalf("lr increased during decay at step %d: %g -> %g", i, prev, lr)
		}
		prev = lr
	}
	if math.Abs(lr-0.1) > 1e-9 {
		t.Errorf("after decay: got %g, want min lr 0.1", lr)
	}
}

func TestCrossEntropyLossUniform(t *testing.T) {
	// All-zero logits over V classes: loss must be ln(V) regardless of
	// the target. This is also the expected loss of a fresh model.
	const vocab = 8
	logits := NewTensor(3, vocab)
	targets := []int{0, 3, 7}

	loss := CrossEntropyLoss(logits, targets)
	if want := math.Log(vocab); math.Abs(loss-want) > 1e-12 {
		t.Errorf("uniform loss = %g, want ln(%d) = %g", loss, vocab, want)
	}
}

func TestCrossEntropyLossConfident(t *testing.T) {
	logits := NewTensor(1, 4)
	logits.data[2] = 50 // near-certain on the correct class

	if loss := CrossEntropyLoss(logits, []int{2}); loss > 1e-9 {
		t.Errorf("confident correct prediction should have ~0 loss, got %g", loss)
	}
	if loss := CrossEntropyLoss(logits, []int{0}); loss < 40 {
		t.Errorf("confident wrong prediction should have large loss, got %g", loss)
	}
}

func TestClipGradients(t *testing.T) {
	p := NewTensor(1, 4)
	p.grad[0] = 3
	p.grad[1] = 4 // norm 5

	clipGradients([]*Tensor{p}, 1.0)

	norm := math.Sqrt(p.grad[0]*p.grad[0] + p.grad[1]*p.grad[1])
	if math.Abs(norm-1.0) > 1e-12 {
		t.Errorf("clipped norm = %g, want 1", norm)
	}

	// Below the limit nothing changes
	q := NewTensor(1, 2)
	q.grad[0] = 0.3
	clipGradients([]*Tensor{q}, 1.0)
	if q.grad[0] != 0.3 {
		t.Errorf("grad below the limit was modified: %g", q.grad[0])
	}
}

func TestSGDStep(t *testing.T) {
	p := NewTensor(1, 2)
	p.data[0] = 1.0
	p.grad[0] = 0.5

	opt := NewSGDOptimizer(0)
	opt.Step([]*Tensor{p}, 0.1)

	if math.Abs(p.data[0]-0.95) > 1e-12 {
		t.Errorf("sgd step: got %g, want 0.95", p.data[0])
	}
}

func TestAdamStepDirection(t *testing.T) {
	p := NewTensor(1, 1)
	p.data[0] = 1.0
	p.grad[0] = 2.0

	opt := NewAdamOptimizer([]*Tensor{p}, 0.9, 0.999, 1e-8, 0)
	opt.Step([]*Tensor{p}, 0.01)

	// First Adam step with bias correction moves by almost exactly lr
	// against the gradient sign.
	if p.data[0] >= 1.0 {
		t.Errorf("adam must move against the gradient, got %g", p.data[0])
	}
	if math.Abs((1.0-p.data[0])-0.01) > 1e-3 {
		t.Errorf("first adam step size = %g, want ~0.01", 1.0-p.data[0])
	}
}

func TestAdamZeroGrad(t *testing.T) {
	p := NewTensor(1, 2)
	p.grad[0] = 5

	opt := NewAdamOptimizer([]*Tensor{p}, 0.9, 0.999, 1e-8, 0)
	opt.ZeroGrad([]*Tensor{p})

	if p.grad[0] != 0 {
		t.Errorf("ZeroGrad left grad = %g", p.grad[0])
	}
}

// TestTrainStepLearns overfits a tiny repeating pattern and checks the
// loss drops well below the uniform baseline. Not a convergence proof,
// just a smoke test that forward, BPTT, and Adam cooperate.
func TestTrainStepLearns(t *testing.T) {
	cfg := Config{VocabSize: 4, HiddenSize: 16, NumLayers: 1, SeqLen: 8}
	model := NewCharLSTM(cfg)

	// Cyclic pattern 0,1,2,3,0,1,... is perfectly predictable
	inputs := []int{0, 1, 2, 3, 0, 1, 2, 3}
	targets := []int{1, 2, 3, 0, 1, 2, 3, 0}
	batch := Batch{Inputs: [][]int{inputs}, Targets: [][]int{targets}}

	opt := NewAdamOptimizer(model.Parameters(), 0.9, 0.999, 1e-8, 0)

	first := TrainStep(model, batch, opt, 1e-2, 5.0)
	var last float64
	for i := 0; i < 150; i++ {
		last = TrainStep(model, batch, opt, 1e-2, 5.0)
	}

	if first < 1.0 {
		t.Fatalf("initial loss suspiciously low: %g", first)
	}
	if last > first/2 {
		t.Errorf("loss did not drop: first=%g last=%g", first, last)
	}
}

// TestTrainHonorsContext verifies the loop stops when cancelled.
func TestTrainHonorsContext(t *testing.T) {
	tokens := make([]int, 500)
	for i := range tokens {
		tokens[i] = i % 4
	}
	data, err := NewDataset(tokens, 8, 2, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	model := NewCharLSTM(Config{VocabSize: 4, HiddenSize: 8, NumLayers: 1, SeqLen: 8})

	cfg := DefaultTrainingConfig()
	cfg.MaxSteps = 1 << 30 // would run forever
	cfg.LogInterval = 0
	cfg.EvalInterval = 0
	cfg.CheckpointEvery = 0
	cfg.BatchSize = 2

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Train(ctx, model, data, cfg)
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected a cancellation error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Train did not stop after cancellation")
	}
}
