package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
)

// ===========================================================================
// TRAINING LOOP AND OPTIMIZERS
// ===========================================================================
//
// This file owns the learning half of the pipeline:
//
//	forward  -> mean cross-entropy over the unrolled steps
//	backward -> BPTT (lstm_backward.go) fills the parameter gradients
//	update   -> clip by global norm, then SGD or Adam
//
// The loop consumes mini-batches from the dataset stream, logs throughput
// through a metrics window, evaluates on held-out text, and writes
// periodic checkpoints so a long run can be sampled (or resumed from)
// before it finishes.
//
// ===========================================================================

// TrainingConfig holds hyperparameters for training.
type TrainingConfig struct {
	// Optimization
	LearningRate      float64
	WeightDecay       float64 // L2 regularization
	GradientClipValue float64 // clip gradients by global norm

	// Training
	BatchSize int
	NumEpochs int
	MaxSteps  int // overrides epochs if > 0

	// Learning rate schedule
	WarmupSteps int     // linear warmup from 0 to LearningRate
	DecaySteps  int     // cosine decay after warmup
	MinLR       float64 // floor after decay

	// Optimization algorithm
	Optimizer   string // "sgd", "adam"
	AdamBeta1   float64
	AdamBeta2   float64
	AdamEpsilon float64

	// Logging and evaluation
	LogInterval  int // log every N steps
	EvalInterval int // evaluate every N steps (0 = never)

	// Checkpointing
	CheckpointPath  string
	CheckpointEvery int // save every N steps (0 = only at the end)
}

// DefaultTrainingConfig returns sensible defaults for a small char model.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		LearningRate:      2e-3,
		WeightDecay:       0.0, // char LSTMs rarely need it
		GradientClipValue: 5.0, // recurrent nets spike; clip generously

		BatchSize: 16,
		NumEpochs: 5,
		MaxSteps:  0,

		WarmupSteps: 100,
		DecaySteps:  10000,
		MinLR:       1e-4,

		Optimizer:   "adam",
		AdamBeta1:   0.9,
		AdamBeta2:   0.999,
		AdamEpsilon: 1e-8,

		LogInterval:  50,
		EvalInterval: 500,

		CheckpointEvery: 1000,
	}
}

// Optimizer is the parameter update strategy.
type Optimizer interface {
	// Step performs a single optimization step using the parameters'
	// accumulated gradients.
	Step(params []*Tensor, lr float64)

	// ZeroGrad clears all gradients.
	ZeroGrad(params []*Tensor)
}

// SGDOptimizer implements plain stochastic gradient descent.
type SGDOptimizer struct {
	weightDecay float64
}

// NewSGDOptimizer creates an SGD optimizer.
func NewSGDOptimizer(weightDecay float64) *SGDOptimizer {
	return &SGDOptimizer{weightDecay: weightDecay}
}

// Step updates parameters: param -= lr * (grad + weightDecay * param).
func (opt *SGDOptimizer) Step(params []*Tensor, lr float64) {
	for _, p := range params {
		for i := range p.data {
			grad := p.grad[i] + opt.weightDecay*p.data[i]
			p.data[i] -= lr * grad
		}
	}
}

// ZeroGrad clears gradients.
func (opt *SGDOptimizer) ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// AdamOptimizer implements the Adam algorithm.
//
// Adam keeps a moving average of gradients (momentum) and of squared
// gradients (per-parameter scaling), with bias correction for the
// zero-initialized moments:
//
//	m_t = β1·m + (1-β1)·g         v_t = β2·v + (1-β2)·g²
//	m̂ = m_t/(1-β1^t)              v̂ = v_t/(1-β2^t)
//	param -= lr · m̂ / (√v̂ + ε)
type AdamOptimizer struct {
	beta1       float64
	beta2       float64
	epsilon     float64
	weightDecay float64

	m []*Tensor // first moment
	v []*Tensor // second moment
	t int       // step count for bias correction
}

// NewAdamOptimizer creates an Adam optimizer with moment state matching
// the given parameters.
func NewAdamOptimizer(params []*Tensor, beta1, beta2, epsilon, weightDecay float64) *AdamOptimizer {
	m := make([]*Tensor, len(params))
	v := make([]*Tensor, len(params))
	for i, p := range params {
		m[i] = NewTensor(p.shape...)
		v[i] = NewTensor(p.shape...)
	}

	return &AdamOptimizer{
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: weightDecay,
		m:           m,
		v:           v,
	}
}

// Step performs an Adam update.
func (opt *AdamOptimizer) Step(params []*Tensor, lr float64) {
	opt.t++

	bias1 := 1.0 - math.Pow(opt.beta1, float64(opt.t))
	bias2 := 1.0 - math.Pow(opt.beta2, float64(opt.t))

	for i, p := range params {
		for j := range p.data {
			grad := p.grad[j] + opt.weightDecay*p.data[j]

			opt.m[i].data[j] = opt.beta1*opt.m[i].data[j] + (1.0-opt.beta1)*grad
			opt.v[i].data[j] = opt.beta2*opt.v[i].data[j] + (1.0-opt.beta2)*grad*grad

			mHat := opt.m[i].data[j] / bias1
			vHat := opt.v[i].data[j] / bias2

			p.data[j] -= lr * mHat / (math.Sqrt(vHat) + opt.epsilon)
		}
	}
}

// ZeroGrad clears gradients.
func (opt *AdamOptimizer) ZeroGrad(params []*Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// LRScheduler produces the learning rate per step: linear warmup followed
// by cosine decay down to a floor.
type LRScheduler struct {
	baseLR      float64
	minLR       float64
	warmupSteps int
	decaySteps  int
	step        int
}

// NewLRScheduler creates a learning rate scheduler.
func NewLRScheduler(baseLR, minLR float64, warmupSteps, decaySteps int) *LRScheduler {
	return &LRScheduler{
		baseLR:      baseLR,
		minLR:       minLR,
		warmupSteps: warmupSteps,
		decaySteps:  decaySteps,
	}
}

// GetLR advances the schedule and returns the current learning rate.
func (sched *LRScheduler) GetLR() float64 {
	sched.step++

	if sched.warmupSteps > 0 && sched.step < sched.warmupSteps {
		return sched.baseLR * float64(sched.step) / float64(sched.warmupSteps)
	}

	if sched.step < sched.decaySteps {
		progress := float64(sched.step-sched.warmupSteps) / float64(sched.decaySteps-sched.warmupSteps)
		cosine := 0.5 * (1.0 + math.Cos(math.Pi*progress))
		return sched.minLR + (sched.baseLR-sched.minLR)*cosine
	}

	return sched.minLR
}

// CrossEntropyLoss computes mean cross-entropy over the unrolled steps.
//
// logits is (T, vocab), targets is the input sequence shifted by one.
// Uses the log-sum-exp trick for stability.
func CrossEntropyLoss(logits *Tensor, targets []int) float64 {
	if len(logits.shape) != 2 {
		panic("train: CrossEntropyLoss expects 2D logits")
	}

	steps := logits.shape[0]
	vocab := logits.shape[1]
	if len(targets) != steps {
		panic(fmt.Sprintf("train: target length %d != logit rows %d", len(targets), steps))
	}

	totalLoss := 0.0
	for t := 0; t < steps; t++ {
		row := logits.data[t*vocab : (t+1)*vocab]

		maxLogit := row[0]
		for _, v := range row[1:] {
			if v > maxLogit {
				maxLogit = v
			}
		}

		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxLogit)
		}
		logSumExp := maxLogit + math.Log(sumExp)

		totalLoss += logSumExp - row[targets[t]]
	}

	return totalLoss / float64(steps)
}

// clipGradients rescales all gradients so their global L2 norm does not
// exceed maxNorm. Exploding gradients are the classic RNN failure mode;
// clipping keeps a single bad batch from destroying the weights.
func clipGradients(params []*Tensor, maxNorm float64) {
	globalNorm := 0.0
	for _, p := range params {
		for _, g := range p.grad {
			globalNorm += g * g
		}
	}
	globalNorm = math.Sqrt(globalNorm)

	if globalNorm > maxNorm {
		scale := maxNorm / globalNorm
		for _, p := range params {
			for i := range p.grad {
				p.grad[i] *= scale
			}
		}
	}
}

// TrainStep performs one optimization step over a mini-batch and returns
// the mean loss. Gradients are averaged over the batch so the loss scale
// is independent of batch size.
func TrainStep(model *CharLSTM, batch Batch, optimizer Optimizer, lr, clipNorm float64) float64 {
	params := model.Parameters()
	optimizer.ZeroGrad(params)

	totalLoss := 0.0
	invBatch := 1.0 / float64(len(batch.Inputs))

	for i := range batch.Inputs {
		logits, cache := model.ForwardWithCache(batch.Inputs[i])

		loss := CrossEntropyLoss(logits, batch.Targets[i])
		totalLoss += loss

		gradLogits := Scale(CrossEntropyBackward(logits, batch.Targets[i]), invBatch)
		model.Backward(gradLogits, cache)
	}

	clipGradients(params, clipNorm)
	optimizer.Step(params, lr)

	return totalLoss * invBatch
}

// Evaluate computes the mean validation loss over the given batches.
// Forward only, no gradients.
func Evaluate(model *CharLSTM, batches []Batch) float64 {
	totalLoss := 0.0
	count := 0

	for _, batch := range batches {
		for i := range batch.Inputs {
			logits := model.Forward(batch.Inputs[i])
			totalLoss += CrossEntropyLoss(logits, batch.Targets[i])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return totalLoss / float64(count)
}

// Train runs the training loop: consume batches from the dataset stream,
// step the optimizer, log progress, evaluate, and checkpoint.
// Returns early (with ctx.Err()) if the context is cancelled.
func Train(ctx context.Context, model *CharLSTM, data *Dataset, config TrainingConfig) error {
	params := model.Parameters()

	var optimizer Optimizer
	switch config.Optimizer {
	case "adam", "":
		optimizer = NewAdamOptimizer(params, config.AdamBeta1, config.AdamBeta2,
			config.AdamEpsilon, config.WeightDecay)
	case "sgd":
		optimizer = NewSGDOptimizer(config.WeightDecay)
	default:
		return fmt.Errorf("train: unknown optimizer %q", config.Optimizer)
	}

	maxSteps := config.MaxSteps
	if maxSteps <= 0 {
		maxSteps = config.NumEpochs * data.NumBatches()
	}
	if maxSteps <= 0 {
		return fmt.Errorf("train: nothing to do (0 steps)")
	}

	scheduler := NewLRScheduler(config.LearningRate, config.MinLR,
		config.WarmupSteps, config.DecaySteps)

	valBatches := data.ValBatches()

	batches := data.Stream(ctx)
	charsPerBatch := config.BatchSize * data.SeqLen()

	var window Window
	for step := 1; step <= maxSteps; step++ {
		startData := time.Now()
		var batch Batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-batches:
			if !ok {
				return fmt.Errorf("train: batch stream closed early at step %d", step)
			}
			batch = b
		}
		dataTime := time.Since(startData)

		lr := scheduler.GetLR()

		startCompute := time.Now()
		loss := TrainStep(model, batch, optimizer, lr, config.GradientClipValue)
		computeTime := time.Since(startCompute)

		window.Record(charsPerBatch, dataTime, computeTime, loss)

		if config.LogInterval > 0 && step%config.LogInterval == 0 {
			snap := window.Snapshot()
			log.Printf("step=%d/%d loss=%.4f lr=%.6f chars_per_sec=%.0f data_ms=%.2f compute_ms=%.2f",
				step, maxSteps, snap.LastLoss, lr,
				snap.CharsPerSec, snap.AvgDataMS, snap.AvgComputeMS)
		}

		if config.EvalInterval > 0 && step%config.EvalInterval == 0 && len(valBatches) > 0 {
			valLoss := Evaluate(model, valBatches)
			log.Printf("step=%d val_loss=%.4f", step, valLoss)
		}

		if config.CheckpointEvery > 0 && config.CheckpointPath != "" && step%config.CheckpointEvery == 0 {
			if err := model.Save(config.CheckpointPath); err != nil {
				return fmt.Errorf("train: checkpoint at step %d: %w", step, err)
			}
			log.Printf("step=%d checkpoint=%s", step, config.CheckpointPath)
		}
	}

	return nil
}
