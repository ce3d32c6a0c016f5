package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
)

// ===========================================================================
// DATASET: FIXED-LENGTH CHARACTER SEQUENCES WITH SHIFTED LABELS
// ===========================================================================
//
// A language-model dataset needs no labels beyond the text itself: the
// target at position t is simply the character at position t+1. The
// encoded corpus is cut into non-overlapping windows of seqLen+1 ids;
// the first seqLen are the input, the last seqLen are the target.
//
// Batches are streamed lazily over a channel from a producer goroutine.
// The producer reshuffles the window order each epoch (seeded, so runs
// are reproducible) and keeps going until the context is cancelled or
// the consumer has taken as many steps as it wants. The channel is the
// Go shape of a lazy mini-batch generator: the training loop pulls, the
// producer blocks until it does.
//
// ===========================================================================

// Batch is one mini-batch of training sequences. Targets[i] is Inputs[i]
// shifted left by one character.
type Batch struct {
	Inputs  [][]int
	Targets [][]int
}

// Dataset holds an encoded corpus split into train and validation parts.
type Dataset struct {
	train     []int
	val       []int
	seqLen    int
	batchSize int
	seed      int64
}

// LoadCorpus reads a plain-text training corpus from disk.
func LoadCorpus(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("dataset: read corpus: %w", err)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("dataset: corpus %s is empty", path)
	}
	return string(content), nil
}

// NewDataset splits an encoded corpus into train/validation and prepares
// batching. valFrac is the fraction of the tail held out for validation
// (0 disables the split).
func NewDataset(tokens []int, seqLen, batchSize int, valFrac float64, seed int64) (*Dataset, error) {
	if seqLen <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("dataset: seqLen and batchSize must be positive")
	}
	if valFrac < 0 || valFrac >= 1 {
		return nil, fmt.Errorf("dataset: valFrac must be in [0, 1), got %g", valFrac)
	}

	// Held-out text comes from the tail so the split is deterministic.
	valLen := int(float64(len(tokens)) * valFrac)
	train := tokens[:len(tokens)-valLen]
	val := tokens[len(tokens)-valLen:]

	if len(train) < seqLen+1 {
		return nil, fmt.Errorf("dataset: training corpus too small: %d chars for seq len %d",
			len(train), seqLen)
	}

	return &Dataset{
		train:     train,
		val:       val,
		seqLen:    seqLen,
		batchSize: batchSize,
		seed:      seed,
	}, nil
}

// SeqLen returns the sequence length of emitted batches.
func (d *Dataset) SeqLen() int {
	return d.seqLen
}

// numWindows returns how many seqLen+1 windows the training split yields.
func (d *Dataset) numWindows() int {
	return (len(d.train) - 1) / d.seqLen
}

// NumBatches returns the number of batches per epoch, tail batch
// included.
func (d *Dataset) NumBatches() int {
	return (d.numWindows() + d.batchSize - 1) / d.batchSize
}

// window cuts window w: input is seqLen ids, target is the same range
// shifted by one.
func (d *Dataset) window(tokens []int, w int) (input, target []int) {
	start := w * d.seqLen
	return tokens[start : start+d.seqLen], tokens[start+1 : start+d.seqLen+1]
}

// Batches materializes one epoch of training batches in order.
// Used by tests and tiny runs; the training loop streams instead.
func (d *Dataset) Batches() []Batch {
	return d.assemble(d.train, d.identityOrder())
}

// ValBatches materializes the validation batches.
func (d *Dataset) ValBatches() []Batch {
	if len(d.val) < d.seqLen+1 {
		return nil
	}
	windows := (len(d.val) - 1) / d.seqLen
	order := make([]int, windows)
	for i := range order {
		order[i] = i
	}
	return d.assemble(d.val, order)
}

func (d *Dataset) identityOrder() []int {
	order := make([]int, d.numWindows())
	for i := range order {
		order[i] = i
	}
	return order
}

// assemble groups windows (in the given order) into batches.
func (d *Dataset) assemble(tokens []int, order []int) []Batch {
	var batches []Batch
	batch := Batch{}

	for _, w := range order {
		input, target := d.window(tokens, w)
		batch.Inputs = append(batch.Inputs, input)
		batch.Targets = append(batch.Targets, target)

		if len(batch.Inputs) == d.batchSize {
			batches = append(batches, batch)
			batch = Batch{}
		}
	}

	if len(batch.Inputs) > 0 {
		batches = append(batches, batch)
	}

	return batches
}

// Stream launches the lazy batch producer. It emits shuffled epochs
// forever; the consumer decides when to stop by cancelling the context
// or simply walking away (the producer blocks on the unread channel and
// exits on cancel).
func (d *Dataset) Stream(ctx context.Context) <-chan Batch {
	out := make(chan Batch)

	go func() {
		defer close(out)

		rng := rand.New(rand.NewSource(d.seed))

		for {
			order := d.identityOrder()
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})

			for _, batch := range d.assemble(d.train, order) {
				select {
				case <-ctx.Done():
					return
				case out <- batch:
				}
			}
		}
	}()

	return out
}
