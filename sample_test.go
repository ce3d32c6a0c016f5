package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSampleGreedy(t *testing.T) {
	logits := []float64{0.1, 2.5, -1.0, 0.3}
	cfg := &SampleConfig{Temperature: 0}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 10; i++ {
		if got := sampleLogits(logits, cfg, rng); got != 1 {
			t.Fatalf("greedy sampling picked %d, want argmax 1", got)
		}
	}
}

func TestApplyTopK(t *testing.T) {
	probs := []float64{0.1, 0.4, 0.2, 0.3}

	filtered := applyTopK(probs, 2)

	// Only the two largest survive, renormalized. Compute the expected
	// values with the same float arithmetic the filter uses.
	total := probs[1] + probs[3]
	want := []float64{0, probs[1] / total, 0, probs[3] / total}
	if diff := cmp.Diff(want, filtered); diff != "" {
		t.Errorf("top-k mismatch (-want +got):\n%s", diff)
	}

	// k >= len is a no-op
	same := applyTopK(probs, 10)
	if diff := cmp.Diff(probs, same); diff != "" {
		t.Errorf("top-k with large k must not filter (-want +got):\n%s", diff)
	}
}

func TestApplyTopP(t *testing.T) {
	probs := []float64{0.5, 0.3, 0.15, 0.05}

	// p=0.7: keep 0.5 and 0.3 (cumulative 0.8 >= 0.7), drop the tail
	filtered := applyTopP(probs, 0.7)

	if filtered[2] != 0 || filtered[3] != 0 {
		t.Errorf("tail should be zeroed: %v", filtered)
	}

	sum := 0.0
	for _, p := range filtered {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("filtered distribution sums to %g, want 1", sum)
	}
	if math.Abs(filtered[0]-0.5/0.8) > 1e-12 {
		t.Errorf("filtered[0] = %g, want %g", filtered[0], 0.5/0.8)
	}
}

func TestSampleFromDistribution(t *testing.T) {
	// A delta distribution must always return its support
	probs := []float64{0, 1, 0}
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		if got := sampleFromDistribution(probs, rng); got != 1 {
			t.Fatalf("delta distribution sampled %d", got)
		}
	}
}

func TestSampleRespectsTemperatureExtremes(t *testing.T) {
	logits := []float64{1.0, 1.1, 0.9}
	rng := rand.New(rand.NewSource(3))

	// Very low temperature approaches greedy
	cold := &SampleConfig{Temperature: 0.01}
	for i := 0; i < 20; i++ {
		if got := sampleLogits(logits, cold, rng); got != 1 {
			t.Fatalf("cold sampling picked %d, want 1", got)
		}
	}
}

func TestGenerate(t *testing.T) {
	model := NewCharLSTM(Config{VocabSize: 6, HiddenSize: 8, NumLayers: 1, SeqLen: 4})
	cfg := &SampleConfig{Temperature: 0} // greedy: deterministic

	prompt := []int{0, 2}
	a := model.Generate(prompt, 15, cfg, rand.New(rand.NewSource(4)))
	b := model.Generate(prompt, 15, cfg, rand.New(rand.NewSource(99)))

	if len(a) != 15 {
		t.Fatalf("generated %d chars, want 15", len(a))
	}
	for _, id := range a {
		if id < 0 || id >= 6 {
			t.Fatalf("generated id %d outside vocab", id)
		}
	}

	// Greedy generation must not depend on the rng
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("greedy generation should be deterministic (-a +b):\n%s", diff)
	}
}

func TestGenerateSeededPromptMatters(t *testing.T) {
	model := NewCharLSTM(Config{VocabSize: 6, HiddenSize: 8, NumLayers: 2, SeqLen: 4})
	cfg := &SampleConfig{Temperature: 0}
	rng := rand.New(rand.NewSource(5))

	a := model.Generate([]int{0}, 10, cfg, rng)
	b := model.Generate([]int{0, 1, 2, 3, 4, 5}, 10, cfg, rng)

	if cmp.Equal(a, b) {
		// With random weights, differing prompts leaving identical
		// continuations means the state warm-up is being ignored.
		t.Error("different prompts produced identical continuations")
	}
}
