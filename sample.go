package main

import (
	"math"
	"math/rand"
	"sort"
)

// ===========================================================================
// AUTOREGRESSIVE SAMPLING
// ===========================================================================
//
// Generation is the forward pass run in a loop: feed a character, get a
// distribution over the next one, pick, repeat. Because the LSTM carries
// its context in the recurrent state, the prompt is fed through once to
// warm the state up and generation continues from wherever it left off.
// There is no context window to truncate.
//
// The pick is where the knobs live:
//
//	Temperature scales the logits before softmax. Low temperature
//	sharpens the distribution toward the argmax (safe, repetitive);
//	high temperature flattens it (creative, error-prone). Zero means
//	greedy argmax.
//
//	Top-k keeps only the k most likely characters. Top-p (nucleus) keeps
//	the smallest set whose cumulative probability reaches p. Both exist
//	to cut off the long tail of barely-possible characters that
//	temperature alone would occasionally sample.
//
// ===========================================================================

// SampleConfig holds the generation sampling knobs.
type SampleConfig struct {
	Temperature float64 // 0 = greedy, higher = more random
	TopK        int     // 0 = disabled
	TopP        float64 // 0 = disabled
}

// NewSampleConfig returns a default sampling configuration.
func NewSampleConfig() *SampleConfig {
	return &SampleConfig{
		Temperature: 0.8,
		TopK:        0,
		TopP:        0.0,
	}
}

// Generate produces maxChars characters of continuation after the prompt.
// The prompt must be non-empty (the state has to be seeded with at least
// one character). Returns the generated ids only, prompt excluded.
func (m *CharLSTM) Generate(prompt []int, maxChars int, config *SampleConfig, rng *rand.Rand) []int {
	if len(prompt) == 0 {
		panic("sample: prompt must contain at least one character")
	}

	state := m.NewState()

	// Warm up the recurrent state on the prompt. Only the last logits
	// matter; the earlier ones are discarded.
	var logits *Tensor
	for _, id := range prompt {
		logits = m.StepLogits(id, state)
	}

	generated := make([]int, 0, maxChars)
	for i := 0; i < maxChars; i++ {
		next := sampleLogits(logits.data, config, rng)
		generated = append(generated, next)
		logits = m.StepLogits(next, state)
	}

	return generated
}

// sampleLogits picks a character id from raw logits using temperature,
// top-k, and top-p.
func sampleLogits(logits []float64, config *SampleConfig, rng *rand.Rand) int {
	if config.Temperature == 0.0 {
		return argmax(logits)
	}

	scaled := make([]float64, len(logits))
	for i, l := range logits {
		scaled[i] = l / config.Temperature
	}

	probs := softmaxSlice(scaled)

	if config.TopK > 0 {
		probs = applyTopK(probs, config.TopK)
	}
	if config.TopP > 0.0 && config.TopP < 1.0 {
		probs = applyTopP(probs, config.TopP)
	}

	return sampleFromDistribution(probs, rng)
}

// argmax returns the index of the largest value.
func argmax(data []float64) int {
	maxIdx := 0
	maxVal := data[0]
	for i := 1; i < len(data); i++ {
		if data[i] > maxVal {
			maxVal = data[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// softmaxSlice applies a numerically stable softmax to a slice of logits.
func softmaxSlice(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}

	expSum := 0.0
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		expSum += probs[i]
	}

	for i := range probs {
		probs[i] /= expSum
	}
	return probs
}

// applyTopK zeroes all but the k most probable entries and renormalizes.
func applyTopK(probs []float64, k int) []float64 {
	if k <= 0 || k >= len(probs) {
		return probs
	}

	type indexedProb struct {
		index int
		prob  float64
	}

	indexed := make([]indexedProb, len(probs))
	for i, p := range probs {
		indexed[i] = indexedProb{i, p}
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].prob > indexed[j].prob
	})

	filtered := make([]float64, len(probs))
	totalProb := 0.0
	for i := 0; i < k; i++ {
		filtered[indexed[i].index] = indexed[i].prob
		totalProb += indexed[i].prob
	}

	if totalProb > 0 {
		for i := range filtered {
			filtered[i] /= totalProb
		}
	}
	return filtered
}

// applyTopP keeps the smallest set of entries whose cumulative probability
// reaches p (nucleus sampling) and renormalizes.
func applyTopP(probs []float64, p float64) []float64 {
	if p <= 0.0 || p >= 1.0 {
		return probs
	}

	type indexedProb struct {
		index int
		prob  float64
	}

	indexed := make([]indexedProb, len(probs))
	for i, prob := range probs {
		indexed[i] = indexedProb{i, prob}
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].prob > indexed[j].prob
	})

	filtered := make([]float64, len(probs))
	cumProb := 0.0
	totalProb := 0.0
	for _, item := range indexed {
		if cumProb >= p {
			break
		}
		filtered[item.index] = item.prob
		cumProb += item.prob
		totalProb += item.prob
	}

	if totalProb > 0 {
		for i := range filtered {
			filtered[i] /= totalProb
		}
	}
	return filtered
}

// sampleFromDistribution draws an index from a probability distribution
// by inverting the CDF.
func sampleFromDistribution(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()

	cumProb := 0.0
	for i, prob := range probs {
		cumProb += prob
		if r < cumProb {
			return i
		}
	}

	// Rounding can leave the CDF a hair short of 1
	return len(probs) - 1
}
