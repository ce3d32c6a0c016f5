package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"
)

// RunSampleCommand implements the text sampling CLI.
func RunSampleCommand(args []string) error {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)

	// Model and vocabulary paths
	modelPath := fs.String("model", "", "Path to saved model checkpoint (required)")
	vocabPath := fs.String("vocab", "", "Path to saved vocabulary file (required)")

	// Generation parameters
	prompt := fs.String("prompt", "", "Text prompt to seed the recurrent state")
	interactive := fs.Bool("interactive", false, "Interactive mode (REPL)")
	maxChars := fs.Int("chars", 500, "Number of characters to generate")
	seed := fs.Int64("seed", 0, "PRNG seed (0 = time-based)")

	// Sampling parameters
	temperature := fs.Float64("temperature", 0.8, "Temperature (0=greedy, higher=more random)")
	topK := fs.Int("top-k", 0, "Top-k sampling (0=disabled)")
	topP := fs.Float64("top-p", 0.0, "Top-p (nucleus) sampling (0=disabled)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *modelPath == "" {
		return fmt.Errorf("-model is required")
	}
	if *vocabPath == "" {
		return fmt.Errorf("-vocab is required")
	}

	// Load model
	fmt.Printf("Loading model from %s...\n", *modelPath)
	model, err := LoadCharLSTM(*modelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	cfg := model.Config()
	fmt.Printf("Model loaded (vocab=%d, hidden=%d, layers=%d)\n",
		cfg.VocabSize, cfg.HiddenSize, cfg.NumLayers)

	// Load vocabulary
	fmt.Printf("Loading vocabulary from %s...\n", *vocabPath)
	vocab, err := LoadVocab(*vocabPath)
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	if vocab.Size() != cfg.VocabSize {
		return fmt.Errorf("vocabulary size %d does not match model vocab %d", vocab.Size(), cfg.VocabSize)
	}
	fmt.Printf("Vocabulary loaded (%d characters)\n", vocab.Size())

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	samplingConfig := &SampleConfig{
		Temperature: *temperature,
		TopK:        *topK,
		TopP:        *topP,
	}

	fmt.Println()
	fmt.Printf("Generation settings:\n")
	fmt.Printf("  Max chars:    %d\n", *maxChars)
	fmt.Printf("  Temperature:  %.2f\n", samplingConfig.Temperature)
	fmt.Printf("  Top-k:        %d\n", samplingConfig.TopK)
	fmt.Printf("  Top-p:        %.2f\n", samplingConfig.TopP)
	fmt.Println()

	if *interactive {
		return runInteractive(model, vocab, *maxChars, samplingConfig, rng)
	}

	if *prompt == "" {
		return fmt.Errorf("either -prompt or -interactive is required")
	}

	return sampleText(model, vocab, *prompt, *maxChars, samplingConfig, rng)
}

// sampleText generates a continuation of a single prompt.
func sampleText(model *CharLSTM, vocab *Vocab, promptText string, maxChars int, config *SampleConfig, rng *rand.Rand) error {
	promptIDs := vocab.Encode(promptText)
	if len(promptIDs) == 0 {
		return fmt.Errorf("no character of the prompt is in the model vocabulary")
	}

	generated := model.Generate(promptIDs, maxChars, config, rng)

	fmt.Println("=== Generated Text ===")
	fmt.Println(vocab.Decode(promptIDs) + vocab.Decode(generated))
	fmt.Println()

	return nil
}

// runInteractive runs an interactive sampling REPL.
func runInteractive(model *CharLSTM, vocab *Vocab, maxChars int, config *SampleConfig, rng *rand.Rand) error {
	fmt.Println("=== Interactive Mode ===")
	fmt.Println("Enter prompts to generate text. Type 'quit' or 'exit' to stop.")
	fmt.Println("Commands:")
	fmt.Println("  /temp <value>    Set temperature (e.g., /temp 0.8)")
	fmt.Println("  /topk <value>    Set top-k (e.g., /topk 10)")
	fmt.Println("  /topp <value>    Set top-p (e.g., /topp 0.9)")
	fmt.Println("  /chars <value>   Set max chars (e.g., /chars 300)")
	fmt.Println("  /config          Show current settings")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "quit" || line == "exit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if strings.HasPrefix(line, "/") {
			if err := handleCommand(line, config, &maxChars); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		}

		if err := sampleText(model, vocab, line, maxChars, config, rng); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

// handleCommand handles interactive mode commands.
func handleCommand(cmd string, config *SampleConfig, maxChars *int) error {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "/temp":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /temp <value>")
		}
		var val float64
		if _, err := fmt.Sscanf(parts[1], "%f", &val); err != nil {
			return fmt.Errorf("invalid temperature value: %v", err)
		}
		config.Temperature = val
		fmt.Printf("Temperature set to %.2f\n", val)

	case "/topk":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /topk <value>")
		}
		var val int
		if _, err := fmt.Sscanf(parts[1], "%d", &val); err != nil {
			return fmt.Errorf("invalid top-k value: %v", err)
		}
		config.TopK = val
		fmt.Printf("Top-k set to %d\n", val)

	case "/topp":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /topp <value>")
		}
		var val float64
		if _, err := fmt.Sscanf(parts[1], "%f", &val); err != nil {
			return fmt.Errorf("invalid top-p value: %v", err)
		}
		config.TopP = val
		fmt.Printf("Top-p set to %.2f\n", val)

	case "/chars":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /chars <value>")
		}
		var val int
		if _, err := fmt.Sscanf(parts[1], "%d", &val); err != nil {
			return fmt.Errorf("invalid max chars value: %v", err)
		}
		*maxChars = val
		fmt.Printf("Max chars set to %d\n", val)

	case "/config":
		fmt.Printf("Current settings:\n")
		fmt.Printf("  Temperature:  %.2f\n", config.Temperature)
		fmt.Printf("  Top-k:        %d\n", config.TopK)
		fmt.Printf("  Top-p:        %.2f\n", config.TopP)
		fmt.Printf("  Max chars:    %d\n", *maxChars)

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}

	return nil
}
