package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Vocab maps characters to dense ids and back. A character model's
// "tokenizer" is just this table: id i corresponds to the one-hot vector
// with a 1 in position i.
//
// Ids are assigned in sorted rune order so building the same corpus twice
// yields the same vocabulary.
type Vocab struct {
	charToID map[rune]int
	idToChar map[int]rune
}

// BuildVocab collects the distinct runes of a corpus into a vocabulary.
func BuildVocab(text string) *Vocab {
	chars := make(map[rune]bool)
	for _, r := range text {
		chars[r] = true
	}

	sorted := make([]rune, 0, len(chars))
	for r := range chars {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	v := &Vocab{
		charToID: make(map[rune]int, len(sorted)),
		idToChar: make(map[int]rune, len(sorted)),
	}
	for id, r := range sorted {
		v.charToID[r] = id
		v.idToChar[id] = r
	}
	return v
}

// Size returns the vocabulary size.
func (v *Vocab) Size() int {
	return len(v.charToID)
}

// Encode converts text to character ids. Runes outside the vocabulary
// are skipped.
func (v *Vocab) Encode(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		if id, ok := v.charToID[r]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Decode converts character ids back to text.
func (v *Vocab) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if r, ok := v.idToChar[id]; ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// OneHot returns the one-hot row vector for a character id.
func (v *Vocab) OneHot(id int) *Tensor {
	if id < 0 || id >= len(v.idToChar) {
		panic(fmt.Sprintf("vocab: id %d out of range [0,%d)", id, len(v.idToChar)))
	}
	t := NewTensor(1, len(v.idToChar))
	t.data[id] = 1.0
	return t
}

// Save writes the vocabulary to a text file, one "id<TAB>hex(rune)" line
// per entry. Hex keeps newlines, tabs, and other control characters safe.
func (v *Vocab) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("vocab: create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	if _, err := fmt.Fprintln(w, "CHAR_VOCAB"); err != nil {
		return fmt.Errorf("vocab: write header: %w", err)
	}

	for id := 0; id < len(v.idToChar); id++ {
		r := v.idToChar[id]
		if _, err := fmt.Fprintf(w, "%d\t%s\n", id, hex.EncodeToString([]byte(string(r)))); err != nil {
			return fmt.Errorf("vocab: write entry: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("vocab: flush: %w", err)
	}
	return nil
}

// LoadVocab reads a vocabulary written by Save.
func LoadVocab(filename string) (*Vocab, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("vocab: open file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, fmt.Errorf("vocab: empty file")
	}
	if scanner.Text() != "CHAR_VOCAB" {
		return nil, fmt.Errorf("vocab: invalid header %q", scanner.Text())
	}

	v := &Vocab{
		charToID: make(map[rune]int),
		idToChar: make(map[int]rune),
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			return nil, fmt.Errorf("vocab: malformed line %q", line)
		}

		var id int
		if _, err := fmt.Sscanf(parts[0], "%d", &id); err != nil {
			return nil, fmt.Errorf("vocab: parse id: %w", err)
		}

		charBytes, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("vocab: decode rune: %w", err)
		}
		runes := []rune(string(charBytes))
		if len(runes) != 1 {
			return nil, fmt.Errorf("vocab: entry %d is not a single rune", id)
		}

		v.charToID[runes[0]] = id
		v.idToChar[id] = runes[0]
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read: %w", err)
	}
	if len(v.charToID) == 0 {
		return nil, fmt.Errorf("vocab: no entries")
	}

	return v, nil
}
