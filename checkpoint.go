package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ===========================================================================
// Model Serialization
// ===========================================================================
//
// Checkpoint format:
//
//	uint32 (little endian)  header length
//	JSON Config             architecture needed to rebuild the tensors
//	raw float64 dumps       every parameter in Parameters() order
//
// A naive format: no quantization, no memory mapping, no tensor names.
// The parameter order in lstm.go is the schema. Good enough for models
// that fit comfortably in RAM, and trivially debuggable with xxd.
//
// Saves go through a temp file plus rename so a crash mid-write (or an
// impatient Ctrl-C during a periodic checkpoint) never leaves a torn
// model file behind.
// ===========================================================================

// Save writes the model to a checkpoint file.
func (m *CharLSTM) Save(filename string) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := m.writeTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func (m *CharLSTM) writeTo(w io.Writer) error {
	configJSON, err := json.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal config: %w", err)
	}

	headerLen := uint32(len(configJSON))
	if err := binary.Write(w, binary.LittleEndian, headerLen); err != nil {
		return fmt.Errorf("checkpoint: write header length: %w", err)
	}
	if _, err := w.Write(configJSON); err != nil {
		return fmt.Errorf("checkpoint: write config: %w", err)
	}

	for i, p := range m.Parameters() {
		if err := binary.Write(w, binary.LittleEndian, p.data); err != nil {
			return fmt.Errorf("checkpoint: write tensor %d: %w", i, err)
		}
	}

	return nil
}

// LoadCharLSTM reads a model from a checkpoint file.
func LoadCharLSTM(filename string) (*CharLSTM, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open file: %w", err)
	}
	defer f.Close()

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("checkpoint: read header length: %w", err)
	}

	configJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(f, configJSON); err != nil {
		return nil, fmt.Errorf("checkpoint: read config: %w", err)
	}

	var config Config
	if err := json.Unmarshal(configJSON, &config); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal config: %w", err)
	}
	if config.VocabSize <= 0 || config.HiddenSize <= 0 || config.NumLayers <= 0 {
		return nil, fmt.Errorf("checkpoint: invalid config %+v", config)
	}

	model := NewCharLSTM(config)

	// A short read here means the file disagrees with its own config
	for i, p := range model.Parameters() {
		if err := binary.Read(f, binary.LittleEndian, p.data); err != nil {
			return nil, fmt.Errorf("checkpoint: read tensor %d: %w", i, err)
		}
	}

	return model, nil
}
