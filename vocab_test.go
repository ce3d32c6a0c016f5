package main

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVocabBuildDeterministic(t *testing.T) {
	// Same character set in different order must yield the same ids.
	a := BuildVocab("hello world")
	b := BuildVocab("world olleh")

	if a.Size() != b.Size() {
		t.Fatalf("sizes differ: %d vs %d", a.Size(), b.Size())
	}

	text := "hello"
	if diff := cmp.Diff(a.Encode(text), b.Encode(text)); diff != "" {
		t.Errorf("encodings differ (-a +b):\n%s", diff)
	}
}

func TestVocabEncodeDecodeRoundTrip(t *testing.T) {
	text := "Hello, 世界!\nTabs\tand newlines survive."
	v := BuildVocab(text)

	got := v.Decode(v.Encode(text))
	if got != text {
		t.Errorf("round trip: got %q, want %q", got, text)
	}
}

func TestVocabUnknownRunesSkipped(t *testing.T) {
	v := BuildVocab("abc")

	ids := v.Encode("aXbYc")
	if len(ids) != 3 {
		t.Fatalf("expected 3 known ids, got %d", len(ids))
	}
	if got := v.Decode(ids); got != "abc" {
		t.Errorf("decode = %q, want \"abc\"", got)
	}
}

func TestVocabOneHot(t *testing.T) {
	v := BuildVocab("ab")

	oh := v.OneHot(1)
	if oh.Size() != 2 {
		t.Fatalf("one-hot size %d, want 2", oh.Size())
	}
	if oh.At(0, 0) != 0 || oh.At(0, 1) != 1 {
		t.Errorf("one-hot = %v, want [0 1]", oh.data)
	}
}

func TestVocabSaveLoad(t *testing.T) {
	text := "The quick brown fox\tjumps\nover 世界"
	v := BuildVocab(text)

	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := v.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadVocab(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Size() != v.Size() {
		t.Fatalf("size after load: %d, want %d", loaded.Size(), v.Size())
	}
	if diff := cmp.Diff(v.Encode(text), loaded.Encode(text)); diff != "" {
		t.Errorf("encodings differ after reload (-orig +loaded):\n%s", diff)
	}
	if got := loaded.Decode(loaded.Encode(text)); got != text {
		t.Errorf("round trip after reload: got %q", got)
	}
}

func TestLoadVocabErrors(t *testing.T) {
	if _, err := LoadVocab(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
