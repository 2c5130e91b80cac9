package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	chunks, err := Split("short text", 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short text" {
		t.Fatalf("unexpected chunk content: %q", chunks[0].Content)
	}
}

func TestSplitWindowAndOverlap(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks, err := Split(text, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ceil((26-2)/(10-2)) = 3
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %q", chunks[0].Content)
	}
	if chunks[1].Content != "ijklmnopqr" {
		t.Fatalf("unexpected second chunk: %q", chunks[1].Content)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.CharLength() > 10 {
			t.Fatalf("chunk %d exceeds size: %d runes", i, c.CharLength())
		}
	}
}

func TestSplitChunkCountFormula(t *testing.T) {
	size, overlap := 50, 10
	step := size - overlap
	for _, n := range []int{50, 51, 120, 333, 1000} {
		text := strings.Repeat("x", n)
		chunks, err := Split(text, size, overlap)
		if err != nil {
			t.Fatalf("len %d: unexpected error: %v", n, err)
		}
		want := ((n - overlap) + step - 1) / step
		if len(chunks) != want {
			t.Fatalf("len %d: expected %d chunks, got %d", n, want, len(chunks))
		}
	}
}

func TestSplitReassembles(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog, again and again, until the document ends here."
	size, overlap := 20, 7
	chunks, err := Split(text, size, overlap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rebuilt strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Content)
		if i == 0 {
			rebuilt.WriteString(c.Content)
		} else {
			rebuilt.WriteString(string(runes[overlap:]))
		}
	}
	if rebuilt.String() != text {
		t.Fatalf("reassembled text differs:\n%q\n%q", rebuilt.String(), text)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	first, err := Split(text, 120, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Split(text, 120, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content != second[i].Content {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		_, err := Split(text, 100, 10)
		if !errors.Is(err, ErrEmptyDocument) {
			t.Fatalf("expected ErrEmptyDocument for %q, got %v", text, err)
		}
	}
}

func TestSplitInvalidParams(t *testing.T) {
	if _, err := Split("text", 0, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := Split("text", 10, 10); err == nil {
		t.Fatal("expected error for overlap == size")
	}
	if _, err := Split("text", 10, -1); err == nil {
		t.Fatal("expected error for negative overlap")
	}
}
