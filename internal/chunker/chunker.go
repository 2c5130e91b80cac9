package chunker

import (
	"errors"
	"fmt"
	"strings"

	"medassist/internal/models"
)

// ErrEmptyDocument is returned when the extracted text holds nothing to index.
// The caller decides whether to skip the document or abort the batch.
var ErrEmptyDocument = errors.New("document text is empty")

// Split cuts text into fixed-size passages where consecutive passages share
// overlap runes. The window slides by size-overlap, so for texts of at least
// size runes the chunk count is ceil((len-overlap)/(size-overlap)) and
// re-concatenating the chunks with the overlaps dropped restores the text.
// A text shorter than size yields a single chunk holding the whole text.
func Split(text string, size, overlap int) ([]models.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d for size %d", overlap, size)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []models.Chunk{{Index: 0, Content: text}}, nil
	}

	step := size - overlap
	var chunks []models.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			Index:   len(chunks),
			Content: string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
