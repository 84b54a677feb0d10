// Package chunker splits cleaned text into overlapping word windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/atlascope/wikirag/internal/domain"
)

// Split cuts text into windows of size words advancing by size-overlap.
// Tokenization is whitespace-based. The final partial window is kept if
// non-empty. Deterministic: point ids depend on stable chunk indexes, so
// identical inputs must always yield identical boundaries.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrValidation, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", domain.ErrValidation, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf(
			"%w: chunk overlap must be smaller than chunk size, got overlap=%d size=%d",
			domain.ErrValidation, overlap, size,
		)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}
