package retrieval

import (
	"context"

	"github.com/atlascope/wikirag/internal/domain"
)

// Embedder vectorizes a single query string.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher performs nearest-neighbour lookups in the vector store.
type Searcher interface {
	Search(
		ctx context.Context, vector []float32, limit int,
		scoreThreshold float64, withVectors bool,
	) ([]domain.RetrievedChunk, error)
}
