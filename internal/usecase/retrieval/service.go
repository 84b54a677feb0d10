// Package retrieval embeds user queries and fetches the closest stored
// chunks from the vector store.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlascope/wikirag/internal/domain"
)

// Options tune one search call.
type Options struct {
	Limit          int
	ScoreThreshold float64
	WithVectors    bool
}

// Service embeds queries and runs nearest-neighbour searches.
type Service struct {
	embed  Embedder
	search Searcher
}

// New creates a retrieval service.
func New(embed Embedder, search Searcher) *Service {
	return &Service{embed: embed, search: search}
}

// Embed turns a query into a normalized vector. Blank queries are rejected
// before any network call.
func (s *Service) Embed(ctx context.Context, query string) ([]float32, error) {
	cleaned := strings.TrimSpace(query)
	if cleaned == "" {
		return nil, fmt.Errorf("query text must be non-empty: %w", domain.ErrValidation)
	}
	vector, err := s.embed.EmbedQuery(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vector, nil
}

// Search embeds the query and returns up to opts.Limit nearest chunks.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]domain.RetrievedChunk, error) {
	if opts.Limit < 1 {
		return nil, fmt.Errorf("search limit must be at least 1: %w", domain.ErrValidation)
	}
	vector, err := s.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SearchWithVector(ctx, vector, opts)
}

// SearchWithVector runs the nearest-neighbour search with a pre-computed
// query embedding.
func (s *Service) SearchWithVector(
	ctx context.Context, vector []float32, opts Options,
) ([]domain.RetrievedChunk, error) {
	if opts.Limit < 1 {
		return nil, fmt.Errorf("search limit must be at least 1: %w", domain.ErrValidation)
	}
	chunks, err := s.search.Search(ctx, vector, opts.Limit, opts.ScoreThreshold, opts.WithVectors)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return chunks, nil
}
