package ingest

import (
	"context"

	"github.com/atlascope/wikirag/internal/domain"
)

// Fetcher retrieves cleaned pages from the knowledge source.
type Fetcher interface {
	Search(ctx context.Context, topic string, limit int) ([]domain.WikiPage, error)
	FetchPage(ctx context.Context, title string) (*domain.WikiPage, error)
}

// FetcherFactory returns a page fetcher bound to one wiki language.
type FetcherFactory func(language string) Fetcher

// Embedder vectorizes document chunks in one batch call.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// PointWriter persists embedded chunks into the vector store.
type PointWriter interface {
	Upsert(ctx context.Context, points []domain.Point, wait bool) error
}
