package knowledge

import (
	"context"
	"encoding/json"

	"github.com/atlascope/wikirag/internal/vectorstore/qdrant"
)

// Store is the consumer interface over the vector store for reference
// management.
type Store interface {
	Scroll(ctx context.Context, offset json.RawMessage, limit int) (qdrant.ScrollPage, error)
	CountByPage(ctx context.Context, pageID int) (int, error)
	DeleteByPage(ctx context.Context, pageID int, wait bool) error
}
