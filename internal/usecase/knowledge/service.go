// Package knowledge lists and removes ingested articles by aggregating the
// chunks stored in the vector store.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atlascope/wikirag/internal/domain"
)

// scrollBatch is the page size used when walking the full collection.
const scrollBatch = 256

// Service manages knowledge-base references.
type Service struct {
	store Store
}

// New creates a knowledge service.
func New(store Store) *Service {
	return &Service{store: store}
}

// References walks the whole collection and aggregates chunks into one
// entry per article, sorted by case-insensitive title.
func (s *Service) References(ctx context.Context) ([]domain.KnowledgeReference, error) {
	byPage := make(map[int]*domain.KnowledgeReference)

	var offset []byte
	for {
		page, err := s.store.Scroll(ctx, offset, scrollBatch)
		if err != nil {
			return nil, fmt.Errorf("scroll collection: %w", err)
		}
		if len(page.Points) == 0 {
			break
		}

		for _, point := range page.Points {
			payload := point.Payload
			if payload.PageID == 0 {
				continue
			}
			ref := byPage[payload.PageID]
			if ref == nil {
				ref = &domain.KnowledgeReference{
					PageID: payload.PageID,
					Title:  payload.Title,
					Topic:  payload.Topic,
					URL:    payload.URL,
				}
				byPage[payload.PageID] = ref
			}
			ref.ChunkCount++
		}

		if page.NextOffset == nil {
			break
		}
		offset = page.NextOffset
	}

	references := make([]domain.KnowledgeReference, 0, len(byPage))
	for _, ref := range byPage {
		references = append(references, *ref)
	}
	sort.Slice(references, func(i, j int) bool {
		return strings.ToLower(references[i].Title) < strings.ToLower(references[j].Title)
	})
	return references, nil
}

// DeleteReference removes every chunk of one article. Unknown page ids
// report not found without issuing a delete.
func (s *Service) DeleteReference(ctx context.Context, pageID int) error {
	count, err := s.store.CountByPage(ctx, pageID)
	if err != nil {
		return fmt.Errorf("count chunks for page %d: %w", pageID, err)
	}
	if count == 0 {
		return fmt.Errorf("reference %d: %w", pageID, domain.ErrNotFound)
	}
	if err := s.store.DeleteByPage(ctx, pageID, true); err != nil {
		return fmt.Errorf("delete chunks for page %d: %w", pageID, err)
	}
	return nil
}
