package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/atlascope/wikirag/internal/domain"
	"github.com/atlascope/wikirag/internal/vectorstore/qdrant"
)

type mockStore struct {
	scrollFn func(ctx context.Context, offset json.RawMessage, limit int) (qdrant.ScrollPage, error)
	countFn  func(ctx context.Context, pageID int) (int, error)
	deleteFn func(ctx context.Context, pageID int, wait bool) error
}

func (m *mockStore) Scroll(ctx context.Context, offset json.RawMessage, limit int) (qdrant.ScrollPage, error) {
	if m.scrollFn != nil {
		return m.scrollFn(ctx, offset, limit)
	}
	return qdrant.ScrollPage{}, nil
}

func (m *mockStore) CountByPage(ctx context.Context, pageID int) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, pageID)
	}
	return 0, nil
}

func (m *mockStore) DeleteByPage(ctx context.Context, pageID int, wait bool) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, pageID, wait)
	}
	return nil
}

func chunkFor(pageID int, title string) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		ID: domain.PointID(pageID, 0),
		Payload: domain.PointPayload{
			PageID: pageID,
			Title:  title,
			Topic:  "testing",
			URL:    fmt.Sprintf("https://en.wikipedia.org/wiki/Page_%d", pageID),
		},
	}
}

func TestReferences_AggregatesAcrossScrollPages(t *testing.T) {
	store := &mockStore{
		scrollFn: func(_ context.Context, offset json.RawMessage, limit int) (qdrant.ScrollPage, error) {
			if limit != scrollBatch {
				t.Errorf("unexpected scroll batch %d", limit)
			}
			if offset == nil {
				return qdrant.ScrollPage{
					Points: []domain.RetrievedChunk{
						chunkFor(2, "zebra"),
						chunkFor(2, "zebra"),
						chunkFor(1, "Aardvark"),
					},
					NextOffset: json.RawMessage(`"cursor-1"`),
				}, nil
			}
			if string(offset) != `"cursor-1"` {
				t.Errorf("cursor not forwarded: %s", offset)
			}
			return qdrant.ScrollPage{
				Points: []domain.RetrievedChunk{chunkFor(2, "zebra")},
			}, nil
		},
	}

	svc := New(store)
	refs, err := svc.References(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	// Sorted by case-insensitive title.
	if refs[0].Title != "Aardvark" || refs[1].Title != "zebra" {
		t.Errorf("unexpected order: %v", refs)
	}
	if refs[0].ChunkCount != 1 || refs[1].ChunkCount != 3 {
		t.Errorf("unexpected chunk counts: %+v", refs)
	}
}

func TestReferences_SkipsPointsWithoutPageID(t *testing.T) {
	store := &mockStore{
		scrollFn: func(_ context.Context, _ json.RawMessage, _ int) (qdrant.ScrollPage, error) {
			return qdrant.ScrollPage{
				Points: []domain.RetrievedChunk{{Payload: domain.PointPayload{Title: "orphan"}}},
			}, nil
		},
	}

	svc := New(store)
	refs, err := svc.References(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no references, got %v", refs)
	}
}

func TestReferences_EmptyCollection(t *testing.T) {
	svc := New(&mockStore{})
	refs, err := svc.References(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no references, got %v", refs)
	}
}

func TestReferences_ScrollFailure(t *testing.T) {
	store := &mockStore{
		scrollFn: func(_ context.Context, _ json.RawMessage, _ int) (qdrant.ScrollPage, error) {
			return qdrant.ScrollPage{}, fmt.Errorf("status 500: %w", domain.ErrUpstream)
		},
	}

	svc := New(store)
	_, err := svc.References(context.Background())
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestDeleteReference_RemovesChunks(t *testing.T) {
	deleted := false
	store := &mockStore{
		countFn: func(_ context.Context, pageID int) (int, error) {
			if pageID != 42 {
				t.Errorf("unexpected page id %d", pageID)
			}
			return 3, nil
		},
		deleteFn: func(_ context.Context, pageID int, wait bool) error {
			if !wait {
				t.Error("delete must wait for acknowledgement")
			}
			deleted = pageID == 42
			return nil
		},
	}

	svc := New(store)
	if err := svc.DeleteReference(context.Background(), 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("chunks were not deleted")
	}
}

func TestDeleteReference_NotFound(t *testing.T) {
	deleteCalled := false
	store := &mockStore{
		deleteFn: func(_ context.Context, _ int, _ bool) error {
			deleteCalled = true
			return nil
		},
	}

	svc := New(store)
	err := svc.DeleteReference(context.Background(), 99)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if deleteCalled {
		t.Error("unknown references must not issue a delete")
	}
}
