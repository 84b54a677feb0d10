package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlascope/wikirag/internal/domain"
)

func newTestStore(url string) *Store {
	return NewStore(Config{URL: url, Collection: "wiki_rag"})
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	created := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/wiki_rag":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/wiki_rag":
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Vectors.Size != 384 || body.Vectors.Distance != "Cosine" {
				t.Errorf("unexpected create body: %+v", body)
			}
			created = true
			w.Write([]byte(`{"result":true,"status":"ok"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	if err := newTestStore(server.URL).EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected collection to be created")
	}
}

func TestEnsureCollection_VerifiesExisting(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		distance string
		wantErr  error
	}{
		{"matching", 384, "Cosine", nil},
		{"wrong size", 768, "Cosine", domain.ErrConfig},
		{"wrong metric", 384, "Euclid", domain.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				var info collectionInfo
				info.Result.Config.Params.Vectors.Size = tt.size
				info.Result.Config.Params.Vectors.Distance = tt.distance
				json.NewEncoder(w).Encode(info)
			}))
			defer server.Close()

			err := newTestStore(server.URL).EnsureCollection(context.Background(), 384)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpsert_WaitFlag(t *testing.T) {
	var gotWait string
	var gotPoints []domain.Point
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/wiki_rag/points" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotWait = r.URL.Query().Get("wait")
		var body struct {
			Points []domain.Point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotPoints = body.Points
		w.Write([]byte(`{"result":{"status":"acknowledged"}}`))
	}))
	defer server.Close()

	points := []domain.Point{{
		ID:     domain.PointID(42, 0),
		Vector: []float32{0.1, 0.2},
		Payload: domain.PointPayload{
			Source: "wikipedia", PageID: 42, ChunkIndex: 0, Content: "text",
		},
	}}
	if err := newTestStore(server.URL).Upsert(context.Background(), points, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotWait != "true" {
		t.Errorf("expected wait=true, got %q", gotWait)
	}
	if len(gotPoints) != 1 || gotPoints[0].ID != points[0].ID {
		t.Errorf("points not forwarded: %+v", gotPoints)
	}
}

func TestUpsert_EmptyIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	if err := newTestStore(server.URL).Upsert(context.Background(), nil, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/wiki_rag/points/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["limit"].(float64) != 5 {
			t.Errorf("unexpected limit: %v", req["limit"])
		}
		if req["with_payload"] != true {
			t.Error("expected with_payload true")
		}
		if _, ok := req["score_threshold"]; ok {
			t.Error("score_threshold should be omitted when zero")
		}
		w.Write([]byte(`{"result":[
			{"id":"a","score":0.93,"payload":{"title":"One","page_id":1,"chunk_index":0,"content":"first"}},
			{"id":"b","score":0.81,"payload":{"title":"Two","page_id":2,"chunk_index":3,"content":"second"}}
		]}`))
	}))
	defer server.Close()

	chunks, err := newTestStore(server.URL).Search(context.Background(), []float32{0.1}, 5, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Score < chunks[1].Score {
		t.Error("results not in non-increasing score order")
	}
	if chunks[1].Payload.ChunkIndex != 3 {
		t.Errorf("payload not decoded: %+v", chunks[1].Payload)
	}
}

func TestScroll_Pagination(t *testing.T) {
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if call == 1 {
			if _, ok := req["offset"]; ok {
				t.Error("first scroll should not carry an offset")
			}
			w.Write([]byte(`{"result":{"points":[{"id":"a","payload":{"page_id":1}}],"next_page_offset":"cursor-1"}}`))
			return
		}
		if req["offset"] != "cursor-1" {
			t.Errorf("expected offset cursor-1, got %v", req["offset"])
		}
		w.Write([]byte(`{"result":{"points":[{"id":"b","payload":{"page_id":2}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	store := newTestStore(server.URL)
	first, err := store.Scroll(context.Background(), nil, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.NextOffset == nil {
		t.Fatal("expected a next offset")
	}

	second, err := store.Scroll(context.Background(), first.NextOffset, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.NextOffset != nil {
		t.Errorf("expected exhausted scroll, got offset %s", second.NextOffset)
	}
	if len(first.Points) != 1 || len(second.Points) != 1 {
		t.Errorf("unexpected point counts: %d, %d", len(first.Points), len(second.Points))
	}
}

func TestCountAndDeleteByPage(t *testing.T) {
	var deleteWait string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		filter := req["filter"].(map[string]any)
		must := filter["must"].([]any)[0].(map[string]any)
		if must["key"] != "page_id" {
			t.Errorf("unexpected filter key: %v", must["key"])
		}
		switch r.URL.Path {
		case "/collections/wiki_rag/points/count":
			if req["exact"] != true {
				t.Error("expected exact count")
			}
			w.Write([]byte(`{"result":{"count":7}}`))
		case "/collections/wiki_rag/points/delete":
			deleteWait = r.URL.Query().Get("wait")
			w.Write([]byte(`{"result":{"status":"completed"}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	store := newTestStore(server.URL)
	count, err := store.CountByPage(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("expected 7, got %d", count)
	}

	if err := store.DeleteByPage(context.Background(), 42, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleteWait != "true" {
		t.Errorf("expected wait=true on delete, got %q", deleteWait)
	}
}

func TestUpstreamFailureWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestStore(server.URL).Search(context.Background(), []float32{0.1}, 5, 0, false)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	a := domain.PointID(42, 3)
	b := domain.PointID(42, 3)
	if a != b {
		t.Fatalf("point id not deterministic: %q vs %q", a, b)
	}
	if a == domain.PointID(42, 4) || a == domain.PointID(43, 3) {
		t.Error("distinct (page, chunk) pairs must map to distinct ids")
	}
}
