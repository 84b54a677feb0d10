// Package qdrant is a REST adapter for the Qdrant vector store. It owns the
// collection lifecycle and the upsert/search/scroll/delete surface the rest of
// the system depends on.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Store is a collection-scoped Qdrant client. One instance is created at
// process start and shared across workers.
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
	logger     *zap.Logger
}

// Config holds connection parameters for the Qdrant store.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewStore creates a Qdrant store for one collection.
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Collection returns the configured collection name.
func (s *Store) Collection() string {
	return s.collection
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection if missing, or verifies that the
// existing one matches the expected dimension and cosine metric. A mismatch is
// a hard setup error, never an automatic migration.
func (s *Store) EnsureCollection(ctx context.Context, vectorSize int) error {
	status, body, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		var info collectionInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return fmt.Errorf("%w: decode collection info: %v", domain.ErrUpstream, err)
		}
		params := info.Result.Config.Params.Vectors
		if params.Size != vectorSize {
			return fmt.Errorf(
				"%w: collection %q has vector size %d, configured size is %d",
				domain.ErrConfig, s.collection, params.Size, vectorSize,
			)
		}
		if !strings.EqualFold(params.Distance, "Cosine") {
			return fmt.Errorf(
				"%w: collection %q uses distance %q, expected Cosine",
				domain.ErrConfig, s.collection, params.Distance,
			)
		}
		return nil
	case http.StatusNotFound:
		create := map[string]any{
			"vectors": map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		}
		if _, _, err := s.doJSON(ctx, http.MethodPut, s.collectionURL(""), create); err != nil {
			return err
		}
		s.logger.Info("created qdrant collection",
			zap.String("collection", s.collection),
			zap.Int("vector_size", vectorSize),
		)
		return nil
	default:
		return fmt.Errorf("%w: get collection %q: status %d", domain.ErrUpstream, s.collection, status)
	}
}

// Upsert writes points by id, overwriting existing ones. With wait=true the
// call returns only after the write is applied, so a subsequent search
// observes it.
func (s *Store) Upsert(ctx context.Context, points []domain.Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	url := s.collectionURL("/points")
	if wait {
		url += "?wait=true"
	}
	if _, _, err := s.doJSON(ctx, http.MethodPut, url, map[string]any{"points": points}); err != nil {
		return err
	}
	return nil
}

type searchHit struct {
	ID      string              `json:"id"`
	Score   float64             `json:"score"`
	Payload domain.PointPayload `json:"payload"`
	Vector  []float32           `json:"vector"`
}

// Search runs cosine nearest-neighbour search and returns hits in
// non-increasing score order.
func (s *Store) Search(
	ctx context.Context, vector []float32, limit int, scoreThreshold float64, withVectors bool,
) ([]domain.RetrievedChunk, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  withVectors,
	}
	if scoreThreshold > 0 {
		req["score_threshold"] = scoreThreshold
	}

	_, body, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/search"), req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result []searchHit `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", domain.ErrUpstream, err)
	}

	chunks := make([]domain.RetrievedChunk, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		chunks = append(chunks, domain.RetrievedChunk{
			ID:      hit.ID,
			Score:   hit.Score,
			Payload: hit.Payload,
			Vector:  hit.Vector,
		})
	}
	return chunks, nil
}

// ScrollPage is one page of a full-collection listing.
type ScrollPage struct {
	Points     []domain.RetrievedChunk
	NextOffset json.RawMessage // nil when exhausted
}

// Scroll lists points page by page. Pass the previous page's NextOffset to
// continue; a nil NextOffset in the result means the listing is complete.
func (s *Store) Scroll(ctx context.Context, offset json.RawMessage, limit int) (ScrollPage, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != nil {
		req["offset"] = offset
	}

	_, body, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req)
	if err != nil {
		return ScrollPage{}, err
	}

	var parsed struct {
		Result struct {
			Points         []searchHit     `json:"points"`
			NextPageOffset json.RawMessage `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ScrollPage{}, fmt.Errorf("%w: decode scroll response: %v", domain.ErrUpstream, err)
	}

	page := ScrollPage{NextOffset: normalizeOffset(parsed.Result.NextPageOffset)}
	for _, hit := range parsed.Result.Points {
		page.Points = append(page.Points, domain.RetrievedChunk{
			ID:      hit.ID,
			Payload: hit.Payload,
		})
	}
	return page, nil
}

// CountByPage counts stored points belonging to one source page (exact).
func (s *Store) CountByPage(ctx context.Context, pageID int) (int, error) {
	req := map[string]any{
		"filter": pageFilter(pageID),
		"exact":  true,
	}

	_, body, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/count"), req)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: decode count response: %v", domain.ErrUpstream, err)
	}
	return parsed.Result.Count, nil
}

// DeleteByPage removes all points belonging to one source page.
func (s *Store) DeleteByPage(ctx context.Context, pageID int, wait bool) error {
	url := s.collectionURL("/points/delete")
	if wait {
		url += "?wait=true"
	}
	req := map[string]any{"filter": pageFilter(pageID)}
	if _, _, err := s.doJSON(ctx, http.MethodPost, url, req); err != nil {
		return err
	}
	return nil
}

// HealthCheck verifies the Qdrant service is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	status, _, err := s.do(ctx, http.MethodGet, s.baseURL+"/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: qdrant health check: status %d", domain.ErrUpstream, status)
	}
	return nil
}

func pageFilter(pageID int) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "page_id", "match": map[string]any{"value": pageID}},
		},
	}
}

// normalizeOffset maps JSON null to a nil offset.
func normalizeOffset(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

func (s *Store) collectionURL(suffix string) string {
	return s.baseURL + "/collections/" + s.collection + suffix
}

// doJSON marshals the request body and requires a 2xx response.
func (s *Store) doJSON(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	status, body, err := s.do(ctx, method, url, data)
	if err != nil {
		return status, body, err
	}
	if status < 200 || status >= 300 {
		return status, body, fmt.Errorf(
			"%w: qdrant %s %s: status %d: %s",
			domain.ErrUpstream, method, url, status, truncate(body, 256),
		)
	}
	return status, body, nil
}

func (s *Store) do(ctx context.Context, method, url string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: qdrant %s %s: %v", domain.ErrUpstream, method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read qdrant response: %v", domain.ErrUpstream, err)
	}
	return resp.StatusCode, body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
