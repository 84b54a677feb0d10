// Package embedding maps text to fixed-dimension normalized vectors via an
// OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/domain"
	"github.com/atlascope/wikirag/internal/metrics"
)

// Service embeds queries and document batches. One instance is constructed at
// process start and shared across workers; the underlying client is safe for
// concurrent use.
type Service struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	logger     *zap.Logger

	// The model's reported output dimension is validated once against the
	// configured target; a mismatch is fatal and remembered.
	dimOnce sync.Once
	dimErr  error
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Provider   string
	Logger     *zap.Logger
}

// NewService creates an OpenAI-compatible embedding service.
func NewService(cfg *Config) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Dimensions returns the configured target vector dimension.
func (s *Service) Dimensions() int {
	return s.dimensions
}

// EmbedQuery embeds a single text and returns its normalized vector.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts in one API call and returns their
// normalized vectors in input order.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return s.encode(ctx, texts)
}

func (s *Service) encode(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          s.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	start := time.Now()

	resp, err := s.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(s.provider, string(s.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(s.provider, string(s.model), "api_error").Inc()
		return nil, parseAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(s.provider, string(s.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(s.provider, string(s.model), "short_response").Inc()
		return nil, fmt.Errorf("%w: embedding response has %d vectors for %d inputs",
			domain.ErrUpstream, len(resp.Data), len(texts))
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(s.provider, string(s.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(s.provider, string(s.model)).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(s.provider, string(s.model), "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(s.provider, string(s.model), "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	if err := s.checkDimension(len(resp.Data[0].Embedding)); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = Normalize(d.Embedding)
	}
	return vectors, nil
}

// checkDimension validates the model's output dimension on first use. The
// verdict is remembered for the lifetime of the service.
func (s *Service) checkDimension(got int) error {
	s.dimOnce.Do(func() {
		if got != s.dimensions {
			s.dimErr = fmt.Errorf(
				"%w: embedding dimension mismatch: model %s returns %d, configured vector size is %d",
				domain.ErrConfig, s.model, got, s.dimensions,
			)
			s.logger.Error("embedding dimension mismatch",
				zap.String("model", string(s.model)),
				zap.Int("got", got),
				zap.Int("want", s.dimensions),
			)
		}
	})
	return s.dimErr
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Service) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrUpstream for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrUpstream

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("%w: embedding API error %d: %s", wrap, reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("%w: embedding API error %d: %s", wrap, reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: embedding API error %d: %s", wrap, apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: embedding request failed: %v", wrap, err)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
