// Package ingest orchestrates fetching, chunking, embedding, and upserting
// knowledge-source pages into the vector store.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/chunker"
	"github.com/atlascope/wikirag/internal/domain"
	"github.com/atlascope/wikirag/internal/metrics"
	"github.com/atlascope/wikirag/internal/wiki"
)

// Request describes one ingestion run.
type Request struct {
	Topics           []string
	MaxPagesPerTopic int
	Language         string
	ChunkSize        int
	ChunkOverlap     int
	DryRun           bool
}

// URLRequest describes one ingestion run driven by explicit article URLs.
type URLRequest struct {
	URLs         []string
	Language     string
	ChunkSize    int
	ChunkOverlap int
	DryRun       bool
}

// Summary reports what an ingestion run accomplished. Topics contains only
// the inputs that yielded at least one processed page, falling back to the
// full request list when none did.
type Summary struct {
	Topics         []string
	ProcessedPages int
	EmbeddedChunks int
	SkippedPages   int
	DryRun         bool
}

// Service runs the ingestion pipeline.
type Service struct {
	fetcherFor FetcherFactory
	embed      Embedder
	store      PointWriter
	log        *zap.Logger
}

// New creates an ingestion service.
func New(fetcherFor FetcherFactory, embed Embedder, store PointWriter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{fetcherFor: fetcherFor, embed: embed, store: store, log: log}
}

// Run ingests pages matched by topic search. Per-page content issues (no
// chunks produced) are isolated and only affect that page's counters;
// connection-level failures abort the remaining batch.
func (s *Service) Run(ctx context.Context, req Request) (Summary, error) {
	if err := validateNonEmpty(req.Topics, "topic"); err != nil {
		return Summary{}, err
	}
	if req.MaxPagesPerTopic < 1 {
		return Summary{}, fmt.Errorf("max pages per topic must be at least 1: %w", domain.ErrValidation)
	}
	if _, err := chunker.Split("", req.ChunkSize, req.ChunkOverlap); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	s.log.Info("starting ingestion",
		zap.Strings("topics", req.Topics),
		zap.Bool("dry_run", req.DryRun),
	)

	fetcher := s.fetcherFor(req.Language)
	summary := Summary{DryRun: req.DryRun}
	productive := make([]string, 0, len(req.Topics))

	for _, topic := range req.Topics {
		pages, err := fetcher.Search(ctx, topic, req.MaxPagesPerTopic)
		if err != nil {
			return Summary{}, fmt.Errorf("search topic %q: %w", topic, err)
		}
		if len(pages) == 0 {
			s.log.Warn("no pages found for topic", zap.String("topic", topic))
			continue
		}

		topicProcessed := 0
		for _, page := range pages {
			processed, err := s.ingestPage(ctx, page, req.ChunkSize, req.ChunkOverlap, req.DryRun, &summary)
			if err != nil {
				return Summary{}, err
			}
			if processed {
				topicProcessed++
			}
		}
		if topicProcessed > 0 {
			productive = append(productive, topic)
		}
	}

	summary.Topics = productive
	if len(summary.Topics) == 0 {
		summary.Topics = req.Topics
	}

	metrics.IngestRunDuration.Observe(time.Since(start).Seconds())
	s.log.Info("finished ingestion",
		zap.Int("processed_pages", summary.ProcessedPages),
		zap.Int("embedded_chunks", summary.EmbeddedChunks),
		zap.Int("skipped_pages", summary.SkippedPages),
		zap.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

// RunFromURLs ingests explicitly referenced articles. URLs that do not
// resolve to a page title, or whose page cannot be found, are skipped with a
// warning rather than failing the batch.
func (s *Service) RunFromURLs(ctx context.Context, req URLRequest) (Summary, error) {
	if err := validateNonEmpty(req.URLs, "url"); err != nil {
		return Summary{}, err
	}
	if _, err := chunker.Split("", req.ChunkSize, req.ChunkOverlap); err != nil {
		return Summary{}, err
	}

	start := time.Now()
	s.log.Info("starting url ingestion",
		zap.Int("urls", len(req.URLs)),
		zap.Bool("dry_run", req.DryRun),
	)

	fetcher := s.fetcherFor(req.Language)
	summary := Summary{DryRun: req.DryRun}
	productive := make([]string, 0, len(req.URLs))

	for _, rawURL := range req.URLs {
		title, err := wiki.TitleFromURL(rawURL)
		if err != nil {
			s.log.Warn("skipping unresolvable url", zap.String("url", rawURL), zap.Error(err))
			summary.SkippedPages++
			metrics.IngestPagesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		page, err := fetcher.FetchPage(ctx, title)
		if err != nil {
			return Summary{}, fmt.Errorf("fetch page %q: %w", title, err)
		}
		if page == nil {
			s.log.Warn("page not found", zap.String("title", title), zap.String("url", rawURL))
			summary.SkippedPages++
			metrics.IngestPagesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		processed, err := s.ingestPage(ctx, *page, req.ChunkSize, req.ChunkOverlap, req.DryRun, &summary)
		if err != nil {
			return Summary{}, err
		}
		if processed {
			productive = append(productive, rawURL)
		}
	}

	summary.Topics = productive
	if len(summary.Topics) == 0 {
		summary.Topics = req.URLs
	}

	metrics.IngestRunDuration.Observe(time.Since(start).Seconds())
	s.log.Info("finished url ingestion",
		zap.Int("processed_pages", summary.ProcessedPages),
		zap.Int("embedded_chunks", summary.EmbeddedChunks),
		zap.Int("skipped_pages", summary.SkippedPages),
	)
	return summary, nil
}

// ingestPage chunks, embeds, and (unless dry run) upserts one page, updating
// the run counters. Returns whether the page produced chunks.
func (s *Service) ingestPage(
	ctx context.Context, page domain.WikiPage, chunkSize, overlap int, dryRun bool, summary *Summary,
) (bool, error) {
	chunks, err := chunker.Split(page.Content, chunkSize, overlap)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 {
		summary.SkippedPages++
		metrics.IngestPagesTotal.WithLabelValues("skipped").Inc()
		s.log.Debug("no chunks produced for page",
			zap.String("title", page.Title),
			zap.Int("page_id", page.PageID),
		)
		return false, nil
	}

	embeddings, err := s.embed.EmbedDocuments(ctx, chunks)
	if err != nil {
		return false, fmt.Errorf("embed page %q: %w", page.Title, err)
	}
	summary.EmbeddedChunks += len(chunks)
	summary.ProcessedPages++
	metrics.IngestPagesTotal.WithLabelValues("processed").Inc()
	metrics.IngestChunksTotal.Add(float64(len(chunks)))

	if dryRun {
		return true, nil
	}

	points, err := buildPoints(page, chunks, embeddings)
	if err != nil {
		return false, err
	}
	if err := s.store.Upsert(ctx, points, true); err != nil {
		return false, fmt.Errorf("upsert page %q: %w", page.Title, err)
	}
	return true, nil
}

// buildPoints converts chunk embeddings into vector-store points with
// deterministic ids, so re-ingestion overwrites instead of duplicating.
func buildPoints(page domain.WikiPage, chunks []string, embeddings [][]float32) ([]domain.Point, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("got %d embeddings for %d chunks: %w",
			len(embeddings), len(chunks), domain.ErrUpstream)
	}

	points := make([]domain.Point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, domain.Point{
			ID:     domain.PointID(page.PageID, i),
			Vector: embeddings[i],
			Payload: domain.PointPayload{
				Source:     "wikipedia",
				Topic:      page.Topic,
				Title:      page.Title,
				URL:        page.URL,
				ChunkIndex: i,
				WordCount:  len(strings.Fields(chunk)),
				PageID:     page.PageID,
				Content:    chunk,
			},
		})
	}
	return points, nil
}

func validateNonEmpty(items []string, what string) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one %s is required: %w", what, domain.ErrValidation)
	}
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%ss must be non-empty: %w", what, domain.ErrValidation)
		}
	}
	return nil
}
