// Package wiki retrieves and cleans page content from the MediaWiki API.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/domain"
)

const defaultTimeout = 15 * time.Second

// Browser-like UA: the MediaWiki API throttles default Go user agents hard.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher is a client for one language edition of the MediaWiki API.
type Fetcher struct {
	language string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// Config holds fetcher settings.
type Config struct {
	Language string
	BaseURL  string // overrides the wikipedia.org endpoint, used in tests
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewFetcher creates a fetcher for the given language edition.
func NewFetcher(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", cfg.Language)
	}
	return &Fetcher{
		language: cfg.Language,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Language returns the configured language edition.
func (f *Fetcher) Language() string {
	return f.language
}

type searchResponse struct {
	Query struct {
		Pages []rawPage `json:"pages"`
	} `json:"query"`
}

type rawPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
	FullURL string `json:"fullurl"`
	Index   int    `json:"index"`
}

// Search fetches up to limit pages matching the topic, ordered by the API's
// own relevance ranking. Pages whose cleaned content is empty are dropped
// silently and do not count toward limit.
func (f *Fetcher) Search(ctx context.Context, topic string, limit int) ([]domain.WikiPage, error) {
	params := url.Values{
		"action":          {"query"},
		"format":          {"json"},
		"formatversion":   {"2"},
		"generator":       {"search"},
		"gsrsearch":       {topic},
		"gsrlimit":        {strconv.Itoa(limit)},
		"prop":            {"extracts|info"},
		"explaintext":     {"1"},
		"exsectionformat": {"plain"},
		"redirects":       {"1"},
		"inprop":          {"url"},
	}

	endpoint := f.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: wikipedia search: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: wikipedia search returned %s", domain.ErrUpstream, resp.Status)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode wikipedia response: %v", domain.ErrUpstream, err)
	}

	pages := parsed.Query.Pages
	if len(pages) == 0 {
		f.logger.Info("no pages found for topic", zap.String("topic", topic))
		return nil, nil
	}

	// The generator returns pages in arbitrary order; the index field carries
	// the relevance rank.
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	results := make([]domain.WikiPage, 0, len(pages))
	for _, raw := range pages {
		cleaned := CleanText(raw.Extract)
		if cleaned == "" {
			f.logger.Debug("skipping page with empty cleaned content",
				zap.String("title", raw.Title),
				zap.Int("page_id", raw.PageID),
			)
			continue
		}
		results = append(results, domain.WikiPage{
			PageID:  raw.PageID,
			Title:   raw.Title,
			URL:     raw.FullURL,
			Content: cleaned,
			Topic:   topic,
		})
	}
	return results, nil
}

// FetchPage resolves a single page by title, delegating to Search with limit 1.
// Returns nil if no page matched.
func (f *Fetcher) FetchPage(ctx context.Context, title string) (*domain.WikiPage, error) {
	pages, err := f.Search(ctx, title, 1)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return &pages[0], nil
}
