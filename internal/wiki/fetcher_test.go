package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atlascope/wikirag/internal/domain"
)

func searchPayload(pages []rawPage) []byte {
	var resp searchResponse
	resp.Query.Pages = pages
	data, _ := json.Marshal(resp)
	return data
}

func TestSearch_OrderedByRelevance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("gsrsearch") != "quantum computing" {
			t.Errorf("unexpected search term: %q", q.Get("gsrsearch"))
		}
		if q.Get("gsrlimit") != "3" {
			t.Errorf("unexpected limit: %q", q.Get("gsrlimit"))
		}
		// Out of rank order on purpose.
		w.Write(searchPayload([]rawPage{
			{PageID: 2, Title: "Qubit", Extract: "Qubit text", FullURL: "https://en.wikipedia.org/wiki/Qubit", Index: 2},
			{PageID: 1, Title: "Quantum computing", Extract: "QC text", FullURL: "https://en.wikipedia.org/wiki/Quantum_computing", Index: 1},
		}))
	}))
	defer server.Close()

	f := NewFetcher(Config{Language: "en", BaseURL: server.URL})
	pages, err := f.Search(context.Background(), "quantum computing", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].Title != "Quantum computing" || pages[1].Title != "Qubit" {
		t.Errorf("pages not ordered by relevance: %q, %q", pages[0].Title, pages[1].Title)
	}
	if pages[0].Topic != "quantum computing" {
		t.Errorf("topic label not set: %q", pages[0].Topic)
	}
}

func TestSearch_DropsEmptyPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(searchPayload([]rawPage{
			{PageID: 1, Title: "Empty", Extract: "   \n\n  ", Index: 1},
			{PageID: 2, Title: "Full", Extract: "Real content", Index: 2},
		}))
	}))
	defer server.Close()

	f := NewFetcher(Config{Language: "en", BaseURL: server.URL})
	pages, err := f.Search(context.Background(), "topic", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "Full" {
		t.Fatalf("expected only the non-empty page, got %+v", pages)
	}
}

func TestSearch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(Config{Language: "en", BaseURL: server.URL})
	if _, err := f.Search(context.Background(), "topic", 5); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestFetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("gsrlimit") != "1" {
			t.Errorf("expected limit 1, got %q", r.URL.Query().Get("gsrlimit"))
		}
		w.Write(searchPayload([]rawPage{
			{PageID: 7, Title: "Alan Turing", Extract: "Mathematician.", Index: 1},
		}))
	}))
	defer server.Close()

	f := NewFetcher(Config{Language: "en", BaseURL: server.URL})
	page, err := f.FetchPage(context.Background(), "Alan Turing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page == nil || page.PageID != 7 {
		t.Fatalf("expected page 7, got %+v", page)
	}
}

func TestFetchPage_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(searchPayload(nil))
	}))
	defer server.Close()

	f := NewFetcher(Config{Language: "en", BaseURL: server.URL})
	page, err := f.FetchPage(context.Background(), "No Such Page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != nil {
		t.Fatalf("expected nil page, got %+v", page)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"citations stripped", "Turing[1] proved[23] it.", "Turing proved it."},
		{"newlines collapsed", "a\n\n\n\nb", "a\n\nb"},
		{"double newline kept", "a\n\nb", "a\n\nb"},
		{"trimmed", "  text \n", "text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		name, url, want string
	}{
		{"plain", "https://en.wikipedia.org/wiki/Alan_Turing", "Alan Turing"},
		{"percent encoded", "https://en.wikipedia.org/wiki/G%C3%B6del", "Gödel"},
		{"trailing slash", "https://en.wikipedia.org/wiki/Alan_Turing/", "Alan Turing"},
		{"bare domain", "https://wikipedia.org/wiki/Logic", "Logic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TitleFromURL(tt.url)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTitleFromURL_Invalid(t *testing.T) {
	tests := []struct {
		name, url string
	}{
		{"foreign host", "https://example.com/wiki/Alan_Turing"},
		{"lookalike host", "https://notwikipedia.org/wiki/Alan_Turing"},
		{"no path", "https://en.wikipedia.org"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TitleFromURL(tt.url); !errors.Is(err, domain.ErrInvalidReference) {
				t.Fatalf("expected invalid reference error, got %v", err)
			}
		})
	}
}
