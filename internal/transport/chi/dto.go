package chi

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/atlascope/wikirag/internal/domain"
	chatuc "github.com/atlascope/wikirag/internal/usecase/chat"
	ingestuc "github.com/atlascope/wikirag/internal/usecase/ingest"
)

var languageRe = regexp.MustCompile(`^[a-z]{2}$`)

// historyTurn is one prior exchange supplied by the caller.
type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the inbound payload for POST /chat.
type chatRequest struct {
	Message     string        `json:"message"`
	SessionID   string        `json:"session_id,omitempty"`
	TopK        *int          `json:"top_k,omitempty"`
	History     []historyTurn `json:"history,omitempty"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// toUsecase validates the request and applies defaults.
func (r *chatRequest) toUsecase() (chatuc.Request, error) {
	message := strings.TrimSpace(r.Message)
	if message == "" {
		return chatuc.Request{}, fmt.Errorf("message must be non-empty")
	}

	topK := 5
	if r.TopK != nil {
		if *r.TopK < 1 || *r.TopK > 10 {
			return chatuc.Request{}, fmt.Errorf("top_k must be between 1 and 10")
		}
		topK = *r.TopK
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return chatuc.Request{}, fmt.Errorf("temperature must be between 0 and 1")
	}

	history := make([]domain.Turn, 0, len(r.History))
	for i, turn := range r.History {
		role := domain.Role(turn.Role)
		if role != domain.RoleUser && role != domain.RoleAssistant {
			return chatuc.Request{}, fmt.Errorf("history[%d]: role must be user or assistant", i)
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			return chatuc.Request{}, fmt.Errorf("history[%d]: content must be non-empty", i)
		}
		history = append(history, domain.Turn{Role: role, Content: content})
	}

	return chatuc.Request{
		Message:     message,
		SessionID:   r.SessionID,
		History:     history,
		TopK:        topK,
		Model:       r.Model,
		Temperature: r.Temperature,
	}, nil
}

// chatResponse is the payload returned by POST /chat.
type chatResponse struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	Sources   []domain.Source `json:"sources"`
	LatencyMS float64         `json:"latency_ms"`
	CreatedAt time.Time       `json:"created_at"`
}

func chatResponseFrom(resp chatuc.Response) chatResponse {
	sources := resp.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return chatResponse{
		SessionID: resp.SessionID,
		Answer:    resp.Answer,
		Sources:   sources,
		LatencyMS: resp.LatencyMS,
		CreatedAt: resp.CreatedAt,
	}
}

// sessionSummaryResponse is one entry of GET /chat/sessions.
type sessionSummaryResponse struct {
	SessionID          string    `json:"session_id"`
	Title              string    `json:"title"`
	MessageCount       int       `json:"message_count"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessageRole    string    `json:"last_message_role,omitempty"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
}

func sessionSummaryFrom(s domain.SessionSummary) sessionSummaryResponse {
	return sessionSummaryResponse{
		SessionID:          s.SessionID,
		Title:              s.Title,
		MessageCount:       s.MessageCount,
		LastMessageAt:      s.LastMessageAt,
		LastMessageRole:    string(s.LastMessageRole),
		LastMessagePreview: s.LastMessagePreview,
	}
}

// storedMessageResponse is one message of GET /chat/sessions/{id}/messages.
type storedMessageResponse struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []domain.Source `json:"sources"`
	LatencyMS float64         `json:"latency_ms,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type sessionMessagesResponse struct {
	SessionID string                  `json:"session_id"`
	Messages  []storedMessageResponse `json:"messages"`
}

func sessionMessagesFrom(sessionID string, messages []domain.Message) sessionMessagesResponse {
	out := make([]storedMessageResponse, 0, len(messages))
	for _, m := range messages {
		sources := m.Sources
		if sources == nil {
			sources = []domain.Source{}
		}
		out = append(out, storedMessageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Sources:   sources,
			LatencyMS: m.LatencyMS,
			CreatedAt: m.CreatedAt,
		})
	}
	return sessionMessagesResponse{SessionID: sessionID, Messages: out}
}

// sessionUpdateRequest is the inbound payload for PATCH /chat/sessions/{id}.
type sessionUpdateRequest struct {
	Title string `json:"title"`
}

func (r *sessionUpdateRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title must be non-empty")
	}
	return nil
}

// wikipediaIngestRequest is the inbound payload for POST /ingest/wikipedia.
type wikipediaIngestRequest struct {
	Topics           []string `json:"topics"`
	MaxPagesPerTopic *int     `json:"max_pages_per_topic,omitempty"`
	Language         string   `json:"language,omitempty"`
	ChunkSize        *int     `json:"chunk_size,omitempty"`
	ChunkOverlap     *int     `json:"chunk_overlap,omitempty"`
	DryRun           bool     `json:"dry_run,omitempty"`
}

func (r *wikipediaIngestRequest) toUsecase() (ingestuc.Request, error) {
	topics := trimNonEmpty(r.Topics)
	if len(topics) == 0 {
		return ingestuc.Request{}, fmt.Errorf("at least one non-empty topic must be provided")
	}

	maxPages := 5
	if r.MaxPagesPerTopic != nil {
		if *r.MaxPagesPerTopic < 1 || *r.MaxPagesPerTopic > 20 {
			return ingestuc.Request{}, fmt.Errorf("max_pages_per_topic must be between 1 and 20")
		}
		maxPages = *r.MaxPagesPerTopic
	}

	language, err := validLanguage(r.Language)
	if err != nil {
		return ingestuc.Request{}, err
	}

	chunkSize, chunkOverlap, err := chunkParams(r.ChunkSize, r.ChunkOverlap)
	if err != nil {
		return ingestuc.Request{}, err
	}

	return ingestuc.Request{
		Topics:           topics,
		MaxPagesPerTopic: maxPages,
		Language:         language,
		ChunkSize:        chunkSize,
		ChunkOverlap:     chunkOverlap,
		DryRun:           r.DryRun,
	}, nil
}

// urlIngestRequest is the inbound payload for POST /ingest/urls.
type urlIngestRequest struct {
	URLs         []string `json:"urls"`
	Language     string   `json:"language,omitempty"`
	ChunkSize    *int     `json:"chunk_size,omitempty"`
	ChunkOverlap *int     `json:"chunk_overlap,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

func (r *urlIngestRequest) toUsecase() (ingestuc.URLRequest, error) {
	urls := trimNonEmpty(r.URLs)
	if len(urls) == 0 {
		return ingestuc.URLRequest{}, fmt.Errorf("at least one non-empty url must be provided")
	}

	language, err := validLanguage(r.Language)
	if err != nil {
		return ingestuc.URLRequest{}, err
	}

	chunkSize, chunkOverlap, err := chunkParams(r.ChunkSize, r.ChunkOverlap)
	if err != nil {
		return ingestuc.URLRequest{}, err
	}

	return ingestuc.URLRequest{
		URLs:         urls,
		Language:     language,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		DryRun:       r.DryRun,
	}, nil
}

// ingestSummaryResponse is returned by both ingestion endpoints.
type ingestSummaryResponse struct {
	Topics         []string `json:"topics"`
	ProcessedPages int      `json:"processed_pages"`
	EmbeddedChunks int      `json:"embedded_chunks"`
	SkippedPages   int      `json:"skipped_pages"`
	DryRun         bool     `json:"dry_run"`
}

func ingestSummaryFrom(s ingestuc.Summary) ingestSummaryResponse {
	return ingestSummaryResponse{
		Topics:         s.Topics,
		ProcessedPages: s.ProcessedPages,
		EmbeddedChunks: s.EmbeddedChunks,
		SkippedPages:   s.SkippedPages,
		DryRun:         s.DryRun,
	}
}

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validLanguage(language string) (string, error) {
	if language == "" {
		return "en", nil
	}
	if !languageRe.MatchString(language) {
		return "", fmt.Errorf("language must be a two-letter lowercase code")
	}
	return language, nil
}

func chunkParams(size, overlap *int) (int, int, error) {
	chunkSize := 400
	if size != nil {
		if *size < 100 || *size > 2000 {
			return 0, 0, fmt.Errorf("chunk_size must be between 100 and 2000")
		}
		chunkSize = *size
	}

	chunkOverlap := 40
	if overlap != nil {
		if *overlap < 0 || *overlap > 400 {
			return 0, 0, fmt.Errorf("chunk_overlap must be between 0 and 400")
		}
		chunkOverlap = *overlap
	}

	if chunkOverlap >= chunkSize {
		return 0, 0, fmt.Errorf("chunk_overlap must be smaller than chunk_size")
	}
	return chunkSize, chunkOverlap, nil
}
