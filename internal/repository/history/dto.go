package history

import (
	"encoding/json"
	"time"

	"github.com/atlascope/wikirag/internal/domain"
)

// storedMessage is the JSON document appended to a session's message log.
type storedMessage struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []domain.Source `json:"sources,omitempty"`
	Model     string          `json:"model,omitempty"`
	LatencyMS float64         `json:"latency_ms,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func encodeMessage(m domain.Message) ([]byte, error) {
	return json.Marshal(storedMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Sources:   m.Sources,
		Model:     m.Model,
		LatencyMS: m.LatencyMS,
		CreatedAt: m.CreatedAt.UTC(),
	})
}

func decodeMessage(raw string) (domain.Message, error) {
	var doc storedMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        doc.ID,
		SessionID: doc.SessionID,
		Role:      domain.Role(doc.Role),
		Content:   doc.Content,
		Sources:   doc.Sources,
		Model:     doc.Model,
		LatencyMS: doc.LatencyMS,
		CreatedAt: doc.CreatedAt,
	}, nil
}
