package domain

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior exchange in the conversation, immutable once built.
type Turn struct {
	Role    Role
	Content string
}

// Formatted renders the turn as "Role: content" for prompt assembly.
func (t Turn) Formatted() string {
	role := string(t.Role)
	if role != "" {
		role = strings.ToUpper(role[:1]) + role[1:]
	}
	return role + ": " + strings.TrimSpace(t.Content)
}

// Source is chunk provenance returned to chat callers.
type Source struct {
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	PageID     int     `json:"page_id"`
	Topic      string  `json:"topic,omitempty"`
}

// Message is a persisted chat-history entry.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Sources   []Source
	Model     string
	LatencyMS float64
	CreatedAt time.Time
}

// SessionSummary describes one stored chat session.
type SessionSummary struct {
	SessionID          string
	Title              string
	MessageCount       int
	LastMessageAt      time.Time
	LastMessageRole    Role
	LastMessagePreview string
}
