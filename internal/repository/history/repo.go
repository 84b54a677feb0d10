// Package history persists chat sessions and their message logs in Redis.
//
// Layout per session:
//
//	<prefix>session:{id}:messages  list of JSON message documents, append order
//	<prefix>session:{id}           hash with title / created_at / updated_at
//	<prefix>sessions               sorted set of session ids scored by last activity
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atlascope/wikirag/internal/domain"
)

// DefaultTitle is assigned to sessions that were never renamed.
const DefaultTitle = "New Conversation"

// store is the consumer interface for chat history (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRem(ctx context.Context, key string, member string) error
}

// Repo implements usecase/chat.History.
type Repo struct {
	store  store
	prefix string
}

// New creates a chat-history repository. All keys are namespaced by prefix.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) messagesKey(sessionID string) string {
	return r.prefix + "session:" + sessionID + ":messages"
}

func (r *Repo) sessionKey(sessionID string) string {
	return r.prefix + "session:" + sessionID
}

func (r *Repo) indexKey() string {
	return r.prefix + "sessions"
}

// AppendTurn stores a user/assistant message pair and refreshes the session
// index. Session metadata is created on first write and never overwritten here.
func (r *Repo) AppendTurn(ctx context.Context, user, assistant domain.Message) error {
	if user.SessionID == "" || user.SessionID != assistant.SessionID {
		return fmt.Errorf("append turn: session id mismatch: %w", domain.ErrValidation)
	}
	sessionID := user.SessionID

	userDoc, err := encodeMessage(user)
	if err != nil {
		return fmt.Errorf("marshal user message: %w", err)
	}
	assistantDoc, err := encodeMessage(assistant)
	if err != nil {
		return fmt.Errorf("marshal assistant message: %w", err)
	}

	if err := r.store.RPush(ctx, r.messagesKey(sessionID), string(userDoc), string(assistantDoc)); err != nil {
		return fmt.Errorf("append messages %s: %w", sessionID, err)
	}

	exists, err := r.store.Exists(ctx, r.sessionKey(sessionID))
	if err != nil {
		return fmt.Errorf("check session %s: %w", sessionID, err)
	}
	if !exists {
		fields := map[string]string{
			"title":      DefaultTitle,
			"created_at": assistant.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := r.store.HSet(ctx, r.sessionKey(sessionID), fields); err != nil {
			return fmt.Errorf("create session metadata %s: %w", sessionID, err)
		}
	}

	score := float64(assistant.CreatedAt.UTC().UnixMicro())
	if err := r.store.ZAdd(ctx, r.indexKey(), score, sessionID); err != nil {
		return fmt.Errorf("index session %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions returns up to limit sessions ordered by most recent activity.
func (r *Repo) ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := r.store.ZRevRange(ctx, r.indexKey(), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]domain.SessionSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := r.summarize(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("summarize session %s: %w", id, err)
		}
		if summary == nil {
			continue
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// summarize builds a SessionSummary from the stored log and metadata. Returns
// nil when the session has no messages (stale index entry).
func (r *Repo) summarize(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	count, err := r.store.LLen(ctx, r.messagesKey(sessionID))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	last, err := r.store.LRange(ctx, r.messagesKey(sessionID), -1, -1)
	if err != nil {
		return nil, err
	}

	summary := domain.SessionSummary{
		SessionID:    sessionID,
		Title:        DefaultTitle,
		MessageCount: int(count),
	}

	meta, err := r.store.HGetAll(ctx, r.sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(meta["title"]); title != "" {
		summary.Title = title
	}

	if len(last) > 0 {
		msg, err := decodeMessage(last[0])
		if err != nil {
			return nil, err
		}
		summary.LastMessageAt = msg.CreatedAt
		summary.LastMessageRole = msg.Role
		summary.LastMessagePreview = strings.TrimSpace(msg.Content)
	}
	return &summary, nil
}

// Messages returns all messages of a session in chronological order.
func (r *Repo) Messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	raw, err := r.store.LRange(ctx, r.messagesKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("fetch messages %s: %w", sessionID, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, doc := range raw {
		msg, err := decodeMessage(doc)
		if err != nil {
			return nil, fmt.Errorf("decode message in %s: %w", sessionID, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Rename updates the session title and returns the refreshed summary. The
// metadata upsert happens even for unknown sessions, but a session with no
// messages still reports not found.
func (r *Repo) Rename(ctx context.Context, sessionID, title string) (domain.SessionSummary, error) {
	fields := map[string]string{
		"title":      title,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, r.sessionKey(sessionID), fields); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("update session metadata %s: %w", sessionID, err)
	}

	summary, err := r.summarize(ctx, sessionID)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("summarize session %s: %w", sessionID, err)
	}
	if summary == nil {
		return domain.SessionSummary{}, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	return *summary, nil
}

// Delete removes a session's messages, metadata, and index entry.
func (r *Repo) Delete(ctx context.Context, sessionID string) error {
	count, err := r.store.LLen(ctx, r.messagesKey(sessionID))
	if err != nil {
		return fmt.Errorf("count messages %s: %w", sessionID, err)
	}
	if count == 0 {
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}

	if err := r.store.Del(ctx, r.messagesKey(sessionID)); err != nil {
		return fmt.Errorf("delete messages %s: %w", sessionID, err)
	}
	if err := r.store.Del(ctx, r.sessionKey(sessionID)); err != nil {
		return fmt.Errorf("delete session metadata %s: %w", sessionID, err)
	}
	if err := r.store.ZRem(ctx, r.indexKey(), sessionID); err != nil {
		return fmt.Errorf("deindex session %s: %w", sessionID, err)
	}
	return nil
}
