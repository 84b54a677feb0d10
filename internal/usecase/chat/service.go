// Package chat orchestrates one conversational exchange: retrieve grounding
// chunks, build the prompt, generate the answer, and persist the turn.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/domain"
)

// FallbackAnswer is returned when the generator produces no text.
const FallbackAnswer = "I'm sorry, I wasn't able to generate a response."

// Request is one inbound chat message.
type Request struct {
	Message     string
	SessionID   string
	History     []domain.Turn
	TopK        int
	Model       string
	Temperature *float64
}

// Response is the completed exchange returned to the caller.
type Response struct {
	SessionID string
	Answer    string
	Sources   []domain.Source
	LatencyMS float64
	CreatedAt time.Time
}

// Service runs the retrieve-prompt-generate-persist pipeline.
type Service struct {
	retriever    Retriever
	prompter     Prompter
	generator    Generator
	history      History
	defaultModel string
	log          *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a chat service. defaultModel is used when the request does not
// name one.
func New(
	retriever Retriever, prompter Prompter, generator Generator, history History,
	defaultModel string, log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		retriever:    retriever,
		prompter:     prompter,
		generator:    generator,
		history:      history,
		defaultModel: defaultModel,
		log:          log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Respond answers one chat message and stores the resulting turn pair.
func (s *Service) Respond(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, fmt.Errorf("message must be non-empty: %w", domain.ErrValidation)
	}
	topK := req.TopK
	if topK < 1 {
		topK = 5
	}

	chunks, err := s.retriever.Retrieve(ctx, req.Message, topK)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve context: %w", err)
	}

	contexts := extractContexts(chunks)
	sources := buildSources(chunks)

	prompt := s.prompter.Build(req.Message, contexts, req.History)

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	genStart := time.Now()
	raw, err := s.generator.Generate(ctx, model, prompt, req.Temperature)
	if err != nil {
		return Response{}, fmt.Errorf("generate answer: %w", err)
	}
	latencyMS := float64(time.Since(genStart)) / float64(time.Millisecond)

	answer := strings.TrimSpace(raw)
	if answer == "" {
		answer = FallbackAnswer
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newID()
	}

	userCreatedAt := s.now().UTC()
	// Keeps the assistant message strictly after the user message.
	assistantCreatedAt := userCreatedAt.Add(time.Microsecond)

	user := domain.Message{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		CreatedAt: userCreatedAt,
	}
	assistant := domain.Message{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   answer,
		Sources:   sources,
		Model:     model,
		LatencyMS: latencyMS,
		CreatedAt: assistantCreatedAt,
	}

	if err := s.history.AppendTurn(ctx, user, assistant); err != nil {
		return Response{}, fmt.Errorf("persist turn: %w", err)
	}

	s.log.Info("chat exchange completed",
		zap.String("session_id", sessionID),
		zap.String("model", model),
		zap.Int("retrieved", len(sources)),
		zap.Float64("latency_ms", latencyMS),
	)

	return Response{
		SessionID: sessionID,
		Answer:    answer,
		Sources:   sources,
		LatencyMS: latencyMS,
		CreatedAt: assistantCreatedAt,
	}, nil
}

// extractContexts keeps the non-empty chunk texts in retrieval order.
func extractContexts(chunks []domain.RetrievedChunk) []string {
	contexts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Payload.Content == "" {
			continue
		}
		contexts = append(contexts, chunk.Payload.Content)
	}
	return contexts
}

// buildSources converts retrieved chunks into caller-facing provenance.
func buildSources(chunks []domain.RetrievedChunk) []domain.Source {
	sources := make([]domain.Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, domain.Source{
			Title:      chunk.Payload.Title,
			URL:        chunk.Payload.URL,
			ChunkIndex: chunk.Payload.ChunkIndex,
			Score:      chunk.Score,
			PageID:     chunk.Payload.PageID,
			Topic:      chunk.Payload.Topic,
		})
	}
	return sources
}
