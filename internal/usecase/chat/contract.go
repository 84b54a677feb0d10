package chat

import (
	"context"

	"github.com/atlascope/wikirag/internal/domain"
)

// Retriever fetches the chunks closest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
}

// Prompter assembles the grounding prompt for the generator.
type Prompter interface {
	Build(question string, contexts []string, history []domain.Turn) string
}

// Generator produces the assistant answer from a finished prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, temperature *float64) (string, error)
}

// History persists completed conversation turns.
type History interface {
	AppendTurn(ctx context.Context, user, assistant domain.Message) error
}
