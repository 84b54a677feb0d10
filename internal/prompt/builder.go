// Package prompt assembles retrieval-augmented prompts for generation.
package prompt

import (
	"fmt"
	"strings"

	"github.com/atlascope/wikirag/internal/domain"
)

// DefaultSystemPrompt is the standing instruction prepended to every prompt.
const DefaultSystemPrompt = "You are a knowledgeable assistant that prioritizes answering user questions using " +
	"the provided context. When the context does not contain the needed details, draw " +
	"on your broader expertise to offer a clear, accurate answer and optionally mention " +
	"that the response is based on general knowledge."

const defaultAnswerInstructions = "Provide a concise, factual answer grounded in the relevant context. " +
	"Ignore any snippets that do not relate to the user question."

const defaultGeneralKnowledgeInstructions = "No supporting context was retrieved for this question. " +
	"Provide a concise, factual answer based on your general knowledge and note that no sources are available."

// Builder weaves system instructions, history, retrieved context, and the
// user question into one generation prompt. Pure and deterministic: identical
// inputs always produce an identical string.
type Builder struct {
	systemPrompt                 string
	answerInstructions           string
	generalKnowledgeInstructions string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithSystemPrompt overrides the system instruction.
func WithSystemPrompt(s string) Option {
	return func(b *Builder) { b.systemPrompt = s }
}

// WithAnswerInstructions overrides the grounded-answer task instructions.
func WithAnswerInstructions(s string) Option {
	return func(b *Builder) { b.answerInstructions = s }
}

// WithGeneralKnowledgeInstructions overrides the no-context fallback instructions.
func WithGeneralKnowledgeInstructions(s string) Option {
	return func(b *Builder) { b.generalKnowledgeInstructions = s }
}

// NewBuilder creates a prompt builder with default wording.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		systemPrompt:                 DefaultSystemPrompt,
		answerInstructions:           defaultAnswerInstructions,
		generalKnowledgeInstructions: defaultGeneralKnowledgeInstructions,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the prompt. Section order is fixed: system, conversation
// history (only if non-empty), retrieved context (only if non-empty), task
// instructions, user question, generation cue.
func (b *Builder) Build(question string, contexts []string, history []domain.Turn) string {
	sections := []string{"System:\n" + b.systemPrompt}

	if formatted := formatHistory(history); formatted != "" {
		sections = append(sections, "Conversation History:\n"+formatted)
	}

	if len(contexts) > 0 {
		sections = append(sections, "Retrieved Context:\n"+formatContexts(contexts))
	}

	instructions := b.answerInstructions
	if len(contexts) == 0 {
		instructions = b.generalKnowledgeInstructions
	}
	sections = append(sections,
		"Instructions:\n"+instructions,
		"User Question:\n"+strings.TrimSpace(question),
		"Answer:",
	)

	return strings.Join(sections, "\n\n")
}

func formatContexts(contexts []string) string {
	lines := make([]string, len(contexts))
	for i, snippet := range contexts {
		lines[i] = fmt.Sprintf("Context %d:\n%s", i+1, strings.TrimSpace(snippet))
	}
	return strings.Join(lines, "\n\n")
}

func formatHistory(history []domain.Turn) string {
	lines := make([]string, len(history))
	for i, turn := range history {
		lines[i] = turn.Formatted()
	}
	return strings.Join(lines, "\n")
}
