// Package session owns the conversation state and ties retrieval to the
// completion provider. The retrieval core never sees or mutates history;
// turns are passed by value into each completion call.
package session

import (
	"context"
	"log/slog"

	"archive-rag/internal/completion"
	"archive-rag/internal/domain"
	"archive-rag/internal/retrieval"
)

// FallbackAnswer is returned when retrieval produces no context.
const FallbackAnswer = "I don't have anything in the archive about that."

// History is the append-only conversation log for one session.
type History struct {
	turns []domain.Turn
}

// Append records a turn.
func (h *History) Append(role domain.Role, text string) {
	h.turns = append(h.turns, domain.Turn{Role: role, Text: text})
}

// Turns returns a copy of the recorded turns.
func (h *History) Turns() []domain.Turn {
	out := make([]domain.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Answer is a grounded response with its cited sources.
type Answer struct {
	Text    string
	Sources []domain.Chunk
}

// Bot answers questions by assembling retrieval context and calling the
// completion provider.
type Bot struct {
	engine    *retrieval.Engine
	completer completion.Completer
	system    string
	log       *slog.Logger
}

// NewBot wires a retrieval engine to a completion provider.
func NewBot(engine *retrieval.Engine, completer completion.Completer, systemPrompt string, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{engine: engine, completer: completer, system: systemPrompt, log: log}
}

// Ask retrieves context for the question and generates an answer. With no
// retrieved context the bot returns the fallback answer without calling
// the provider.
func (b *Bot) Ask(ctx context.Context, question string, turns []domain.Turn) (Answer, error) {
	results, err := b.engine.Context(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	if len(results) == 0 {
		b.log.Info("no context retrieved", "question", question)
		return Answer{Text: FallbackAnswer}, nil
	}

	text, err := b.completer.Complete(ctx, b.system, turns, question, results)
	if err != nil {
		return Answer{}, err
	}
	sources := make([]domain.Chunk, len(results))
	for i, r := range results {
		sources[i] = r.Chunk
	}
	return Answer{Text: text, Sources: sources}, nil
}
