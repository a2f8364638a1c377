package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"archive-rag/internal/completion"
	"archive-rag/internal/config"
	"archive-rag/internal/embedding"
	"archive-rag/internal/embedding/openai"
	"archive-rag/internal/retrieval"
	"archive-rag/internal/session"
	"archive-rag/internal/vectorindex"
	"archive-rag/internal/vectorindex/chromem"
	"archive-rag/internal/vectorindex/memory"
	"archive-rag/internal/vectorindex/pgvector"
	"archive-rag/internal/vectorindex/qdrant"
)

func logger() *slog.Logger { return slog.Default() }

func newEmbedder(cfg *config.AppConfig) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai", "":
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func newIndex(ctx context.Context, cfg *config.AppConfig) (vectorindex.Index, error) {
	switch cfg.Index.Type {
	case "memory", "":
		return memory.New(), nil
	case "chromem":
		return chromem.New()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.New(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	case "pgvector":
		if cfg.Index.Pgvector == nil {
			return nil, fmt.Errorf("pgvector config missing")
		}
		return pgvector.New(ctx, cfg.Index.Pgvector.DSN, cfg.Index.Pgvector.Table)
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Type)
	}
}

// newBot assembles the full query path: loaded index, retrieval engine and
// completion client.
func newBot(ctx context.Context, cfg *config.AppConfig) (*session.Bot, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := loadIndexOrFail(idx, cfg.Storage.IndexFile); err != nil {
		return nil, err
	}

	engine := retrieval.New(emb, idx, retrieval.NewLexicalScorer(), retrieval.Config{
		TopK:     cfg.Retrieval.TopK,
		FinalK:   cfg.Retrieval.FinalK,
		Rerank:   cfg.Retrieval.Rerank,
		MinScore: cfg.Retrieval.MinScore,
	})

	counter, err := completion.NewTiktokenCounter()
	if err != nil {
		return nil, err
	}
	completer, err := completion.NewClient(completion.Config{
		BaseURL:          cfg.Completion.OpenAI.BaseURL,
		APIKeyEnv:        cfg.Completion.OpenAI.APIKeyEnv,
		Model:            cfg.Completion.OpenAI.Model,
		Timeout:          time.Duration(cfg.Completion.OpenAI.TimeoutSecs) * time.Second,
		MaxContextTokens: cfg.Completion.MaxContextTokens,
	}, counter)
	if err != nil {
		return nil, err
	}

	return session.NewBot(engine, completer, cfg.Completion.SystemPrompt, logger()), nil
}
