package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// CrawlerConfig configures the incremental archive crawler.
type CrawlerConfig struct {
	BaseURL       string `yaml:"base_url" env:"ARCHIVE_BASE_URL" validate:"required,url"`
	UserAgent     string `yaml:"user_agent"`
	FetchDelayMs  int    `yaml:"fetch_delay_ms" validate:"gte=0"`
	Concurrency   int    `yaml:"concurrency" validate:"gte=1"`
	TimeoutSecs   int    `yaml:"timeout_secs" validate:"gte=1"`
	LinkSubstring string `yaml:"link_substring"`
}

// StorageConfig holds the on-disk locations of crawl and index artifacts.
type StorageConfig struct {
	RawDir       string `yaml:"raw_dir" env:"ARCHIVE_RAW_DIR"`
	FrontierFile string `yaml:"frontier_file" env:"ARCHIVE_FRONTIER_FILE"`
	IndexFile    string `yaml:"index_file" env:"ARCHIVE_INDEX_FILE"`
}

// ChunkerConfig configures how document bodies are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size" validate:"gte=1"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0"`
}

// OpenAIConfig holds connection details for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Type      string        `yaml:"type" validate:"oneof=openai"`
	BatchSize int           `yaml:"batch_size" validate:"gte=1"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PgvectorConfig contains connection details for a pgvector-backed index.
type PgvectorConfig struct {
	DSN   string `yaml:"dsn" env:"PGVECTOR_DSN"`
	Table string `yaml:"table"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Type     string          `yaml:"type" validate:"oneof=memory chromem qdrant pgvector"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pgvector *PgvectorConfig `yaml:"pgvector,omitempty"`
}

// RetrievalConfig fixes the retrieval policy at construction time.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" validate:"gte=1"`
	FinalK   int     `yaml:"final_k" validate:"gte=1"`
	Rerank   bool    `yaml:"rerank"`
	MinScore float32 `yaml:"min_score"`
}

// CompletionConfig configures the answer-generation provider.
type CompletionConfig struct {
	OpenAI           OpenAIConfig `yaml:"openai"`
	MaxContextTokens int          `yaml:"max_context_tokens" validate:"gte=1"`
	SystemPrompt     string       `yaml:"system_prompt"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Storage    StorageConfig    `yaml:"storage"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Index      IndexConfig      `yaml:"index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Completion CompletionConfig `yaml:"completion"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Environment variables override file values, and the
// final config is validated before use.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyConfigDefaults(cfg)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/archive-rag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "archive-rag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Crawler: CrawlerConfig{
			BaseURL:       "https://www.founderstribune.org/",
			UserAgent:     "archive-rag/1.0",
			FetchDelayMs:  300,
			Concurrency:   4,
			TimeoutSecs:   15,
			LinkSubstring: "/p/",
		},
		Storage: StorageConfig{
			RawDir:       "data/raw",
			FrontierFile: "data/seen.json",
			IndexFile:    "data/index/archive.idx",
		},
		Chunker:  ChunkerConfig{ChunkSize: 500, ChunkOverlap: 50},
		Embedder: EmbedderConfig{Type: "openai", BatchSize: 32},
		Index:    IndexConfig{Type: "memory"},
		Retrieval: RetrievalConfig{
			TopK:     20,
			FinalK:   3,
			Rerank:   true,
			MinScore: 0,
		},
		Completion: CompletionConfig{
			MaxContextTokens: 3000,
		},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}
	applyOpenAIDefaults(&cfg.Completion.OpenAI, "gpt-4o-mini")
	if cfg.Completion.MaxContextTokens == 0 {
		cfg.Completion.MaxContextTokens = 3000
	}
	if cfg.Completion.SystemPrompt == "" {
		cfg.Completion.SystemPrompt = "You answer questions about an article archive. " +
			"Ground every answer in the provided context excerpts and cite their sources. " +
			"If the context does not contain the answer, say you don't know."
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil && cfg.Index.Qdrant.Collection == "" {
		cfg.Index.Qdrant.Collection = "archive"
	}
	if cfg.Index.Type == "pgvector" && cfg.Index.Pgvector != nil && cfg.Index.Pgvector.Table == "" {
		cfg.Index.Pgvector.Table = "archive_chunks"
	}
	if cfg.Retrieval.TopK < cfg.Retrieval.FinalK {
		cfg.Retrieval.TopK = cfg.Retrieval.FinalK
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}
