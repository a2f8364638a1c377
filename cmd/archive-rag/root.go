package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"archive-rag/internal/chunker"
	"archive-rag/internal/config"
	"archive-rag/internal/crawler"
	"archive-rag/internal/frontier"
	"archive-rag/internal/indexer"
	"archive-rag/internal/store"
	"archive-rag/internal/tui"
	"archive-rag/internal/vectorindex"
)

func rootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "archive-rag",
		Short:         "Crawl an article archive, index it and answer questions over it",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default: ./config.yaml, then ~/.config/archive-rag/config.yaml)")

	loadConfig := func() (*config.AppConfig, error) {
		if cfgPath != "" {
			return config.Load(cfgPath)
		}
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}

	root.AddCommand(crawlCmd(loadConfig))
	root.AddCommand(indexCmd(loadConfig))
	root.AddCommand(askCmd(loadConfig))
	root.AddCommand(chatCmd(loadConfig))
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func crawlCmd(loadConfig func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Incrementally crawl the archive into the content store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			log := logger()
			tracker := frontier.LoadOrEmpty(cfg.Storage.FrontierFile, log)
			contentStore := store.New(cfg.Storage.RawDir, log)

			c, err := crawler.New(crawler.Config{
				BaseURL:       cfg.Crawler.BaseURL,
				UserAgent:     cfg.Crawler.UserAgent,
				LinkSubstring: cfg.Crawler.LinkSubstring,
				Concurrency:   cfg.Crawler.Concurrency,
				FetchDelay:    time.Duration(cfg.Crawler.FetchDelayMs) * time.Millisecond,
				Timeout:       time.Duration(cfg.Crawler.TimeoutSecs) * time.Second,
			}, tracker, contentStore, log)
			if err != nil {
				return err
			}

			stats, err := c.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "crawled %d pages, %d new, %d skipped, %d failed\n",
				stats.Pages, stats.Fetched, stats.Skipped, stats.Failed)
			return nil
		},
	}
}

func indexCmd(loadConfig func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from the content store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			log := logger()

			docs, err := store.New(cfg.Storage.RawDir, log).LoadAll()
			if err != nil {
				return fmt.Errorf("load documents: %w", err)
			}

			emb, err := newEmbedder(cfg)
			if err != nil {
				return err
			}
			idx, err := newIndex(ctx, cfg)
			if err != nil {
				return err
			}

			ix := indexer.New(
				chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
				emb, idx, cfg.Embedder.BatchSize, log)
			stats, err := ix.Build(ctx, docs, cfg.Storage.IndexFile)
			if errors.Is(err, indexer.ErrNoDocuments) {
				return fmt.Errorf("%w: nothing in %s — run `archive-rag crawl` first", err, cfg.Storage.RawDir)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %d chunks\n", stats.Documents, stats.Chunks)
			return nil
		},
	}
}

func askCmd(loadConfig func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question against the indexed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			bot, err := newBot(ctx, cfg)
			if err != nil {
				return err
			}
			answer, err := bot.Ask(ctx, args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			for _, src := range answer.Sources {
				fmt.Fprintf(cmd.OutOrStdout(), "  source: %s (%s)\n", src.Title, src.ParentURI)
			}
			return nil
		},
	}
}

func chatCmd(loadConfig func() (*config.AppConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question-answering session",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			bot, err := newBot(ctx, cfg)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(tui.New(bot)).Run()
			return err
		},
	}
}

// loadIndexOrFail loads the persisted index once, before any query runs.
// A missing index is fatal for the query path: the system cannot answer
// without one.
func loadIndexOrFail(idx vectorindex.Index, path string) error {
	if err := idx.Load(path); err != nil {
		if errors.Is(err, vectorindex.ErrIndexMissing) {
			return fmt.Errorf("%w at %s — run `archive-rag index` first", err, path)
		}
		return fmt.Errorf("load index: %w", err)
	}
	return nil
}
