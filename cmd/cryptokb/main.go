package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"cryptokb/internal/chat"
	"cryptokb/internal/config"
	"cryptokb/internal/dedup"
	"cryptokb/internal/domain"
	"cryptokb/internal/embedding"
	"cryptokb/internal/embedding/local"
	"cryptokb/internal/embedding/openai"
	"cryptokb/internal/ingest"
	"cryptokb/internal/kb"
	"cryptokb/internal/loaders/pdf"
	"cryptokb/internal/loaders/web"
	"cryptokb/internal/tui"
	"cryptokb/internal/vectorstore"
	"cryptokb/internal/vectorstore/memory"
	"cryptokb/internal/vectorstore/qdrant"
	"cryptokb/internal/vectorstore/sqlite"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "cryptokb",
		Short: "Vector-indexed knowledge base with dedup ingestion",
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default: ./config.yaml, then ~/.config/cryptokb/config.yaml)")

	var (
		pdfDir    string
		urls      []string
		texts     []string
		clearBase bool
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load PDFs, URLs and raw texts into the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cfgPath)
			if err != nil {
				return err
			}
			store, base, err := buildKB(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if clearBase {
				if err := base.Clear(); err != nil {
					return err
				}
			}

			// Command-line inputs take precedence over the config file.
			opts := ingest.Options{
				PDFDir: cfg.Ingest.PDFDir,
				URLs:   cfg.Ingest.URLs,
				Texts:  texts,
			}
			if pdfDir != "" {
				opts.PDFDir = pdfDir
			}
			if len(urls) > 0 {
				opts.URLs = urls
			}

			timeout := time.Duration(cfg.Chat.TimeoutSecs) * time.Second
			manager := ingest.NewManager(base, pdf.New(logger), web.New(timeout, logger), logger)
			stats := manager.LoadAll(opts)

			fmt.Printf("PDFs loaded:  %d (skipped %d)\n", stats.PDFsLoaded, stats.PDFsSkipped)
			fmt.Printf("URLs loaded:  %d (skipped %d)\n", stats.URLsLoaded, stats.URLsSkipped)
			fmt.Printf("Texts loaded: %d\n", stats.TextsLoaded)
			return nil
		},
	}
	ingestCmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "Directory of PDF files to ingest")
	ingestCmd.Flags().StringArrayVar(&urls, "url", nil, "URL to ingest (repeatable)")
	ingestCmd.Flags().StringArrayVar(&texts, "text", nil, "Raw text to ingest (repeatable)")
	ingestCmd.Flags().BoolVar(&clearBase, "clear", false, "Clear the knowledge base before ingesting")

	var topK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge base and print ranked snippets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cfgPath)
			if err != nil {
				return err
			}
			store, base, err := buildKB(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			query := args[0]
			results := base.Search(query, topK)
			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, r := range results {
				fmt.Printf("--- result %d (score %.4f) ---\n%s\n\n", i+1, r.Score, preview(r.Content, 400))
			}
			return nil
		},
	}
	searchCmd.Flags().IntVarP(&topK, "top-k", "k", kb.DefaultSearchK, "Number of results")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat grounded in the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cfgPath)
			if err != nil {
				return err
			}
			store, base, err := buildKB(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			model, err := chat.NewOpenAIModel(chat.OpenAIConfig{
				BaseURL:     cfg.Chat.BaseURL,
				APIKeyEnv:   cfg.Chat.APIKeyEnv,
				Model:       cfg.Chat.Model,
				Temperature: cfg.Chat.Temperature,
				Timeout:     time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
			})
			if err != nil {
				return err
			}
			assistant := chat.New(base, model, logger)
			_, err = tea.NewProgram(tui.New(assistant)).Run()
			return err
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Destroy and recreate the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cfgPath)
			if err != nil {
				return err
			}
			store, base, err := buildKB(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := base.Clear(); err != nil {
				return err
			}
			fmt.Println("Knowledge base cleared.")
			return nil
		},
	}

	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List ingested sources by type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cfgPath)
			if err != nil {
				return err
			}
			store, base, err := buildKB(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			total, err := base.Count()
			if err != nil {
				return err
			}
			fmt.Printf("%d records\n", total)
			for _, t := range []struct {
				label string
				kind  domain.SourceType
			}{
				{"PDFs", domain.SourcePDF}, {"URLs", domain.SourceURL}, {"Texts", domain.SourceText},
			} {
				sources := base.ExistingSources(t.kind)
				fmt.Printf("\n%s (%d):\n", t.label, len(sources))
				for _, s := range dedup.SortedSources(sources) {
					fmt.Printf("  - %s\n", s)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(ingestCmd, searchCmd, chatCmd, clearCmd, sourcesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cfgPath string) (*config.AppConfig, *slog.Logger, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildKB assembles the embedder, the store backend and the knowledge base
// from config. The returned store handle is the single owner of the
// persistence location; callers must Close it.
func buildKB(cfg *config.AppConfig, logger *slog.Logger) (vectorstore.Store, *kb.KnowledgeBase, error) {
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "openai", "":
		oa := cfg.Embedder.OpenAI
		if oa == nil {
			oa = &config.OpenAIEmbedderConfig{}
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   oa.BaseURL,
			APIKeyEnv: oa.APIKeyEnv,
			Model:     oa.Model,
			Timeout:   time.Duration(oa.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "local":
		emb = local.New(cfg.Embedder.Dimension)
	default:
		return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var store vectorstore.Store
	switch cfg.Store.Type {
	case "sqlite", "":
		s, err := sqlite.Open(cfg.Store.Path, emb, logger)
		if err != nil {
			// Total inaccessibility of the persistence layer is fatal: nothing
			// downstream can work without a store.
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		store = s
	case "memory":
		store = memory.New(emb)
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			return nil, nil, fmt.Errorf("qdrant store config missing")
		}
		store = qdrant.New(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
		}, emb)
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.Store.Type)
	}

	return store, kb.New(store, cfg.Dedup.Threshold, logger), nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
