// Package cli implements the leaselens command line: one-shot lease analysis
// and API key administration.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/leaselens/internal/ai"
	"github.com/kiranshivaraju/leaselens/internal/config"
	"github.com/kiranshivaraju/leaselens/internal/docload"
	"github.com/kiranshivaraju/leaselens/internal/extract"
	"github.com/kiranshivaraju/leaselens/internal/lease"
	"github.com/kiranshivaraju/leaselens/internal/logging"
	"github.com/kiranshivaraju/leaselens/internal/prompt"
	"github.com/kiranshivaraju/leaselens/internal/store"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

// Injection points, replaced in tests.
var (
	loadConfig   = config.Load
	newCompleter = ai.NewProvider
	openKeyStore = connectKeyStore
	now          = time.Now
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "leaselens",
	Short: "Analyze residential leases for tenant-unfriendly terms",
	Long: `LeaseLens reads a lease (PDF, DOCX, TXT or Markdown), extracts its key
facts, flags problematic clauses, suggests rewrites and explains tenant rights.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger writes human-readable logs to stderr so stdout stays clean for reports.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(logging.Config{Level: level, Format: "text"}, os.Stderr)
}

// newSession builds a lease session wired to the configured model provider.
func newSession() (*lease.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireAI(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	provider, err := newCompleter(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	prompts, err := prompt.New()
	if err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}

	client := ai.NewClient(provider,
		ai.WithTimeout(cfg.AI.InferenceTimeout),
		ai.WithLogger(logger),
	)
	return lease.NewSession(client,
		lease.WithPrompts(prompts),
		lease.WithExtractor(extract.New(
			extract.WithStrategy(extract.Strategy(cfg.Extract.Strategy)),
			extract.WithLogger(logger),
		)),
		lease.WithSampling(models.SamplingConfig{Temperature: cfg.AI.Temperature, MaxTokens: cfg.AI.MaxTokens}),
		lease.WithLoader(docload.New(docload.WithLogger(logger))),
		lease.WithLogger(logger),
	), nil
}

// loadLease creates a session and loads the document at path into it.
func loadLease(ctx context.Context, cmd *cobra.Command, path string, known *models.LeaseMetadata) (*lease.Session, error) {
	sess, err := newSession()
	if err != nil {
		return nil, err
	}

	result := sess.LoadFile(ctx, path, known)
	if result.Status != models.LoadStatusSuccess {
		return nil, fmt.Errorf("load lease: %s", result.Message)
	}
	cmd.PrintErrln(result.Message)
	return sess, nil
}

// connectKeyStore opens the API-key database and applies migrations.
func connectKeyStore(ctx context.Context) (store.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}
