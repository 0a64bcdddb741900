package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/config"
	"document-qa/internal/fetcher"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/rag"
)

const configFilePath = "./configs/config.yaml"

var (
	cfg        *config.Config
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Ask questions about documents and web pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return setupLogger(cfg.Log.Level, logFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(chunkCmd, ingestCmd, askCmd, chatCmd)
}

func setupLogger(level, file string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339}).With().Caller().Logger()
	}
	return nil
}

func newSession() (*rag.Session, error) {
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	llm, err := llmservice.New(cfg, cfg.APIKey())
	if err != nil {
		return nil, err
	}
	return rag.NewSession(cfg, llm)
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// ingest adds every target to the session. URLs rejected as non-public are skipped;
// any other failure aborts.
func ingest(ctx context.Context, s *rag.Session, targets []string) ([]*models.Document, error) {
	var docs []*models.Document
	for _, target := range targets {
		if isURL(target) {
			doc, err := s.IngestURL(ctx, target)
			if errors.Is(err, fetcher.ErrInvalidURL) {
				// IngestURL has already logged the reason
				continue
			}
			if err != nil {
				return docs, err
			}
			docs = append(docs, doc)
			continue
		}
		added, err := s.IngestFiles(ctx, target)
		docs = append(docs, added...)
		if err != nil {
			return docs, err
		}
	}
	return docs, nil
}
