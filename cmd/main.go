package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/chromemdb"
	"lecture-rag/internal/config"
	"lecture-rag/internal/db"
	"lecture-rag/internal/embedding"
	"lecture-rag/internal/figures"
	"lecture-rag/internal/helper"
	"lecture-rag/internal/llmservice"
	"lecture-rag/internal/parser"
	"lecture-rag/internal/rag"
)

const (
	defaultConfigPath = "./configs/config.yaml"
	defaultEnvPath    = ".env"
)

var (
	configPath string
	envPath    string
	cfg        *config.Config
)

// store is what the commands need from either backend.
type store interface {
	rag.VectorStore
	Count(ctx context.Context) (int, int, error)
	Drop(ctx context.Context) error
}

func main() {
	root := &cobra.Command{
		Use:           "lecture-rag",
		Short:         "Question answering over lecture documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configPath, envPath)
			if err != nil {
				return err
			}
			setupLogger(cfg.Log)
			log.Debug().Interface("config", cfg).Msg("Loaded config")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")
	root.PersistentFlags().StringVar(&envPath, "env", defaultEnvPath, "path to a .env file")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newAskCmd(),
		newInitSchemaCmd(),
		newExportCmd(),
		newCompareTitlesCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func setupLogger(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if lc.Console {
		zerolog.TimeFieldFormat = time.RFC3339
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}

func openStore(ctx context.Context) (store, error) {
	switch cfg.Store.Driver {
	case "pgvector":
		pg, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		if !cfg.Store.InMemory {
			if err := helper.CreateFolder(cfg.Store.Path); err != nil {
				return nil, fmt.Errorf("failed to create store folder: %w", err)
			}
		}
		vdb, err := chromemdb.NewVectorDBManager(cfg.Store.Path, cfg.Store.Collection, cfg.Store.InMemory, cfg.Store.Compress)
		if err != nil {
			return nil, err
		}
		return vdb, nil
	}
}

func newBackoff() *backoff.Controller {
	return backoff.New(cfg.Backoff.MaxRetries, cfg.Backoff.BaseDelay)
}

func newFigureStore() *figures.Store {
	return figures.NewStore(cfg.RAG.FigureDir, cfg.RAG.FigureURLPrefix, cfg.Server.StaticBaseURL)
}

func newIndexer(st store) (*rag.Indexer, error) {
	embedder, err := embedding.New(cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}

	var opts []rag.IndexerOption
	if cfg.RAG.FiguresEnabled {
		opts = append(opts, rag.WithFigures(
			figures.NewExtractor(cfg.RAG.MaxFiguresPerPage, cfg.RAG.MaxFigureDim),
			newFigureStore(),
		))
		if cfg.RAG.Captions {
			vision, err := llmservice.New(cfg.VisionLLM)
			if err != nil {
				return nil, fmt.Errorf("failed to create vision model: %w", err)
			}
			opts = append(opts, rag.WithCaptions(vision, cfg.RAG.CaptionDelay))
		}
	}

	chunker := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	return rag.NewIndexer(st, embedder, newBackoff(), chunker, opts...), nil
}

func newComposer(st store) (*rag.Composer, error) {
	embedder, err := embedding.New(cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	generator, err := llmservice.New(cfg.InferenceLLM)
	if err != nil {
		return nil, err
	}
	ctrl := newBackoff()
	retriever := rag.NewRetriever(st, embedder, ctrl, cfg.RAG.TopK, cfg.RAG.Alpha)
	return rag.NewComposer(retriever, generator, newFigureStore(), ctrl), nil
}
