package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lecture-rag/internal/chromemdb"
	"lecture-rag/internal/config"
	"lecture-rag/internal/helper"
	"lecture-rag/internal/rag"
	"lecture-rag/internal/report"
	"lecture-rag/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /chat and the figure files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			composer, err := newComposer(st)
			if err != nil {
				return err
			}
			if err := helper.CreateFolder(cfg.RAG.FigureDir); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           server.New(cfg.Server, composer, st),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shut down server")
				}
			}()

			log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Driver).Msg("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		},
	}
}

func newIndexCmd() *cobra.Command {
	var dir, file string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a document folder or a single document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (dir == "") == (file == "") {
				return errors.New("exactly one of --dir or --file is required")
			}
			ctx := cmd.Context()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			indexer, err := newIndexer(st)
			if err != nil {
				return err
			}

			var reports []*rag.IndexReport
			if dir != "" {
				reports, err = indexer.IndexDirectory(ctx, dir)
			} else {
				if err = st.EnsureSchema(ctx); err != nil {
					return err
				}
				var r *rag.IndexReport
				if r, err = indexer.IndexFile(ctx, file); err == nil {
					reports = append(reports, r)
				}
			}
			helper.PrettyPrint(cmd.OutOrStdout(), reports)
			if err != nil {
				return err
			}

			chunks, figs, err := st.Count(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("chunks", chunks).Int("figures", figs).Msg("Store totals")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "folder of documents to index")
	cmd.Flags().StringVar(&file, "file", "", "single document to index")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			composer, err := newComposer(st)
			if err != nil {
				return err
			}

			answer, err := composer.Answer(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newInitSchemaCmd() *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "init-schema",
		Short: "Create the store schema, optionally dropping existing data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if drop {
				if err := st.EnsureSchema(ctx); err != nil {
					return err
				}
				if err := st.Drop(ctx); err != nil {
					return err
				}
				log.Info().Msg("Dropped existing records")
			}
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}
			log.Info().Str("store", cfg.Store.Driver).Str("collection", cfg.Store.Collection).Msg("Schema ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop existing records first")
	return cmd
}

func newExportCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the embedded chromem database to a single file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Store.Driver != "chromem" {
				return fmt.Errorf("export is only available for the chromem store, not %q", cfg.Store.Driver)
			}
			ctx := cmd.Context()
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}

			path, err := st.(*chromemdb.VectorDBManager).Export(ctx, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "32 byte encryption key")
	return cmd
}

func newCompareTitlesCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compare-titles NAME=PATH NAME=PATH...",
		Short: "Report paper titles shared between literature exports",
		Args:  cobra.MinimumNArgs(2),
		// needs no model credentials
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(config.Default().Log)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets := make([]report.Dataset, 0, len(args))
			for _, arg := range args {
				ds, err := report.ParseDataset(arg)
				if err != nil {
					return err
				}
				datasets = append(datasets, ds)
			}
			if err := report.CompareTitles(datasets, out); err != nil {
				return err
			}
			log.Info().Str("file", out).Msg("Similarity report saved")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "consolidated_similarity_report.txt", "report file")
	return cmd
}
