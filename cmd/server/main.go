package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Bhupendraa307/MiniRAG/internal/api"
	"github.com/Bhupendraa307/MiniRAG/internal/config"
	"github.com/Bhupendraa307/MiniRAG/internal/core"
	"github.com/Bhupendraa307/MiniRAG/internal/extract"
	"github.com/Bhupendraa307/MiniRAG/internal/logging"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	queryJSON bool
)

var rootCmd = &cobra.Command{
	Use:           "minirag",
	Short:         "Retrieval-augmented question answering over uploaded documents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Chunk, embed and store documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Answer a question from the stored documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(serveCmd, ingestCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	apiHandler := api.NewAPIHandler(a.rag, a.store, logger)
	router := api.NewRouter(apiHandler, logger, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // ingestion embeds every chunk inline
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
	case <-quit:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting gracefully")
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	for _, path := range args {
		filename := filepath.Base(path)
		if !extract.IsAllowed(filename) {
			return fmt.Errorf("%s: file type not allowed", path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		text, err := extract.Text(filename, content)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		docID, err := a.rag.ProcessDocument(cmd.Context(), text, filename)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		cmd.Printf("%s\t%s\n", docID, filename)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	q, err := core.NormalizeQuery(args[0])
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.rag.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	if queryJSON {
		data, err := json.MarshalIndent(api.QueryResponse{
			Answer:     res.Answer,
			Citations:  res.Citations,
			TokenUsage: res.TokenUsage,
			Latency:    res.Latency,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(res.Answer)
	if len(res.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, c := range res.Citations {
			name, _ := c.Metadata["filename"].(string)
			cmd.Printf("  [%d] %s (%s)\n", i+1, name, c.ID)
		}
	}
	return nil
}
