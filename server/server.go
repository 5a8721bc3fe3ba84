// Package server wires the store, the extraction pipeline, and the HTTP API
// together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/cli"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/database"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/extraction"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/pdf"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/routes"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/search"
)

const shutdownTimeout = 10 * time.Second

// Run starts the library server and blocks until SIGINT. In-flight
// extractions get drained before the process exits.
func Run(config *cli.Config, logger *zap.Logger) error {
	if err := os.MkdirAll(config.BooksDir, 0o755); err != nil {
		return fmt.Errorf("create books dir %s: %w", config.BooksDir, err)
	}

	store, err := database.Open(config.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	extractor := pdf.New(logger,
		pdf.WithFetchTimeout(time.Duration(config.FetchTimeoutSecs)*time.Second))

	pipeline := extraction.New(store, extractor, logger, config.Workers, config.QueueSize)
	pipeline.Start()

	coordinator := search.NewCoordinator(store, logger, config.Workers)

	mux := http.NewServeMux()
	routes.SetupRoutes(mux, store, coordinator, pipeline, config.BooksDir, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           routes.Logger(logger)(mux),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Shut the listener down on SIGINT; ListenAndServe below returns with
	// ErrServerClosed once pending connections drain.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	go func() {
		<-quit
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.Int("port", config.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// Let queued extractions finish so no book is left pending forever.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pipeline.Shutdown(ctx); err != nil {
		logger.Warn("pipeline drain incomplete", zap.Error(err))
	}
	return nil
}
