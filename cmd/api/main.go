package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-importer/internal/api/handlers"
	"github.com/dvloznov/statement-importer/internal/app"
	"github.com/dvloznov/statement-importer/internal/config"
	"github.com/dvloznov/statement-importer/internal/gcsuploader"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/jobs"
	"github.com/dvloznov/statement-importer/internal/jobs/inmemory"
	"github.com/dvloznov/statement-importer/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./config.yaml)")
	port := flag.String("port", "", "HTTP server port (overrides server.port)")
	flag.Parse()

	boot := logger.New()

	v := config.NewViper()
	if *port != "" {
		v.Set("server.port", *port)
	}
	cfg, err := config.Load(v, *configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("Failed to load config")
	}

	log, err := logger.NewFromConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		boot.Fatal().Err(err).Msg("Failed to create logger")
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer a.Close()

	if a.Archiver == nil {
		log.Warn().Msg("No GCS bucket configured - uploads will not be archived")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	var (
		archiver importer.Archiver
		fetch    jobs.Fetcher
	)
	if a.Archiver != nil {
		archiver = a.Archiver
		fetch = func(ctx context.Context, uri string) ([]byte, error) {
			client, err := a.Storage(ctx)
			if err != nil {
				return nil, err
			}
			return gcsuploader.Fetch(ctx, client, uri)
		}
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobs.NewImportHandler(a.Importer, fetch)); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	router := handlers.NewRouter(handlers.Handlers{
		Imports:      handlers.NewImportsHandler(a.Importer, jobQueue, archiver, cfg.MaxUploadBytes(), log),
		Transactions: handlers.NewTransactionsHandler(a.Transactions, log),
		Categories:   handlers.NewCategoriesHandler(a.Categories, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, cfg.Import.DefaultUser, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Str("config", cfg.ConfigPath).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight imports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
