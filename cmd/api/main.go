package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/gastosmart/internal/advisor"
	"github.com/dvloznov/gastosmart/internal/api"
	"github.com/dvloznov/gastosmart/internal/api/handlers"
	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/config"
	"github.com/dvloznov/gastosmart/internal/currency"
	infraBQ "github.com/dvloznov/gastosmart/internal/infra/bigquery"
	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/jobs/inmemory"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/receipt"
	"github.com/dvloznov/gastosmart/internal/session"
	"github.com/dvloznov/gastosmart/internal/store"
	storemem "github.com/dvloznov/gastosmart/internal/store/inmemory"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	initial, err := cfg.Rates.Values()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid exchange rates")
	}
	rates, err := currency.NewTable(initial)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid exchange rates")
	}

	// Initialize the record store
	records, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	blobs, closeBlobs, err := openBlobs(ctx, cfg.Blob)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}
	defer closeBlobs()

	sessions := session.NewManager(records, rates, ledger.NewEngine(cfg.Ledger.CacheTTL))
	defer sessions.Close()

	var scanner receipt.Scanner = disabledScanner{}
	var assistant handlers.Assistant
	if cfg.AI.Enabled {
		gemini, err := receipt.NewGeminiScanner(ctx, cfg.AI.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt scanner")
		}
		scanner = gemini

		adv, err := advisor.New(ctx, cfg.AI.Model, cfg.AI.RequestsPerMinute)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create advisor")
		}
		assistant = adv
	} else {
		log.Warn().Msg("AI disabled - receipt scans will fail and the assistant is unavailable")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Jobs.Workers, jobStore)
	jobQueue.SetMaxRetries(cfg.Jobs.MaxRetries)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handler := jobs.NewScanReceiptHandler(receipt.NewScanPipeline(blobs, scanner))
	if err := jobQueue.Start(workerCtx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	deps := api.Deps{
		Sessions:       sessions,
		Service:        lifecycle.NewService(records),
		Rates:          rates,
		Blobs:          blobs,
		Publisher:      jobQueue,
		Jobs:           jobStore,
		Assistant:      assistant,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
	if rpm := cfg.AI.RequestsPerMinute; rpm > 0 {
		deps.UploadLimit = rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(deps, log),
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("store", cfg.Store.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	if cfg.Backend != config.BackendBigQuery {
		return storemem.NewStore(), func() {}, nil
	}

	bq, err := infraBQ.NewStore(ctx, infraBQ.Config{
		ProjectID:    cfg.ProjectID,
		DatasetID:    cfg.DatasetID,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return nil, nil, err
	}
	return bq, func() { bq.Close() }, nil
}

func openBlobs(ctx context.Context, cfg config.BlobConfig) (blobstore.Store, func(), error) {
	if cfg.Backend != config.BackendGCS {
		return blobstore.NewMemoryStore("local"), func() {}, nil
	}

	gcs, err := blobstore.NewGCSStore(ctx, cfg.Bucket)
	if err != nil {
		return nil, nil, err
	}
	return gcs, func() { gcs.Close() }, nil
}

// disabledScanner fails every scan without retries.
type disabledScanner struct{}

func (disabledScanner) Scan(context.Context, []byte, string) (receipt.Data, error) {
	return receipt.Data{}, jobs.Permanent(errors.New("receipt scanning is disabled"))
}
