// Command worker scans receipt images in batch. It reads one image per line
// from stdin, either a blob URI or a local file path, runs each through the
// receipt scan queue and prints the finished jobs as JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/config"
	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/jobs/inmemory"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/receipt"
)

func main() {
	userID := flag.String("user", "batch", "user the uploaded local files are stored under")
	poll := flag.Duration("poll", 250*time.Millisecond, "how often to check job status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log := logger.NewConsole(os.Stderr, "info")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Logs go to stderr; stdout carries the results
	log := logger.NewConsole(os.Stderr, cfg.Log.Level)

	if !cfg.AI.Enabled {
		log.Fatal().Msg("AI is disabled; set GASTOSMART_AI_ENABLED=true to scan receipts")
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var blobs blobstore.Store
	if cfg.Blob.Backend == config.BackendGCS {
		gcs, err := blobstore.NewGCSStore(ctx, cfg.Blob.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open blob store")
		}
		defer gcs.Close()
		blobs = gcs
	} else {
		blobs = blobstore.NewMemoryStore("local")
	}

	scanner, err := receipt.NewGeminiScanner(ctx, cfg.AI.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create receipt scanner")
	}

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Jobs.Workers, jobStore)
	jobQueue.SetMaxRetries(cfg.Jobs.MaxRetries)
	defer jobQueue.Close()

	if err := jobQueue.Start(ctx, jobs.NewScanReceiptHandler(receipt.NewScanPipeline(blobs, scanner))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	ids, err := enqueue(ctx, os.Stdin, *userID, blobs, jobQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to enqueue receipts")
	}
	log.Info().Int("jobs", len(ids)).Msg("Receipts enqueued, waiting for results")

	failed, err := collect(ctx, jobStore, ids, *poll, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to collect results")
	}

	log.Info().Int("jobs", len(ids)).Int("failed", failed).Msg("Worker finished")
	if failed > 0 {
		os.Exit(1)
	}
}

// enqueue publishes one scan job per non-empty line of r. Lines that are
// not URIs are read as local files and stored in blobs first.
func enqueue(ctx context.Context, r io.Reader, userID string, blobs blobstore.Store, publisher jobs.Publisher) ([]string, error) {
	var ids []string
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		uri := line
		if !strings.Contains(line, "://") {
			data, err := os.ReadFile(line)
			if err != nil {
				return nil, fmt.Errorf("enqueue: %w", err)
			}
			uri, err = blobs.Put(ctx, userID, filepath.Base(line), http.DetectContentType(data), data)
			if err != nil {
				return nil, fmt.Errorf("enqueue: storing %s: %w", line, err)
			}
		}

		job := &jobs.ScanReceiptJob{UserID: userID, ImageURI: uri}
		if err := publisher.PublishScanReceipt(ctx, job); err != nil {
			return nil, fmt.Errorf("enqueue: publishing %s: %w", line, err)
		}
		ids = append(ids, job.JobID)
	}
	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("enqueue: reading input: %w", err)
	}
	return ids, nil
}

// collect waits until every job in ids has finished and writes each one to
// w in input order. It returns the number of failed jobs.
func collect(ctx context.Context, store jobs.JobStore, ids []string, poll time.Duration, w io.Writer) (int, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	enc := json.NewEncoder(w)
	failed := 0
	for _, id := range ids {
		for {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				return failed, fmt.Errorf("collect: %w", err)
			}
			if job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed {
				if job.Status == jobs.JobStatusFailed {
					failed++
				}
				if err := enc.Encode(job); err != nil {
					return failed, fmt.Errorf("collect: %w", err)
				}
				break
			}

			select {
			case <-ctx.Done():
				return failed, ctx.Err()
			case <-ticker.C:
			}
		}
	}
	return failed, nil
}
