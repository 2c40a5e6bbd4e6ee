package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/gastosmart/internal/jobs"
)

func newTestQueue(store jobs.JobStore) *Queue {
	q := NewQueue(10, 2, store)
	q.backoff = func(int) time.Duration { return time.Millisecond }
	return q
}

// waitForStatus polls the store until the job reaches status or the
// deadline passes.
func waitForStatus(t *testing.T, s *Store, jobID string, status jobs.JobStatus) *jobs.ScanReceiptJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, err := s.GetJob(context.Background(), jobID); err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached %s, last state %+v", jobID, status, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	handler := func(ctx context.Context, job jobs.Job) error { return nil }
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ScanReceiptJob{UserID: "u1", ImageURI: "mem://local/receipts/u1/x"}
	if err := q.PublishScanReceipt(ctx, job); err != nil {
		t.Fatalf("PublishScanReceipt failed: %v", err)
	}
	if job.JobID == "" || job.Status != jobs.JobStatusPending || job.MaxRetries != jobs.DefaultMaxRetries {
		t.Errorf("publish did not fill defaults: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("timestamps not set: %+v", done)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	var attempts int32
	handler := func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("model unavailable")
		}
		return nil
	}
	_ = q.Start(ctx, handler)

	job := &jobs.ScanReceiptJob{UserID: "u1"}
	if err := q.PublishScanReceipt(ctx, job); err != nil {
		t.Fatalf("PublishScanReceipt failed: %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 || done.Error != "" {
		t.Errorf("RetryCount = %d, Error = %q, want 2 retries and no error", done.RetryCount, done.Error)
	}
}

func TestQueue_GivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tests := []struct {
		name         string
		err          error
		wantAttempts int32
	}{
		{"retry budget exhausted", errors.New("timeout"), 3},
		{"permanent failure", jobs.Permanent(errors.New("image gone")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			q := newTestQueue(store)
			q.SetMaxRetries(2)
			defer q.Close()

			var attempts int32
			_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
				atomic.AddInt32(&attempts, 1)
				return tt.err
			})

			job := &jobs.ScanReceiptJob{UserID: "u1"}
			_ = q.PublishScanReceipt(ctx, job)

			failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
			if failed.Error == "" {
				t.Error("failed job should carry the error")
			}
			// give a wrongly scheduled retry the chance to show up
			time.Sleep(20 * time.Millisecond)
			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	if err := q.PublishScanReceipt(context.Background(), &jobs.ScanReceiptJob{}); err == nil {
		t.Error("publish after close should fail")
	}
	if err := q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }); err == nil {
		t.Error("start after close should fail")
	}
}
