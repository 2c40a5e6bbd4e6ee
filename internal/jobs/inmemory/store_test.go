package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/receipt"
	"github.com/google/go-cmp/cmp"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SaveJob(ctx, &jobs.ScanReceiptJob{}); err == nil {
		t.Error("SaveJob without an ID should fail")
	}

	job := &jobs.ScanReceiptJob{JobID: "j1", UserID: "u1", Status: jobs.JobStatusPending}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	job.Status = jobs.JobStatusCompleted

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("stored job changed with the caller's copy: %s", got.Status)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) = %v, want ErrJobNotFound", err)
	}

	if err := s.SaveJob(ctx, &jobs.ScanReceiptJob{JobID: "j1", UserID: "u2"}); err == nil {
		t.Error("SaveJob should not move a job to another user")
	}
}

func TestStore_CopiesResult(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	job := &jobs.ScanReceiptJob{
		JobID:     "j1",
		UserID:    "u1",
		StartedAt: &started,
		Result:    &receipt.Data{Merchant: "Disco", Items: []string{"pan", "leche"}},
	}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}
	job.Result.Merchant = "changed"
	job.Result.Items[0] = "changed"
	*job.StartedAt = started.Add(time.Hour)

	got, _ := s.GetJob(ctx, "j1")
	got.Result.Items[1] = "changed"

	again, _ := s.GetJob(ctx, "j1")
	want := &jobs.ScanReceiptJob{
		JobID:     "j1",
		UserID:    "u1",
		StartedAt: &started,
		Result:    &receipt.Data{Merchant: "Disco", Items: []string{"pan", "leche"}},
	}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("stored job shares memory with callers (-want +got):\n%s", diff)
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.SaveJob(ctx, &jobs.ScanReceiptJob{JobID: "j1", Status: jobs.JobStatusRunning, Error: "earlier"})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, ""); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "earlier" {
		t.Errorf("got %s/%q, want failed with the earlier error kept", got.Status, got.Error)
	}

	if got.CompletedAt == nil {
		t.Error("a failed job should have CompletedAt set")
	}

	if err := s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, "x"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus(nope) = %v, want ErrJobNotFound", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, j := range []*jobs.ScanReceiptJob{
		{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", UserID: "u1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", UserID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
		{JobID: "d", UserID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(3 * time.Minute)},
		{JobID: "e", UserID: "u1", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Minute)},
	} {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s) failed: %v", j.JobID, err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"d", "c", "e", "b", "a"}},
		{"by user", jobs.JobFilter{UserID: "u1"}, []string{"c", "e", "b", "a"}},
		{"by status", jobs.JobFilter{UserID: "u1", Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{UserID: "u1", Limit: 2}, []string{"c", "e"}},
		{"offset", jobs.JobFilter{UserID: "u1", Offset: 3}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
		{"status with offset", jobs.JobFilter{UserID: "u1", Status: jobs.JobStatusCompleted, Offset: 1}, []string{"a"}},
		{"unknown user", jobs.JobFilter{UserID: "u3"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ListJobs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
