package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/gastosmart/internal/jobs"
)

// Store keeps scan jobs in memory, indexed by owner so that the per-user
// listing behind GET /api/jobs never walks other users' jobs. Nothing
// survives a restart.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*jobs.ScanReceiptJob
	byUser map[string][]string // job IDs, newest first
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		byID:   make(map[string]*jobs.ScanReceiptJob),
		byUser: make(map[string][]string),
	}
}

// SaveJob stores a copy of job. A job keeps the owner it was first saved
// with.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ScanReceiptJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.byID[job.JobID]
	if known && prev.UserID != job.UserID {
		return fmt.Errorf("SaveJob: %s belongs to another user", job.JobID)
	}
	s.byID[job.JobID] = clone(job)
	if !known {
		s.index(job)
	}
	return nil
}

// index inserts job into its owner's list, keeping newest-first order with
// ties broken by ID.
func (s *Store) index(job *jobs.ScanReceiptJob) {
	ids := s.byUser[job.UserID]
	at := sort.Search(len(ids), func(i int) bool {
		return newer(job, s.byID[ids[i]])
	})
	ids = append(ids, "")
	copy(ids[at+1:], ids[at:])
	ids[at] = job.JobID
	s.byUser[job.UserID] = ids
}

// GetJob returns a copy of the job with jobID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ScanReceiptJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return clone(job), nil
}

// ListJobs returns the jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ScanReceiptJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*jobs.ScanReceiptJob
	if filter.UserID != "" {
		for _, id := range s.byUser[filter.UserID] {
			candidates = append(candidates, s.byID[id])
		}
	} else {
		for _, job := range s.byID {
			candidates = append(candidates, job)
		}
		sort.Slice(candidates, func(i, j int) bool { return newer(candidates[i], candidates[j]) })
	}

	result := []*jobs.ScanReceiptJob{}
	skipped := 0
	for _, job := range candidates {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
		result = append(result, clone(job))
	}
	return result, nil
}

// UpdateJobStatus sets the status of a job. A non-empty errorMsg replaces
// the recorded error. Moving to a terminal status stamps CompletedAt if
// the job has none.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if terminal(status) && job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func newer(a, b *jobs.ScanReceiptJob) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.JobID < b.JobID
}

func terminal(status jobs.JobStatus) bool {
	return status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed
}

// clone copies job including the values behind its pointers.
func clone(job *jobs.ScanReceiptJob) *jobs.ScanReceiptJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	if job.Result != nil {
		r := *job.Result
		r.Items = append(r.Items[:0:0], job.Result.Items...)
		if r.Date != nil {
			d := *r.Date
			r.Date = &d
		}
		if r.Total != nil {
			v := *r.Total
			r.Total = &v
		}
		c.Result = &r
	}
	return &c
}

var _ jobs.JobStore = (*Store)(nil)
