package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/vidmux/internal/domain"
)

// InMemoryJobRepository implements JobRepository using in-memory storage.
type InMemoryJobRepository struct {
	mu        sync.RWMutex
	jobs      map[domain.JobID]*domain.DownloadJob
	completed int
	failed    int
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs: make(map[domain.JobID]*domain.DownloadJob),
	}
}

// Add starts tracking a job.
func (r *InMemoryJobRepository) Add(ctx context.Context, job *domain.DownloadJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrJobExists
	}

	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

// UpdateStatus moves a job to status. Completed and failed jobs are removed
// and counted.
func (r *InMemoryJobRepository) UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	if !status.Terminal() {
		job.Status = status
		return nil
	}

	delete(r.jobs, id)
	if status == domain.JobStatusCompleted {
		r.completed++
	} else {
		r.failed++
	}
	return nil
}

// Get retrieves a running job by ID. The result is a copy.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.DownloadJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	out := *job
	return &out, nil
}

// Active returns the IDs of jobs that have not finished.
func (r *InMemoryJobRepository) Active(ctx context.Context) ([]domain.JobID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]domain.JobID, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats returns job statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &JobStats{
		Completed: r.completed,
		Failed:    r.failed,
	}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusFetching:
			stats.Fetching++
		case domain.JobStatusMerging:
			stats.Merging++
		}
	}

	return stats, nil
}
