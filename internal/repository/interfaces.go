package repository

import (
	"context"

	"github.com/iconidentify/vidmux/internal/domain"
)

// JobRepository tracks download jobs while they run. Finished jobs are
// dropped and only counted.
type JobRepository interface {
	// Add starts tracking a job.
	Add(ctx context.Context, job *domain.DownloadJob) error

	// UpdateStatus moves a job to status. Terminal statuses stop tracking it.
	UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus) error

	// Get retrieves a running job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.DownloadJob, error)

	// Active returns the IDs of jobs that have not finished.
	Active(ctx context.Context) ([]domain.JobID, error)

	// Stats returns job statistics.
	Stats(ctx context.Context) (*JobStats, error)
}

// JobStats contains job statistics since process start.
type JobStats struct {
	Fetching  int `json:"fetching"`
	Merging   int `json:"merging"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
