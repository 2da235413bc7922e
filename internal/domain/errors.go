package domain

import "errors"

// Error kinds. Every failure leaving the pipeline wraps exactly one of these.
var (
	// ErrValidation is returned when a request is missing required fields.
	ErrValidation = errors.New("invalid parameters")

	// ErrExtraction is returned when the provider metadata query fails.
	ErrExtraction = errors.New("extraction failed")

	// ErrFetch is returned when the provider download fails or produces no media.
	ErrFetch = errors.New("fetch failed")

	// ErrMerge is returned when the transcoder cannot be launched or exits non-zero.
	ErrMerge = errors.New("merge failed")

	// ErrStorageFull is returned when the download directory is below the free-space floor.
	ErrStorageFull = errors.New("insufficient storage space")

	// ErrJobNotFound is returned when a job is not tracked.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when a job id is tracked twice.
	ErrJobExists = errors.New("job already exists")
)

// JobError wraps an error with download job context.
type JobError struct {
	JobID JobID
	Op    string
	Err   error
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return e.Op + " [" + e.JobID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new JobError.
func NewJobError(jobID JobID, op string, err error) *JobError {
	return &JobError{
		JobID: jobID,
		Op:    op,
		Err:   err,
	}
}
