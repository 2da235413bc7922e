package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// JobID is a unique identifier for a download job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// NewJobID returns a fresh random job identifier.
func NewJobID() JobID {
	return JobID(uuid.New().String())
}

// JobStatus represents the stage a download job is in.
type JobStatus string

const (
	JobStatusFetching  JobStatus = "fetching"
	JobStatusMerging   JobStatus = "merging"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the job has finished, successfully or not.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DownloadJob is one download request's unit of work.
// All files it creates share Prefix.
type DownloadJob struct {
	ID        JobID
	SourceURL string
	FormatID  string
	Prefix    string
	Status    JobStatus
	CreatedAt time.Time
}

// NewDownloadJob creates a job rooted in dir.
func NewDownloadJob(dir, sourceURL, formatID string) *DownloadJob {
	id := NewJobID()
	return &DownloadJob{
		ID:        id,
		SourceURL: sourceURL,
		FormatID:  formatID,
		Prefix:    filepath.Join(dir, id.String()),
		Status:    JobStatusFetching,
		CreatedAt: time.Now(),
	}
}

// OutputTemplate is the provider output template; the provider fills in the extension.
func (j *DownloadJob) OutputTemplate() string {
	return j.Prefix + ".%(ext)s"
}

// FormatSelector asks for the chosen video format plus the best audio,
// falling back to the best single file.
func (j *DownloadJob) FormatSelector() string {
	return j.FormatID + "+bestaudio/best"
}

// VideoPath is where the provider is expected to leave the video (or merged) file.
func (j *DownloadJob) VideoPath() string {
	return j.Prefix + ".mp4"
}

// AudioPath is where a separate audio artifact would be left.
func (j *DownloadJob) AudioPath() string {
	return j.Prefix + ".m4a"
}

// MergedPath is the final remuxed output.
func (j *DownloadJob) MergedPath() string {
	return j.Prefix + "_merged.mp4"
}

// FetchResult locates the fetched streams. AudioPath equals VideoPath when
// the provider produced no distinct audio artifact.
type FetchResult struct {
	VideoPath string
	AudioPath string
}

// SeparateAudio reports whether audio lives in its own file.
func (r FetchResult) SeparateAudio() bool {
	return r.AudioPath != "" && r.AudioPath != r.VideoPath
}
