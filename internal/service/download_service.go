package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/domain"
	"github.com/iconidentify/vidmux/internal/provider"
	"github.com/iconidentify/vidmux/internal/repository"
)

// MergeContainer is the container the provider is asked to merge into.
const MergeContainer = "mp4"

// Fragments the provider may leave next to a finished file.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// Downloader is the provider capability the pipeline needs.
type Downloader interface {
	Download(ctx context.Context, req provider.DownloadRequest) error
}

// Merger combines video and audio files into one container.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) (string, error)
}

// DownloadService drives the fetch-then-merge pipeline for one request at a
// time per call. Calls share nothing but the download directory.
type DownloadService struct {
	downloader      Downloader
	merger          Merger
	jobs            repository.JobRepository
	fs              afero.Fs
	cfg             config.StorageConfig
	downloadTimeout time.Duration
	freeSpace       func(path string) (uint64, error)
	logger          *slog.Logger
}

// NewDownloadService creates a new download service.
func NewDownloadService(
	dl Downloader,
	merger Merger,
	jobs repository.JobRepository,
	fs afero.Fs,
	storageCfg config.StorageConfig,
	providerCfg config.ProviderConfig,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		downloader:      dl,
		merger:          merger,
		jobs:            jobs,
		fs:              fs,
		cfg:             storageCfg,
		downloadTimeout: providerCfg.DownloadTimeout,
		freeSpace:       getFreeDiskSpace,
		logger:          logger,
	}
}

// Delivery is a merged file ready to be streamed to the client.
type Delivery struct {
	JobID    domain.JobID
	Path     string
	Filename string
	Size     int64
	ModTime  time.Time

	fs     afero.Fs
	logger *slog.Logger
}

// NewDelivery describes the file at path as the output of job id.
func NewDelivery(fs afero.Fs, id domain.JobID, path string, logger *slog.Logger) (*Delivery, error) {
	stat, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Delivery{
		JobID:    id,
		Path:     path,
		Filename: filepath.Base(path),
		Size:     stat.Size(),
		ModTime:  stat.ModTime(),
		fs:       fs,
		logger:   logger,
	}, nil
}

// Open opens the merged file for reading.
func (d *Delivery) Open() (afero.File, error) {
	return d.fs.Open(d.Path)
}

// Release removes the merged file once it has been handed to the client.
func (d *Delivery) Release() {
	if err := d.fs.Remove(d.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("remove delivered file", "job_id", d.JobID, "path", d.Path, "error", err)
	}
}

// Download validates the request, fetches the chosen format and merges it.
// Every per-job artifact other than the returned merged file is removed before
// returning, on success and on failure alike.
func (s *DownloadService) Download(ctx context.Context, url, formatID string) (*Delivery, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(formatID) == "" {
		return nil, fmt.Errorf("%w: url and format are required", domain.ErrValidation)
	}

	job := domain.NewDownloadJob(s.cfg.DownloadPath, url, formatID)
	logger := s.logger.With("job_id", job.ID)

	if err := s.checkFreeSpace(); err != nil {
		return nil, domain.NewJobError(job.ID, "preflight", err)
	}

	if err := s.jobs.Add(ctx, job); err != nil {
		return nil, domain.NewJobError(job.ID, "track", err)
	}

	// keep is the delivered file, spared by cleanup.
	var keep string
	defer func() {
		s.cleanup(job, keep, logger)
		status := domain.JobStatusFailed
		if keep != "" {
			status = domain.JobStatusCompleted
		}
		s.setStatus(job, status, logger)
	}()

	start := time.Now()
	logger.Info("download started", "url", url, "format", formatID)

	fetched, err := s.FetchStreams(ctx, job)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return nil, domain.NewJobError(job.ID, "fetch", err)
	}

	s.setStatus(job, domain.JobStatusMerging, logger)
	out, err := s.merger.Merge(ctx, fetched.VideoPath, fetched.AudioPath, job.MergedPath())
	if err != nil {
		logger.Warn("merge failed", "error", err)
		return nil, domain.NewJobError(job.ID, "merge", err)
	}

	delivery, err := NewDelivery(s.fs, job.ID, out, s.logger)
	if err != nil {
		return nil, domain.NewJobError(job.ID, "merge", fmt.Errorf("%w: %w", domain.ErrMerge, err))
	}

	keep = delivery.Path
	logger.Info("download ready",
		"file", out,
		"size", humanize.Bytes(uint64(delivery.Size)),
		"separate_audio", fetched.SeparateAudio(),
		"duration", time.Since(start),
	)

	return delivery, nil
}

func (s *DownloadService) setStatus(job *domain.DownloadJob, status domain.JobStatus, logger *slog.Logger) {
	job.Status = status
	if err := s.jobs.UpdateStatus(context.Background(), job.ID, status); err != nil {
		logger.Warn("update job status", "status", status, "error", err)
	}
}

// FetchStreams asks the provider for the chosen video format plus the best
// audio and locates what it wrote. When no distinct audio artifact exists the
// video file doubles as the audio source.
func (s *DownloadService) FetchStreams(ctx context.Context, job *domain.DownloadJob) (*domain.FetchResult, error) {
	if job.SourceURL == "" || job.FormatID == "" {
		return nil, fmt.Errorf("%w: url and format are required", domain.ErrValidation)
	}

	if s.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.downloadTimeout)
		defer cancel()
	}

	err := s.downloader.Download(ctx, provider.DownloadRequest{
		URL:            job.SourceURL,
		FormatSelector: job.FormatSelector(),
		OutputTemplate: job.OutputTemplate(),
		MergeFormat:    MergeContainer,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	videoPath, err := s.locateVideo(job)
	if err != nil {
		return nil, err
	}

	audioPath := job.AudioPath()
	if ok, _ := afero.Exists(s.fs, audioPath); !ok || audioPath == videoPath {
		audioPath = videoPath
	}

	return &domain.FetchResult{VideoPath: videoPath, AudioPath: audioPath}, nil
}

// locateVideo prefers <prefix>.mp4 and otherwise takes whatever finished
// media file the provider produced under the job prefix.
func (s *DownloadService) locateVideo(job *domain.DownloadJob) (string, error) {
	if ok, _ := afero.Exists(s.fs, job.VideoPath()); ok {
		return job.VideoPath(), nil
	}

	artifacts, err := s.artifacts(job)
	if err != nil {
		return "", fmt.Errorf("%w: list artifacts: %w", domain.ErrFetch, err)
	}
	for _, path := range artifacts {
		if path == job.AudioPath() || path == job.MergedPath() || isPartial(path) {
			continue
		}
		if strings.HasPrefix(path, job.Prefix+".") {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: provider produced no media file", domain.ErrFetch)
}

// artifacts lists every file in the download directory belonging to job, sorted.
func (s *DownloadService) artifacts(job *domain.DownloadJob) ([]string, error) {
	dir := filepath.Dir(job.Prefix)
	base := filepath.Base(job.Prefix)

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), base) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// cleanup removes the job's files except keep, which may be empty.
func (s *DownloadService) cleanup(job *domain.DownloadJob, keep string, logger *slog.Logger) {
	artifacts, err := s.artifacts(job)
	if err != nil {
		logger.Warn("list job artifacts", "error", err)
		return
	}
	for _, path := range artifacts {
		if keep != "" && path == keep {
			continue
		}
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("remove job artifact", "path", path, "error", err)
			continue
		}
		logger.Debug("removed job artifact", "path", path)
	}
}

func (s *DownloadService) checkFreeSpace() error {
	if s.cfg.MinFreeBytes == 0 || s.freeSpace == nil {
		return nil
	}
	free, err := s.freeSpace(s.cfg.DownloadPath)
	if err != nil {
		s.logger.Warn("free space check failed", "path", s.cfg.DownloadPath, "error", err)
		return nil
	}
	if free < s.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %w: %s free, %s required", domain.ErrFetch, domain.ErrStorageFull,
			humanize.Bytes(free), humanize.Bytes(s.cfg.MinFreeBytes))
	}
	return nil
}

func isPartial(path string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
