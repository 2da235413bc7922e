package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/domain"
	"github.com/iconidentify/vidmux/internal/repository"
)

// Sweeper periodically removes stale files from the download directory,
// such as leftovers from a process that died mid-job. Files belonging to a
// job that is still running are never removed, whatever their mtime.
type Sweeper struct {
	fs       afero.Fs
	jobs     repository.JobRepository
	dir      string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSweeper creates a sweeper for the configured download directory.
func NewSweeper(fs afero.Fs, jobs repository.JobRepository, cfg config.StorageConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		fs:       fs,
		jobs:     jobs,
		dir:      cfg.DownloadPath,
		interval: cfg.SweepInterval,
		maxAge:   cfg.MaxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It returns at once when sweeping is disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.SweepOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce removes regular files older than maxAge that belong to no running
// job and returns how many were removed.
func (s *Sweeper) SweepOnce() int {
	active, err := s.jobs.Active(context.Background())
	if err != nil {
		s.logger.Warn("sweep: list active jobs", "error", err)
		return 0
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		s.logger.Warn("sweep: read download dir", "dir", s.dir, "error", err)
		return 0
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || entry.ModTime().After(cutoff) {
			continue
		}
		if ownedByActiveJob(entry.Name(), active) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := s.fs.Remove(path); err != nil {
			s.logger.Warn("sweep: remove stale file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept stale downloads", "dir", s.dir, "removed", removed)
	}
	return removed
}

// ownedByActiveJob reports whether name is one of a running job's files,
// all of which start with the job ID.
func ownedByActiveJob(name string, active []domain.JobID) bool {
	for _, id := range active {
		if strings.HasPrefix(name, id.String()) {
			return true
		}
	}
	return false
}
