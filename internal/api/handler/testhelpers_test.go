package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/domain"
	"github.com/iconidentify/vidmux/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockCatalog is a test implementation of CatalogBuilder.
type mockCatalog struct {
	meta  *domain.VideoMetadata
	err   error
	calls []string
}

func (m *mockCatalog) BuildCatalog(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	m.calls = append(m.calls, url)
	if m.err != nil {
		return nil, m.err
	}
	return m.meta, nil
}

// mockDownloads is a test implementation of DownloadRunner. On success it
// writes content to path on fs and returns a delivery for it.
type mockDownloads struct {
	fs      afero.Fs
	path    string
	content string
	err     error
	calls   int
}

func (m *mockDownloads) Download(ctx context.Context, url, formatID string) (*service.Delivery, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if err := afero.WriteFile(m.fs, m.path, []byte(m.content), 0644); err != nil {
		return nil, err
	}
	return service.NewDelivery(m.fs, domain.JobID("job-1"), m.path, testLogger())
}

type stubDependency bool

func (s stubDependency) Available() bool { return bool(s) }
