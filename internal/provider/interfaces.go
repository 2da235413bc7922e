// Package provider adapts the external extraction tool (yt-dlp) that
// resolves video pages into stream formats and downloads media.
package provider

import (
	"context"

	"github.com/iconidentify/vidmux/internal/domain"
)

// Provider queries and downloads media from video-hosting sites.
type Provider interface {
	// Extract returns metadata and raw formats for url without downloading media.
	// maxHeight caps the provider's own best-format selection.
	Extract(ctx context.Context, url string, maxHeight int) (*domain.ProviderInfo, error)

	// Download fetches req.URL and writes files named from req.OutputTemplate.
	// req.MergeFormat asks the provider to merge into that container when it can.
	Download(ctx context.Context, req DownloadRequest) error
}

// DownloadRequest describes a single provider download.
type DownloadRequest struct {
	URL            string
	FormatSelector string
	OutputTemplate string
	MergeFormat    string
}
