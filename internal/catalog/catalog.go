// Package catalog turns a provider's raw format list into the
// deduplicated, sorted list of choices shown to the user.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/domain"
)

// Defaults applied when the provider omits a field.
const (
	DefaultTitle = "Unknown"
)

var (
	allowedExts        = []string{"mp4", "webm"}
	allowedResolutions = []string{"360p", "480p", "720p", "1080p", "1440p", "2160p"}
)

// Extractor queries a provider for metadata without downloading media.
type Extractor interface {
	Extract(ctx context.Context, url string, maxHeight int) (*domain.ProviderInfo, error)
}

type entryKey struct {
	resolution string
	ext        string
}

// Build filters, deduplicates and sorts raw descriptors.
// Only descriptors with a video codec, an allowed container and a standard
// resolution survive. Descriptors sharing (resolution, ext) collapse to the
// last one seen. The result is ascending by resolution height.
func Build(descriptors []domain.StreamDescriptor) []domain.CatalogEntry {
	eligible := lo.Filter(descriptors, func(d domain.StreamDescriptor, _ int) bool {
		return d.HasVideo() &&
			lo.Contains(allowedExts, d.Ext) &&
			lo.Contains(allowedResolutions, d.ResolutionLabel)
	})

	// KeyBy assigns in order, so later descriptors overwrite earlier ones.
	unique := lo.KeyBy(eligible, func(d domain.StreamDescriptor) entryKey {
		return entryKey{resolution: d.ResolutionLabel, ext: d.Ext}
	})

	entries := lo.FilterMap(lo.Values(unique), func(d domain.StreamDescriptor, _ int) (domain.CatalogEntry, bool) {
		if _, ok := ParseHeight(d.ResolutionLabel); !ok {
			return domain.CatalogEntry{}, false
		}
		return domain.CatalogEntry{
			FormatID:   d.FormatID,
			Resolution: d.ResolutionLabel,
			Ext:        d.Ext,
		}, true
	})

	slices.SortFunc(entries, func(a, b domain.CatalogEntry) int {
		ha, _ := ParseHeight(a.Resolution)
		hb, _ := ParseHeight(b.Resolution)
		if c := cmp.Compare(ha, hb); c != 0 {
			return c
		}
		return cmp.Compare(a.Ext, b.Ext)
	})

	return entries
}

// ParseHeight extracts the numeric height from a label such as "720p".
func ParseHeight(label string) (int, bool) {
	digits, found := strings.CutSuffix(label, "p")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(digits)
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}

// Builder produces VideoMetadata for a URL by querying a provider.
type Builder struct {
	extractor Extractor
	maxHeight int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBuilder creates a catalog builder.
func NewBuilder(extractor Extractor, cfg config.ProviderConfig, logger *slog.Logger) *Builder {
	return &Builder{
		extractor: extractor,
		maxHeight: cfg.MaxHeight,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// BuildCatalog queries the provider for url and returns the user-facing catalog.
// The URL is not pre-validated beyond being non-empty.
func (b *Builder) BuildCatalog(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	info, err := b.extractor.Extract(ctx, url, b.maxHeight)
	if err != nil {
		b.logger.Warn("provider query failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	formats := Build(info.Formats)

	b.logger.Info("catalog built",
		"url", url,
		"raw_formats", len(info.Formats),
		"catalog_formats", len(formats),
		"duration", time.Since(start),
	)

	title := info.Title
	if title == "" {
		title = DefaultTitle
	}

	return &domain.VideoMetadata{
		Title:     title,
		Thumbnail: info.Thumbnail,
		Formats:   formats,
		URL:       info.URL,
	}, nil
}
