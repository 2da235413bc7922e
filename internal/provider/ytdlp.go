package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/domain"
)

// runFunc executes a command and returns its stdout. On failure the error
// carries the tool's diagnostic output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// YTDLP implements Provider by shelling out to yt-dlp.
type YTDLP struct {
	binary string
	run    runFunc
	logger *slog.Logger
}

// NewYTDLP creates a yt-dlp backed provider.
func NewYTDLP(cfg config.ProviderConfig, logger *slog.Logger) *YTDLP {
	return &YTDLP{
		binary: cfg.Binary,
		run:    runCommand,
		logger: logger,
	}
}

// infoJSON is the subset of yt-dlp's info dict we consume.
type infoJSON struct {
	Title     string       `json:"title"`
	Thumbnail string       `json:"thumbnail"`
	URL       string       `json:"url"`
	Formats   []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID   string `json:"format_id"`
	VideoCodec string `json:"vcodec"`
	Ext        string `json:"ext"`
	FormatNote string `json:"format_note"`
}

// Extract runs yt-dlp in info-only mode.
func (y *YTDLP) Extract(ctx context.Context, url string, maxHeight int) (*domain.ProviderInfo, error) {
	out, err := y.run(ctx, y.binary, extractArgs(url, maxHeight)...)
	if err != nil {
		return nil, err
	}
	return parseInfo(out)
}

// Download runs yt-dlp to fetch media to disk.
func (y *YTDLP) Download(ctx context.Context, req DownloadRequest) error {
	y.logger.Debug("yt-dlp download",
		"url", req.URL,
		"format", req.FormatSelector,
		"output", req.OutputTemplate,
	)
	_, err := y.run(ctx, y.binary, downloadArgs(req)...)
	return err
}

// Available reports whether the yt-dlp binary can be resolved.
func (y *YTDLP) Available() bool {
	_, err := exec.LookPath(y.binary)
	return err == nil
}

func extractArgs(url string, maxHeight int) []string {
	return []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-playlist",
		"--flat-playlist",
		"-f", fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best", maxHeight),
		"--",
		url,
	}
}

// downloadArgs builds the fetch command. Files keep their local write time
// (--no-mtime) so the stale-file sweeper only ever sees real file age.
func downloadArgs(req DownloadRequest) []string {
	args := []string{
		"--no-warnings",
		"--no-playlist",
		"--no-progress",
		"--no-mtime",
		"-f", req.FormatSelector,
		"-o", req.OutputTemplate,
	}
	if req.MergeFormat != "" {
		args = append(args, "--merge-output-format", req.MergeFormat)
	}
	// "--" keeps a URL that starts with a dash from being read as a flag.
	return append(args, "--", req.URL)
}

func parseInfo(data []byte) (*domain.ProviderInfo, error) {
	var raw infoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	info := &domain.ProviderInfo{
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		URL:       raw.URL,
		Formats:   make([]domain.StreamDescriptor, 0, len(raw.Formats)),
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, domain.StreamDescriptor{
			FormatID:        f.FormatID,
			VideoCodec:      f.VideoCodec,
			Ext:             f.Ext,
			ResolutionLabel: f.FormatNote,
		})
	}
	return info, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		if msg := lastErrorLine(stderr.String()); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// lastErrorLine picks the most useful line of yt-dlp diagnostics: the last
// "ERROR:" line if any, otherwise the last non-empty line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
