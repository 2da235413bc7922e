// Package ffmpeg wraps the ffmpeg binary for combining separately
// fetched video and audio streams into one mp4 container.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/domain"
)

// AudioCodec is the codec the audio track is transcoded to.
const AudioCodec = "aac"

// stderrTailLines bounds how much ffmpeg diagnostics end up in errors.
const stderrTailLines = 3

// runFunc executes ffmpeg and returns its stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

// Remuxer merges a video stream and an audio stream with ffmpeg.
type Remuxer struct {
	ffmpegPath string
	timeout    time.Duration
	fs         afero.Fs
	run        runFunc
	logger     *slog.Logger
}

// NewRemuxer creates a remuxer. fs is used to remove inputs after a
// successful merge and must view the same files ffmpeg writes.
func NewRemuxer(cfg config.TranscoderConfig, fs afero.Fs, logger *slog.Logger) *Remuxer {
	return &Remuxer{
		ffmpegPath: cfg.Binary,
		timeout:    cfg.Timeout,
		fs:         fs,
		run:        runFFmpeg,
		logger:     logger,
	}
}

// MergeArgs builds the ffmpeg arguments: video stream copied, audio
// transcoded to AAC, mp4 output. The audio map is optional so a video-only
// file passed as its own audio source still merges.
func MergeArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-c:v", "copy",
		"-c:a", AudioCodec,
		"-movflags", "+faststart",
		outputPath,
	}
}

// Merge combines videoPath and audioPath into outputPath. audioPath may equal
// videoPath. On success both inputs are removed; on failure nothing is
// removed and the caller owns cleanup.
func (r *Remuxer) Merge(ctx context.Context, videoPath, audioPath, outputPath string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	stderr, err := r.run(ctx, r.ffmpegPath, MergeArgs(videoPath, audioPath, outputPath)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: ffmpeg: %w", domain.ErrMerge, ctxErr)
		}
		if tail := stderrTail(string(stderr), stderrTailLines); tail != "" {
			return "", fmt.Errorf("%w: %w: %s", domain.ErrMerge, err, tail)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrMerge, err)
	}

	stat, err := r.fs.Stat(outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: output missing: %w", domain.ErrMerge, err)
	}

	r.logger.Info("remux complete",
		"output", outputPath,
		"size", humanize.Bytes(uint64(stat.Size())),
		"separate_audio", audioPath != videoPath,
		"duration", time.Since(start),
	)

	r.removeInputs(videoPath, audioPath)
	return outputPath, nil
}

// removeInputs deletes the video file, then the audio file only when it is a
// different path that still exists.
func (r *Remuxer) removeInputs(videoPath, audioPath string) {
	if err := r.fs.Remove(videoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("remove video input", "path", videoPath, "error", err)
	}
	if audioPath == videoPath {
		return
	}
	if ok, _ := afero.Exists(r.fs, audioPath); !ok {
		return
	}
	if err := r.fs.Remove(audioPath); err != nil {
		r.logger.Warn("remove audio input", "path", audioPath, "error", err)
	}
}

// Available checks if the configured ffmpeg binary can be resolved.
func (r *Remuxer) Available() bool {
	_, err := exec.LookPath(r.ffmpegPath)
	return err == nil
}

// Version returns the first line of `ffmpeg -version`.
func (r *Remuxer) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, r.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

func runFFmpeg(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// stderrTail returns the last n non-empty lines joined with "; ".
func stderrTail(stderr string, n int) string {
	var lines []string
	for _, line := range strings.Split(stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "; ")
}
