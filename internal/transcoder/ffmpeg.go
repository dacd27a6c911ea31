package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/livelens/media-processor/internal/metrics"
	"github.com/livelens/media-processor/pkg/models"
)

const (
	// CRF is the constant-rate-factor quality level for variant
	// encodes.
	CRF = 23

	// ThumbnailQuality is the JPEG quality factor for still frames
	// (2 is near-lossless on ffmpeg's 2-31 scale).
	ThumbnailQuality = 2
)

var tracer = otel.Tracer("media-encoder")

// Encoder runs ffmpeg to produce quality variants and thumbnails.
type Encoder struct {
	log *slog.Logger
}

// NewEncoder creates an Encoder.
func NewEncoder(log *slog.Logger) *Encoder {
	return &Encoder{log: log}
}

// Encode re-encodes the source into one quality variant. A failure is
// scoped to this profile only; callers must not let it stop the
// remaining profiles.
func (e *Encoder) Encode(ctx context.Context, sourcePath string, profile Profile, outputPath string) error {
	ctx, span := tracer.Start(ctx, "encode-variant")
	defer span.End()
	span.SetAttributes(attribute.String("profile.name", profile.Name))

	start := time.Now()

	args := BuildEncodeArgs(sourcePath, profile, outputPath)
	if err := e.runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("%w: profile %s: %v", models.ErrEncodeFailed, profile.Name, err)
	}

	metrics.EncodeDuration.WithLabelValues(profile.Name).Observe(time.Since(start).Seconds())

	e.log.InfoContext(ctx, "Encoded variant",
		"profile", profile.Name,
		"output", outputPath,
		"durationSeconds", time.Since(start).Seconds(),
	)

	return nil
}

// ExtractThumbnail captures a single still frame at the given offset.
// An offset past the end of the source makes ffmpeg exit non-zero;
// callers treat that as a degraded result, not a job failure.
func (e *Encoder) ExtractThumbnail(ctx context.Context, sourcePath, outputPath string, offset time.Duration) error {
	ctx, span := tracer.Start(ctx, "extract-thumbnail")
	defer span.End()

	start := time.Now()

	args := BuildThumbnailArgs(sourcePath, outputPath, offset)
	if err := e.runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("%w: %v", models.ErrThumbnailFailed, err)
	}

	metrics.ThumbnailDuration.Observe(time.Since(start).Seconds())

	return nil
}

// BuildEncodeArgs constructs the ffmpeg arguments for one variant.
// The output is an MP4 with the moov atom up front (faststart) so
// playback can begin before the whole file is fetched, scaled with a
// lanczos filter, rate-controlled with a buffer of twice the target
// video bitrate.
func BuildEncodeArgs(sourcePath string, profile Profile, outputPath string) []string {
	return []string{
		"-i", sourcePath,
		"-c:v", "libx264",
		"-preset", profile.Preset,
		"-crf", fmt.Sprintf("%d", CRF),
		"-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", profile.Width, profile.Height),
		"-b:v", fmt.Sprintf("%dk", profile.VideoBitrate),
		"-maxrate", fmt.Sprintf("%dk", profile.VideoBitrate),
		"-bufsize", fmt.Sprintf("%dk", profile.BufferSize()),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", profile.AudioBitrate),
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		outputPath,
	}
}

// BuildThumbnailArgs constructs the ffmpeg arguments for a single
// still-frame capture.
func BuildThumbnailArgs(sourcePath, outputPath string, offset time.Duration) []string {
	return []string{
		"-i", sourcePath,
		"-ss", FormatOffset(offset),
		"-vframes", "1",
		"-q:v", fmt.Sprintf("%d", ThumbnailQuality),
		"-y",
		outputPath,
	}
}

// FormatOffset renders a seek offset as HH:MM:SS.
func FormatOffset(offset time.Duration) string {
	total := int(offset.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// runFFmpeg executes ffmpeg with the given arguments, monitoring its
// stderr for progress and errors.
func (e *Encoder) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Monitor stderr for progress and errors
	go func() {
		defer wg.Done()
		e.monitorOutput(ctx, stderrPipe)
	}()

	// Drain stdout
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.Discard, stdoutPipe)
	}()

	// The pipe readers must finish before Wait closes the pipes.
	wg.Wait()
	cmdErr := cmd.Wait()

	if cmdErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: context canceled", models.ErrFFmpegFailed)
		}
		return fmt.Errorf("%w: %v", models.ErrFFmpegFailed, cmdErr)
	}

	return nil
}

// monitorOutput reads and logs FFmpeg output.
func (e *Encoder) monitorOutput(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
			line := scanner.Text()
			if strings.Contains(line, "frame=") || strings.Contains(line, "time=") {
				e.log.Debug("FFmpeg progress", "output", line)
			} else if strings.Contains(line, "error") || strings.Contains(line, "Error") {
				e.log.Warn("FFmpeg warning", "output", line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		e.log.Warn("FFmpeg output scanner error", "error", err)
	}
}
