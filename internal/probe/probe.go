package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/livelens/media-processor/internal/metrics"
	"github.com/livelens/media-processor/pkg/models"
)

var tracer = otel.Tracer("media-prober")

// Prober extracts source metadata via ffprobe.
type Prober struct {
	log *slog.Logger
}

// New creates a Prober.
func New(log *slog.Logger) *Prober {
	return &Prober{log: log}
}

// Probe runs a single ffprobe JSON call against the source file and
// returns its parsed metadata. Any probe failure is fatal to the job
// that requested it, so errors here wrap models.ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, sourcePath string) (*models.VideoMetadata, error) {
	ctx, span := tracer.Start(ctx, "probe-video")
	defer span.End()

	start := time.Now()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		sourcePath,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrContextCanceled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: ffprobe: %v", models.ErrProbeFailed, err)
	}

	meta, err := ParseOutput(out)
	if err != nil {
		return nil, err
	}

	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("video.duration_seconds", meta.DurationSeconds),
		attribute.Int64("video.size_bytes", meta.SizeBytes),
		attribute.String("video.codec", meta.VideoCodec),
	)

	p.log.InfoContext(ctx, "Probed source file",
		"path", sourcePath,
		"durationSeconds", meta.DurationSeconds,
		"resolution", fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"videoCodec", meta.VideoCodec,
		"audioCodec", meta.AudioCodec,
	)

	return meta, nil
}

// ParseOutput converts raw ffprobe JSON into VideoMetadata. Exported
// for testing without a real ffprobe binary.
func ParseOutput(data []byte) (*models.VideoMetadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe JSON: %v", models.ErrProbeFailed, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(raw.Format.Duration), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid format duration %q", models.ErrProbeFailed, raw.Format.Duration)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(raw.Format.Size), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid format size %q", models.ErrProbeFailed, raw.Format.Size)
	}

	meta := &models.VideoMetadata{
		DurationSeconds: duration,
		SizeBytes:       size,
		// Missing bit_rate is common for some containers; default to 0.
		Bitrate: parseInt64(raw.Format.BitRate),
	}

	// First video and first audio stream win. Absence of either is not
	// an error; the corresponding fields stay zero-valued.
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if meta.VideoCodec == "" {
				meta.VideoCodec = s.CodecName
				meta.Width = s.Width
				meta.Height = s.Height
			}
		case "audio":
			if meta.AudioCodec == "" {
				meta.AudioCodec = s.CodecName
			}
		}
	}

	return meta, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// ffprobe returns numbers as strings
func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}
