package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/livelens/media-processor/internal/metrics"
	"github.com/livelens/media-processor/internal/publisher"
	"github.com/livelens/media-processor/internal/transcoder"
	"github.com/livelens/media-processor/pkg/models"
)

var tracer = otel.Tracer("media-pipeline")

// Prober extracts source metadata. A probe failure aborts the job.
type Prober interface {
	Probe(ctx context.Context, sourcePath string) (*models.VideoMetadata, error)
}

// Encoder produces quality variants and still frames from a source.
type Encoder interface {
	Encode(ctx context.Context, sourcePath string, profile transcoder.Profile, outputPath string) error
	ExtractThumbnail(ctx context.Context, sourcePath, outputPath string, offset time.Duration) error
}

// Publisher uploads a local artifact and returns its durable reference.
type Publisher interface {
	Publish(ctx context.Context, localPath, key, contentType string) (*models.ArtifactRef, error)
}

// Config holds pipeline dependencies and tuning.
type Config struct {
	Prober          Prober
	Encoder         Encoder
	Publisher       Publisher
	Profiles        []transcoder.Profile
	WorkDir         string
	EncodeWorkers   int
	UploadWorkers   int
	ThumbnailOffset time.Duration
	Logger          *slog.Logger
}

// Pipeline orchestrates one video job: probe, thumbnail, variants,
// publication. It owns the job aggregate; concurrent stage workers
// write only their own outcome slots, merged here after they finish.
type Pipeline struct {
	prober          Prober
	encoder         Encoder
	publisher       Publisher
	profiles        []transcoder.Profile
	workDir         string
	encodeWorkers   int
	uploadWorkers   int
	thumbnailOffset time.Duration
	log             *slog.Logger
}

// New creates a Pipeline, validating the configured profiles.
func New(cfg *Config) (*Pipeline, error) {
	if err := transcoder.ValidateProfiles(cfg.Profiles); err != nil {
		return nil, err
	}

	p := &Pipeline{
		prober:          cfg.Prober,
		encoder:         cfg.Encoder,
		publisher:       cfg.Publisher,
		profiles:        cfg.Profiles,
		workDir:         cfg.WorkDir,
		encodeWorkers:   cfg.EncodeWorkers,
		uploadWorkers:   cfg.UploadWorkers,
		thumbnailOffset: cfg.ThumbnailOffset,
		log:             cfg.Logger,
	}

	if p.workDir == "" {
		p.workDir = os.TempDir()
	}
	if p.encodeWorkers < 1 {
		p.encodeWorkers = 1
	}
	if p.uploadWorkers < 1 {
		p.uploadWorkers = 1
	}
	if p.thumbnailOffset <= 0 {
		p.thumbnailOffset = 10 * time.Second
	}

	return p, nil
}

// Process runs the full pipeline for one source file. It always
// returns a finalized job: status Failed means metadata extraction
// failed, status Completed means metadata succeeded, with any degraded
// artifacts visible as absent optional fields.
func (p *Pipeline) Process(ctx context.Context, videoID, sourcePath string) *models.VideoJob {
	ctx, span := tracer.Start(ctx, "process-video")
	defer span.End()
	span.SetAttributes(
		attribute.String("video.id", videoID),
		attribute.String("video.source_path", sourcePath),
	)

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	start := time.Now()
	job := models.NewVideoJob(videoID, sourcePath)

	if err := job.Validate(); err != nil {
		return p.fail(ctx, job, err)
	}

	p.log.InfoContext(ctx, "Processing video",
		"videoId", videoID,
		"sourcePath", sourcePath,
		"profiles", len(p.profiles),
	)

	workDir, err := p.createWorkspace(videoID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to create workspace: %w", err))
	}
	// The workspace lives exactly as long as the job, partial files
	// included, on every exit path.
	defer p.releaseWorkspace(ctx, workDir)

	meta, err := p.prober.Probe(ctx, sourcePath)
	if err != nil {
		return p.fail(ctx, job, err)
	}
	job.Metadata = meta

	encodeSem := make(chan struct{}, p.encodeWorkers)
	uploadSem := make(chan struct{}, p.uploadWorkers)

	var wg sync.WaitGroup

	// Thumbnail and variants have no data dependency on each other;
	// only the probe gates them.
	var thumbnailURL string
	wg.Add(1)
	go func() {
		defer wg.Done()
		thumbnailURL = p.processThumbnail(ctx, videoID, sourcePath, workDir, uploadSem)
	}()

	outcomes := make([]models.VariantOutcome, len(p.profiles))
	for i, profile := range p.profiles {
		wg.Add(1)
		go func(i int, profile transcoder.Profile) {
			defer wg.Done()
			outcomes[i] = p.processVariant(ctx, videoID, sourcePath, workDir, profile, encodeSem, uploadSem)
		}(i, profile)
	}

	wg.Wait()

	// Merge worker outcomes into the aggregate. Only the orchestrator
	// mutates the job.
	job.ThumbnailURL = thumbnailURL
	job.Outcomes = outcomes
	for _, outcome := range outcomes {
		if outcome.Status == models.VariantSucceeded {
			job.Variants[outcome.ProfileName] = outcome.PublicURL
		}
	}

	job.Status = models.StatusCompleted
	metrics.RecordSuccess()
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	p.log.InfoContext(ctx, "Video processed",
		"videoId", videoID,
		"variants", len(job.Variants),
		"thumbnail", job.ThumbnailURL != "",
		"durationSeconds", time.Since(start).Seconds(),
	)

	return job
}

func (p *Pipeline) fail(ctx context.Context, job *models.VideoJob, err error) *models.VideoJob {
	job.Status = models.StatusFailed
	job.Error = err.Error()
	metrics.RecordFailure()

	p.log.ErrorContext(ctx, "Video processing failed",
		"videoId", job.VideoID,
		"error", err,
	)

	return job
}

func (p *Pipeline) createWorkspace(videoID string) (string, error) {
	if err := os.MkdirAll(p.workDir, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(p.workDir, fmt.Sprintf("job-%s-*", videoID))
}

// releaseWorkspace removes the scratch directory. Cleanup failure is
// logged, never surfaced as job failure.
func (p *Pipeline) releaseWorkspace(ctx context.Context, workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		p.log.WarnContext(ctx, "Failed to remove workspace", "path", workDir, "error", err)
	}
}

// processThumbnail extracts and publishes the preview frame, returning
// its public URL or "" if either step failed. Both failures are
// degraded results, not job failures.
func (p *Pipeline) processThumbnail(ctx context.Context, videoID, sourcePath, workDir string, uploadSem chan struct{}) string {
	ctx, span := tracer.Start(ctx, "process-thumbnail")
	defer span.End()

	thumbPath := filepath.Join(workDir, fmt.Sprintf("%s_thumbnail.jpg", videoID))

	if err := p.encoder.ExtractThumbnail(ctx, sourcePath, thumbPath, p.thumbnailOffset); err != nil {
		// A seek offset past the end of a short source lands here.
		metrics.ThumbnailFailures.Inc()
		p.log.WarnContext(ctx, "Thumbnail extraction failed, continuing without",
			"videoId", videoID,
			"error", err,
		)
		return ""
	}

	if err := p.acquire(ctx, uploadSem); err != nil {
		metrics.ThumbnailFailures.Inc()
		return ""
	}
	ref, err := p.publisher.Publish(ctx, thumbPath, publisher.ThumbnailKey(videoID), publisher.ContentTypeFor(thumbPath))
	<-uploadSem
	if err != nil {
		metrics.ThumbnailFailures.Inc()
		p.log.WarnContext(ctx, "Thumbnail upload failed, continuing without",
			"videoId", videoID,
			"error", err,
		)
		return ""
	}

	return ref.PublicURL
}

// processVariant encodes and publishes one quality variant. Failures
// are scoped to this profile and recorded in its outcome slot.
func (p *Pipeline) processVariant(ctx context.Context, videoID, sourcePath, workDir string, profile transcoder.Profile, encodeSem, uploadSem chan struct{}) models.VariantOutcome {
	ctx, span := tracer.Start(ctx, "process-variant")
	defer span.End()
	span.SetAttributes(attribute.String("profile.name", profile.Name))

	outcome := models.VariantOutcome{
		ProfileName: profile.Name,
		Status:      models.VariantFailed,
	}

	outputPath := filepath.Join(workDir, fmt.Sprintf("video_%s.mp4", profile.Name))

	if err := p.acquire(ctx, encodeSem); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	err := p.encoder.Encode(ctx, sourcePath, profile, outputPath)
	<-encodeSem
	if err != nil {
		metrics.RecordVariantFailure(profile.Name, "encode")
		p.log.WarnContext(ctx, "Variant encode failed",
			"videoId", videoID,
			"profile", profile.Name,
			"error", err,
		)
		outcome.Error = err.Error()
		return outcome
	}

	if err := p.acquire(ctx, uploadSem); err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	ref, err := p.publisher.Publish(ctx, outputPath, publisher.VariantKey(videoID, profile.Name), publisher.ContentTypeFor(outputPath))
	<-uploadSem
	if err != nil {
		metrics.RecordVariantFailure(profile.Name, "upload")
		p.log.WarnContext(ctx, "Variant upload failed",
			"videoId", videoID,
			"profile", profile.Name,
			"error", err,
		)
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Status = models.VariantSucceeded
	outcome.PublicURL = ref.PublicURL
	return outcome
}

func (p *Pipeline) acquire(ctx context.Context, sem chan struct{}) error {
	// Checked up front: with a free semaphore slot both select cases
	// are ready and a cancelled context could still win a slot.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrContextCanceled, err)
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrContextCanceled, ctx.Err())
	}
}
