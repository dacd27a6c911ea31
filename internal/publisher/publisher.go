package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/livelens/media-processor/internal/metrics"
	"github.com/livelens/media-processor/pkg/models"
)

// CacheControl is applied to every published artifact. Artifacts are
// immutable once named, so clients may cache them for a year.
const CacheControl = "public, max-age=31536000"

var tracer = otel.Tracer("media-publisher")

// ObjectPutter defines the object store operation needed to publish.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads pipeline artifacts to durable object storage.
type Publisher struct {
	client       ObjectPutter
	bucket       string
	publicDomain string
	log          *slog.Logger
}

// New creates a Publisher backed by the given object store client.
func New(client ObjectPutter, bucket, publicDomain string, log *slog.Logger) *Publisher {
	return &Publisher{
		client:       client,
		bucket:       bucket,
		publicDomain: publicDomain,
		log:          log,
	}
}

// Publish uploads a local artifact under the given key and returns its
// durable reference. Failures wrap models.ErrUploadFailed; callers
// treat them as degrading the one artifact, never the whole job.
func (p *Publisher) Publish(ctx context.Context, localPath, key, contentType string) (*models.ArtifactRef, error) {
	ctx, span := tracer.Start(ctx, "publish-artifact")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.key", key))

	start := time.Now()

	file, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrUploadFailed, localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", models.ErrUploadFailed, localPath, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         file,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(CacheControl),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put %s: %v", models.ErrUploadFailed, key, err)
	}

	metrics.UploadDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int64("artifact.size_bytes", info.Size()))

	p.log.InfoContext(ctx, "Published artifact",
		"key", key,
		"sizeBytes", info.Size(),
		"contentType", contentType,
	)

	return &models.ArtifactRef{
		Key:         key,
		PublicURL:   p.PublicURL(key),
		ContentType: contentType,
	}, nil
}

// PublicURL derives the deterministic public address for a key.
func (p *Publisher) PublicURL(key string) string {
	return fmt.Sprintf("https://%s/%s", p.publicDomain, key)
}

// ThumbnailKey returns the canonical object key for a video thumbnail.
func ThumbnailKey(videoID string) string {
	return fmt.Sprintf("thumbnails/%s.jpg", videoID)
}

// VariantKey returns the canonical object key for one quality variant.
func VariantKey(videoID, profileName string) string {
	return fmt.Sprintf("videos/%s_%s.mp4", videoID, profileName)
}

// ContentTypeFor returns the MIME type for a published artifact path.
func ContentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
