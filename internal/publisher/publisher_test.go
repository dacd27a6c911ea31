package publisher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/livelens/media-processor/pkg/models"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func writeTempArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.mp4")
	if err := os.WriteFile(path, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("write temp artifact: %v", err)
	}
	return path
}

func TestPublish(t *testing.T) {
	putter := &fakePutter{}
	pub := New(putter, "livelens-media", "livelens-media.r2.dev", testLogger())

	ref, err := pub.Publish(context.Background(), writeTempArtifact(t), "videos/vid1_720p.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(putter.inputs) != 1 {
		t.Fatalf("PutObject calls = %d, want 1", len(putter.inputs))
	}

	in := putter.inputs[0]
	if *in.Bucket != "livelens-media" {
		t.Errorf("Bucket = %q, want %q", *in.Bucket, "livelens-media")
	}
	if *in.Key != "videos/vid1_720p.mp4" {
		t.Errorf("Key = %q, want %q", *in.Key, "videos/vid1_720p.mp4")
	}
	if *in.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q, want %q", *in.ContentType, "video/mp4")
	}
	if *in.CacheControl != CacheControl {
		t.Errorf("CacheControl = %q, want %q", *in.CacheControl, CacheControl)
	}

	if ref.PublicURL != "https://livelens-media.r2.dev/videos/vid1_720p.mp4" {
		t.Errorf("PublicURL = %q, want derived URL", ref.PublicURL)
	}
	if ref.Key != "videos/vid1_720p.mp4" {
		t.Errorf("Key = %q, want %q", ref.Key, "videos/vid1_720p.mp4")
	}
}

func TestPublish_PutFails(t *testing.T) {
	putter := &fakePutter{err: errors.New("network unreachable")}
	pub := New(putter, "livelens-media", "livelens-media.r2.dev", testLogger())

	_, err := pub.Publish(context.Background(), writeTempArtifact(t), "thumbnails/vid1.jpg", "image/jpeg")
	if err == nil {
		t.Fatal("Publish() = nil, want error")
	}
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Errorf("error = %v, want wrapped ErrUploadFailed", err)
	}
}

func TestPublish_MissingLocalFile(t *testing.T) {
	putter := &fakePutter{}
	pub := New(putter, "livelens-media", "livelens-media.r2.dev", testLogger())

	_, err := pub.Publish(context.Background(), "/nonexistent/artifact.mp4", "videos/x.mp4", "video/mp4")
	if err == nil {
		t.Fatal("Publish() = nil, want error")
	}
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Errorf("error = %v, want wrapped ErrUploadFailed", err)
	}
	if len(putter.inputs) != 0 {
		t.Errorf("PutObject calls = %d, want 0", len(putter.inputs))
	}
}

func TestKeyNaming(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"thumbnail", ThumbnailKey("abc123"), "thumbnails/abc123.jpg"},
		{"variant 720p", VariantKey("abc123", "720p"), "videos/abc123_720p.mp4"},
		{"variant 1080p", VariantKey("abc123", "1080p"), "videos/abc123_1080p.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}

	// Keys are deterministic so re-running a job overwrites in place.
	if VariantKey("abc123", "720p") != VariantKey("abc123", "720p") {
		t.Error("VariantKey is not deterministic")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"videos/v_720p.mp4", "video/mp4"},
		{"thumbnails/v.jpg", "image/jpeg"},
		{"frame.jpeg", "image/jpeg"},
		{"notes.txt", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ContentTypeFor(tt.path); got != tt.want {
				t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
