package models

import "errors"

// Sentinel errors for pipeline operations.
var (
	// Validation errors
	ErrMissingVideoID    = errors.New("videoId is required")
	ErrMissingSourcePath = errors.New("sourcePath is required")

	// Stage errors. Only ErrProbeFailed is fatal to a job; the rest
	// degrade the result for the artifact they apply to.
	ErrProbeFailed     = errors.New("failed to probe video")
	ErrThumbnailFailed = errors.New("failed to extract thumbnail")
	ErrEncodeFailed    = errors.New("failed to encode variant")
	ErrUploadFailed    = errors.New("failed to upload artifact")
	ErrFFmpegFailed    = errors.New("ffmpeg execution failed")
	ErrContextCanceled = errors.New("context canceled")

	// Profile errors
	ErrInvalidProfile = errors.New("invalid quality profile")

	// Storage errors
	ErrJobNotFound = errors.New("job record not found")
)
