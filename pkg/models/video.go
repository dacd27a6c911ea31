package models

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsValid returns true if the status is a valid JobStatus.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true once the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VideoMetadata holds the probed properties of a source file. It is
// produced once per job and never mutated afterwards.
type VideoMetadata struct {
	DurationSeconds float64 `json:"durationSeconds" dynamodbav:"duration_seconds"`
	SizeBytes       int64   `json:"sizeBytes" dynamodbav:"size_bytes"`
	Width           int     `json:"width" dynamodbav:"width"`
	Height          int     `json:"height" dynamodbav:"height"`
	VideoCodec      string  `json:"videoCodec,omitempty" dynamodbav:"video_codec,omitempty"`
	AudioCodec      string  `json:"audioCodec,omitempty" dynamodbav:"audio_codec,omitempty"`
	Bitrate         int64   `json:"bitrate" dynamodbav:"bitrate"`
}

// VariantStatus is the outcome of one profile's encode+publish step.
type VariantStatus string

const (
	VariantSucceeded VariantStatus = "succeeded"
	VariantFailed    VariantStatus = "failed"
)

// VariantOutcome records what happened to a single quality profile.
// One is created per requested profile and is never mutated after the
// encode+publish step for that profile completes.
type VariantOutcome struct {
	ProfileName string        `json:"profileName" dynamodbav:"profile_name"`
	Status      VariantStatus `json:"status" dynamodbav:"status"`
	PublicURL   string        `json:"publicUrl,omitempty" dynamodbav:"public_url,omitempty"`
	Error       string        `json:"error,omitempty" dynamodbav:"error,omitempty"`
}

// ArtifactRef is the result of a successful publish.
type ArtifactRef struct {
	Key         string `json:"key"`
	PublicURL   string `json:"publicUrl"`
	ContentType string `json:"contentType"`
}

// VideoJob is the aggregate result of one pipeline run. It is created
// by the orchestrator at job start, mutated only by the orchestrator as
// stages complete, finalized exactly once, and then returned to the
// caller as an immutable record.
type VideoJob struct {
	VideoID      string            `json:"videoId" dynamodbav:"video_id"`
	SourcePath   string            `json:"sourcePath" dynamodbav:"source_path"`
	Status       JobStatus         `json:"status" dynamodbav:"status"`
	Metadata     *VideoMetadata    `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	ThumbnailURL string            `json:"thumbnailUrl,omitempty" dynamodbav:"thumbnail_url,omitempty"`
	Variants     map[string]string `json:"variants" dynamodbav:"variants"`
	Outcomes     []VariantOutcome  `json:"outcomes,omitempty" dynamodbav:"outcomes,omitempty"`
	Error        string            `json:"error,omitempty" dynamodbav:"error_message,omitempty"`
}

// NewVideoJob creates a job in the Processing state with an empty
// variants map.
func NewVideoJob(videoID, sourcePath string) *VideoJob {
	return &VideoJob{
		VideoID:    videoID,
		SourcePath: sourcePath,
		Status:     StatusProcessing,
		Variants:   make(map[string]string),
	}
}

// Validate checks that the job identifies a processable source.
func (j *VideoJob) Validate() error {
	if j.VideoID == "" {
		return ErrMissingVideoID
	}
	if j.SourcePath == "" {
		return ErrMissingSourcePath
	}
	return nil
}
