package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// JobsProcessed counts the total number of jobs processed by status.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livelens",
			Name:      "jobs_processed_total",
			Help:      "Total number of video jobs processed",
		},
		[]string{"status"},
	)

	// ActiveJobs tracks the number of currently processing jobs.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "livelens",
			Name:      "active_jobs",
			Help:      "Number of currently processing jobs",
		},
	)

	// JobDuration tracks end-to-end job processing time.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "livelens",
			Name:      "job_duration_seconds",
			Help:      "End-to-end time taken to process a video job",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)

	// ProbeDuration tracks metadata extraction time.
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "livelens",
			Name:      "probe_duration_seconds",
			Help:      "Time taken to extract source metadata",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// ThumbnailDuration tracks still-frame extraction time.
	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "livelens",
			Name:      "thumbnail_duration_seconds",
			Help:      "Time taken to extract the thumbnail frame",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30},
		},
	)

	// EncodeDuration tracks per-profile encode time.
	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "livelens",
			Name:      "encode_duration_seconds",
			Help:      "Time taken to encode a quality variant",
			Buckets:   []float64{10, 30, 60, 120, 300, 600},
		},
		[]string{"profile"},
	)

	// UploadDuration tracks artifact upload time.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "livelens",
			Name:      "upload_duration_seconds",
			Help:      "Time taken to upload artifacts to object storage",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
	)

	// VariantFailures counts per-profile variant failures by stage.
	VariantFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "livelens",
			Name:      "variant_failures_total",
			Help:      "Total number of failed variant encodes and uploads",
		},
		[]string{"profile", "stage"},
	)

	// ThumbnailFailures counts thumbnail extraction or upload failures.
	ThumbnailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "livelens",
			Name:      "thumbnail_failures_total",
			Help:      "Total number of failed thumbnail attempts",
		},
	)
)

// RecordSuccess records a successfully completed job.
func RecordSuccess() {
	JobsProcessed.WithLabelValues("completed").Inc()
}

// RecordFailure records a failed job.
func RecordFailure() {
	JobsProcessed.WithLabelValues("failed").Inc()
}

// RecordVariantFailure records a failed encode or upload for a profile.
func RecordVariantFailure(profile, stage string) {
	VariantFailures.WithLabelValues(profile, stage).Inc()
}
