package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultCheckTimeout bounds each dependency check.
const DefaultCheckTimeout = 5 * time.Second

// Status is the structured health check response.
type Status struct {
	Status    string                    `json:"status"`
	Service   string                    `json:"service"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks,omitempty"`
}

// ComponentCheck reports the health of a single dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ObjectStoreClient defines the object store operation needed for
// health checks.
type ObjectStoreClient interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// JobStoreClient defines the job record store check.
type JobStoreClient interface {
	DescribeTable(ctx context.Context) error
}

// Config holds health checker configuration.
type Config struct {
	ServiceName  string
	ObjectStore  ObjectStoreClient
	Bucket       string
	JobStore     JobStoreClient
	Logger       *slog.Logger
	CheckTimeout time.Duration
}

// Checker reports liveness and dependency reachability. The pipeline
// core does not depend on it; it only answers "is this process alive
// and are its collaborators reachable".
type Checker struct {
	config *Config
}

// NewChecker creates a health checker.
func NewChecker(config *Config) *Checker {
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = DefaultCheckTimeout
	}
	return &Checker{config: config}
}

// Check probes all configured dependencies. An unreachable object
// store makes the process unhealthy; an unreachable job store only
// degrades it, since results can still be returned to the caller.
func (c *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Status:    "healthy",
		Service:   c.config.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	if c.config.ObjectStore != nil && c.config.Bucket != "" {
		check := c.checkObjectStore(ctx)
		status.Checks["object_store"] = check
		if check.Status != "healthy" {
			status.Status = "unhealthy"
		}
	}

	if c.config.JobStore != nil {
		check := c.checkJobStore(ctx)
		status.Checks["job_store"] = check
		if check.Status != "healthy" && status.Status == "healthy" {
			status.Status = "degraded"
		}
	}

	return status
}

func (c *Checker) checkObjectStore(ctx context.Context) ComponentCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	_, err := c.config.ObjectStore.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.Bucket),
	})

	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "unhealthy",
			Latency: latency.String(),
			Error:   err.Error(),
		}
	}

	return ComponentCheck{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

func (c *Checker) checkJobStore(ctx context.Context) ComponentCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	err := c.config.JobStore.DescribeTable(ctx)

	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "unhealthy",
			Latency: latency.String(),
			Error:   err.Error(),
		}
	}

	return ComponentCheck{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// LivenessHandler returns a plain-text handler that only confirms the
// process is alive.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// Handler returns the structured health check handler. Degraded still
// answers 200; only an unhealthy object store turns the response 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(status); err != nil && c.config.Logger != nil {
			c.config.Logger.Error("Failed to encode health check response", "error", err)
		}
	}
}

// ReadinessHandler returns a handler that answers 200 only when the
// job store can serve a trivial request.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if c.config.JobStore != nil {
			check := c.checkJobStore(r.Context())
			if check.Status != "healthy" {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  check.Error,
				})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}
