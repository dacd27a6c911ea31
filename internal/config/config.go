package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	Storage       StorageConfig
	Pipeline      PipelineConfig
	Observability ObservabilityConfig
}

// StorageConfig holds object store and job record store configuration.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicDomain  string
	Region        string
	DynamoDBTable string
}

// PipelineConfig holds per-job processing configuration.
type PipelineConfig struct {
	WorkDir           string
	EncodeWorkers     int
	UploadWorkers     int
	MaxConcurrentJobs int
	ThumbnailOffset   int
	MetricsPort       int
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
}

// Default values
const (
	DefaultRegion            = "auto"
	DefaultWorkDir           = "/tmp/processing"
	DefaultEncodeWorkers     = 2
	DefaultUploadWorkers     = 8
	DefaultMaxConcurrentJobs = 1
	DefaultThumbnailOffset   = 10
	DefaultMetricsPort       = 2112
	DefaultOTLPEndpoint      = "localhost:4317"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		Storage: StorageConfig{
			Endpoint:      os.Getenv("R2_ENDPOINT"),
			AccessKey:     os.Getenv("R2_ACCESS_KEY"),
			SecretKey:     os.Getenv("R2_SECRET_KEY"),
			Bucket:        os.Getenv("R2_BUCKET"),
			PublicDomain:  os.Getenv("PUBLIC_DOMAIN"),
			Region:        getEnv("AWS_REGION", DefaultRegion),
			DynamoDBTable: os.Getenv("DYNAMODB_TABLE"),
		},
		Pipeline: PipelineConfig{
			WorkDir:           getEnv("WORK_DIR", DefaultWorkDir),
			EncodeWorkers:     getEnvInt("ENCODE_WORKERS", DefaultEncodeWorkers),
			UploadWorkers:     getEnvInt("UPLOAD_WORKERS", DefaultUploadWorkers),
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", DefaultMaxConcurrentJobs),
			ThumbnailOffset:   getEnvInt("THUMBNAIL_OFFSET_SECONDS", DefaultThumbnailOffset),
			MetricsPort:       getEnvInt("METRICS_PORT", DefaultMetricsPort),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
	}

	// The public URL host defaults to the bucket's r2.dev hostname so
	// published URLs stay deterministic without extra configuration.
	if cfg.Storage.PublicDomain == "" && cfg.Storage.Bucket != "" {
		cfg.Storage.PublicDomain = cfg.Storage.Bucket + ".r2.dev"
	}

	return cfg, nil
}

// Validate checks configuration required to run the processor.
func (c *Config) Validate() error {
	var errs []string

	if c.Storage.Endpoint == "" {
		errs = append(errs, "R2_ENDPOINT is required")
	}
	if c.Storage.AccessKey == "" {
		errs = append(errs, "R2_ACCESS_KEY is required")
	}
	if c.Storage.SecretKey == "" {
		errs = append(errs, "R2_SECRET_KEY is required")
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, "R2_BUCKET is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}
