package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livelens/media-processor/internal/config"
	"github.com/livelens/media-processor/internal/health"
	"github.com/livelens/media-processor/internal/logger"
	"github.com/livelens/media-processor/internal/observability"
	"github.com/livelens/media-processor/internal/pipeline"
	"github.com/livelens/media-processor/internal/probe"
	"github.com/livelens/media-processor/internal/publisher"
	"github.com/livelens/media-processor/internal/storage"
	"github.com/livelens/media-processor/internal/transcoder"
	"github.com/livelens/media-processor/pkg/models"
)

const (
	ShutdownTimeout = 5 * time.Second
	StartupTimeout  = 10 * time.Second
)

func main() {
	videoID := flag.String("id", "", "video id for a single source file (generated when empty)")
	lookupID := flag.String("lookup", "", "print the stored result for a video id and exit")
	flag.Parse()

	log := logger.New()
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		logger.Info(context.Background(), log, "No .env file found, relying on system ENV variables")
	}

	sources := flag.Args()
	if *lookupID == "" && len(sources) == 0 {
		logger.Error(context.Background(), log, "No source files given",
			"usage", "processor [-id VIDEO_ID] SOURCE [SOURCE...] | processor -lookup VIDEO_ID")
		os.Exit(2)
	}
	if *videoID != "" && len(sources) > 1 {
		logger.Error(context.Background(), log, "-id is only valid with a single source file")
		os.Exit(2)
	}
	if *lookupID != "" && len(sources) > 0 {
		logger.Error(context.Background(), log, "-lookup does not take source files")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error(context.Background(), log, "Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error(context.Background(), log, "Invalid configuration", "error", err)
		os.Exit(1)
	}

	if *lookupID != "" {
		os.Exit(runLookup(context.Background(), cfg, log, *lookupID))
	}

	shutdownTracer, err := observability.InitTracer(context.Background(),
		"media-processor", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Error(context.Background(), log, "Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error(context.Background(), log, "Failed to shutdown tracer", "error", err)
		}
	}()

	startupCtx, startupCancel := context.WithTimeout(context.Background(), StartupTimeout)
	defer startupCancel()

	s3Client, err := publisher.NewS3Client(startupCtx, cfg)
	if err != nil {
		logger.Error(context.Background(), log, "Failed to create object store client", "error", err)
		os.Exit(1)
	}

	pub := publisher.New(s3Client, cfg.Storage.Bucket, cfg.Storage.PublicDomain, log)

	var jobStore *storage.JobStore
	if cfg.Storage.DynamoDBTable != "" {
		jobStore, err = storage.NewJobStore(startupCtx, cfg)
		if err != nil {
			logger.Error(context.Background(), log, "Failed to initialize job store", "error", err)
			os.Exit(1)
		}
	}

	proc, err := pipeline.New(&pipeline.Config{
		Prober:          probe.New(log),
		Encoder:         transcoder.NewEncoder(log),
		Publisher:       pub,
		Profiles:        transcoder.DefaultProfiles,
		WorkDir:         cfg.Pipeline.WorkDir,
		EncodeWorkers:   cfg.Pipeline.EncodeWorkers,
		UploadWorkers:   cfg.Pipeline.UploadWorkers,
		ThumbnailOffset: time.Duration(cfg.Pipeline.ThumbnailOffset) * time.Second,
		Logger:          log,
	})
	if err != nil {
		logger.Error(context.Background(), log, "Failed to build pipeline", "error", err)
		os.Exit(1)
	}

	checkerCfg := &health.Config{
		ServiceName: "media-processor",
		ObjectStore: s3Client,
		Bucket:      cfg.Storage.Bucket,
		Logger:      log,
	}
	if jobStore != nil {
		checkerCfg.JobStore = jobStore
	}
	checker := health.NewChecker(checkerCfg)

	server := startMetricsServer(cfg.Pipeline.MetricsPort, checker, log)

	// Graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info(context.Background(), log, "Shutting down processor...")
		cancel()
	}()

	failed := runJobs(ctx, cfg, proc, jobStore, log, sources, *videoID)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), log, "Failed to shutdown metrics server", "error", err)
	}

	if failed {
		os.Exit(1)
	}
}

// runLookup prints the persisted result for a previously processed
// video and returns the process exit code.
func runLookup(ctx context.Context, cfg *config.Config, log *slog.Logger, videoID string) int {
	if cfg.Storage.DynamoDBTable == "" {
		logger.Error(ctx, log, "-lookup requires DYNAMODB_TABLE to be set")
		return 2
	}

	lookupCtx, cancel := context.WithTimeout(ctx, StartupTimeout)
	defer cancel()

	jobStore, err := storage.NewJobStore(lookupCtx, cfg)
	if err != nil {
		logger.Error(ctx, log, "Failed to initialize job store", "error", err)
		return 1
	}

	job, err := jobStore.GetResult(lookupCtx, videoID)
	if errors.Is(err, models.ErrJobNotFound) {
		logger.Error(ctx, log, "No stored result for video", "videoId", videoID)
		return 1
	}
	if err != nil {
		logger.Error(ctx, log, "Failed to fetch job result", "videoId", videoID, "error", err)
		return 1
	}

	if err := json.NewEncoder(os.Stdout).Encode(job); err != nil {
		logger.Error(ctx, log, "Failed to write job result", "videoId", videoID, "error", err)
		return 1
	}
	return 0
}

// runJobs processes every source with a process-wide concurrency cap
// and reports whether any job failed.
func runJobs(ctx context.Context, cfg *config.Config, proc *pipeline.Pipeline, jobStore *storage.JobStore, log *slog.Logger, sources []string, explicitID string) bool {
	sem := make(chan struct{}, cfg.Pipeline.MaxConcurrentJobs)
	var wg sync.WaitGroup
	var anyFailed atomic.Bool

	out := json.NewEncoder(os.Stdout)
	var outMu sync.Mutex

	for _, source := range sources {
		id := explicitID
		if id == "" {
			id = uuid.New().String()
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			logger.Info(ctx, log, "Context cancelled, skipping remaining sources")
			wg.Wait()
			return true
		}

		wg.Add(1)
		go func(id, source string) {
			defer wg.Done()
			defer func() { <-sem }()

			job := proc.Process(ctx, id, source)
			if job.Status != models.StatusCompleted {
				anyFailed.Store(true)
			}

			if jobStore != nil {
				if err := jobStore.SaveResult(ctx, job); err != nil {
					// Persistence lives outside the job contract.
					logger.Warn(ctx, log, "Failed to persist job result",
						"videoId", id,
						"error", err,
					)
				}
			}

			outMu.Lock()
			if err := out.Encode(job); err != nil {
				logger.Error(ctx, log, "Failed to write job result", "videoId", id, "error", err)
			}
			outMu.Unlock()
		}(id, source)
	}

	wg.Wait()
	return anyFailed.Load()
}

func startMetricsServer(port int, checker *health.Checker, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/health", checker.Handler())
	mux.HandleFunc("/ready", checker.ReadinessHandler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(context.Background(), log, "Starting metrics server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), log, "Metrics server error", "error", err)
		}
	}()

	return server
}
