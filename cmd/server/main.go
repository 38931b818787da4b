package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/asrlabs/asr-gateway/internal/api"
	"github.com/asrlabs/asr-gateway/internal/config"
	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/asrlabs/asr-gateway/internal/job"
	"github.com/asrlabs/asr-gateway/internal/media"
	"github.com/asrlabs/asr-gateway/internal/observability"
	"github.com/asrlabs/asr-gateway/internal/resilience"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before the logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Int("gpu_pool", cfg.GPUPoolSize).
		Int("cpu_pool", cfg.CPUPoolSize).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("ASR Gateway starting")

	breaker := resilience.NewCircuitBreaker(
		"engine",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	eng := engine.NewWhisperEngine(cfg.EnginePython, cfg.EngineScript, breaker, logger)
	ingestor := media.NewIngestor(cfg.TempDir)
	pool := job.NewDevicePool(map[string]int{
		engine.DeviceCUDA: cfg.GPUPoolSize,
		engine.DeviceCPU:  cfg.CPUPoolSize,
	})
	controller := job.NewController(eng, ingestor, pool, cfg.EventBuffer, logger)

	mux := http.NewServeMux()
	api.NewServer(cfg, controller, logger).Routes(mux)

	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"engine": func(ctx context.Context) error {
			return exec.CommandContext(ctx, cfg.EnginePython, "--version").Run()
		},
		"temp_dir": func(ctx context.Context) error {
			dir := cfg.TempDir
			if dir == "" {
				dir = os.TempDir()
			}
			probe := filepath.Join(dir, "asr-ready-"+uuid.New().String())
			if err := os.WriteFile(probe, nil, 0o600); err != nil {
				return err
			}
			return os.Remove(probe)
		},
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No WriteTimeout: event streams stay open for the whole transcription;
	// delivery is bounded per frame instead.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 0,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/asr", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
