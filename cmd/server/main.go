package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicebridge/speech-relay/internal/config"
	"github.com/voicebridge/speech-relay/internal/httpapi"
	"github.com/voicebridge/speech-relay/internal/observability"
	"github.com/voicebridge/speech-relay/internal/relay"
	"github.com/voicebridge/speech-relay/internal/synth"
	"github.com/voicebridge/speech-relay/internal/translate"
	"github.com/voicebridge/speech-relay/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_region", cfg.SpeechRegion).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Relay Service starting")

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("Failed to create upload directory")
	}

	// Wire the relay: provider clients, pipeline, session manager and the
	// realtime hub the events are broadcast on
	recognizer := translate.NewAzureRecognizer(cfg)
	synthesizer := synth.NewAzureClient(cfg)

	hub := ws.NewHub()
	router := relay.NewRouter(hub)
	pipeline := relay.NewPipeline(synthesizer)
	manager := relay.NewManager(recognizer, pipeline, router)
	hub.SetController(manager)

	workflow := relay.NewFileWorkflow(recognizer, pipeline, router, cfg.UploadDir)
	api := httpapi.NewHandler(workflow, cfg.UploadDir, cfg.MaxUploadSize)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Handler())
	mux.HandleFunc("/upload", api.Upload)
	mux.HandleFunc("/download/", api.Download)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - create health check functions here to avoid import cycles
	speechKeyCheck := func(ctx context.Context) (bool, error) {
		if cfg.SpeechKey == "" {
			return false, fmt.Errorf("speech service key not configured")
		}
		return true, nil
	}
	uploadDirCheck := func(ctx context.Context) (bool, error) {
		if _, err := os.Stat(cfg.UploadDir); err != nil {
			return false, err
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"speech_credentials": speechKeyCheck,
		"upload_dir":         uploadDirCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Read and write timeouts stay unset so long-lived WebSocket
	// subscribers are not cut off by the server
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Release any live recognition streams before closing the listener
	manager.StopAll()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
