// vidscore/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vidscore/analyze"
	"vidscore/api"
	"vidscore/config"
	"vidscore/media"
	"vidscore/notify"
	"vidscore/pipeline"
	"vidscore/storage"
	"vidscore/task"
	"vidscore/transcribe"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize dependencies (Runner first)
	runner, err := media.NewRunner(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize media runner", zap.Error(err))
	}

	objects, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	analyzer, err := analyze.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize analyzer", zap.Error(err))
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is empty, uploads will fail at the analysis stage")
	}

	stt := transcribe.New(cfg, logger)
	notifier := notify.New(cfg.WebhookURL, cfg.WebhookTimeout, logger)
	if cfg.WebhookURL == "" {
		logger.Warn("WEBHOOK_URL is empty, analysis results have nowhere to go")
	}

	// 3. Initialize task store and pipeline
	store := task.NewStore()
	jobs := pipeline.New(cfg, store, runner, stt, analyzer, objects, notifier, logger)

	// 4. Set up router and server
	router := api.SetupRouter(cfg, store, jobs, objects, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start the HTTP server
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()
	stop()
	logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	// The server has 5 seconds to finish the requests it is
	// currently handling.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
