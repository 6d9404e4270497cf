package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"

	"earworm/internal/app"
	"earworm/internal/assets"
	"earworm/internal/config"
	"earworm/internal/logger"
	"earworm/internal/media"
	"earworm/internal/recognize"
	"earworm/internal/store"
	"earworm/internal/web"
	"earworm/internal/worker"
	"earworm/internal/ytdl"
)

func main() {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	dir, err := assets.New(cfg.DataDir)
	if err != nil {
		appLogger.Error("Failed to init data dir", "error", err)
		os.Exit(1)
	}

	// A second daemon would break the one-claimer-per-job-kind assumption,
	// so refuse to start while another instance holds the lock.
	lock := flock.New(filepath.Join(cfg.DataDir, "earworm.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		appLogger.Error("Failed to acquire instance lock", "error", err)
		os.Exit(1)
	}
	if !locked {
		appLogger.Error("Another earworm instance is already running", "lock", lock.Path())
		os.Exit(1)
	}
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		appLogger.Error("Failed to create database dir", "error", err)
		os.Exit(1)
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		appLogger.Error("Failed to init DB", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	downloader := ytdl.New()
	converter := media.NewConverter(appLogger)
	recognizer := recognize.NewClient(cfg.RecognizerURL, cfg.RecognizerKey)

	urlWorker := worker.NewURLWorker(db, dir, downloader, converter, recognizer, cfg.PollInterval, appLogger)
	urlWorker.Start()
	defer urlWorker.Stop()

	fileWorker := worker.NewFileWorker(db, dir, converter, recognizer, cfg.PollInterval, appLogger)
	fileWorker.Start()
	defer fileWorker.Stop()

	ingest := app.NewIngestService(db, dir, downloader, appLogger)
	game := app.NewGameService(db, appLogger)
	library := app.NewLibraryService(db, dir, appLogger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := web.NewHandler(ingest, game, library, dir, appLogger)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
