package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/iconidentify/vidmux/internal/api"
	"github.com/iconidentify/vidmux/internal/api/handler"
	"github.com/iconidentify/vidmux/internal/catalog"
	"github.com/iconidentify/vidmux/internal/config"
	"github.com/iconidentify/vidmux/internal/provider"
	"github.com/iconidentify/vidmux/internal/repository"
	"github.com/iconidentify/vidmux/internal/service"
	"github.com/iconidentify/vidmux/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidmux %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger; level is raised to debug once config is known
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vidmux",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *debug || cfg.Server.Debug {
		level.Set(slog.LevelDebug)
	}

	// Ensure download directory exists
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Storage.DownloadPath, 0755); err != nil {
		logger.Error("failed to create download directory", "error", err)
		os.Exit(1)
	}

	// Initialize external tools
	ytdlp := provider.NewYTDLP(cfg.Provider, logger)
	remuxer := ffmpeg.NewRemuxer(cfg.Transcoder, fs, logger)

	if !ytdlp.Available() {
		logger.Warn("extraction provider not found in PATH", "binary", cfg.Provider.Binary)
	}
	if !remuxer.Available() {
		logger.Warn("transcoder not found in PATH", "binary", cfg.Transcoder.Binary)
	} else {
		versionCtx, cancelVersion := context.WithTimeout(context.Background(), 5*time.Second)
		if v, err := remuxer.Version(versionCtx); err == nil {
			logger.Info("transcoder detected", "version", v)
		}
		cancelVersion()
	}

	// Initialize services
	jobRepo := repository.NewInMemoryJobRepository()
	builder := catalog.NewBuilder(ytdlp, cfg.Provider, logger)
	downloadSvc := service.NewDownloadService(
		ytdlp,
		remuxer,
		jobRepo,
		fs,
		cfg.Storage,
		cfg.Provider,
		logger,
	)

	// Remove leftovers from interrupted jobs in background
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	go service.NewSweeper(fs, jobRepo, cfg.Storage, logger).Run(sweepCtx)

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(builder, downloadSvc, logger)
	healthHandler := handler.NewHealthHandler(map[string]handler.Dependency{
		"yt-dlp": ytdlp,
		"ffmpeg": remuxer,
	}, jobRepo, fs, cfg.Storage.DownloadPath)
	uiHandler := handler.NewUIHandler()

	// Setup router
	router := api.NewRouter(videoHandler, healthHandler, uiHandler, cfg.Server.RequestTimeout, logger)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Cancel background tasks
	cancelSweep()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
