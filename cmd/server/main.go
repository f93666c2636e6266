package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"finge/internal/api"
	"finge/internal/config"
	"finge/internal/logging"
	"finge/pkg/finge"
)

var getppid = os.Getppid
var sleep = time.Sleep
var exit = os.Exit

func main() {
	var dataDir string
	var port int
	var host string
	var webDir string
	var envFile string

	flag.StringVar(&dataDir, "data-dir", "", "Directory for storing database, images and logs")
	flag.IntVar(&port, "port", 8000, "Port to run the server on")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to bind the server to")
	flag.StringVar(&webDir, "web-dir", "", "Directory of the exported web app (optional)")
	flag.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadEnvFiles(envFile); err != nil {
		slog.Warn("failed to load env file", "path", envFile, "err", err)
	}
	if dataDir != "" {
		config.SetRuntimeDataDir(dataDir)
	}
	config.SetRuntimePort(port)

	settings, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, writer, err := logging.NewLogger(filepath.Join(settings.DataDir, "logs"))
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	if config.IsFirstRun() {
		cfg := config.LoadUserConfig()
		cfg.DataDir = settings.DataDir
		if err := config.SaveUserConfig(cfg); err != nil {
			logger.Warn("failed to write initial config", "err", err)
		} else {
			logger.Info("wrote initial config", "data_dir", settings.DataDir)
		}
	}

	images, err := openImageStore(context.Background(), settings)
	if err != nil {
		logger.Error("failed to initialize image store", "kind", settings.ImageStore.Kind, "err", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	core, err := finge.OpenWithOptions(finge.Options{
		DBPath:       settings.DBPath,
		Logger:       logger,
		OnQuoteFetch: api.QuoteObserver(registry),
		Vision: finge.VisionConfig{
			Provider: settings.Vision.Provider,
			BaseURL:  settings.Vision.BaseURL,
			Model:    settings.Vision.Model,
			APIKey:   settings.Vision.APIKey,
		},
		Images:  images,
		Tickers: settings.RecommendTickers,
	})
	if err != nil {
		logger.Error("failed to initialize core", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("failed to close core", "err", err)
		}
	}()
	if settings.Vision.APIKey == "" {
		logger.Warn("vision api key missing; image scans are disabled", "provider", settings.Vision.Provider)
	}

	if os.Getenv("FINGE_PARENT_WATCH") == "1" {
		go watchParent(logger)
	}

	addr := fmt.Sprintf("%s:%d", host, config.GetRuntimePort())
	handler := api.NewRouter(core, api.RouterOptions{
		Logger:     logger,
		Epsilon:    settings.RecommendEpsilon,
		Registry:   registry,
		ImageStore: settings.ImageStore.Kind,
	})
	if resolvedWebDir := resolveWebDir(webDir); resolvedWebDir != "" {
		logger.Info("serving web app", "web_dir", resolvedWebDir)
		handler = api.WithSPA(handler, resolvedWebDir)
	}
	handler = middleware.Compress(5)(handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting",
		"addr", addr,
		"db_path", settings.DBPath,
		"image_store", settings.ImageStore.Kind,
		"vision_provider", settings.Vision.Provider,
		"epsilon", settings.RecommendEpsilon,
	)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// openImageStore returns the S3 store when configured, otherwise a local
// directory under the data dir.
func openImageStore(ctx context.Context, settings config.Settings) (finge.ImageStore, error) {
	if settings.ImageStore.Kind == "s3" {
		return finge.NewS3ImageStore(ctx, finge.S3Config{
			Bucket:   settings.ImageStore.Bucket,
			Region:   settings.ImageStore.Region,
			Endpoint: settings.ImageStore.Endpoint,
			Prefix:   settings.ImageStore.Prefix,
		})
	}
	return finge.NewLocalImageStore(filepath.Join(settings.DataDir, "images")), nil
}

func watchParent(logger *slog.Logger) {
	for {
		sleep(1 * time.Second)
		if getppid() == 1 {
			logger.Info("parent process exited; shutting down")
			exit(0)
		}
	}
}

func resolveWebDir(input string) string {
	if input != "" {
		if dirExists(input) {
			return input
		}
		return ""
	}

	candidates := []string{"web-build", "dist", "../finge-mobile/dist"}
	for _, candidate := range candidates {
		if dirExists(candidate) {
			return candidate
		}
	}
	if exe, err := os.Executable(); err == nil {
		base := filepath.Dir(exe)
		for _, candidate := range candidates {
			path := filepath.Join(base, candidate)
			if dirExists(path) {
				return path
			}
		}
	}
	return ""
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
