package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docindex/internal/config"
	"github.com/kailas-cloud/docindex/internal/db/file"
	logpkg "github.com/kailas-cloud/docindex/internal/logger"
	"github.com/kailas-cloud/docindex/internal/metrics"
	docrepo "github.com/kailas-cloud/docindex/internal/repository/document"
	"github.com/kailas-cloud/docindex/internal/scanner"
	chiTransport "github.com/kailas-cloud/docindex/internal/transport/chi"
	"github.com/kailas-cloud/docindex/internal/transport/ipc"
	documentuc "github.com/kailas-cloud/docindex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/docindex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/docindex/internal/usecase/search"
	"github.com/kailas-cloud/docindex/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("dserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default: config/<ENV>.yaml if present)")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: dserver [-config file] document_folder [cache_size]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Println(version.String("dserver"))
		return 0
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	env := config.GetEnv()
	cfg, err := config.Load(env, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}
	cfg.ApplyDefaults()

	// Positional arguments override the file.
	cfg.Documents.BaseFolder = fs.Arg(0)
	requested := cfg.Cache.Capacity
	if fs.NArg() > 1 {
		// Non-numeric sizes count as 0 and get clamped like any other out-of-range value.
		requested, _ = strconv.Atoi(fs.Arg(1))
	}
	capacity, clamped := config.ClampCapacity(requested)
	cfg.Cache.Capacity = capacity

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		return 1
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, Output: cfg.Logging.Output})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docindex server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.String("document_folder", cfg.Documents.BaseFolder),
		zap.Int("cache_size", cfg.Cache.Capacity),
		zap.String("store", cfg.Store.Path),
		zap.String("server_pipe", cfg.IPC.ServerPipe),
	)
	if clamped {
		logger.Warn("Cache size out of range, clamped",
			zap.Int("requested", requested),
			zap.Int("cache_size", capacity),
			zap.Int("min", config.MinCacheCapacity),
			zap.Int("max", config.MaxCacheCapacity),
		)
	}

	// Register metrics explicitly (no init())
	metrics.RegisterIndexMetrics()

	ctx := context.Background()

	store := file.New(cfg.Store.Path, metrics.StoreWritesTotal, logger)
	created, err := store.EnsureExists(ctx)
	if err != nil {
		logger.Error("Failed to initialize metadata store", zap.Error(err))
		return 1
	}
	if created {
		logger.Info("Created empty metadata store", zap.String("path", store.Path()))
	}

	cache := docrepo.New(store, cfg.Cache.Capacity, metrics.CacheEventsTotal, logger)
	loaded := cache.Fill(ctx)
	metrics.CacheDocuments.Set(float64(loaded))
	logger.Info("Documents loaded", zap.Int("cached", loaded), zap.Int32("next_id", cache.Stats().NextID))

	sc := scanner.New(scanner.Mode(cfg.Scanner.Mode))
	docSvc := documentuc.New(cache, sc, cfg.Documents.BaseFolder)
	searchSvc := searchuc.New(cache, store, sc, cfg.Documents.BaseFolder,
		searchuc.Options{
			MaxWorkers:      cfg.Search.MaxWorkers,
			SerialThreshold: cfg.Search.SerialThreshold,
			MaxResults:      cfg.Search.MaxResults,
		},
		searchuc.Metrics{
			Duration: metrics.SearchDuration,
			Workers:  metrics.SearchWorkers,
			Failures: metrics.SearchWorkerFailuresTotal,
		},
	)
	proc := ipc.NewProcessor(docSvc, searchSvc, cache, ipc.Metrics{
		Requests:  metrics.RequestsTotal,
		Duration:  metrics.RequestDuration,
		CacheSize: metrics.CacheDocuments,
	}, logger)

	srv := ipc.NewServer(cfg.IPC.ServerPipe, cfg.IPC.ClientPipeFormat, proc, logger)
	if err := srv.Listen(); err != nil {
		logger.Error("Failed to create server pipe", zap.Error(err))
		return 1
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("Failed to remove server pipe", zap.Error(err))
		}
	}()

	if cfg.Admin.Addr != "" {
		admin := startAdmin(cfg, healthuc.New(store, cfg.Documents.BaseFolder), cache, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Admin.ShutdownSec)*time.Second)
			defer cancel()
			if err := admin.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during admin shutdown", zap.Error(err))
			}
		}()
	}

	// Signals stop the loop without persisting; only a Shutdown request saves.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Waiting for requests", zap.String("server_pipe", srv.Path()))
	err = srv.Serve(sigCtx)
	switch {
	case err == nil:
		logger.Info("Server stopped by shutdown request")
		return 0
	case errors.Is(err, context.Canceled):
		logger.Warn("Received signal, exiting without saving")
		return 0
	default:
		logger.Error("Server loop failed", zap.Error(err))
		return 1
	}
}

func startAdmin(cfg config.Config, health *healthuc.Service, cache *docrepo.Cache, logger *zap.Logger) *http.Server {
	metrics.RegisterAdminMetrics()

	server := chiTransport.NewServer(health, cache, logger)
	srv := &http.Server{
		Addr:         cfg.Admin.Addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Admin.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Admin.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting admin HTTP server", zap.String("addr", cfg.Admin.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin HTTP server error", zap.Error(err))
		}
	}()
	return srv
}
