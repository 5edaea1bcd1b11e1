// Package main is the entry point for the lease document generation
// service. It loads configuration, wires the caches, rendering engine,
// and storage uploader, and starts the HTTP server with graceful
// shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"leasedocs/internal/cache"
	"leasedocs/internal/config"
	"leasedocs/internal/database"
	"leasedocs/internal/docgen"
	"leasedocs/internal/engine"
	"leasedocs/internal/handlers"
	"leasedocs/internal/models"
	"leasedocs/internal/pdf"
	"leasedocs/internal/region"
	"leasedocs/internal/render"
	"leasedocs/internal/router"
	"leasedocs/internal/storage"
	"leasedocs/internal/store"
	"leasedocs/internal/templates"
	"leasedocs/web"
)

func main() {
	// Structured logger — text handler, debug level in every env; the
	// log volume here is modest and debug lines carry the cache traces.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Load .env in development; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"default_region", cfg.DefaultRegion,
	)

	// Background context for the cache sweepers and the engine memory
	// check. Cancelled on shutdown; none of these keep the process alive.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// PDF toolkit — form introspection/fill/flatten and size reduction.
	toolkit := pdf.NewToolkit()

	// Template cache with background sweep and best-effort prewarm of
	// the default region.
	tplCache := templates.New(templates.Config{
		Dirs:          cfg.TemplateDirs,
		MetadataTTL:   cfg.TemplateMetadataTTL,
		ContentTTL:    cfg.TemplateContentTTL,
		MaxEntries:    cfg.CacheMaxEntries,
		SweepInterval: cfg.CacheSweepInterval,
	}, toolkit)
	tplCache.Start(bgCtx)

	validator, err := region.NewValidator(cfg.DefaultRegion, func(code string) bool {
		return tplCache.Metadata(code, models.KindLease).Exists
	})
	if err != nil {
		slog.Error("invalid default region", "error", err)
		os.Exit(1)
	}

	prewarmKinds := make([]models.DocumentKind, 0, len(cfg.PrewarmKinds))
	for _, raw := range cfg.PrewarmKinds {
		kind, err := models.ParseKind(raw)
		if err != nil {
			slog.Warn("unknown prewarm kind skipped", "kind", raw)
			continue
		}
		prewarmKinds = append(prewarmKinds, kind)
	}
	go tplCache.Prewarm(bgCtx, cfg.DefaultRegion, prewarmKinds)

	// Optional Valkey tier for rendered HTML, shared across instances.
	var remote render.RemoteCache
	if cfg.ValkeyHost != "" {
		valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			slog.Warn("valkey unavailable, rendered-output sharing disabled", "error", err)
		} else {
			defer valkeyClient.Close()
			remote = cache.NewHTMLCache(valkeyClient, cfg.RenderTTL)
		}
	}

	renderCache := render.New(render.Config{
		OutputTTL:     cfg.RenderTTL,
		MaxEntries:    cfg.CacheMaxEntries,
		SweepInterval: cfg.CacheSweepInterval,
	}, web.Templates, remote)
	renderCache.Start(bgCtx)

	// Rendering engine pool — one headless Chromium, recycled under
	// memory pressure, closed on shutdown.
	pool := engine.NewPool(engine.Config{
		MemoryThreshold: cfg.EngineMemoryThreshold,
		CheckInterval:   cfg.EngineCheckInterval,
	}, &engine.ChromeLauncher{ExecPath: cfg.ChromePath}, engine.ChromiumMemory)
	pool.Start(bgCtx)
	defer pool.Close()

	generator := docgen.New(validator, tplCache, toolkit, renderCache, pool)

	// Object storage for generated documents (optional — without it the
	// API streams PDF bytes back to the caller).
	uploader, err := storage.New(storage.Config{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Bucket:     cfg.S3Bucket,
		Collection: cfg.S3Collection,
		PublicURL:  cfg.S3PublicURL,
		Retries:    cfg.UploadRetries,
	}, toolkit.Reduce)
	if err != nil {
		slog.Error("failed to initialize document storage", "error", err)
		os.Exit(1)
	}
	if uploader == nil {
		slog.Warn("document storage not configured, generated PDFs will be streamed")
	}

	// Optional document record bookkeeping.
	var recorder handlers.Recorder
	if cfg.DBHost != "" {
		db, err := database.Connect(bgCtx, cfg.DSN())
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		recorder = store.NewDocumentStore(db)
	} else {
		slog.Warn("database not configured, document records disabled")
	}

	var uploaderDep handlers.Uploader
	if uploader != nil {
		uploaderDep = uploader
	}
	docs := handlers.NewDocuments(generator, uploaderDep, recorder)
	r := router.New(docs)

	// WriteTimeout must accommodate a cold engine launch plus a long
	// rasterization (typically a few seconds, up to tens under load).
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain
	// connections before closing the rendering engine.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
