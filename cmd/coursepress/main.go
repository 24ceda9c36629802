// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the CoursePress API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coursepress/internal/analytics"
	"coursepress/internal/auth"
	"coursepress/internal/cache"
	"coursepress/internal/config"
	"coursepress/internal/database"
	"coursepress/internal/handlers"
	"coursepress/internal/mailer"
	"coursepress/internal/middleware"
	"coursepress/internal/router"
	"coursepress/internal/scheduler"
	"coursepress/internal/session"
	"coursepress/internal/storage"
	"coursepress/internal/store"
)

func main() {
	// A missing .env file is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON otherwise.
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDev() {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Create the first admin account (no-op once any account exists).
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Seed(seedCtx, db, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	seedCancel()
	if err != nil {
		slog.Error("failed to seed database", "error", err)
		os.Exit(1)
	}

	// Connect to Valkey (token registry and response cache).
	valkeyClient, err := session.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Initialize data stores.
	deps := handlers.Deps{
		Categories: store.NewCategoryRepo(db, cfg.QueryTimeout),
		Courses:    store.NewCourseRepo(db, cfg.QueryTimeout),
		Blogs:      store.NewBlogRepo(db, cfg.QueryTimeout),
		Admins:     store.NewAdminStore(db, cfg.QueryTimeout),
		Settings:   store.NewSiteSettingStore(db, cfg.QueryTimeout),
		Inquiries:  store.NewInquiryStore(db, cfg.QueryTimeout),
		Audit:      store.NewAuditStore(db, cfg.QueryTimeout),
		PageViews:  store.NewPageViewStore(db, cfg.QueryTimeout),
		NotifyTo:   cfg.NotifyEmail,
	}

	// Authentication: signed tokens, revocable through the Valkey registry.
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	deps.Auth, err = auth.New(deps.Admins, tokens, session.NewRegistry(valkeyClient), auth.Policy{
		Threshold: cfg.LockoutThreshold,
		LockFor:   cfg.LockoutDuration,
	})
	if err != nil {
		slog.Error("failed to initialize authenticator", "error", err)
		os.Exit(1)
	}

	// File storage: S3-compatible when configured, local disk otherwise.
	var (
		files   storage.FileStore
		uploads fs.FS
	)
	if cfg.UseS3() {
		s3, err := storage.NewS3(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicURL)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		files = s3
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	} else {
		disk, err := storage.NewDisk(cfg.UploadsDir, cfg.UploadsPrefix)
		if err != nil {
			slog.Error("failed to open uploads directory", "error", err)
			os.Exit(1)
		}
		defer disk.Close()
		files, uploads = disk, disk.Dir()
		slog.Warn("s3 storage not configured, storing uploads on disk", "dir", cfg.UploadsDir)
	}
	deps.Uploader = storage.NewUploader(files, cfg.QueryTimeout)

	// Email notifications.
	if cfg.UseSMTP() {
		smtp, err := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.MailTimeout)
		if err != nil {
			slog.Error("failed to initialize smtp client", "error", err)
			os.Exit(1)
		}
		deps.Notifier = smtp
	} else {
		deps.Notifier = mailer.Log{}
		slog.Warn("smtp not configured, notifications are only logged")
	}

	deps.Tracker = analytics.NewTracker(deps.PageViews, cfg.QueryTimeout)

	// Public listing cache, cleared by admin writes and scheduled publishing.
	var responses *cache.Responses
	if cfg.CacheTTL > 0 {
		responses = cache.New(valkeyClient, cfg.CacheTTL)
	}

	// Background jobs: scheduled publishing and traffic retention.
	jobCfg := scheduler.DefaultConfig
	jobCfg.OnPublished = responses.InvalidateAll
	jobs, err := scheduler.New(deps.Blogs, deps.PageViews, jobCfg)
	if err != nil {
		slog.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	jobs.Start()

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst)
	defer loginLimiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Options{
		Verifier:      deps.Auth,
		LoginLimiter:  loginLimiter,
		AllowedOrigin: cfg.AllowedOrigin,
		Checks: map[string]router.Check{
			"postgres": db.PingContext,
			"valkey":   func(ctx context.Context) error { return valkeyClient.Ping(ctx).Err() },
		},
		Cache:         responses,
		Uploads:       uploads,
		UploadsPrefix: cfg.UploadsPrefix,
	}, handlers.NewPublic(deps), handlers.NewAuth(deps), handlers.NewAdmin(deps))

	// Create the HTTP server with sensible timeouts. Uploads of up to
	// 20 MB need a generous read timeout.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	jobs.Stop(ctx)
	deps.Tracker.Wait()

	slog.Info("server stopped gracefully")
}
