package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pinned/internal/auth"
	"pinned/internal/board"
	"pinned/internal/config"
	"pinned/internal/db"
	httpx "pinned/internal/http"
	"pinned/internal/imagehost"
	"pinned/internal/jobs"
	"pinned/internal/logging"
	"pinned/internal/metadata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	images, err := imagehost.NewDisk(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		log.Fatal("image host", zap.Error(err))
	}

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:        gdb,
		JWT:       jwtSvc,
		Log:       log,
		Boards:    &board.Service{DB: gdb, CleanupDelay: cfg.ImageCleanupDelay},
		Images:    images,
		Metadata:  metadata.NewFetcher(cfg.MetadataTimeout, cfg.MetadataAllowPrivate),
		UploadDir: cfg.UploadDir,
	})

	// worker
	jobsRepo := &jobs.Repo{DB: gdb}
	worker := &jobs.Worker{
		ID:       "worker-1",
		Repo:     jobsRepo,
		DB:       gdb,
		Images:   images,
		Log:      log.Named("worker"),
		Interval: cfg.WorkerPollInterval,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	log.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	<-done
}
