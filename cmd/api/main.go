package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/httpapi"
	"rollcall/internal/ingest"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runHTTP(ctx, cfg, logger); err != nil {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func runHTTP(ctx context.Context, cfg config.App, logger *slog.Logger) error {
	db, err := store.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	repo := attendance.NewRepository(db.Client)
	people := roster.NewRepository(db.Client)
	admin := attendance.NewAdmin(repo, people)
	health := map[string]httpapi.HealthCheck{"db": db.Healthy}

	var q queue.Queue
	var depth func(context.Context) (int64, error)
	if cfg.QueueBackend == "memory" {
		// No worker can read this queue, so pushed scans are merged here.
		q = queue.NewInMemory(64)
		loc := cfg.Location()
		resolver := schedule.NewResolver(schedule.NewPostgresSource(db.Client), loc, logger)
		classifier := attendance.Classifier{Grace: cfg.Grace(), IgnoreAfterClose: cfg.IgnoreAfterClose}
		pipeline := ingest.NewPipeline(people, resolver, classifier, attendance.NewService(repo, loc), logger)
		go func() {
			if err := ingest.NewConsumer(q, pipeline, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("in-process consumer stopped", "err", err)
			}
		}()
		logger.Info("in-memory queue: pushed scans are merged by the api process")
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, logger)
		health["redis"] = redisClient.Healthy
		depth = func(ctx context.Context) (int64, error) { return redisClient.QueueDepth(ctx, cfg.QueueKey) }
	}

	router := httpapi.NewRouter(httpapi.Options{
		Queue:           q,
		Admin:           admin,
		Location:        cfg.Location(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health:          health,
		Logger:          logger,
		QueueDepth:      depth,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}
