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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/config"
	"rollcall/internal/device"
	"rollcall/internal/ingest"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
	"rollcall/internal/store"
)

// Worker polls the device, merges scans pushed through the queue and runs
// the absence sweeps.
func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.App, logger *slog.Logger) error {
	loc := cfg.Location()

	db, err := store.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	rules := schedule.NewPostgresSource(db.Client)
	resolver := schedule.NewResolver(rules, loc, logger)
	repo := attendance.NewRepository(db.Client)
	people := roster.NewRepository(db.Client)

	classifier := attendance.Classifier{Grace: cfg.Grace(), IgnoreAfterClose: cfg.IgnoreAfterClose}
	pipeline := ingest.NewPipeline(people, resolver, classifier, attendance.NewService(repo, loc), logger)

	dev := device.New(cfg.DeviceURL, cfg.DeviceTimeout, cfg.DeviceSkip, loc)
	if cfg.DeviceSkip {
		logger.Warn("device disabled: sync passes yield no scans")
	} else if err := dev.Health(ctx); err != nil {
		logger.Warn("device gateway not available, polling will retry", "url", cfg.DeviceURL, "err", err)
	} else {
		logger.Info("device gateway connected", "url", cfg.DeviceURL)
	}

	syncer := ingest.NewSyncer(dev, pipeline, logger)
	sweeper := attendance.NewSweeper(repo, people, resolver, cfg.SweepDelay())
	sched := ingest.NewScheduler(ingest.SchedulerConfig{
		Location:     loc,
		PollInterval: cfg.PollInterval,
		SweepDelay:   cfg.SweepDelay(),
		SweepRefresh: cfg.SweepRefresh,
		SyncOnStart:  cfg.SyncOnStart,
	}, syncer, sweeper, rules, logger)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		// Pushed scans are merged by the api process in this mode.
		logger.Info("in-memory queue: this worker only polls the device")
		q = queue.NewInMemory(1)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			logger.Warn("redis not reachable, pushed scans will wait", "addr", cfg.RedisAddr)
		}
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, logger)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "err", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := ingest.NewConsumer(q, pipeline, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("queue consumer stopped", "err", err)
		}
	}()

	logger.Info("worker started", "tz", loc.String(), "poll", cfg.PollInterval, "queue", cfg.QueueBackend)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	<-sched.Stop().Done()
	<-consumerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
	return nil
}
