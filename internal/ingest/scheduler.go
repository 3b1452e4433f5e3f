package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rollcall/internal/attendance"
	"rollcall/internal/metrics"
	"rollcall/internal/schedule"
)

// RuleLister returns every active schedule rule.
type RuleLister interface {
	AllActive(ctx context.Context) ([]schedule.Rule, error)
}

// DaySweeper sweeps one local day at a reference instant.
type DaySweeper interface {
	SweepDay(ctx context.Context, day, ref time.Time) (attendance.SweepResult, error)
}

// SchedulerConfig holds the timing knobs of the scheduler.
type SchedulerConfig struct {
	Location     *time.Location
	PollInterval time.Duration
	SweepDelay   time.Duration
	SweepRefresh time.Duration
	SyncOnStart  bool
}

// Scheduler drives periodic sync ticks and the absence sweeps due at each
// window's close time.
type Scheduler struct {
	cfg     SchedulerConfig
	cron    *cron.Cron
	syncer  *Syncer
	sweeper DaySweeper
	rules   RuleLister
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	sweeps []cron.EntryID
	closes []schedule.CloseTime
}

// NewScheduler wires a scheduler. Nothing runs until Start.
func NewScheduler(cfg SchedulerConfig, syncer *Syncer, sweeper DaySweeper, rules RuleLister, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.SweepRefresh <= 0 {
		cfg.SweepRefresh = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		cron:    cron.New(cron.WithLocation(cfg.Location)),
		syncer:  syncer,
		sweeper: sweeper,
		rules:   rules,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the jobs and starts the cron runner. Jobs receive ctx and
// stop doing work once it is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	poll := fmt.Sprintf("@every %s", s.cfg.PollInterval)
	if _, err := s.cron.AddFunc(poll, func() { s.syncer.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	if err := s.RefreshSweeps(ctx); err != nil {
		// Keep running with polling only; the next refresh retries.
		s.logger.Error("load sweep schedule failed", "err", err)
	}
	refresh := fmt.Sprintf("@every %s", s.cfg.SweepRefresh)
	if _, err := s.cron.AddFunc(refresh, func() {
		if err := s.RefreshSweeps(ctx); err != nil {
			s.logger.Error("refresh sweep schedule failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep refresh: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "poll", s.cfg.PollInterval, "sweep_delay", s.cfg.SweepDelay, "tz", s.cfg.Location.String())

	if s.cfg.SyncOnStart {
		go s.syncer.Tick(ctx)
	}
	return nil
}

// Stop halts the cron runner and returns a context that is done once
// running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RefreshSweeps reloads the active rules and replaces the sweep entries with
// one per distinct close time. An unchanged set is left alone.
func (s *Scheduler) RefreshSweeps(ctx context.Context) error {
	rules, err := s.rules.AllActive(ctx)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}
	closes := schedule.CloseTimes(rules, s.cfg.SweepDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sameCloses(s.closes, closes) && len(s.sweeps) == len(closes) {
		return nil
	}

	for _, id := range s.sweeps {
		s.cron.Remove(id)
	}
	s.sweeps = s.sweeps[:0]
	s.closes = nil
	for _, ct := range closes {
		ct := ct
		id, err := s.cron.AddFunc(ct.CronSpec(), func() { s.runSweep(ctx, ct) })
		if err != nil {
			return fmt.Errorf("schedule sweep %s: %w", ct, err)
		}
		s.sweeps = append(s.sweeps, id)
		s.closes = append(s.closes, ct)
	}
	s.logger.Info("sweep schedule loaded", "sweeps", len(closes))
	return nil
}

// CloseTimes returns the close times currently scheduled.
func (s *Scheduler) CloseTimes() []schedule.CloseTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schedule.CloseTime(nil), s.closes...)
}

func (s *Scheduler) runSweep(ctx context.Context, ct schedule.CloseTime) {
	if ctx.Err() != nil {
		return
	}
	now := s.now().In(s.cfg.Location)
	day := now.AddDate(0, 0, -ct.DaysAfter)

	res, err := s.sweeper.SweepDay(ctx, day, now)
	if err != nil {
		metrics.Sweeps.WithLabelValues(metrics.SweepError).Inc()
		s.logger.Error("absence sweep failed", "close", ct.String(), "err", err)
		return
	}
	metrics.Sweeps.WithLabelValues(sweepLabel(res)).Inc()
	metrics.AbsencesCreated.Add(float64(res.Created))
	s.logger.Info("absence sweep done",
		"close", ct.String(),
		"day", schedule.DayKey(day, s.cfg.Location).Format(schedule.DayLayout),
		"created", res.Created,
		"reason", res.Reason,
	)
}

func sweepLabel(res attendance.SweepResult) string {
	if res.Reason == "" {
		return metrics.SweepCreated
	}
	return res.Reason
}

func sameCloses(a, b []schedule.CloseTime) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
