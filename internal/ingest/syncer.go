package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"rollcall/internal/device"
	"rollcall/internal/metrics"
)

// ErrPassRunning is returned by RunOnce when a previous pass is still in flight.
var ErrPassRunning = errors.New("sync pass already running")

// Source yields the raw scans currently held by the device.
type Source interface {
	FetchRawScans(ctx context.Context) ([]device.RawScan, error)
}

// PassStats summarises one sync pass.
type PassStats struct {
	Fetched   int
	Merged    int
	NoWindow  int
	Unknown   int
	Malformed int
	Failed    int
}

func (s *PassStats) add(outcome string) {
	switch outcome {
	case metrics.ScanMerged:
		s.Merged++
	case metrics.ScanNoWindow:
		s.NoWindow++
	case metrics.ScanUnknown:
		s.Unknown++
	case metrics.ScanMalformed:
		s.Malformed++
	default:
		s.Failed++
	}
}

// Syncer pulls scans from the device and feeds them through the pipeline.
// At most one pass runs at a time; overlapping ticks are dropped.
type Syncer struct {
	source   Source
	pipeline *Pipeline
	logger   *slog.Logger
	running  atomic.Bool
}

// NewSyncer creates a syncer.
func NewSyncer(source Source, pipeline *Pipeline, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, pipeline: pipeline, logger: logger}
}

// Running reports whether a pass is in flight.
func (s *Syncer) Running() bool { return s.running.Load() }

// RunOnce performs a single pass. It returns ErrPassRunning without doing
// anything when another pass holds the guard, and the device error when the
// fetch fails; in that case no scan of the pass is processed.
func (s *Syncer) RunOnce(ctx context.Context) (PassStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return PassStats{}, ErrPassRunning
	}
	defer s.running.Store(false)

	scans, err := s.source.FetchRawScans(ctx)
	if err != nil {
		return PassStats{}, fmt.Errorf("fetch device logs: %w", err)
	}

	stats := PassStats{Fetched: len(scans)}
	for _, scan := range scans {
		if ctx.Err() != nil {
			break
		}
		stats.add(s.pipeline.Handle(ctx, SourcePoll, scan))
	}
	return stats, ctx.Err()
}

// Tick runs a pass and logs its outcome. It never returns an error; a failed
// tick is abandoned and the next one starts fresh.
func (s *Syncer) Tick(ctx context.Context) {
	started := time.Now()
	stats, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrPassRunning):
		metrics.SyncPasses.WithLabelValues(metrics.PassSkipped).Inc()
		s.logger.Info("sync skipped: previous pass still running")
	case err != nil:
		metrics.SyncPasses.WithLabelValues(metrics.PassFailed).Inc()
		s.logger.Error("sync pass abandoned", "err", err)
	default:
		metrics.SyncPasses.WithLabelValues(metrics.PassOK).Inc()
		metrics.SyncDuration.Observe(time.Since(started).Seconds())
		s.logger.Info("sync pass done",
			"fetched", stats.Fetched,
			"merged", stats.Merged,
			"ignored", stats.NoWindow,
			"unknown", stats.Unknown,
			"malformed", stats.Malformed,
			"failed", stats.Failed,
			"took", time.Since(started).Round(time.Millisecond),
		)
	}
}
