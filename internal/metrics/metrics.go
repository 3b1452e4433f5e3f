package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync pass results.
const (
	PassOK      = "ok"
	PassSkipped = "skipped"
	PassFailed  = "failed"
)

// Sweep labels beyond the sweeper's own reasons.
const (
	SweepCreated = "created"
	SweepError   = "error"
)

// Per-scan outcomes.
const (
	ScanMerged    = "merged"
	ScanNoWindow  = "no_window"
	ScanUnknown   = "unknown_person"
	ScanMalformed = "malformed"
	ScanError     = "error"
)

var (
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "sync_passes_total",
		Help:      "Device sync ticks by result.",
	}, []string{"result"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rollcall",
		Name:      "sync_duration_seconds",
		Help:      "Duration of completed device sync passes.",
		Buckets:   prometheus.DefBuckets,
	})

	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "scans_total",
		Help:      "Scans handled by outcome.",
	}, []string{"source", "outcome"})

	Statuses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "merged_status_total",
		Help:      "Resulting day status after a merged scan.",
	}, []string{"status"})

	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "sweeps_total",
		Help:      "Absence sweeps by outcome: created, error or the reason nothing was created.",
	}, []string{"reason"})

	AbsencesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "absences_created_total",
		Help:      "ABSENT rows inserted by sweeps.",
	})

	ScansPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "scans_published_total",
		Help:      "Pushed scans accepted by the API by queue result.",
	}, []string{"result"})
)
