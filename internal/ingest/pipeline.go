package ingest

import (
	"context"
	"log/slog"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/device"
	"rollcall/internal/metrics"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
)

// Scan sources, used as a metrics label.
const (
	SourcePoll = "poll"
	SourcePush = "push"
)

// WindowResolver resolves the class window of a local day.
type WindowResolver interface {
	Resolve(ctx context.Context, t time.Time) (*schedule.Window, error)
}

// Merger folds a classified scan into the day's record.
type Merger interface {
	MergeScan(ctx context.Context, personID string, ts time.Time, incoming attendance.Status) (attendance.Status, error)
}

// Pipeline runs one raw scan through lookup, resolution, classification and merge.
type Pipeline struct {
	lookup     roster.Lookup
	resolver   WindowResolver
	classifier attendance.Classifier
	merger     Merger
	logger     *slog.Logger
}

// NewPipeline wires the per-scan stages.
func NewPipeline(lookup roster.Lookup, resolver WindowResolver, classifier attendance.Classifier, merger Merger, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{lookup: lookup, resolver: resolver, classifier: classifier, merger: merger, logger: logger}
}

// Handle processes scan and reports its outcome. Failures never escape:
// they are logged and counted so the rest of a batch carries on.
func (p *Pipeline) Handle(ctx context.Context, source string, scan device.RawScan) string {
	outcome := p.handle(ctx, scan)
	metrics.Scans.WithLabelValues(source, outcome).Inc()
	return outcome
}

func (p *Pipeline) handle(ctx context.Context, scan device.RawScan) string {
	if scan.Malformed() {
		p.logger.Warn("skipping malformed scan", "biometric_id", scan.BiometricID, "record_time", scan.RecordTime)
		return metrics.ScanMalformed
	}

	person, err := p.lookup.FindByBiometricID(ctx, scan.BiometricID)
	if err != nil {
		p.logger.Error("roster lookup failed", "biometric_id", scan.BiometricID, "err", err)
		return metrics.ScanError
	}
	if person == nil {
		p.logger.Warn("no person with biometric id", "biometric_id", scan.BiometricID)
		return metrics.ScanUnknown
	}

	w, err := p.resolver.Resolve(ctx, scan.RecordTime)
	if err != nil {
		p.logger.Error("resolve window failed", "person_id", person.ID, "err", err)
		return metrics.ScanError
	}
	status, ok := p.classifier.Classify(scan.RecordTime, w)
	if !ok {
		p.logger.Debug("ignored scan outside class window", "person_id", person.ID, "record_time", scan.RecordTime)
		return metrics.ScanNoWindow
	}

	final, err := p.merger.MergeScan(ctx, person.ID, scan.RecordTime, status)
	if err != nil {
		p.logger.Error("merge scan failed", "person_id", person.ID, "err", err)
		return metrics.ScanError
	}
	metrics.Statuses.WithLabelValues(string(final)).Inc()
	p.logger.Debug("scan merged", "person_id", person.ID, "classified", status, "status", final, "record_time", scan.RecordTime)
	return metrics.ScanMerged
}
