package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"rollcall/internal/device"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
)

// Consumer feeds scans pushed through the queue into the pipeline.
type Consumer struct {
	queue    queue.Queue
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewConsumer creates a consumer for q.
func NewConsumer(q queue.Queue, pipeline *Pipeline, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: q, pipeline: pipeline, logger: logger}
}

// Run handles messages until ctx is done or the queue closes its stream.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.queue.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		c.handle(ctx, msg)
	}
	return ctx.Err()
}

func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != queue.TypeScan {
		c.logger.Warn("ignoring message of unknown type", "id", msg.ID, "type", msg.Type)
		return
	}
	var scan device.RawScan
	if err := json.Unmarshal(msg.Body, &scan); err != nil {
		metrics.Scans.WithLabelValues(SourcePush, metrics.ScanMalformed).Inc()
		c.logger.Warn("dropping undecodable scan", "id", msg.ID, "err", err)
		return
	}
	outcome := c.pipeline.Handle(ctx, SourcePush, scan)
	c.logger.Debug("pushed scan handled", "id", msg.ID, "outcome", outcome)
}
