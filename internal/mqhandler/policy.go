package mqhandler

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/pkg/logger"
	"gigmarket/pkg/util"
)

// Deduper is implemented by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

// RetryCounter is implemented by *util.RetryCounter.
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// DeadLetterer is implemented by *mq.Publisher.
type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

// failurePolicy decides between requeue and dead-lettering for a failed
// delivery. Returning an error nacks with requeue; nil acks.
type failurePolicy struct {
	name       string
	routingKey string
	deduper    Deduper
	retries    RetryCounter
	dlq        DeadLetterer
	maxRetries int64
	logger     *zap.Logger
}

func (p *failurePolicy) deadLetter(ctx context.Context, raw []byte, reason string) error {
	log := logger.WithTrace(ctx, p.logger)
	if err := p.dlq.PublishToDLQ(ctx, p.routingKey, raw, reason); err != nil {
		log.Error("Failed to publish to DLQ, requeueing",
			zap.String("handler", p.name),
			zap.Error(err),
		)
		return err
	}
	log.Warn("Message sent to DLQ",
		zap.String("handler", p.name),
		zap.String("reason", reason),
	)
	return nil
}

func (p *failurePolicy) fail(ctx context.Context, eventKey string, raw []byte, err error) error {
	// 释放去重键，让重投递的消息可以被再次处理
	p.deduper.Release(ctx, p.name, eventKey)

	retryable, class := util.ClassifyError(err)
	retryKey := util.FormatRetryKey(p.name, eventKey)
	attempt, cerr := p.retries.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		// without a counter we cannot bound retries; let the broker redeliver
		p.logger.Warn("Retry counter unavailable", zap.Error(cerr))
		attempt = 1
	}

	logger.WithTrace(ctx, p.logger).Error("Handler failed",
		zap.String("handler", p.name),
		zap.String("event_id", eventKey),
		zap.String("error_type", class),
		zap.Bool("retryable", retryable),
		zap.Int64("attempt", attempt),
		zap.Error(err),
	)

	if util.ShouldRetry(attempt, p.maxRetries, retryable) {
		return err
	}

	if derr := p.deadLetter(ctx, raw, class+": "+err.Error()); derr != nil {
		return derr
	}
	_ = p.retries.Reset(ctx, retryKey)
	return nil
}

func (p *failurePolicy) succeed(ctx context.Context, eventKey string) {
	_ = p.retries.Reset(ctx, util.FormatRetryKey(p.name, eventKey))
}
