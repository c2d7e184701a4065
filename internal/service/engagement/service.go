// Package engagement implements the project lifecycle: bidding, acceptance,
// milestone delivery, finalization and reviews.
package engagement

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"gigmarket/pkg/logger"
	"gigmarket/pkg/metrics"
	"gigmarket/pkg/otel"
)

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// inTx runs fn in a transaction under a span, records the outcome and turns
// anything that is not already an *Error into an internal error.
func (s *Service) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := otel.StartSpan(ctx, "engagement."+op)
	span.SetAttributes(attribute.String("engagement.operation", op))

	err := s.store.WithTx(ctx, fn)
	err = s.classify(ctx, op, err)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	metrics.RecordLifecycleOperation(op, outcome)
	if KindOf(err) == KindInternal {
		otel.EndSpan(span, err)
	} else {
		span.End()
	}
	return err
}

func (s *Service) classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e
	}
	switch {
	case errors.Is(err, ErrNoRecord):
		return notFound("record")
	case errors.Is(err, ErrDuplicateRecord):
		return conflict("record already exists")
	}
	logger.WithTrace(ctx, s.logger).Error("Engagement operation failed",
		zap.String("operation", op),
		zap.Error(err),
	)
	if e != nil {
		return e
	}
	return internal(err)
}

// notify enqueues a notification. Failures are logged and counted but never
// abort the lifecycle change.
func (s *Service) notify(ctx context.Context, tx Tx, userID int64, kind string, payload map[string]any) {
	if err := tx.Notifier().Notify(ctx, userID, kind, payload); err != nil {
		metrics.IncrementNotificationDropped(kind)
		logger.WithTrace(ctx, s.logger).Warn("Failed to enqueue notification",
			zap.Int64("user_id", userID),
			zap.String("type", kind),
			zap.Error(err),
		)
	}
}

// message enqueues a system direct message, best-effort like notify.
func (s *Service) message(ctx context.Context, tx Tx, senderID, recipientID, projectID int64, body string) {
	if err := tx.Notifier().Message(ctx, senderID, recipientID, projectID, body); err != nil {
		metrics.IncrementNotificationDropped("message")
		logger.WithTrace(ctx, s.logger).Warn("Failed to enqueue message",
			zap.Int64("recipient_id", recipientID),
			zap.Int64("project_id", projectID),
			zap.Error(err),
		)
	}
}
