package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "gigmarket/contracts/mq"
	"gigmarket/internal/model"
)

type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) (bool, error)
}

// NotificationCreatedHandler persists notification.created events into the
// recipient's inbox.
type NotificationCreatedHandler struct {
	repo   NotificationStore
	policy *failurePolicy
	logger *zap.Logger
}

func NewNotificationCreatedHandler(
	repo NotificationStore,
	deduper Deduper,
	retries RetryCounter,
	dlq DeadLetterer,
	maxRetries int64,
	logger *zap.Logger,
) *NotificationCreatedHandler {
	return &NotificationCreatedHandler{
		repo: repo,
		policy: &failurePolicy{
			name:       "notification_created",
			routingKey: mqcontracts.RoutingKeyNotificationCreated,
			deduper:    deduper,
			retries:    retries,
			dlq:        dlq,
			maxRetries: maxRetries,
			logger:     logger,
		},
		logger: logger,
	}
}

func (h *NotificationCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.NotificationCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal NotificationCreatedPayload (non-retryable)", zap.Error(err))
		return h.policy.deadLetter(ctx, raw, "json_decode_error: "+err.Error())
	}
	if p.EventID == "" || p.UserID <= 0 || p.Type == "" {
		return h.policy.deadLetter(ctx, raw, "invalid payload: event_id, user_id and type are required")
	}

	// Redis 去重
	if !h.policy.deduper.AcquireOnce(ctx, h.policy.name, p.EventID) {
		return nil
	}

	h.logger.Info("Handling notification.created event",
		zap.String("event_id", p.EventID),
		zap.Int64("user_id", p.UserID),
		zap.String("type", p.Type),
	)

	inserted, err := h.repo.Insert(ctx, &model.Notification{
		EventID: p.EventID,
		UserID:  p.UserID,
		Type:    p.Type,
		Payload: p.Payload,
	})
	if err != nil {
		return h.policy.fail(ctx, p.EventID, raw, err)
	}
	if !inserted {
		h.logger.Info("Notification already stored", zap.String("event_id", p.EventID))
	}

	h.policy.succeed(ctx, p.EventID)
	return nil
}
