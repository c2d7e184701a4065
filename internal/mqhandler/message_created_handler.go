package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "gigmarket/contracts/mq"
	"gigmarket/internal/model"
)

type MessageStore interface {
	Insert(ctx context.Context, m *model.Message) (bool, error)
}

// MessageCreatedHandler stores the direct messages sent on bid decisions.
type MessageCreatedHandler struct {
	repo   MessageStore
	policy *failurePolicy
	logger *zap.Logger
}

func NewMessageCreatedHandler(
	repo MessageStore,
	deduper Deduper,
	retries RetryCounter,
	dlq DeadLetterer,
	maxRetries int64,
	logger *zap.Logger,
) *MessageCreatedHandler {
	return &MessageCreatedHandler{
		repo: repo,
		policy: &failurePolicy{
			name:       "message_created",
			routingKey: mqcontracts.RoutingKeyMessageCreated,
			deduper:    deduper,
			retries:    retries,
			dlq:        dlq,
			maxRetries: maxRetries,
			logger:     logger,
		},
		logger: logger,
	}
}

func (h *MessageCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.MessageCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal MessageCreatedPayload (non-retryable)", zap.Error(err))
		return h.policy.deadLetter(ctx, raw, "json_decode_error: "+err.Error())
	}
	if p.EventID == "" || p.SenderID <= 0 || p.RecipientID <= 0 || p.Body == "" {
		return h.policy.deadLetter(ctx, raw, "invalid payload: event_id, sender_id, recipient_id and body are required")
	}

	if !h.policy.deduper.AcquireOnce(ctx, h.policy.name, p.EventID) {
		return nil
	}

	if _, err := h.repo.Insert(ctx, &model.Message{
		EventID:     p.EventID,
		SenderID:    p.SenderID,
		RecipientID: p.RecipientID,
		ProjectID:   p.ProjectID,
		Body:        p.Body,
	}); err != nil {
		return h.policy.fail(ctx, p.EventID, raw, err)
	}

	h.logger.Info("Message delivered",
		zap.String("event_id", p.EventID),
		zap.Int64("recipient_id", p.RecipientID),
		zap.Int64("project_id", p.ProjectID),
	)
	h.policy.succeed(ctx, p.EventID)
	return nil
}
