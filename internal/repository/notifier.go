package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	mqcontracts "gigmarket/contracts/mq"
	"gigmarket/pkg/db"
	"gigmarket/pkg/outbox"
	"gigmarket/pkg/trace"
)

// OutboxNotifier turns notifications and messages into outbox events written
// in the caller's transaction. Each write runs in its own savepoint so a
// failed insert leaves the surrounding transaction usable.
type OutboxNotifier struct {
	tx     pgx.Tx
	repo   *outbox.Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewOutboxNotifier(tx pgx.Tx, repo *outbox.Repository, logger *zap.Logger) *OutboxNotifier {
	return &OutboxNotifier{tx: tx, repo: repo, logger: logger, now: time.Now}
}

func (n *OutboxNotifier) Notify(ctx context.Context, userID int64, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	event := mqcontracts.NotificationCreatedPayload{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Payload:   body,
		TraceID:   trace.FromContext(ctx),
		CreatedAt: n.now().UTC(),
	}
	return n.enqueue(ctx, "notification", userID, mqcontracts.RoutingKeyNotificationCreated, event)
}

func (n *OutboxNotifier) Message(ctx context.Context, senderID, recipientID, projectID int64, body string) error {
	event := mqcontracts.MessageCreatedPayload{
		EventID:     uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		ProjectID:   projectID,
		Body:        body,
		TraceID:     trace.FromContext(ctx),
		CreatedAt:   n.now().UTC(),
	}
	return n.enqueue(ctx, "message", projectID, mqcontracts.RoutingKeyMessageCreated, event)
}

func (n *OutboxNotifier) enqueue(ctx context.Context, aggregate string, aggregateID int64, routingKey string, payload any) error {
	err := db.WithTx(ctx, n.tx, func(sp pgx.Tx) error {
		return outbox.InsertEventInTx(ctx, sp, n.repo, aggregate, &aggregateID, routingKey, payload)
	})
	if err != nil {
		n.logger.Warn("Failed to enqueue outbox event",
			zap.String("routing_key", routingKey),
			zap.Int64("aggregate_id", aggregateID),
			zap.Error(err),
		)
		return err
	}
	n.logger.Debug("Outbox event enqueued", zap.String("routing_key", routingKey))
	return nil
}
