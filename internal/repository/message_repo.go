package repository

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/internal/model"
)

type MessageRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewMessageRepository(db Querier, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

// Insert stores a direct message; replays of the same event_id are dropped.
func (r *MessageRepository) Insert(ctx context.Context, m *model.Message) (bool, error) {
	var projectID *int64
	if m.ProjectID > 0 {
		projectID = &m.ProjectID
	}

	tag, err := r.db.Exec(ctx, `
        INSERT INTO messages (event_id, sender_id, recipient_id, project_id, body)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (event_id) DO NOTHING
    `, m.EventID, m.SenderID, m.RecipientID, projectID, m.Body)
	if err != nil {
		r.logger.Error("Failed to insert message",
			zap.Int64("sender_id", m.SenderID),
			zap.Int64("recipient_id", m.RecipientID),
			zap.Error(err),
		)
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	r.logger.Info("Message inserted successfully",
		zap.Int64("recipient_id", m.RecipientID),
		zap.Int64("project_id", m.ProjectID),
	)
	return true, nil
}
