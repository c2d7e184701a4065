package repository

import (
	"context"

	"go.uber.org/zap"

	"gigmarket/internal/model"
)

type NotificationRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewNotificationRepository(db Querier, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Insert stores a delivered notification. A replayed event_id is ignored and
// reports inserted=false.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (bool, error) {
	r.logger.Debug("Inserting notification",
		zap.Int64("user_id", n.UserID),
		zap.String("type", n.Type),
		zap.String("event_id", n.EventID),
	)

	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	tag, err := r.db.Exec(ctx, `
        INSERT INTO notifications (event_id, user_id, type, payload)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (event_id) DO NOTHING
    `, n.EventID, n.UserID, n.Type, payload)
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return false, err
	}

	inserted := tag.RowsAffected() > 0
	if inserted {
		r.logger.Info("Notification inserted successfully",
			zap.Int64("user_id", n.UserID),
			zap.String("type", n.Type),
		)
	}
	return inserted, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*model.Notification, error) {
	query := `
        SELECT id, event_id::TEXT, user_id, type, payload, is_read, created_at
        FROM notifications
        WHERE user_id = $1
    `
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID,
			&n.EventID,
			&n.UserID,
			&n.Type,
			&n.Payload,
			&n.IsRead,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2
    `, id, userID)
	if err != nil {
		return translate(err)
	}
	return mustAffect(tag)
}
