package engagement

import (
	"context"

	"gigmarket/internal/model"
)

func (s *Service) ListNotifications(ctx context.Context, p Principal, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if err := p.authenticated(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var notifications []*model.Notification
	err := s.inTx(ctx, "list_notifications", func(ctx context.Context, tx Tx) error {
		var err error
		notifications, err = tx.Notifications().ListByUser(ctx, p.UserID, unreadOnly, limit)
		return err
	})
	return notifications, err
}

func (s *Service) MarkNotificationRead(ctx context.Context, p Principal, id int64) error {
	if err := p.authenticated(); err != nil {
		return err
	}
	return s.inTx(ctx, "mark_notification_read", func(ctx context.Context, tx Tx) error {
		return lookup(tx.Notifications().MarkRead(ctx, id, p.UserID), "notification")
	})
}
