package outbox

import (
	"context"
	"fmt"
)

// ReplayStore is the outbox persistence used for replays.
type ReplayStore interface {
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
	ResetToPending(ctx context.Context, eventID int64) error
}

// ReplayService re-queues failed events; the dispatcher publishes them on
// its next tick.
type ReplayService struct {
	repo ReplayStore
}

func NewReplayService(repo ReplayStore) *ReplayService {
	return &ReplayService{repo: repo}
}

// FailedEvents lists events parked after exhausting their retries.
func (s *ReplayService) FailedEvents(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.GetFailedEvents(ctx, limit)
}

// ReplayEvent 重放指定的事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	if err := s.repo.ResetToPending(ctx, eventID); err != nil {
		return fmt.Errorf("failed to replay event %d: %w", eventID, err)
	}
	return nil
}

// ReplayFailedEvents re-queues up to limit failed events and returns how many were reset.
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.FailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	replayed := 0
	for _, event := range events {
		if err := s.repo.ResetToPending(ctx, event.ID); err != nil {
			continue
		}
		replayed++
	}
	return replayed, nil
}
