package service

import (
	"context"

	"sutnist/internal/models"
	"sutnist/internal/repository"
)

type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// List returns the user's notifications newest first. With markRead the page is returned as
// it was and every unread notification is then flipped to read.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int, markRead bool) ([]models.Notification, error) {
	if userID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to see notifications")
	}
	list, err := s.repo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if markRead {
		if _, err := s.repo.MarkAllRead(ctx, userID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// MarkAllRead is idempotent and reports how many notifications changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, models.NewUnauthenticatedError("Sign in to see notifications")
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, models.NewUnauthenticatedError("Sign in to see notifications")
	}
	return s.repo.UnreadCount(ctx, userID)
}
