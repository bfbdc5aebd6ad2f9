package service

import (
	"context"
	"log/slog"
	"time"

	"sutnist/internal/cache"
	"sutnist/internal/models"
	"sutnist/internal/notifications"
	"sutnist/internal/observability"
	"sutnist/internal/repository"
	"sutnist/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Texts of the notifications sent to authors.
const (
	ApprovalTitle          = "Пост схвалено!"
	ApprovalMessage        = "Вітаємо! Ваш пост у стрічці."
	RejectionTitle         = "Пост відхилено"
	RejectionMessagePrefix = "Причина: "
	DefaultRejectionReason = "Порушення правил"
)

// Publisher pushes realtime events to a user's connections.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, event notifications.Event) error
}

// ModerationService moves pending posts to approved or rejected and notifies the author.
type ModerationService struct {
	store     repository.Store
	isAdmin   AdminCheck
	publisher Publisher
	now       func() time.Time
}

func NewModerationService(store repository.Store, isAdmin AdminCheck, publisher Publisher) *ModerationService {
	return &ModerationService{
		store:     store,
		isAdmin:   isAdmin,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *ModerationService) Approve(ctx context.Context, postID, moderatorID uint) (*models.Post, error) {
	return s.decide(ctx, postID, moderatorID, models.PostStatusApproved, "")
}

// Reject stores note as the reason; an empty note falls back to DefaultRejectionReason.
func (s *ModerationService) Reject(ctx context.Context, postID, moderatorID uint, note string) (*models.Post, error) {
	note = plainText(note)
	if note == "" {
		note = DefaultRejectionReason
	}
	if err := validation.ValidateModeratorNote(note); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	return s.decide(ctx, postID, moderatorID, models.PostStatusRejected, note)
}

func (s *ModerationService) decide(ctx context.Context, postID, moderatorID uint, to models.PostStatus, note string) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "service", "moderation.decide",
		attribute.Int64("post_id", int64(postID)),
		attribute.String("decision", string(to)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if err = requireAdmin(ctx, s.isAdmin, moderatorID); err != nil {
		return nil, err
	}

	notification := buildDecisionNotification(to, note)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().GetByID(ctx, postID, 0)
		if err != nil {
			return err
		}
		moved, err := tx.Posts().TransitionStatus(ctx, postID, to, moderatorID, note, s.now().UTC())
		if err != nil {
			return err
		}
		if !moved {
			return models.NewInvalidTransitionError(post.Status, to)
		}

		notification.UserID = post.AuthorID
		notification.PostID = &post.ID
		return tx.Notifications().Create(ctx, notification)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateFeed(ctx)
	observability.ModerationDecisions.WithLabelValues(string(to)).Inc()
	observability.NotificationsCreated.WithLabelValues(string(notification.Kind)).Inc()
	slog.InfoContext(ctx, "post moderated",
		slog.Uint64("post_id", uint64(postID)),
		slog.Uint64("moderator_id", uint64(moderatorID)),
		slog.String("status", string(to)))

	s.publish(ctx, to, notification)

	return s.store.Posts().GetByID(ctx, postID, moderatorID)
}

func (s *ModerationService) publish(ctx context.Context, to models.PostStatus, n *models.Notification) {
	if s.publisher == nil {
		return
	}
	eventType := notifications.EventPostApproved
	if to == models.PostStatusRejected {
		eventType = notifications.EventPostRejected
	}
	if err := s.publisher.PublishUser(ctx, n.UserID, notifications.Event{Type: eventType, Payload: n}); err != nil {
		slog.WarnContext(ctx, "failed to publish moderation event",
			slog.Uint64("user_id", uint64(n.UserID)),
			slog.String("error", err.Error()))
	}
}

func buildDecisionNotification(to models.PostStatus, note string) *models.Notification {
	if to == models.PostStatusApproved {
		return &models.Notification{
			Kind:    models.NotificationApproval,
			Title:   ApprovalTitle,
			Message: ApprovalMessage,
		}
	}
	return &models.Notification{
		Kind:    models.NotificationRejection,
		Title:   RejectionTitle,
		Message: RejectionMessagePrefix + note,
	}
}
