package service

import (
	"context"
	"strconv"
	"strings"

	"sutnist/internal/models"
	"sutnist/internal/observability"
	"sutnist/internal/repository"
	"sutnist/internal/validation"
)

// EngagementService handles likes, views and comments.
type EngagementService struct {
	store   repository.Store
	isAdmin AdminCheck
}

type AddCommentInput struct {
	PostID   uint
	AuthorID uint
	Text     string
}

func NewEngagementService(store repository.Store, isAdmin AdminCheck) *EngagementService {
	return &EngagementService{store: store, isAdmin: isAdmin}
}

// ToggleLike removes the user's like if present and adds it otherwise. Only approved posts
// take likes.
func (s *EngagementService) ToggleLike(ctx context.Context, postID, userID uint) (*models.Post, error) {
	if userID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to like posts")
	}

	direction := "like"
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		post, err := tx.Posts().GetByID(ctx, postID, userID)
		if err != nil {
			return err
		}
		if post.Status != models.PostStatusApproved {
			return models.NewValidationError("Only approved posts can be liked")
		}

		removed, err := tx.Engagement().RemoveLike(ctx, userID, postID)
		if err != nil {
			return err
		}
		if removed {
			direction = "unlike"
			return nil
		}
		_, err = tx.Engagement().AddLike(ctx, userID, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues(direction).Inc()

	return s.store.Posts().GetByID(ctx, postID, userID)
}

// RecordView counts viewerKey once per post. Views are only counted on approved posts;
// authors and admins looking at the queue do not inflate the counter.
func (s *EngagementService) RecordView(ctx context.Context, postID, viewerID uint, viewerKey string) (*models.Post, error) {
	if strings.TrimSpace(viewerKey) == "" {
		return nil, models.NewValidationError("Viewer key is required")
	}
	post, err := visiblePost(ctx, s.store.Posts(), s.isAdmin, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusApproved {
		return post, nil
	}

	added, err := s.store.Engagement().AddView(ctx, postID, viewerKey)
	if err != nil {
		return nil, err
	}
	viewer := "member"
	if strings.HasPrefix(viewerKey, "g:") {
		viewer = "guest"
	}
	observability.ViewsRecorded.WithLabelValues(viewer, strconv.FormatBool(added)).Inc()
	if !added {
		return post, nil
	}
	return s.store.Posts().GetByID(ctx, postID, viewerID)
}

// AddComment appends a plain-text comment to an approved post.
func (s *EngagementService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to comment")
	}
	text := plainText(in.Text)
	if err := validation.ValidateCommentText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, err := visiblePost(ctx, s.store.Posts(), s.isAdmin, in.PostID, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusApproved {
		return nil, models.NewValidationError("Only approved posts can be commented")
	}
	author, err := s.store.Users().GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:            post.ID,
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		Text:              text,
	}
	if err := s.store.Engagement().AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns a post's comments, oldest first.
func (s *EngagementService) ListComments(ctx context.Context, postID, viewerID uint) ([]models.Comment, error) {
	if _, err := visiblePost(ctx, s.store.Posts(), s.isAdmin, postID, viewerID); err != nil {
		return nil, err
	}
	return s.store.Engagement().ListComments(ctx, postID)
}
