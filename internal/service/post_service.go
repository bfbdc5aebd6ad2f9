package service

import (
	"context"
	"log/slog"
	"strings"

	"sutnist/internal/models"
	"sutnist/internal/observability"
	"sutnist/internal/repository"
	"sutnist/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// AdminCheck reports whether userID holds the admin role.
type AdminCheck func(ctx context.Context, userID uint) (bool, error)

type PostService struct {
	store   repository.Store
	isAdmin AdminCheck
}

type CreatePostInput struct {
	AuthorID uint
	Server   string
	Text     string
	Images   []string
}

type ListPostsInput struct {
	Server   string
	Limit    int
	Offset   int
	ViewerID uint
}

func NewPostService(store repository.Store, isAdmin AdminCheck) *PostService {
	return &PostService{store: store, isAdmin: isAdmin}
}

// CreatePost stores a new post in the pending state with a snapshot of the author's profile.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthenticatedError("Sign in to publish posts")
	}
	server, ok := models.ParseServerTag(in.Server)
	if !ok {
		return nil, models.NewValidationError("Unknown server, expected one of 01-05 or ALL")
	}

	text := plainText(in.Text)
	if err := validation.ValidatePostText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	images := make([]string, 0, len(in.Images))
	for _, ref := range in.Images {
		images = append(images, strings.TrimSpace(ref))
	}
	if err := validation.ValidateImages(images, models.MaxPostImages); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	author, err := s.store.Users().GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorAvatar:      author.Avatar,
		Server:            server,
		Text:              text,
		Images:            images,
		Status:            models.PostStatusPending,
	}
	if err := s.store.Posts().Create(ctx, post); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "post submitted for moderation",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("server", string(server)))

	return s.store.Posts().GetByID(ctx, post.ID, in.AuthorID)
}

// ListApproved returns the public feed. A server filter also includes posts tagged ALL.
func (s *PostService) ListApproved(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	var server models.ServerTag
	if strings.TrimSpace(in.Server) != "" {
		tag, ok := models.ParseServerTag(in.Server)
		if !ok {
			return nil, models.NewValidationError("Unknown server filter")
		}
		server = tag
	}

	ctx, span := observability.StartSpan(ctx, "service", "posts.list_approved",
		attribute.String("server", string(server)))
	posts, err := s.store.Posts().ListApproved(ctx, server, in.Limit, in.Offset, in.ViewerID)
	observability.EndSpan(span, err)
	return posts, err
}

// ListPending returns the moderation queue, newest first.
func (s *PostService) ListPending(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	if err := s.requireAdmin(ctx, in.ViewerID); err != nil {
		return nil, err
	}
	return s.store.Posts().ListPending(ctx, in.Limit, in.Offset, in.ViewerID)
}

// GetPost hides posts the viewer may not see behind NotFound.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return visiblePost(ctx, s.store.Posts(), s.isAdmin, id, viewerID)
}

// ListByAuthor returns a user's approved posts; the author and admins also get pending and
// rejected ones.
func (s *PostService) ListByAuthor(ctx context.Context, authorID uint, in ListPostsInput) ([]*models.Post, error) {
	if _, err := s.store.Users().GetByID(ctx, authorID); err != nil {
		return nil, err
	}

	includeUnapproved := in.ViewerID != 0 && in.ViewerID == authorID
	if !includeUnapproved && in.ViewerID != 0 {
		admin, err := s.checkAdmin(ctx, in.ViewerID)
		if err != nil {
			return nil, err
		}
		includeUnapproved = admin
	}
	return s.store.Posts().ListByAuthor(ctx, authorID, includeUnapproved, in.Limit, in.Offset, in.ViewerID)
}

func (s *PostService) checkAdmin(ctx context.Context, userID uint) (bool, error) {
	if s.isAdmin == nil || userID == 0 {
		return false, nil
	}
	return s.isAdmin(ctx, userID)
}

func (s *PostService) requireAdmin(ctx context.Context, userID uint) error {
	return requireAdmin(ctx, s.isAdmin, userID)
}

func requireAdmin(ctx context.Context, isAdmin AdminCheck, userID uint) error {
	if userID == 0 {
		return models.NewUnauthenticatedError("Sign in required")
	}
	if isAdmin == nil {
		return models.NewUnauthorizedError("Admin access required")
	}
	admin, err := isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewUnauthorizedError("Admin access required")
	}
	return nil
}

// visiblePost loads a post and answers NotFound when viewerID may not read it.
func visiblePost(ctx context.Context, posts repository.PostRepository, isAdmin AdminCheck, id, viewerID uint) (*models.Post, error) {
	post, err := posts.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if post.IsVisibleTo(viewerID, false) {
		return post, nil
	}
	if viewerID != 0 && isAdmin != nil {
		admin, err := isAdmin(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if admin {
			return post, nil
		}
	}
	return nil, models.NewNotFoundError("Post", id)
}
