package server

import (
	"sutnist/internal/models"
	"sutnist/internal/service"

	"github.com/gofiber/fiber/v2"
)

type rejectPostRequest struct {
	Note string `json:"note"`
}

// GetPendingPosts handles GET /api/admin/posts/pending
// @Summary Moderation queue
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/posts/pending [get]
func (s *Server) GetPendingPosts(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	posts, err := s.posts.ListPending(c.UserContext(), service.ListPostsInput{
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: currentUserID(c),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// ApprovePost handles POST /api/admin/posts/:id/approve
// @Summary Approve a pending post
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/posts/{id}/approve [post]
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.moderation.Approve(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// RejectPost handles POST /api/admin/posts/:id/reject
// @Summary Reject a pending post
// @Description An empty note falls back to the default reason
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body rejectPostRequest false "Reason"
// @Success 200 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/posts/{id}/reject [post]
func (s *Server) RejectPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req rejectPostRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	post, err := s.moderation.Reject(c.UserContext(), id, currentUserID(c), req.Note)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}
