package server

import (
	"sutnist/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary Notification feed
// @Description Newest first. Opening the feed marks everything read: the page is returned as stored and then marked. Pass mark_read=false to only peek.
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param mark_read query bool false "Mark all as read after listing" default(true)
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Notification
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageSize)
	list, err := s.notifications.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset,
		c.QueryBool("mark_read", true))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(list)
}

// GetUnreadCount handles GET /api/notifications/unread-count
// @Summary Unread badge
// @Tags notifications
// @Security BearerAuth
// @Success 200 {object} object{unread=int}
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	n, err := s.notifications.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

// MarkNotificationsRead handles POST /api/notifications/read
// @Summary Mark all read
// @Tags notifications
// @Security BearerAuth
// @Success 200 {object} object{updated=int}
// @Router /notifications/read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notifications.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
