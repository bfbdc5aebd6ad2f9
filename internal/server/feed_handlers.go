package server

import (
	"strings"

	"sutnist/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeedExport handles GET /api/feed.json?server=01
// @Summary Website feed
// @Description Flat list of approved posts for the community website
// @Tags posts
// @Produce json
// @Param server query string false "01-05 or ALL"
// @Param limit query int false "Maximum number of posts"
// @Success 200 {array} export.FeedItem
// @Router /feed.json [get]
func (s *Server) GetFeedExport(c *fiber.Ctx) error {
	var server models.ServerTag
	if raw := strings.TrimSpace(c.Query("server")); raw != "" {
		tag, ok := models.ParseServerTag(raw)
		if !ok {
			return models.RespondWithAppError(c, models.NewValidationError("Unknown server filter"))
		}
		server = tag
	}

	limit := c.QueryInt("limit", 0)
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	items, err := s.feed.Approved(c.UserContext(), server, limit)
	if err != nil {
		return models.RespondWithAppError(c, models.NewStorageError(err))
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=30")
	return c.JSON(items)
}
