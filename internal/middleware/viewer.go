package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/ksuid"
)

// ViewerCookie carries the anonymous viewer key across requests.
const ViewerCookie = "sutnist_viewer"

const viewerCookieTTL = 365 * 24 * time.Hour

// ViewerKey identifies who looked at a post: "u:<id>" for members and "g:<ksuid>" for guests.
// A guest without a cookie is issued one on the response.
func ViewerKey(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return fmt.Sprintf("u:%d", uid)
	}

	if raw := c.Cookies(ViewerCookie); raw != "" {
		if id, err := ksuid.Parse(raw); err == nil {
			return "g:" + id.String()
		}
	}

	id := ksuid.New()
	c.Cookie(&fiber.Cookie{
		Name:     ViewerCookie,
		Value:    id.String(),
		Path:     "/",
		Expires:  time.Now().Add(viewerCookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return "g:" + id.String()
}

// IsGuestViewer reports whether key was issued to an anonymous visitor.
func IsGuestViewer(key string) bool {
	return strings.HasPrefix(key, "g:")
}
