package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BearerToken extracts the session token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// WebSocketToken reads the token from the "token" query parameter, which browsers can set on
// a websocket upgrade, and falls back to the Authorization header.
func WebSocketToken(c *fiber.Ctx) (string, bool) {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token, true
	}
	return BearerToken(c)
}
