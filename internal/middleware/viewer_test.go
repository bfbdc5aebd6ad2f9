package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func viewerApp(userID uint) *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("userID", userID)
		}
		return c.SendString(ViewerKey(c))
	})
	return app
}

func TestViewerKey(t *testing.T) {
	t.Run("member", func(t *testing.T) {
		resp, err := viewerApp(42).Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "u:42", string(body))
		assert.Empty(t, resp.Header.Get("Set-Cookie"))
	})

	t.Run("new guest gets a cookie", func(t *testing.T) {
		resp, err := viewerApp(0).Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		key := string(body)
		assert.True(t, IsGuestViewer(key))
		assert.Contains(t, resp.Header.Get("Set-Cookie"), ViewerCookie+"="+strings.TrimPrefix(key, "g:"))
	})

	t.Run("returning guest keeps the key", func(t *testing.T) {
		id := ksuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ViewerCookie, Value: id})

		resp, err := viewerApp(0).Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "g:"+id, string(body))
	})

	t.Run("garbage cookie is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ViewerCookie, Value: "not-a-ksuid"})

		resp, err := viewerApp(0).Test(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.NotEqual(t, "g:not-a-ksuid", string(body))
		assert.NotEmpty(t, resp.Header.Get("Set-Cookie"))
	})
}

func TestIsGuestViewer(t *testing.T) {
	assert.True(t, IsGuestViewer("g:abc"))
	assert.False(t, IsGuestViewer("u:1"))
}
