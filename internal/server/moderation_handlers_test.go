package server

import (
	"fmt"
	"net/http"
	"testing"

	"sutnist/internal/models"
	"sutnist/internal/service"
	"sutnist/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApproveNotifiesAuthor(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	admin := testutil.CreateUser(t, ts.db, "moder", true)
	post := testutil.CreatePost(t, ts.db, author, models.Server04, models.PostStatusPending, "news")
	authorToken := ts.token(t, author)
	adminToken := ts.token(t, admin)

	resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/approve", post.ID), adminToken, nil)
	requireStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/approve", post.ID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeInvalidTransition, decodeBody[models.ErrorResponse](t, resp).Code)

	resp = ts.do(t, http.MethodGet, "/api/notifications/unread-count", authorToken, nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, float64(1), decodeBody[map[string]float64](t, resp)["unread"])

	resp = ts.do(t, http.MethodGet, "/api/notifications?mark_read=false", authorToken, nil)
	requireStatus(t, resp, http.StatusOK)
	require.Len(t, decodeBody[[]models.Notification](t, resp), 1)
	resp = ts.do(t, http.MethodGet, "/api/notifications/unread-count", authorToken, nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, float64(1), decodeBody[map[string]float64](t, resp)["unread"], "peeking keeps the badge")

	// opening the feed marks it read
	resp = ts.do(t, http.MethodGet, "/api/notifications", authorToken, nil)
	requireStatus(t, resp, http.StatusOK)
	list := decodeBody[[]models.Notification](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationApproval, list[0].Kind)
	assert.Equal(t, service.ApprovalTitle, list[0].Title)
	require.NotNil(t, list[0].PostID)
	assert.Equal(t, post.ID, *list[0].PostID)

	resp = ts.do(t, http.MethodGet, "/api/notifications/unread-count", authorToken, nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, float64(0), decodeBody[map[string]float64](t, resp)["unread"])

	resp = ts.do(t, http.MethodGet, "/api/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRejectPost(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	admin := testutil.CreateUser(t, ts.db, "moder", true)
	adminToken := ts.token(t, admin)

	t.Run("with note", func(t *testing.T) {
		post := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusPending, "spam")
		resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/reject", post.ID), adminToken,
			fiber.Map{"note": "Реклама"})
		requireStatus(t, resp, http.StatusOK)
		rejected := decodeBody[models.Post](t, resp)
		assert.Equal(t, models.PostStatusRejected, rejected.Status)
		assert.Equal(t, "Реклама", rejected.ModeratorNote)
		require.NotNil(t, rejected.ModeratedBy)
		assert.Equal(t, admin.ID, *rejected.ModeratedBy)

		var n models.Notification
		require.NoError(t, ts.db.Where("post_id = ?", post.ID).First(&n).Error)
		assert.Equal(t, models.NotificationRejection, n.Kind)
		assert.Equal(t, service.RejectionMessagePrefix+"Реклама", n.Message)
	})

	t.Run("empty body uses default reason", func(t *testing.T) {
		post := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusPending, "meh")
		resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/reject", post.ID), adminToken, nil)
		requireStatus(t, resp, http.StatusOK)
		assert.Equal(t, service.DefaultRejectionReason, decodeBody[models.Post](t, resp).ModeratorNote)
	})

	t.Run("members cannot moderate", func(t *testing.T) {
		post := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusPending, "mine")
		resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/reject", post.ID), ts.token(t, author), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing post", func(t *testing.T) {
		resp := ts.do(t, http.MethodPost, "/api/admin/posts/4242/reject", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("rejected posts stay hidden", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/posts", "", nil)
		requireStatus(t, resp, http.StatusOK)
		assert.Empty(t, decodeBody[[]models.Post](t, resp))
	})
}
