package server

import (
	"fmt"
	"net/http"
	"testing"

	"sutnist/internal/models"
	"sutnist/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMyProfile(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "halyna", false)
	token := ts.token(t, user)

	resp := ts.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/users/me", token, nil)
	requireStatus(t, resp, http.StatusOK)
	me := decodeBody[models.User](t, resp)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "halyna", me.Username)
}

func TestUpdateProfileRewritesSnapshots(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "taras", false)
	post := testutil.CreatePost(t, ts.db, user, models.Server02, models.PostStatusApproved, "hello")
	token := ts.token(t, user)

	resp := ts.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{
		"display_name": "Тарас Ш.",
		"bio":          "<i>Кобзар</i>",
	})
	requireStatus(t, resp, http.StatusOK)
	updated := decodeBody[models.User](t, resp)
	assert.Equal(t, "Тарас Ш.", updated.DisplayName)
	assert.Equal(t, "Кобзар", updated.Bio)
	assert.NotNil(t, updated.LastDisplayNameChangeAt)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, "Тарас Ш.", decodeBody[models.Post](t, resp).AuthorDisplayName)

	resp = ts.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{"display_name": "Інше"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRateLimited, decodeBody[models.ErrorResponse](t, resp).Code)

	// unchanged value is not a change
	resp = ts.do(t, http.MethodPut, "/api/users/me", token, fiber.Map{"display_name": "Тарас Ш."})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateUsernameConflict(t *testing.T) {
	ts := newTestServer(t)
	testutil.CreateUser(t, ts.db, "Ivanka", false)
	user := testutil.CreateUser(t, ts.db, "bohdan", false)

	resp := ts.do(t, http.MethodPut, "/api/users/me", ts.token(t, user), fiber.Map{"username": "IVANKA"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeDuplicateUsername, decodeBody[models.ErrorResponse](t, resp).Code)
}

func TestGetUserProfile(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "olena", false)

	tests := []struct {
		path   string
		status int
	}{
		{fmt.Sprintf("/api/users/%d", user.ID), http.StatusOK},
		{"/api/users/abc", http.StatusBadRequest},
		{"/api/users/999", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, tt.path, "", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestUserPostsVisibility(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	other := testutil.CreateUser(t, ts.db, "other", false)
	testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusApproved, "public")
	testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusPending, "waiting")
	testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusRejected, "no")

	resp := ts.do(t, http.MethodGet, "/api/users/me/posts", ts.token(t, author), nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Len(t, decodeBody[[]models.Post](t, resp), 3)

	path := fmt.Sprintf("/api/users/%d/posts", author.ID)
	resp = ts.do(t, http.MethodGet, path, ts.token(t, other), nil)
	requireStatus(t, resp, http.StatusOK)
	visible := decodeBody[[]models.Post](t, resp)
	require.Len(t, visible, 1)
	assert.Equal(t, models.PostStatusApproved, visible[0].Status)

	resp = ts.do(t, http.MethodGet, "/api/users/999/posts", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPromoteAndDemote(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, "admin", true)
	member := testutil.CreateUser(t, ts.db, "member", false)
	adminToken := ts.token(t, admin)

	resp := ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/promote-admin", admin.ID), ts.token(t, member), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/promote-admin", member.ID), adminToken, nil)
	requireStatus(t, resp, http.StatusOK)
	promoted := decodeBody[struct {
		Message string      `json:"message"`
		User    models.User `json:"user"`
	}](t, resp)
	assert.True(t, promoted.User.IsAdmin)

	resp = ts.do(t, http.MethodGet, "/api/admin/posts/pending", ts.token(t, member), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "promotion takes effect without a new login")

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/demote-admin", admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/demote-admin", member.ID), adminToken, nil)
	requireStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/api/admin/posts/pending", ts.token(t, member), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
