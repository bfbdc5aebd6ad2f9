package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sutnist/internal/middleware"
	"sutnist/internal/models"
	"sutnist/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostLifecycle(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	admin := testutil.CreateUser(t, ts.db, "moder", true)
	authorToken := ts.token(t, author)
	adminToken := ts.token(t, admin)

	resp := ts.do(t, http.MethodPost, "/api/posts", authorToken, fiber.Map{
		"server": "01",
		"text":   "  <b>Оновлення</b> сервера  ",
		"images": []string{},
	})
	requireStatus(t, resp, http.StatusCreated)
	created := decodeBody[models.Post](t, resp)
	assert.Equal(t, models.PostStatusPending, created.Status)
	assert.Equal(t, "Оновлення сервера", created.Text)
	assert.Equal(t, "author", created.AuthorDisplayName)
	postPath := fmt.Sprintf("/api/posts/%d", created.ID)

	resp = ts.do(t, http.MethodGet, "/api/posts", "", nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Empty(t, decodeBody[[]models.Post](t, resp), "pending posts stay out of the feed")

	resp = ts.do(t, http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, postPath, authorToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/admin/posts/pending", authorToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/admin/posts/pending", adminToken, nil)
	requireStatus(t, resp, http.StatusOK)
	require.Len(t, decodeBody[[]models.Post](t, resp), 1)

	resp = ts.do(t, http.MethodPost, postPath+"/like", authorToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "pending posts cannot be liked")

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/approve", created.ID), adminToken, nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, models.PostStatusApproved, decodeBody[models.Post](t, resp).Status)

	resp = ts.do(t, http.MethodGet, "/api/posts", "", nil)
	requireStatus(t, resp, http.StatusOK)
	feed := decodeBody[[]models.Post](t, resp)
	require.Len(t, feed, 1)
	assert.Equal(t, created.ID, feed[0].ID)

	resp = ts.do(t, http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreatePostValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, testutil.CreateUser(t, ts.db, "writer", false))

	tests := []struct {
		name   string
		token  string
		body   fiber.Map
		status int
	}{
		{"guest", "", fiber.Map{"server": "01", "text": "hi"}, http.StatusUnauthorized},
		{"unknown server", token, fiber.Map{"server": "07", "text": "hi"}, http.StatusBadRequest},
		{"blank text", token, fiber.Map{"server": "01", "text": "   "}, http.StatusBadRequest},
		{"too many images", token, fiber.Map{"server": "01", "text": "hi", "images": []string{"a", "b", "c", "d", "e", "f"}}, http.StatusBadRequest},
		{"lowercase all", token, fiber.Map{"server": "all", "text": "hi"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/posts", tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServerFilterIncludesAllPosts(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	p01 := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusApproved, "one")
	pAll := testutil.CreatePost(t, ts.db, author, models.ServerAll, models.PostStatusApproved, "all")
	testutil.CreatePost(t, ts.db, author, models.Server02, models.PostStatusApproved, "two")

	tests := []struct {
		query string
		want  []uint
	}{
		{"?server=01", []uint{p01.ID, pAll.ID}},
		{"?server=ALL", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run("filter"+tt.query, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/posts"+tt.query, "", nil)
			requireStatus(t, resp, http.StatusOK)
			posts := decodeBody[[]models.Post](t, resp)
			if tt.want == nil {
				assert.Len(t, posts, 3)
				return
			}
			ids := make([]uint, 0, len(posts))
			for _, p := range posts {
				ids = append(ids, p.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	resp := ts.do(t, http.MethodGet, "/api/posts?server=42", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToggleLike(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	fan := testutil.CreateUser(t, ts.db, "fan", false)
	post := testutil.CreatePost(t, ts.db, author, models.Server03, models.PostStatusApproved, "news")
	path := fmt.Sprintf("/api/posts/%d/like", post.ID)
	token := ts.token(t, fan)

	resp := ts.do(t, http.MethodPost, path, token, nil)
	requireStatus(t, resp, http.StatusOK)
	liked := decodeBody[models.Post](t, resp)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.LikesCount)
	assert.Equal(t, []uint{fan.ID}, liked.LikedBy)

	resp = ts.do(t, http.MethodPost, path, token, nil)
	requireStatus(t, resp, http.StatusOK)
	unliked := decodeBody[models.Post](t, resp)
	assert.False(t, unliked.Liked)
	assert.Zero(t, unliked.LikesCount)

	resp = ts.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/posts/9999/like", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordView(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	post := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusApproved, "news")
	path := fmt.Sprintf("/api/posts/%d/view", post.ID)

	resp := ts.do(t, http.MethodPost, path, "", nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, 1, decodeBody[models.Post](t, resp).ViewsCount)

	var guestCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.ViewerCookie {
			guestCookie = c
		}
	}
	require.NotNil(t, guestCookie, "guests get a viewer cookie")

	// same guest again
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.AddCookie(&http.Cookie{Name: guestCookie.Name, Value: guestCookie.Value})
	again, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = again.Body.Close() }()
	requireStatus(t, again, http.StatusOK)
	assert.Equal(t, 1, decodeBody[models.Post](t, again).ViewsCount)

	resp = ts.do(t, http.MethodPost, path, ts.token(t, author), nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, 2, decodeBody[models.Post](t, resp).ViewsCount)

	resp = ts.do(t, http.MethodPost, path, ts.token(t, author), nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, 2, decodeBody[models.Post](t, resp).ViewsCount)
}

func TestComments(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	reader := testutil.CreateUser(t, ts.db, "reader", false)
	post := testutil.CreatePost(t, ts.db, author, models.Server05, models.PostStatusApproved, "news")
	pending := testutil.CreatePost(t, ts.db, author, models.Server05, models.PostStatusPending, "later")
	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)
	token := ts.token(t, reader)

	resp := ts.do(t, http.MethodPost, path, token, fiber.Map{"text": "  Дякую!  "})
	requireStatus(t, resp, http.StatusCreated)
	comment := decodeBody[models.Comment](t, resp)
	assert.Equal(t, "Дякую!", comment.Text)
	assert.Equal(t, "reader", comment.AuthorDisplayName)

	resp = ts.do(t, http.MethodPost, path, token, fiber.Map{"text": " \n\t "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, path, "", fiber.Map{"text": "guest"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", pending.ID), token, fiber.Map{"text": "early"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other users cannot see pending posts")

	resp = ts.do(t, http.MethodGet, path, "", nil)
	requireStatus(t, resp, http.StatusOK)
	comments := decodeBody[[]models.Comment](t, resp)
	require.Len(t, comments, 1)
	assert.Equal(t, comment.ID, comments[0].ID)
}

func TestFeedExport(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	post := testutil.CreatePost(t, ts.db, author, models.Server02, models.PostStatusApproved, "for the site")
	testutil.CreatePost(t, ts.db, author, models.Server02, models.PostStatusPending, "hidden")

	resp := ts.do(t, http.MethodGet, "/api/feed.json?server=02", "", nil)
	requireStatus(t, resp, http.StatusOK)
	items := decodeBody[[]map[string]interface{}](t, resp)
	require.Len(t, items, 1)
	assert.Equal(t, float64(post.ID), items[0]["id"])
	assert.Equal(t, "author", items[0]["username"])
	assert.Equal(t, fmt.Sprintf("https://sutnist.test/posts/%d", post.ID), items[0]["channel_link"])

	resp = ts.do(t, http.MethodGet, "/api/feed.json?server=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
