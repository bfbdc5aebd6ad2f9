package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"sutnist/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageUploadRequest(t *testing.T, token string, content []byte, contentType string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUploadAndServeImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, testutil.CreateUser(t, ts.db, "photographer", false))

	resp, err := ts.app.Test(imageUploadRequest(t, token, testutil.TinyPNG(t, 12, 8), "image/png"), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	requireStatus(t, resp, http.StatusCreated)

	uploaded := decodeBody[ImageUploadResponse](t, resp)
	require.Len(t, uploaded.Hash, 64)
	assert.Equal(t, "/api/images/"+uploaded.Hash, uploaded.Ref)
	assert.Equal(t, 12, uploaded.Width)
	assert.Equal(t, 8, uploaded.Height)
	assert.Equal(t, "image/webp", uploaded.MimeType)

	served := ts.do(t, http.MethodGet, uploaded.Ref, "", nil)
	requireStatus(t, served, http.StatusOK)
	assert.Contains(t, served.Header.Get("Cache-Control"), "immutable")
}

func TestUploadImageRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, testutil.CreateUser(t, ts.db, "uploader", false))

	tests := []struct {
		name        string
		token       string
		content     []byte
		contentType string
		status      int
	}{
		{"guest", "", testutil.TinyPNG(t, 2, 2), "image/png", http.StatusUnauthorized},
		{"not an image", token, []byte("plain text, not pixels"), "image/png", http.StatusBadRequest},
		{"declared type mismatch", token, testutil.TinyPNG(t, 2, 2), "image/gif", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ts.app.Test(imageUploadRequest(t, tt.token, tt.content, tt.contentType), -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(""))
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetImageValidatesHash(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/images/not-a-hash", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/images/"+strings.Repeat("ab", 32), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
