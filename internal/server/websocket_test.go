package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"sutnist/internal/models"
	"sutnist/internal/notifications"
	"sutnist/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the app on a random local port for clients that need a real socket.
func (ts *testServer) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = ts.app.Listener(ln) }()
	t.Cleanup(func() { _ = ts.app.ShutdownWithTimeout(time.Second) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, ts.srv.hub.StartWiring(ctx, ts.srv.notifier))
	return ln.Addr().String()
}

func TestWebsocketReceivesModerationEvents(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author", false)
	admin := testutil.CreateUser(t, ts.db, "moder", true)
	post := testutil.CreatePost(t, ts.db, author, models.Server01, models.PostStatusPending, "live")
	addr := ts.listen(t)

	conn, resp, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/api/ws?token=%s", addr, ts.token(t, author)), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return ts.srv.hub.ConnectionCount(author.ID) == 1
	}, 2*time.Second, 20*time.Millisecond)

	approve := ts.do(t, http.MethodPost, fmt.Sprintf("/api/admin/posts/%d/approve", post.ID), ts.token(t, admin), nil)
	requireStatus(t, approve, http.StatusOK)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type    string              `json:"type"`
		Payload models.Notification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, notifications.EventPostApproved, event.Type)
	assert.Equal(t, author.ID, event.Payload.UserID)
	assert.Equal(t, models.NotificationApproval, event.Payload.Kind)
}

func TestWebsocketRequiresAuthAndUpgrade(t *testing.T) {
	ts := newTestServer(t)
	user := testutil.CreateUser(t, ts.db, "listener", false)

	resp := ts.do(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/ws?token="+ts.token(t, user), "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
