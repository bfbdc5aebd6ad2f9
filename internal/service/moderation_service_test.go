package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sutnist/internal/models"
	"sutnist/internal/notifications"
	"sutnist/internal/repository"
	"sutnist/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUser(ctx context.Context, userID uint, event notifications.Event) error {
	args := m.Called(ctx, userID, event)
	return args.Error(0)
}

func newModeration(env *testEnv, pub Publisher) *ModerationService {
	return NewModerationService(env.store, env.identity.IsAdmin, pub)
}

func notificationsOf(t *testing.T, env *testEnv, userID uint) []models.Notification {
	t.Helper()
	list, err := repository.NewNotificationRepository(env.db).ListForUser(bg, userID, 100, 0)
	require.NoError(t, err)
	return list
}

func TestModerationService_Approve(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	author := testutil.CreateUser(t, env.db, "author", false)
	post := testutil.CreatePost(t, env.db, author, models.Server03, models.PostStatusPending, "new raid")

	pub := &mockPublisher{}
	pub.On("PublishUser", mock.Anything, author.ID, mock.MatchedBy(func(e notifications.Event) bool {
		return e.Type == notifications.EventPostApproved
	})).Return(nil).Once()

	got, err := newModeration(env, pub).Approve(bg, post.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, got.Status)
	require.NotNil(t, got.ModeratedBy)
	assert.Equal(t, admin.ID, *got.ModeratedBy)
	assert.NotNil(t, got.ModeratedAt)
	pub.AssertExpectations(t)

	list := notificationsOf(t, env, author.ID)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationApproval, list[0].Kind)
	assert.Equal(t, "Пост схвалено!", list[0].Title)
	assert.Equal(t, "Вітаємо! Ваш пост у стрічці.", list[0].Message)
	assert.False(t, list[0].Read)
	require.NotNil(t, list[0].PostID)
	assert.Equal(t, post.ID, *list[0].PostID)

	feed, err := env.posts.ListApproved(bg, ListPostsInput{Server: "03"})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, post.ID, feed[0].ID)
}

func TestModerationService_Reject(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	author := testutil.CreateUser(t, env.db, "author", false)
	withReason := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "spam")
	withoutReason := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "spam again")

	svc := newModeration(env, nil)

	got, err := svc.Reject(bg, withReason.ID, admin.ID, "  <b>Реклама</b> ")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, got.Status)
	assert.Equal(t, "Реклама", got.ModeratorNote)

	got, err = svc.Reject(bg, withoutReason.ID, admin.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Порушення правил", got.ModeratorNote)

	list := notificationsOf(t, env, author.ID)
	require.Len(t, list, 2)
	messages := []string{list[0].Message, list[1].Message}
	assert.ElementsMatch(t, []string{"Причина: Реклама", "Причина: Порушення правил"}, messages)
	for _, n := range list {
		assert.Equal(t, models.NotificationRejection, n.Kind)
		assert.Equal(t, "Пост відхилено", n.Title)
	}

	feed, err := env.posts.ListApproved(bg, ListPostsInput{})
	require.NoError(t, err)
	assert.Empty(t, feed)
}

func TestModerationService_RejectedPostFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)

	reg, err := env.identity.Register(bg, RegisterInput{Username: "nick", Password: "password123"})
	require.NoError(t, err)
	nick := reg.User

	post, err := env.posts.CreatePost(bg, CreatePostInput{AuthorID: nick.ID, Server: "03", Text: "short"})
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, post.Status)

	got, err := newModeration(env, nil).Reject(bg, post.ID, admin.ID, "too short")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, got.Status)
	assert.Equal(t, "too short", got.ModeratorNote)

	inbox := NewNotificationService(env.store.Notifications())
	unread, err := inbox.UnreadCount(bg, nick.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	list, err := inbox.List(bg, nick.ID, 20, 0, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationRejection, list[0].Kind)
	assert.False(t, list[0].Read)
	assert.Contains(t, list[0].Message, "too short")

	feed, err := env.posts.ListApproved(bg, ListPostsInput{Server: "03"})
	require.NoError(t, err)
	for _, p := range feed {
		assert.NotEqual(t, post.ID, p.ID)
	}
	assert.Empty(t, feed)
}

func TestModerationService_TerminalStates(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	author := testutil.CreateUser(t, env.db, "author", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "once")
	svc := newModeration(env, nil)

	_, err := svc.Approve(bg, post.ID, admin.ID)
	require.NoError(t, err)

	_, err = svc.Approve(bg, post.ID, admin.ID)
	assertCode(t, err, models.CodeInvalidTransition)

	_, err = svc.Reject(bg, post.ID, admin.ID, "late")
	assertCode(t, err, models.CodeInvalidTransition)

	var p models.Post
	require.NoError(t, env.db.First(&p, post.ID).Error)
	assert.Equal(t, models.PostStatusApproved, p.Status)
	assert.Empty(t, p.ModeratorNote)
	assert.Len(t, notificationsOf(t, env, author.ID), 1)
}

func TestModerationService_Authorization(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	member := testutil.CreateUser(t, env.db, "member", false)
	post := testutil.CreatePost(t, env.db, member, models.Server01, models.PostStatusPending, "mine")
	svc := newModeration(env, nil)

	_, err := svc.Approve(bg, post.ID, 0)
	assertCode(t, err, models.CodeUnauthenticated)

	_, err = svc.Approve(bg, post.ID, member.ID)
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.Reject(bg, post.ID, member.ID, "")
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.Approve(bg, 9999, admin.ID)
	assertCode(t, err, models.CodeNotFound)

	assert.Empty(t, notificationsOf(t, env, member.ID))
}

func TestModerationService_PublishFailureDoesNotFailDecision(t *testing.T) {
	env := newTestEnv(t)
	admin := testutil.CreateUser(t, env.db, "admin", true)
	author := testutil.CreateUser(t, env.db, "author", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "hello")

	pub := &mockPublisher{}
	pub.On("PublishUser", mock.Anything, author.ID, mock.Anything).Return(errors.New("redis down"))

	got, err := newModeration(env, pub).Reject(bg, post.ID, admin.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusRejected, got.Status)
	pub.AssertNumberOfCalls(t, "PublishUser", 1)
}

func TestModerationService_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	env := newTestEnv(t)
	first := testutil.CreateUser(t, env.db, "admin_one", true)
	second := testutil.CreateUser(t, env.db, "admin_two", true)
	author := testutil.CreateUser(t, env.db, "author", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "contested")
	svc := newModeration(env, nil)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.Approve(bg, post.ID, first.ID)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.Reject(bg, post.ID, second.ID, "")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assertCode(t, err, models.CodeInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, notificationsOf(t, env, author.ID), 1)
}
