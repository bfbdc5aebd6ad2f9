package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"sutnist/internal/models"
	"sutnist/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngagementService_ToggleLike(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author", false)
	fan := testutil.CreateUser(t, env.db, "fan", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusApproved, "like me")

	liked, err := env.engage.ToggleLike(bg, post.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.LikesCount)
	assert.Equal(t, []uint{fan.ID}, liked.LikedBy)

	unliked, err := env.engage.ToggleLike(bg, post.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, unliked.Liked)
	assert.Zero(t, unliked.LikesCount)
	assert.Empty(t, unliked.LikedBy)
}

func TestEngagementService_ToggleLikeRejects(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author", false)
	pending := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "wait")

	_, err := env.engage.ToggleLike(bg, pending.ID, 0)
	assertCode(t, err, models.CodeUnauthenticated)

	_, err = env.engage.ToggleLike(bg, pending.ID, author.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = env.engage.ToggleLike(bg, 9999, author.ID)
	assertCode(t, err, models.CodeNotFound)

	var likes int64
	require.NoError(t, env.db.Model(&models.Like{}).Count(&likes).Error)
	assert.Zero(t, likes)
}

func TestEngagementService_ConcurrentLikesFromManyUsers(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusApproved, "popular")

	const n = 8
	users := make([]*models.User, n)
	for i := range users {
		users[i] = testutil.CreateUser(t, env.db, fmt.Sprintf("fan_%d", i), false)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, u := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := env.engage.ToggleLike(bg, post.ID, id)
			errs <- err
		}(u.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := env.posts.GetPost(bg, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, n, got.LikesCount)
	assert.ElementsMatch(t, func() []uint {
		ids := make([]uint, 0, n)
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		return ids
	}(), got.LikedBy)
}

func TestEngagementService_RecordView(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author", false)
	reader := testutil.CreateUser(t, env.db, "reader", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusApproved, "read me")
	pending := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "queued")

	memberKey := fmt.Sprintf("u:%d", reader.ID)
	got, err := env.engage.RecordView(bg, post.ID, reader.ID, memberKey)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewsCount)

	got, err = env.engage.RecordView(bg, post.ID, reader.ID, memberKey)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewsCount, "repeat views are not counted")

	got, err = env.engage.RecordView(bg, post.ID, 0, "g:2ZyQm5W2x3Tz1vQe9Hk7zC8bLqA")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewsCount)

	t.Run("pending post views are not counted", func(t *testing.T) {
		got, err := env.engage.RecordView(bg, pending.ID, author.ID, fmt.Sprintf("u:%d", author.ID))
		require.NoError(t, err)
		assert.Zero(t, got.ViewsCount)
	})

	t.Run("hidden post", func(t *testing.T) {
		_, err := env.engage.RecordView(bg, pending.ID, reader.ID, memberKey)
		assertCode(t, err, models.CodeNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := env.engage.RecordView(bg, post.ID, 0, " ")
		assertCode(t, err, models.CodeValidation)
	})
}

func TestEngagementService_Comments(t *testing.T) {
	env := newTestEnv(t)
	author := testutil.CreateUser(t, env.db, "author", false)
	reader := testutil.CreateUser(t, env.db, "reader", false)
	post := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusApproved, "discuss")
	pending := testutil.CreatePost(t, env.db, author, models.Server01, models.PostStatusPending, "queued")

	first, err := env.engage.AddComment(bg, AddCommentInput{PostID: post.ID, AuthorID: reader.ID, Text: " <i>Перший</i> "})
	require.NoError(t, err)
	assert.Equal(t, "Перший", first.Text)
	assert.Equal(t, "reader", first.AuthorDisplayName)

	second, err := env.engage.AddComment(bg, AddCommentInput{PostID: post.ID, AuthorID: author.ID, Text: "Другий"})
	require.NoError(t, err)

	comments, err := env.engage.ListComments(bg, post.ID, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)

	got, err := env.posts.GetPost(bg, post.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got.Comments, 2)

	tests := []struct {
		name string
		in   AddCommentInput
		code string
	}{
		{"guest", AddCommentInput{PostID: post.ID, Text: "hi"}, models.CodeUnauthenticated},
		{"whitespace", AddCommentInput{PostID: post.ID, AuthorID: reader.ID, Text: "   "}, models.CodeValidation},
		{"too long", AddCommentInput{PostID: post.ID, AuthorID: reader.ID, Text: strings.Repeat("a", 1001)}, models.CodeValidation},
		{"missing post", AddCommentInput{PostID: 9999, AuthorID: reader.ID, Text: "hi"}, models.CodeNotFound},
		{"hidden post", AddCommentInput{PostID: pending.ID, AuthorID: reader.ID, Text: "hi"}, models.CodeNotFound},
		{"own pending post", AddCommentInput{PostID: pending.ID, AuthorID: author.ID, Text: "hi"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engage.AddComment(bg, tt.in)
			assertCode(t, err, tt.code)
		})
	}
}
