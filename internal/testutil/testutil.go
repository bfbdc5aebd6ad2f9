// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"sutnist/internal/config"
	"sutnist/internal/database"
	"sutnist/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens an isolated in-memory SQLite database with the full schema.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{Env: "test", DBDriver: "sqlite"}
	// a named shared-cache DSN keeps each test's database separate
	dsn := fmt.Sprintf("file:sutnist_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := database.Open(cfg, sqlite.Open(dsn))
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// TestPassword is the plain-text password of users made by CreateUser.
const TestPassword = "correct-horse-battery"

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// CreateUser inserts a user with TestPassword and the default avatar.
func CreateUser(t testing.TB, db *gorm.DB, username string, isAdmin bool) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		DisplayName: username,
		Avatar:      models.DefaultAvatar(username),
		Password:    testPasswordHash,
		IsAdmin:     isAdmin,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a post authored by author with the given status.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, server models.ServerTag, status models.PostStatus, text string) *models.Post {
	t.Helper()
	p := &models.Post{
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorAvatar:      author.Avatar,
		Server:            server,
		Text:              text,
		Images:            []string{},
		Status:            status,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}
