package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sutnist/internal/models"
	"sutnist/internal/repository"
	"sutnist/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-123"

type testEnv struct {
	db       *gorm.DB
	store    repository.Store
	sessions *SessionService
	identity *IdentityService
	posts    *PostService
	engage   *EngagementService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	store := repository.NewStore(db)
	sessions := NewSessionService(testSecret, time.Hour, nil)
	identity := NewIdentityService(store, sessions)
	identity.bcryptCost = bcrypt.MinCost

	return &testEnv{
		db:       db,
		store:    store,
		sessions: sessions,
		identity: identity,
		posts:    NewPostService(store, identity.IsAdmin),
		engage:   NewEngagementService(store, identity.IsAdmin),
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func ptr[T any](v T) *T { return &v }

var bg = context.Background()
