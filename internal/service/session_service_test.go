package service

import (
	"testing"
	"time"

	"sutnist/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_IssueAndParse(t *testing.T) {
	t.Parallel()
	svc := NewSessionService(testSecret, time.Hour, nil)

	session, err := svc.Issue(&models.User{ID: 42, Username: "taras"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 2*time.Second)

	claims, err := svc.Parse(bg, session.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "taras", claims.Username)
	assert.NotEmpty(t, claims.JTI)
}

func TestSessionService_RejectsBadTokens(t *testing.T) {
	t.Parallel()
	svc := NewSessionService(testSecret, time.Hour, nil)

	sign := func(method jwt.SigningMethod, claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "1",
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
			"jti": "abc",
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.SigningMethodHS256, valid(), "another-secret")},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, valid(), testSecret)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, func() jwt.MapClaims { c := valid(); c["iss"] = "elsewhere"; return c }(), testSecret)},
		{"wrong audience", sign(jwt.SigningMethodHS256, func() jwt.MapClaims { c := valid(); c["aud"] = "elsewhere"; return c }(), testSecret)},
		{"expired", sign(jwt.SigningMethodHS256, func() jwt.MapClaims { c := valid(); c["exp"] = time.Now().Add(-time.Minute).Unix(); return c }(), testSecret)},
		{"no expiry", sign(jwt.SigningMethodHS256, func() jwt.MapClaims { c := valid(); delete(c, "exp"); return c }(), testSecret)},
		{"non-numeric subject", sign(jwt.SigningMethodHS256, func() jwt.MapClaims { c := valid(); c["sub"] = "abc"; return c }(), testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Parse(bg, tt.token)
			assertCode(t, err, models.CodeUnauthenticated)
		})
	}
}

func TestSessionService_Revoke(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewSessionService(testSecret, time.Hour, rdb)
	session, err := svc.Issue(&models.User{ID: 7, Username: "olena"})
	require.NoError(t, err)

	claims, err := svc.Parse(bg, session.Token)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(bg, claims))

	ttl := mr.TTL(revokedKeyPrefix + claims.JTI)
	assert.Greater(t, ttl, 58*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	_, err = svc.Parse(bg, session.Token)
	assertCode(t, err, models.CodeUnauthenticated)

	// a fresh session of the same user is unaffected
	other, err := svc.Issue(&models.User{ID: 7, Username: "olena"})
	require.NoError(t, err)
	_, err = svc.Parse(bg, other.Token)
	assert.NoError(t, err)
}

func TestSessionService_RedisOutageKeepsSessionsValid(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewSessionService(testSecret, time.Hour, rdb)
	session, err := svc.Issue(&models.User{ID: 3, Username: "ivan"})
	require.NoError(t, err)

	mr.Close()
	claims, err := svc.Parse(bg, session.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)

	assertCode(t, svc.Revoke(bg, claims), models.CodeStorage)
}

func TestSessionService_RevokeWithoutRedisIsNoop(t *testing.T) {
	t.Parallel()
	svc := NewSessionService(testSecret, time.Hour, nil)
	assert.NoError(t, svc.Revoke(bg, &Claims{JTI: "x", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.NoError(t, svc.Revoke(bg, nil))
}

func TestSessionService_EmptySecret(t *testing.T) {
	t.Parallel()
	svc := NewSessionService("", time.Hour, nil)
	_, err := svc.Issue(&models.User{ID: 1})
	assertCode(t, err, models.CodeInternal)
}
