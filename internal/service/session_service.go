package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"sutnist/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "sutnist-api"
	TokenAudience = "sutnist-client"

	revokedKeyPrefix = "blacklist:"
)

// Session is a signed token handed to the client.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the verified contents of a session token.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// SessionService issues and verifies HS256 session tokens. Revoked token ids are kept in
// Redis until the token would have expired anyway.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
	now    func() time.Time
}

func NewSessionService(secret string, ttl time.Duration, rdb *redis.Client) *SessionService {
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		rdb:    rdb,
		now:    time.Now,
	}
}

// Issue signs a new session for user.
func (s *SessionService) Issue(user *models.User) (*Session, error) {
	if len(s.secret) == 0 {
		return nil, models.NewInternalError(errors.New("JWT secret not configured"))
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: signed, ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC()}, nil
}

// Parse verifies a token and rejects revoked ones. A Redis outage does not lock
// members out; the deny-list check is skipped with a warning.
func (s *SessionService) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, models.NewUnauthenticatedError("Invalid or expired token")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthenticatedError("Invalid token claims")
	}
	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, models.NewUnauthenticatedError("Invalid user ID in token")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, models.NewUnauthenticatedError("Invalid token expiry")
	}

	claims := &Claims{UserID: uint(userID), ExpiresAt: exp.Time}
	claims.Username, _ = mc["username"].(string)
	claims.JTI, _ = mc["jti"].(string)

	if claims.JTI != "" && s.rdb != nil {
		revoked, err := s.rdb.Exists(ctx, revokedKeyPrefix+claims.JTI).Result()
		switch {
		case err != nil:
			slog.WarnContext(ctx, "session deny-list unavailable", slog.String("error", err.Error()))
		case revoked > 0:
			return nil, models.NewUnauthenticatedError("Token has been revoked")
		}
	}
	return claims, nil
}

// Revoke puts the token id on the deny-list for the rest of its lifetime.
func (s *SessionService) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.JTI == "" || s.rdb == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKeyPrefix+claims.JTI, "1", ttl).Err(); err != nil {
		return models.NewStorageError(fmt.Errorf("revoke session: %w", err))
	}
	return nil
}
