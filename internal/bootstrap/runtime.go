// Package bootstrap prepares the database, Redis and built-in accounts for the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"sutnist/internal/cache"
	"sutnist/internal/config"
	"sutnist/internal/database"
	"sutnist/internal/repository"
	"sutnist/internal/seed"
	"sutnist/internal/service"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Fixture, when set, is applied after the schema ("demo" selects the bundled one).
	Fixture string
}

// InitRuntime connects to DB and Redis, ensures the seed admin and optionally loads a fixture.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if err := EnsureSeedAdmin(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to provision seed admin: %w", err)
	}

	if opts.Fixture != "" {
		fx, err := seed.LoadFixture(opts.Fixture)
		if err != nil {
			return nil, nil, err
		}
		res, err := seed.ApplyFixture(ctx, db, fx, bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to apply fixture: %w", err)
		}
		slog.InfoContext(ctx, "fixture applied",
			slog.String("fixture", opts.Fixture),
			slog.Int("users_created", res.UsersCreated),
			slog.Int("posts_created", res.PostsCreated))
	}

	return db, rdb, nil
}

// EnsureSeedAdmin creates or promotes the account named by SEED_ADMIN_USERNAME. It does nothing
// when no seed admin is configured.
func EnsureSeedAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.SeedAdminUsername == "" {
		return nil
	}

	identity := service.NewIdentityService(repository.NewStore(db), nil)
	user, created, err := identity.ProvisionAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword, cfg.SeedAdminDisplayName)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "seed admin ensured",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.String("username", user.Username),
		slog.Bool("created", created))
	return nil
}
