// Package bootstrap wires the process-wide runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/repository"
	"inkwell/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty development database with demo content.
	SeedDemo bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo content.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemo {
		if err := seedDemo(ctx, cfg, db); err != nil {
			_ = database.Close(db)
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, rdb, nil
}

func seedDemo(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if !strings.EqualFold(cfg.Env, "development") {
		middleware.Logger.Warn("Demo seeding skipped outside development", slog.String("env", cfg.Env))
		return nil
	}

	users, err := repository.NewUserRepository(db).Count(ctx)
	if err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	_, err = seed.Seed(ctx, db, seed.Options{
		NumReaders:      5,
		NumPosts:        6,
		CommentsPerPost: 3,
		Hasher:          auth.NewPasswordHasher(cfg.BcryptCost),
	})
	return err
}
