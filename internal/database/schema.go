package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

// Schema modes accepted by DB_SCHEMA_MODE.
const (
	SchemaModeSQL  = "sql"
	SchemaModeAuto = "auto"
)

// SchemaStatus describes what ApplySchema would do against a database.
type SchemaStatus struct {
	Mode              string
	Dialect           string
	Environment       string
	AppliedVersions   []int
	PendingMigrations []Migration
}

func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeSQL
	}
	return mode
}

// ApplySchema brings the database schema up to date using the configured mode.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	mode := normalizedSchemaMode(cfg)
	switch mode {
	case SchemaModeSQL:
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		return nil
	case SchemaModeAuto:
		if cfg.IsProduction() {
			middleware.Logger.Warn("DB_SCHEMA_MODE=auto in production; review schema diffs before deploying")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("env", cfg.Env))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// GetSchemaStatus reports applied and pending SQL migrations for the connection's dialect.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	status := &SchemaStatus{
		Mode:        normalizedSchemaMode(cfg),
		Dialect:     db.Dialector.Name(),
		Environment: cfg.Env,
	}
	if status.Mode != SchemaModeSQL {
		return status, nil
	}

	migrations, err := GetMigrations(status.Dialect)
	if err != nil {
		return nil, err
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range migrations {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}

	return status, nil
}
