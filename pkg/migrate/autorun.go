package migrate

import (
	"context"
	"fmt"

	"github.com/sportsarena/membership-backend/pkg/config"
	"github.com/sportsarena/membership-backend/pkg/db"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when ARENA_AUTO_MIGRATE is set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	src := Embedded()
	versions, err := src.Validate()
	if err != nil {
		return err
	}

	before, err := CurrentVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	latest := versions[len(versions)-1]
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"schema_version": before,
		"latest_version": latest,
	})
	if before >= latest {
		logg.Info(ctx, "migrate.autorun.up_to_date")
		return nil
	}

	if err := Run(ctx, sqlDB, src, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun.applied")
	return nil
}
