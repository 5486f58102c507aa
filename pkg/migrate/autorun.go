package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

type gormProvider interface {
	DB() *gorm.DB
}

// MaybeRunDev applies the embedded migrations on boot, but only in dev with
// PACKFINDERZ_AUTO_MIGRATE set and against Postgres. Deployed environments
// run cmd/migrate as a release step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client gormProvider) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	conn := client.DB()
	if name := conn.Dialector.Name(); name != "postgres" {
		logg.Warn(logg.WithField(ctx, "driver", name), "auto migrate skipped for non-postgres driver")
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("dev auto migrate: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "version": version}), "dev migrations applied")
	return nil
}
