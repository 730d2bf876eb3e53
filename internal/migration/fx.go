package migration

import (
	"github.com/smallbiznis/collections/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if conn.Dialector.Name() != "postgres" {
			log.Warn("skipping embedded migrations; only postgres is supported",
				zap.String("type", cfg.Type),
			)
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
