package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"intraday_bot/internal/modules/config"
	"intraday_bot/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					// journaling degrades to a noop without a database
					return nil, nil
				}
				ctx := context.Background()
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				if err := poolMaster.Ping(ctx); err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
