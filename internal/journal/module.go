package journal

import (
	"go.uber.org/fx"

	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/runner"
	"intraday_bot/pkg/db"
	"intraday_bot/pkg/logger"
)

func newJournal(cfg *config.Config, tm *db.PgTxManager) runner.Journal {
	if cfg.DB == "" || tm == nil {
		logger.Info("journal: no database configured, journaling disabled")
		return NewNoop()
	}
	return NewPg(tm)
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			newJournal,
		),
	)
}
