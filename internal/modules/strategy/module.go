package strategy

import (
	"go.uber.org/fx"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/modules/strategy/service"
)

func newEngine(cfg *config.Config, instruments map[string]models.Instrument) service.Engine {
	return service.NewVWAPFailure(service.Config{
		MarketCapThreshold: cfg.Strategy.MarketCapThreshold,
		GapUpThreshold:     cfg.Strategy.GapUpThreshold,
		GapDownThreshold:   cfg.Strategy.GapDownThreshold,
		FailureThreshold:   cfg.Strategy.FailureThreshold,
		EntryFactor:        cfg.Strategy.EntryFactor,
		ExitFactor:         cfg.Strategy.ExitFactor,
		LatestEntryTime:    cfg.Strategy.LatestEntryTime,
	}, instruments)
}

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			newEngine, // service.Engine
		),
	)
}
