package stock_master

import (
	"context"
	"time"

	"go.uber.org/fx"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/modules/stock_master/service"
)

func newClient(cfg *config.Config) *service.Client {
	return service.NewClient(cfg.TickServer)
}

// newInstruments loads the stock master once at startup. Everything
// downstream (watchlist, gap evaluation) keys off this snapshot.
func newInstruments(c *service.Client) (map[string]models.Instrument, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return c.Fetch(ctx)
}

func Module() fx.Option {
	return fx.Module("stock_master",
		fx.Provide(
			newClient,
			newInstruments,
		),
	)
}
