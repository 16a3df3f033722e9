package tick_ws

import (
	"context"
	"sort"

	"go.uber.org/fx"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	healthsvc "intraday_bot/internal/modules/health/service"
	"intraday_bot/internal/modules/tick_ws/service"
	"intraday_bot/pkg/logger"
)

func newTicksChan() chan models.Tick {
	return make(chan models.Tick, 65536)
}
func asRecvOnlyTicks(ch chan models.Tick) <-chan models.Tick { return ch }

// watchlist is the market-cap screened symbol set; only those are worth
// the subscription slots.
func watchlist(cfg *config.Config, instruments map[string]models.Instrument) []string {
	var syms []string
	for sym, ins := range instruments {
		if ins.MarketCap >= cfg.Strategy.MarketCapThreshold {
			syms = append(syms, sym)
		}
	}
	sort.Strings(syms)
	return syms
}

func newClient(cfg *config.Config, instruments map[string]models.Instrument,
	state *healthsvc.State) *service.Client {
	return service.NewClient(cfg.TickServer, watchlist(cfg, instruments), state)
}

func Module() fx.Option {
	return fx.Module("tick_ws",
		fx.Provide(
			newTicksChan,
			asRecvOnlyTicks,
			newClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, out chan models.Tick) {
			var cancel context.CancelFunc
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					ctx, cc := context.WithCancel(context.Background())
					cancel = cc
					go c.Stream(ctx, out)
					logger.Info("tick_ws: stream started")
					return nil
				},
				OnStop: func(context.Context) error {
					if cancel != nil {
						cancel()
					}
					return nil
				},
			})
		}),
	)
}
