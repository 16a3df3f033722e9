package broker_client

import (
	"go.uber.org/fx"

	"intraday_bot/internal/modules/broker_client/service"
	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/reconciler"
	"intraday_bot/internal/runner"
)

func newClient(cfg *config.Config) *service.Client {
	return service.NewClient(cfg.Broker)
}

func asExecutionBroker(c *service.Client) runner.Broker     { return c }
func asReconcileBroker(c *service.Client) reconciler.Broker { return c }

func Module() fx.Option {
	return fx.Module("broker_client",
		fx.Provide(
			newClient,
			asExecutionBroker,
			asReconcileBroker,
		),
	)
}
