package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"intraday_bot/internal/journal"
	"intraday_bot/internal/modules/broker_client"
	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/modules/health"
	"intraday_bot/internal/modules/postgres"
	"intraday_bot/internal/modules/stock_master"
	"intraday_bot/internal/modules/strategy"
	"intraday_bot/internal/modules/tick_ws"
	"intraday_bot/internal/notify"
	"intraday_bot/internal/runner"
	"intraday_bot/pkg/logger"
	"intraday_bot/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		config.Module(),
		postgres.Module(),
		journal.Module(),
		stock_master.Module(),
		strategy.Module(),
		broker_client.Module(),
		tick_ws.Module(),
		runner.Module(),
		health.Module(),
		notify.Module(),

		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if cfg.Jaeger.Host == "" {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)

	app.Run()
}
