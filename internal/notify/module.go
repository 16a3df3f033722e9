package notify

import (
	"context"

	"go.uber.org/fx"

	"intraday_bot/internal/modules/config"
	healthsvc "intraday_bot/internal/modules/health/service"
	"intraday_bot/internal/runner"
	"intraday_bot/pkg/logger"
)

func newNotifier(lc fx.Lifecycle, cfg *config.Config, state *healthsvc.State) runner.Notifier {
	if cfg.Telegram.Token == "" {
		logger.Info("notify: no telegram token, using stdout")
		return NewStdout()
	}

	tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, state)
	if err != nil {
		logger.Error("notify: telegram init failed, using stdout: %v", err)
		return NewStdout()
	}

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cc := context.WithCancel(context.Background())
			cancel = cc
			return tg.Start(ctx)
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
	return tg
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			newNotifier,
		),
	)
}
