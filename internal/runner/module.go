package runner

import (
	"context"
	"time"

	"go.uber.org/fx"

	"intraday_bot/internal/marketdata"
	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/config"
	"intraday_bot/internal/reconciler"
	"intraday_bot/pkg/logger"
)

func newRunnerConfig(cfg *config.Config) Config {
	return Config{
		PositionSize:   cfg.Strategy.PositionSize,
		ExitTimeout:    cfg.Strategy.ExitTimeout,
		MaxDailyTrades: cfg.Strategy.MaxDailyTrades,
	}
}

func newGenerator(cfg *config.Config) *marketdata.Generator {
	return marketdata.New(cfg.Strategy.BarInterval)
}

func newUpdatesChan() chan reconciler.Update {
	return make(chan reconciler.Update, 4096)
}
func asSendOnlyUpdates(ch chan reconciler.Update) chan<- reconciler.Update { return ch }

func newOrderCache(cfg *config.Config) *reconciler.OrderCache {
	return reconciler.NewOrderCache(sessionStart(cfg.Strategy.SessionStart, time.Now()))
}

func newReconciler(cfg *config.Config, broker reconciler.Broker,
	cache *reconciler.OrderCache, out chan<- reconciler.Update) *reconciler.Reconciler {
	return reconciler.New(reconciler.Config{
		PollInterval: cfg.Broker.PollInterval,
		QueryTimeout: cfg.Broker.QueryTimeout,
		PointLookups: cfg.Broker.PointLookups,
	}, broker, cache, out)
}

// sessionStart anchors the reconcile watermark at today's session open,
// so a restart mid-day replays every order touched since the open.
func sessionStart(clock string, now time.Time) time.Time {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		logger.Warn("runner: bad session_start %q, watermark starts at now: %v", clock, err)
		return now
	}
	y, m, d := now.Date()
	start := time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, now.Location())
	if start.After(now) {
		return now
	}
	return start
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newRunnerConfig,
			newGenerator,
			newUpdatesChan,
			asSendOnlyUpdates,
			newOrderCache,
			newReconciler,
			NewRouter,
		),
		fx.Invoke(run),
	)
}

func run(
	lc fx.Lifecycle,
	router *Router,
	gen *marketdata.Generator,
	rec *reconciler.Reconciler,
	ticks <-chan models.Tick,
	updates chan reconciler.Update,
	cfg Config,
) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, c := context.WithCancel(context.Background())
			cancel = c
			router.Start(ctx)

			go tickLoop(ctx, router, gen, ticks)
			go flushLoop(ctx, router, gen)
			go rec.Run(ctx)
			go updateLoop(ctx, router, updates)

			logger.Info("runner: started")
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

// tickLoop is the hot path: strategy tick state, bar aggregation and
// day rollover all hang off the tick stream.
func tickLoop(ctx context.Context, router *Router, gen *marketdata.Generator, ticks <-chan models.Tick) {
	var day time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ticks:
			if !ok {
				logger.Warn("runner: tick channel closed")
				return
			}

			y, m, d := t.Time.Date()
			tickDay := time.Date(y, m, d, 0, 0, 0, 0, t.Time.Location())
			if !day.IsZero() && !tickDay.Equal(day) {
				router.ResetAll()
			}
			day = tickDay

			router.engine.OnTick(t)
			if bar, closed := gen.OnTick(t); closed {
				router.OnBarClose(bar)
			}
		}
	}
}

// flushLoop force-closes stale bars for illiquid symbols and drives the
// exit-timeout clock.
func flushLoop(ctx context.Context, router *Router, gen *marketdata.Generator) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, bar := range gen.FlushStale(now) {
				router.OnBarClose(bar)
			}
			router.OnTimer(now)
		}
	}
}

func updateLoop(ctx context.Context, router *Router, updates chan reconciler.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-updates:
			router.OnUpdate(upd)
		}
	}
}
