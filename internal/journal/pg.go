package journal

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/db"
)

// Pg persists signals, order observations and completed trades for
// post-session analysis. Every write is its own small transaction; the
// journal sits off the trading path and must never hold it up.
type Pg struct {
	db db.TxManager
}

func NewPg(tm db.TxManager) *Pg {
	return &Pg{db: tm}
}

func (j *Pg) SignalCreated(ctx context.Context, sig models.Signal) error {
	err := j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO signals (symbol, side, entry_price, vwap, atr, failure_count, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sig.Symbol, string(sig.Side), sig.EntryPrice, sig.VWAP, sig.ATR,
			sig.FailureCount, sig.Reason, sig.Time)
		return err
	})
	return errors.Wrap(err, "journal: insert signal")
}

func (j *Pg) OrderObserved(ctx context.Context, rec models.OrderRecord) error {
	err := j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (order_id, symbol, side, kind, price, quantity, filled, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (order_id) DO UPDATE
			SET filled = EXCLUDED.filled, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
			rec.OrderID, rec.Symbol, string(rec.Side), string(rec.Kind), rec.Price,
			rec.Quantity, rec.Filled, string(rec.Status), rec.UpdatedAt)
		return err
	})
	return errors.Wrap(err, "journal: upsert order")
}

func (j *Pg) TradeClosed(ctx context.Context, tr models.TradeSummary) error {
	err := j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trades (symbol, side, entry_price, exit_price, quantity, opened_at, closed_at, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			tr.Symbol, string(tr.Side), tr.EntryPrice, tr.ExitPrice, tr.Quantity,
			tr.OpenedAt, tr.ClosedAt, tr.Reason)
		return err
	})
	return errors.Wrap(err, "journal: insert trade")
}
