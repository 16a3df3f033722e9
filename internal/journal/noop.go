package journal

import (
	"context"

	"intraday_bot/internal/models"
)

// Noop is used when no database is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) SignalCreated(context.Context, models.Signal) error      { return nil }
func (Noop) OrderObserved(context.Context, models.OrderRecord) error { return nil }
func (Noop) TradeClosed(context.Context, models.TradeSummary) error  { return nil }
