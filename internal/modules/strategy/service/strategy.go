package service

import "intraday_bot/internal/models"

// Engine turns market data into entry advice. Implementations keep all
// per-symbol state internally and are safe for concurrent use.
type Engine interface {
	Name() string

	// OnTick feeds every raw tick. The engine uses it for day rollover
	// and the opening-print gap evaluation; it produces no output.
	OnTick(t models.Tick)

	// OnBarClose updates indicators with the finished bar and reports a
	// Signal when the setup fires. The engine re-emits on every bar that
	// still satisfies the setup; callers decide whether to act.
	OnBarClose(b models.Bar) (models.Signal, bool)

	// EntryPrice returns the current working entry price for the symbol,
	// recomputed from the latest indicators. ok==false until the symbol
	// is eligible and indicators are warm.
	EntryPrice(symbol string) (price float64, ok bool)

	// ExitPrice derives the take-profit price for a position entered at
	// entryPrice on the given side.
	ExitPrice(side models.Side, entryPrice, atr float64) float64

	GapDirection(symbol string) models.GapDirection
}
