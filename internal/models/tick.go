package models

import "time"

// Tick is one trade print normalized from a tick-server frame.
// CumVolume/CumTurnover are session-cumulative, not per-trade.
type Tick struct {
	Symbol      string
	Time        time.Time
	Price       float64
	LastQty     float64
	CumVolume   float64
	CumTurnover float64
}

// Valid reports whether the tick carries a usable trade price.
// Zero-price prints (auction placeholders, corrections) are dropped whole.
func (t Tick) Valid() bool {
	return t.Price > 0
}
