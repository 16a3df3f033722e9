package models

import "time"

// Signal is an entry advice produced by the strategy engine on bar close.
type Signal struct {
	Symbol       string
	Time         time.Time
	Side         Side
	EntryPrice   float64
	VWAP         float64
	ATR          float64
	FailureCount int
	Reason       string
}

// GapDirection is the expected reversion direction decided from the
// opening print vs yesterday's close.
type GapDirection string

const (
	GapNone GapDirection = "none"
	GapUp   GapDirection = "up"
	GapDown GapDirection = "down"
)
