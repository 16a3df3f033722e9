package models

import "time"

// TradeSummary is one completed round trip, entry through exit.
type TradeSummary struct {
	Symbol     string
	Side       Side // entry side
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	OpenedAt   time.Time
	ClosedAt   time.Time
	Reason     string
}
