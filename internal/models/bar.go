package models

import "time"

// Bar is a fixed-interval OHLCV aggregate for one instrument.
// Start is floored to the interval boundary.
type Bar struct {
	Symbol   string
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}
