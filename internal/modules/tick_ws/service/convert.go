package service

import (
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

// cumCache accumulates session totals for one symbol. The tick server
// sends per-trade quantities; downstream wants cumulative counters.
type cumCache struct {
	volume   float64
	turnover float64
	lastTS   int64
	day      time.Time
}

// convertFrame turns one wire frame into a normalized tick. Frames with
// a timestamp behind the last seen one are dropped: the counters only
// ever grow within a day.
func (c *Client) convertFrame(symbol string, f frame) (models.Tick, bool) {
	now := time.Now().In(c.loc)
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, c.loc)

	cache, ok := c.caches[symbol]
	if !ok {
		cache = &cumCache{day: midnight}
		c.caches[symbol] = cache
	}
	if !cache.day.Equal(midnight) {
		logger.Info("tick_ws: %s new session day, counters reset", symbol)
		*cache = cumCache{day: midnight}
	}

	if f.Timestamp < cache.lastTS {
		logger.Warn("tick_ws: %s out-of-order frame dropped (%d < %d)",
			symbol, f.Timestamp, cache.lastTS)
		return models.Tick{}, false
	}

	price := float64(f.Price10) / 10
	cache.volume += f.Quantity
	cache.turnover += f.Quantity * price
	cache.lastTS = f.Timestamp

	return models.Tick{
		Symbol:      symbol,
		Time:        midnight.Add(time.Duration(f.Timestamp) * time.Microsecond),
		Price:       price,
		LastQty:     f.Quantity,
		CumVolume:   cache.volume,
		CumTurnover: cache.turnover,
	}, true
}
