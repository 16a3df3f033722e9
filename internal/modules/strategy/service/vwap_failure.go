package service

import (
	"sync"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

type Config struct {
	MarketCapThreshold float64
	GapUpThreshold     float64
	GapDownThreshold   float64
	FailureThreshold   int
	EntryFactor        float64
	ExitFactor         float64
	LatestEntryTime    string // "15:04:05" clock time, last bar close that may signal
}

type symbolDay struct {
	firstTickPrice float64
	hasFirstTick   bool
	gap            models.GapDirection
	indicators     *indicatorSet
	last           Indicators
	hasBar         bool
}

// VWAPFailure trades the failed VWAP reclaim after a gap open. A gap-up
// symbol that keeps closing below VWAP is faded short at
// VWAP + ATR*EntryFactor, a gap-down symbol that keeps closing above
// VWAP is bought at VWAP - ATR*EntryFactor.
type VWAPFailure struct {
	mu  sync.Mutex
	cfg Config

	instruments map[string]models.Instrument
	eligible    map[string]struct{} // passed the market-cap screen
	latestEntry time.Duration       // offset from midnight, 0 = no limit

	tradingDay time.Time
	days       map[string]*symbolDay
}

func NewVWAPFailure(cfg Config, instruments map[string]models.Instrument) *VWAPFailure {
	e := &VWAPFailure{
		cfg:         cfg,
		instruments: instruments,
		eligible:    make(map[string]struct{}),
		days:        make(map[string]*symbolDay),
	}

	for sym, ins := range instruments {
		if ins.MarketCap >= cfg.MarketCapThreshold {
			e.eligible[sym] = struct{}{}
		}
	}
	logger.Info("strategy: %d of %d instruments pass the market-cap screen",
		len(e.eligible), len(instruments))

	if cfg.LatestEntryTime != "" {
		t, err := time.Parse("15:04:05", cfg.LatestEntryTime)
		if err != nil {
			logger.Warn("strategy: bad latest_entry_time %q, entries not time-limited: %v",
				cfg.LatestEntryTime, err)
		} else {
			e.latestEntry = time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second
		}
	}
	return e
}

func (e *VWAPFailure) Name() string { return "vwap_failure" }

func (e *VWAPFailure) OnTick(t models.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollDay(t.Time)

	if _, ok := e.eligible[t.Symbol]; !ok {
		return
	}
	sd := e.day(t.Symbol)
	if sd.hasFirstTick || !t.Valid() {
		return
	}
	sd.hasFirstTick = true
	sd.firstTickPrice = t.Price
	sd.gap = e.evaluateGap(t.Symbol, t.Price)
}

func (e *VWAPFailure) OnBarClose(b models.Bar) (models.Signal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollDay(b.Start)

	if _, ok := e.eligible[b.Symbol]; !ok {
		return models.Signal{}, false
	}

	sd := e.day(b.Symbol)
	sd.last = sd.indicators.UpdateBar(b)
	sd.hasBar = true

	if sd.gap == models.GapNone || sd.gap == "" {
		return models.Signal{}, false
	}
	if !e.withinEntryWindow(b.Start) {
		return models.Signal{}, false
	}
	// ATR warmup gate: no sizing reference, no trade.
	if sd.last.ATR <= 0 {
		return models.Signal{}, false
	}

	var (
		side     models.Side
		price    float64
		failures int
	)
	switch sd.gap {
	case models.GapUp:
		failures = sd.last.BelowVWAPCount
		side = models.SideSell
		price = sd.last.VWAP + sd.last.ATR*e.cfg.EntryFactor
	case models.GapDown:
		failures = sd.last.AboveVWAPCount
		side = models.SideBuy
		price = sd.last.VWAP - sd.last.ATR*e.cfg.EntryFactor
	}
	if failures < e.cfg.FailureThreshold {
		return models.Signal{}, false
	}

	return models.Signal{
		Symbol:       b.Symbol,
		Time:         b.Start,
		Side:         side,
		EntryPrice:   price,
		VWAP:         sd.last.VWAP,
		ATR:          sd.last.ATR,
		FailureCount: failures,
		Reason:       "vwap_failure_" + string(sd.gap),
	}, true
}

func (e *VWAPFailure) EntryPrice(symbol string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sd, ok := e.days[symbol]
	if !ok || !sd.hasBar || sd.last.ATR <= 0 {
		return 0, false
	}
	switch sd.gap {
	case models.GapUp:
		return sd.last.VWAP + sd.last.ATR*e.cfg.EntryFactor, true
	case models.GapDown:
		return sd.last.VWAP - sd.last.ATR*e.cfg.EntryFactor, true
	}
	return 0, false
}

func (e *VWAPFailure) ExitPrice(side models.Side, entryPrice, atr float64) float64 {
	if side == models.SideSell {
		return entryPrice - atr*e.cfg.ExitFactor
	}
	return entryPrice + atr*e.cfg.ExitFactor
}

func (e *VWAPFailure) GapDirection(symbol string) models.GapDirection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sd, ok := e.days[symbol]; ok && sd.gap != "" {
		return sd.gap
	}
	return models.GapNone
}

func (e *VWAPFailure) withinEntryWindow(ts time.Time) bool {
	if e.latestEntry == 0 {
		return true
	}
	h, m, s := ts.Clock()
	sinceMidnight := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second
	return sinceMidnight <= e.latestEntry
}

// rollDay resets per-day state when the first event of a new trading
// day arrives. ATR memory survives the roll.
func (e *VWAPFailure) rollDay(ts time.Time) {
	day := dateOf(ts)
	if day.Equal(e.tradingDay) {
		return
	}
	if !e.tradingDay.IsZero() {
		logger.Info("strategy: new trading day %s, resetting gap and entry state",
			day.Format("2006-01-02"))
	}
	e.tradingDay = day
	for _, sd := range e.days {
		sd.firstTickPrice = 0
		sd.hasFirstTick = false
		sd.gap = models.GapNone
		sd.hasBar = false
	}
}

func (e *VWAPFailure) day(symbol string) *symbolDay {
	sd, ok := e.days[symbol]
	if !ok {
		sd = &symbolDay{gap: models.GapNone, indicators: newIndicatorSet()}
		e.days[symbol] = sd
	}
	return sd
}

func (e *VWAPFailure) evaluateGap(symbol string, firstPrice float64) models.GapDirection {
	ins, ok := e.instruments[symbol]
	if !ok || ins.BasePrice <= 0 {
		return models.GapNone
	}
	ratio := (firstPrice - ins.BasePrice) / ins.BasePrice
	switch {
	case ratio >= e.cfg.GapUpThreshold:
		logger.Info("strategy: %s gap up %.2f%% (open %.2f, prev close %.2f)",
			symbol, ratio*100, firstPrice, ins.BasePrice)
		return models.GapUp
	case ratio <= e.cfg.GapDownThreshold:
		logger.Info("strategy: %s gap down %.2f%% (open %.2f, prev close %.2f)",
			symbol, ratio*100, firstPrice, ins.BasePrice)
		return models.GapDown
	}
	return models.GapNone
}
