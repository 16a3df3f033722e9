package marketdata

import (
	"sync"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

// Generator builds fixed-interval bars from a stream of trade ticks,
// one open bar per symbol. A bar closes the moment a tick belonging to
// the next interval arrives, or when FlushStale decides nothing more is
// coming for it.
//
// Volume accounting works on cumulative session counters: each tick
// contributes max(cum - lastSeen.cum, 0) to whichever bar is open when
// it arrives, so the increment between the last tick of one bar and the
// first tick of the next is never lost across minute, gap or day
// boundaries. The very first tick of a symbol's stream has no reference
// point and contributes zero.
type Generator struct {
	interval   time.Duration
	flushGrace time.Duration

	mu     sync.Mutex
	states map[string]*symbolState
}

type symbolState struct {
	lastTick *models.Tick
	bar      *models.Bar
}

func New(interval time.Duration) *Generator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Generator{
		interval:   interval,
		flushGrace: time.Second,
		states:     make(map[string]*symbolState),
	}
}

// OnTick feeds one tick into the generator. It returns the closed bar,
// if this tick closed one.
func (g *Generator) OnTick(t models.Tick) (models.Bar, bool) {
	if !t.Valid() {
		logger.Warn("marketdata: dropping tick with non-positive price: %s %.2f", t.Symbol, t.Price)
		return models.Bar{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[t.Symbol]
	if !ok {
		st = &symbolState{}
		g.states[t.Symbol] = st
	}

	start := t.Time.Truncate(g.interval)

	var closed models.Bar
	var hasClosed bool
	if st.bar != nil && !st.bar.Start.Equal(start) {
		closed = *st.bar
		hasClosed = true
		st.bar = nil
	}

	if st.bar == nil {
		st.bar = &models.Bar{
			Symbol: t.Symbol,
			Start:  start,
			Open:   t.Price,
			High:   t.Price,
			Low:    t.Price,
			Close:  t.Price,
		}
	} else {
		if t.Price > st.bar.High {
			st.bar.High = t.Price
		}
		if t.Price < st.bar.Low {
			st.bar.Low = t.Price
		}
		st.bar.Close = t.Price
	}

	// The delta always lands on the bar open right now, even if that bar
	// was just created and the reference tick belongs to an earlier one.
	if st.lastTick != nil {
		if dv := t.CumVolume - st.lastTick.CumVolume; dv > 0 {
			st.bar.Volume += dv
		}
		if dt := t.CumTurnover - st.lastTick.CumTurnover; dt > 0 {
			st.bar.Turnover += dt
		}
	}

	tick := t
	st.lastTick = &tick

	return closed, hasClosed
}

// Flush force-closes the open bar for one symbol, if any. The last-seen
// tick is kept so the next delta still carries forward.
func (g *Generator) Flush(symbol string) (models.Bar, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[symbol]
	if !ok || st.bar == nil {
		return models.Bar{}, false
	}
	closed := *st.bar
	st.bar = nil
	return closed, true
}

// FlushStale closes every bar whose interval has been over for longer
// than the grace period. Used for illiquid symbols where no next-interval
// tick arrives to close the bar naturally.
func (g *Generator) FlushStale(now time.Time) []models.Bar {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []models.Bar
	for _, st := range g.states {
		if st.bar == nil {
			continue
		}
		if now.Sub(st.bar.Start) >= g.interval+g.flushGrace {
			out = append(out, *st.bar)
			st.bar = nil
		}
	}
	return out
}
