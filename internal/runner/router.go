package runner

import (
	"context"
	"sync"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/strategy/service"
	"intraday_bot/internal/reconciler"
	"intraday_bot/pkg/logger"
)

// Router owns the per-instrument sessions and the order-id routing
// table. Bars go to the session of their symbol, polled order updates
// go to the session that submitted the order.
type Router struct {
	cfg      Config
	engine   service.Engine
	broker   Broker
	notifier Notifier
	journal  Journal

	mu       sync.RWMutex
	sessions map[string]*Session
	orders   map[string]string // orderID -> symbol

	runCtx context.Context
}

func NewRouter(cfg Config, engine service.Engine, broker Broker,
	notifier Notifier, journal Journal) *Router {
	return &Router{
		cfg:      cfg,
		engine:   engine,
		broker:   broker,
		notifier: notifier,
		journal:  journal,
		sessions: make(map[string]*Session),
		orders:   make(map[string]string),
	}
}

// Start records the context session goroutines run under. Must be
// called before the first event.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runCtx = ctx
}

func (r *Router) session(symbol string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[symbol]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[symbol]; ok {
		return s
	}
	s = newSession(symbol, r.cfg, r.engine, r.broker, r, r.notifier, r.journal)
	r.sessions[symbol] = s
	go s.Run(r.runCtx)
	return s
}

// OnBarClose runs the strategy on the finished bar and hands both the
// bar and the signal, if any, to the owning session.
func (r *Router) OnBarClose(bar models.Bar) {
	sig, ok := r.engine.OnBarClose(bar)
	r.session(bar.Symbol).enqueue(event{kind: barEvent, bar: bar, sig: sig, hasSig: ok})
}

// OnUpdate routes one polled order update. The routing table wins; the
// symbol carried on the record is the fallback for orders the table no
// longer knows (restarts, very late confirmations).
func (r *Router) OnUpdate(upd reconciler.Update) {
	r.mu.RLock()
	symbol, bound := r.orders[upd.Order.OrderID]
	r.mu.RUnlock()

	if !bound {
		symbol = upd.Order.Symbol
	}
	if symbol == "" {
		logger.Warn("runner: update for order %s with no symbol, dropped", upd.Order.OrderID)
		return
	}
	r.session(symbol).enqueue(event{kind: updateEvent, upd: upd})
}

// OnTimer fans the clock out to every session for deadline checks.
func (r *Router) OnTimer(now time.Time) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.enqueue(event{kind: timerEvent, now: now})
	}
}

// ResetAll drains a reset barrier through every session, then clears
// the routing table. Called at trading-day rollover.
func (r *Router) ResetAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		done := make(chan struct{})
		s.enqueue(event{kind: resetEvent, done: done})
		go func(ch chan struct{}) {
			defer wg.Done()
			<-ch
		}(done)
	}
	wg.Wait()

	r.mu.Lock()
	r.orders = make(map[string]string)
	r.mu.Unlock()

	logger.Info("runner: %d sessions reset for new trading day", len(sessions))
}

func (r *Router) Bind(orderID, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderID] = symbol
}

func (r *Router) Release(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
}
