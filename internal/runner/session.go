package runner

import (
	"context"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/internal/modules/strategy/service"
	"intraday_bot/internal/reconciler"
	"intraday_bot/pkg/logger"
)

// Broker is the order entry surface a session drives. Implementations
// return the broker-assigned order id on submit.
type Broker interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Binder maintains the order-id to instrument routing table so polled
// updates find their way back to the owning session.
type Binder interface {
	Bind(orderID, symbol string)
	Release(orderID string)
}

type Notifier interface {
	Send(ctx context.Context, msg string)
	Sendf(ctx context.Context, format string, args ...any)
}

type Journal interface {
	SignalCreated(ctx context.Context, sig models.Signal) error
	OrderObserved(ctx context.Context, rec models.OrderRecord) error
	TradeClosed(ctx context.Context, tr models.TradeSummary) error
}

type Config struct {
	PositionSize   float64
	ExitTimeout    time.Duration
	MaxDailyTrades int
}

type eventKind int

const (
	barEvent eventKind = iota
	updateEvent
	timerEvent
	resetEvent
)

type event struct {
	kind   eventKind
	bar    models.Bar
	sig    models.Signal
	hasSig bool
	upd    reconciler.Update
	now    time.Time
	done   chan struct{}
}

type orderRole int

const (
	roleNone orderRole = iota
	roleEntry
	roleExit
)

// Session owns all execution state for one instrument. Events arrive
// on a single queue and are handled one at a time, so the state machine
// never sees a bar close and an order update concurrently.
type Session struct {
	symbol   string
	cfg      Config
	engine   service.Engine
	broker   Broker
	binder   Binder
	notifier Notifier
	journal  Journal

	events chan event
	state  *Context

	// orders cancelled during a reprice or escalation. They stay routed
	// here until a terminal status arrives: a late fill on a cancelled
	// order is still our fill.
	retired map[string]orderRole

	clock func() time.Time
}

func newSession(symbol string, cfg Config, engine service.Engine, broker Broker,
	binder Binder, notifier Notifier, journal Journal) *Session {
	return &Session{
		symbol:   symbol,
		cfg:      cfg,
		engine:   engine,
		broker:   broker,
		binder:   binder,
		notifier: notifier,
		journal:  journal,
		events:   make(chan event, 256),
		state:    &Context{Symbol: symbol, State: StateIdle},
		retired:  make(map[string]orderRole),
		clock:    time.Now,
	}
}

func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			switch ev.kind {
			case barEvent:
				s.handleBarClose(ctx, ev.bar, ev.sig, ev.hasSig)
			case updateEvent:
				s.handleOrderUpdate(ctx, ev.upd)
			case timerEvent:
				s.handleTimer(ctx, ev.now)
			case resetEvent:
				s.handleReset()
				close(ev.done)
			}
		}
	}
}

func (s *Session) enqueue(ev event) {
	s.events <- ev
}

// handleReset clears all per-day execution state. It runs as a queued
// event so it acts as a barrier between trading days.
func (s *Session) handleReset() {
	if s.state.State != StateIdle {
		logger.Warn("runner: %s reset while %s, dropping attempt state", s.symbol, s.state.State)
	}
	s.state.resetAttempt()
	s.state.TradeCount = 0
	s.retired = make(map[string]orderRole)
}

func (s *Session) roleOf(orderID string) orderRole {
	switch orderID {
	case "":
		return roleNone
	case s.state.EntryOrderID:
		return roleEntry
	case s.state.ExitOrderID:
		return roleExit
	}
	return s.retired[orderID]
}
