package runner

import (
	"context"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

// handleBarClose advances the state machine on a finished bar. Bars are
// both the signal clock and the reprice clock: a resting entry order is
// re-anchored to the fresh indicator values every minute it stays unfilled.
func (s *Session) handleBarClose(ctx context.Context, bar models.Bar, sig models.Signal, hasSig bool) {
	c := s.state

	switch c.State {
	case StateIdle:
		if !hasSig {
			return
		}
		if s.cfg.MaxDailyTrades > 0 && c.TradeCount >= s.cfg.MaxDailyTrades {
			logger.Info("runner: %s signal skipped, daily trade limit %d reached",
				s.symbol, s.cfg.MaxDailyTrades)
			return
		}
		s.submitEntry(ctx, sig)

	case StateWaitingEntry:
		s.repriceEntry(ctx)

	case StateHolding:
		// exit submit failed earlier, try again
		s.ensureExit(ctx)

	case StateWaitingExit:
		// timeout escalation handles a stuck exit
	}
}

func (s *Session) submitEntry(ctx context.Context, sig models.Signal) {
	c := s.state

	id, err := s.broker.SubmitOrder(ctx, models.OrderRequest{
		Symbol:   s.symbol,
		Side:     sig.Side,
		Kind:     models.OrderLimit,
		Price:    sig.EntryPrice,
		Quantity: s.cfg.PositionSize,
	})
	if err != nil {
		logger.Error("runner: %s entry submit failed: %v", s.symbol, err)
		return
	}

	c.State = StateWaitingEntry
	c.Side = sig.Side
	c.EntryOrderID = id
	c.EntryPrice = sig.EntryPrice
	c.ATR = sig.ATR
	c.Quantity = s.cfg.PositionSize
	c.OpenedAt = sig.Time
	c.Reason = sig.Reason
	s.binder.Bind(id, s.symbol)

	if s.journal != nil {
		if err := s.journal.SignalCreated(ctx, sig); err != nil {
			logger.Warn("runner: %s journal signal: %v", s.symbol, err)
		}
	}
	s.notifier.Sendf(ctx, "[%s] entry %s %.0f @ %.2f (vwap=%.2f atr=%.2f failures=%d)",
		s.symbol, sig.Side, s.cfg.PositionSize, sig.EntryPrice, sig.VWAP, sig.ATR, sig.FailureCount)
}

// repriceEntry cancels the resting entry and resubmits at the price the
// latest bar implies. The old order id stays routed until the broker
// confirms a terminal status for it.
func (s *Session) repriceEntry(ctx context.Context) {
	c := s.state

	price, ok := s.engine.EntryPrice(s.symbol)
	if !ok {
		return
	}

	if c.EntryOrderID != "" {
		if price == c.EntryPrice {
			return
		}
		if err := s.broker.CancelOrder(ctx, c.EntryOrderID); err != nil {
			// likely filled in flight, the next poll will tell
			logger.Warn("runner: %s cancel entry %s: %v", s.symbol, c.EntryOrderID, err)
			return
		}
		s.retired[c.EntryOrderID] = roleEntry
		c.EntryOrderID = ""
	}

	id, err := s.broker.SubmitOrder(ctx, models.OrderRequest{
		Symbol:   s.symbol,
		Side:     c.Side,
		Kind:     models.OrderLimit,
		Price:    price,
		Quantity: c.Quantity,
	})
	if err != nil {
		// no working order now, retried on the next bar close
		logger.Error("runner: %s entry resubmit failed: %v", s.symbol, err)
		return
	}
	c.EntryOrderID = id
	c.EntryPrice = price
	s.binder.Bind(id, s.symbol)

	logger.Info("runner: %s entry repriced to %.2f (order %s)", s.symbol, price, id)
}

// ensureExit makes the resting exit order cover the whole position.
// Late fills on a retired entry can grow the position after an exit is
// already working; the undersized exit gets replaced.
func (s *Session) ensureExit(ctx context.Context) {
	c := s.state

	if c.Position <= 0 {
		return
	}
	if c.ExitOrderID != "" {
		if c.ExitQty == c.Position {
			c.State = StateWaitingExit
			return
		}
		if err := s.broker.CancelOrder(ctx, c.ExitOrderID); err != nil {
			logger.Warn("runner: %s cancel exit %s: %v", s.symbol, c.ExitOrderID, err)
			return
		}
		s.retired[c.ExitOrderID] = roleExit
		c.ExitOrderID = ""
		c.ExitQty = 0
	}

	kind := models.OrderLimit
	price := s.exitLimitPrice()
	if c.Escalated {
		kind = models.OrderMarket
		price = 0
	}

	id, err := s.broker.SubmitOrder(ctx, models.OrderRequest{
		Symbol:   s.symbol,
		Side:     c.Side.Opposite(),
		Kind:     kind,
		Price:    price,
		Quantity: c.Position,
	})
	if err != nil {
		logger.Error("runner: %s exit submit failed: %v", s.symbol, err)
		c.State = StateHolding
		return
	}

	c.ExitOrderID = id
	c.ExitQty = c.Position
	c.State = StateWaitingExit
	if c.ExitDeadline.IsZero() && s.cfg.ExitTimeout > 0 {
		c.ExitDeadline = s.clock().Add(s.cfg.ExitTimeout)
	}
	s.binder.Bind(id, s.symbol)

	s.notifier.Sendf(ctx, "[%s] exit %s %s %.0f @ %.2f",
		s.symbol, kind, c.Side.Opposite(), c.Position, price)
}

func (s *Session) exitLimitPrice() float64 {
	c := s.state
	entry := c.AvgEntry
	if entry <= 0 {
		entry = c.EntryPrice
	}
	return s.engine.ExitPrice(c.Side, entry, c.ATR)
}
