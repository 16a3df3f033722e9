package runner

import (
	"context"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/internal/reconciler"
	"intraday_bot/pkg/logger"
)

// handleOrderUpdate applies one polled order change. Updates arrive
// at-least-once, so every branch keys off the carried status and fill
// values, never off "an update happened".
func (s *Session) handleOrderUpdate(ctx context.Context, upd reconciler.Update) {
	rec := upd.Order

	if s.journal != nil {
		if err := s.journal.OrderObserved(ctx, rec); err != nil {
			logger.Warn("runner: %s journal order %s: %v", s.symbol, rec.OrderID, err)
		}
	}

	role := s.roleOf(rec.OrderID)
	if role == roleNone {
		logger.Warn("runner: %s update for unknown order %s (%s), ignoring",
			s.symbol, rec.OrderID, rec.Status)
		return
	}

	if rec.Status.Terminal() {
		delete(s.retired, rec.OrderID)
		s.binder.Release(rec.OrderID)
	}

	switch role {
	case roleEntry:
		s.onEntryUpdate(ctx, rec, upd.FilledDelta)
	case roleExit:
		s.onExitUpdate(ctx, rec, upd.FilledDelta)
	}
}

func (s *Session) onEntryUpdate(ctx context.Context, rec models.OrderRecord, delta float64) {
	c := s.state

	if delta > 0 {
		c.Position += delta
		logger.Info("runner: %s entry fill +%.0f (position %.0f)", s.symbol, delta, c.Position)
	}

	switch rec.Status {
	case models.OrderFilled:
		if rec.Price > 0 {
			c.AvgEntry = rec.Price
		} else {
			c.AvgEntry = c.EntryPrice
		}
		if rec.OrderID == c.EntryOrderID {
			c.EntryOrderID = ""
		} else if c.EntryOrderID != "" {
			// a retired order filled while its replacement rests, pull the replacement
			if err := s.broker.CancelOrder(ctx, c.EntryOrderID); err != nil {
				logger.Warn("runner: %s cancel replacement entry %s: %v", s.symbol, c.EntryOrderID, err)
			} else {
				s.retired[c.EntryOrderID] = roleEntry
				c.EntryOrderID = ""
			}
		}
		s.notifier.Sendf(ctx, "[%s] entry filled %.0f @ %.2f", s.symbol, c.Position, c.AvgEntry)
		s.ensureExit(ctx)

	case models.OrderCancelled, models.OrderRejected:
		if rec.OrderID != c.EntryOrderID {
			// a retired reprice order finished, nothing changes
			return
		}
		c.EntryOrderID = ""
		if c.Position > 0 {
			// cancelled after a partial fill, the position is real
			s.ensureExit(ctx)
			return
		}
		logger.Info("runner: %s entry %s, back to idle", s.symbol, rec.Status)
		c.resetAttempt()

	default:
		// working or partially filled, keep waiting
	}
}

func (s *Session) onExitUpdate(ctx context.Context, rec models.OrderRecord, delta float64) {
	c := s.state

	if c.State == StateIdle {
		// trailing confirmation for an already completed round trip
		if delta > 0 {
			logger.Warn("runner: %s exit fill %.0f on order %s while flat", s.symbol, delta, rec.OrderID)
		}
		return
	}

	if delta > 0 {
		c.Position -= delta
		if c.Position < 0 {
			logger.Warn("runner: %s exit overfill, position clamped to 0", s.symbol)
			c.Position = 0
		}
	}

	if c.Position <= 0 && delta > 0 {
		s.completeRoundTrip(ctx, rec)
		return
	}

	switch rec.Status {
	case models.OrderFilled:
		// position should already be 0 here; if not, the fill deltas and
		// the terminal status disagree and flat is the safe assumption
		if c.Position > 0 {
			logger.Warn("runner: %s exit filled but position %.0f remains, forcing flat",
				s.symbol, c.Position)
			c.Position = 0
		}
		s.completeRoundTrip(ctx, rec)

	case models.OrderCancelled:
		if rec.OrderID != c.ExitOrderID {
			return
		}
		c.ExitOrderID = ""
		c.ExitQty = 0
		if c.Position > 0 {
			c.State = StateHolding
			return
		}
		c.resetAttempt()

	case models.OrderRejected:
		if rec.OrderID != c.ExitOrderID {
			return
		}
		logger.Warn("runner: %s exit rejected, will retry next bar", s.symbol)
		c.ExitOrderID = ""
		c.ExitQty = 0
		c.State = StateHolding
	}
}

func (s *Session) completeRoundTrip(ctx context.Context, rec models.OrderRecord) {
	c := s.state

	// a replacement exit may still be resting if a retired one filled
	if c.ExitOrderID != "" && c.ExitOrderID != rec.OrderID {
		if err := s.broker.CancelOrder(ctx, c.ExitOrderID); err != nil {
			logger.Warn("runner: %s cancel leftover exit %s: %v", s.symbol, c.ExitOrderID, err)
		} else {
			s.retired[c.ExitOrderID] = roleExit
		}
	}

	if !rec.Status.Terminal() {
		// keep the id routed until the broker confirms it is done
		s.retired[rec.OrderID] = roleExit
	}

	exitPrice := rec.Price
	if exitPrice <= 0 {
		exitPrice = s.exitLimitPrice()
	}

	c.TradeCount++
	tr := models.TradeSummary{
		Symbol:     s.symbol,
		Side:       c.Side,
		EntryPrice: c.AvgEntry,
		ExitPrice:  exitPrice,
		Quantity:   c.Quantity,
		OpenedAt:   c.OpenedAt,
		ClosedAt:   rec.UpdatedAt,
		Reason:     c.Reason,
	}
	if s.journal != nil {
		if err := s.journal.TradeClosed(ctx, tr); err != nil {
			logger.Warn("runner: %s journal trade: %v", s.symbol, err)
		}
	}
	s.notifier.Sendf(ctx, "[%s] round trip done: %s entry %.2f exit %.2f qty %.0f (trade %d today)",
		s.symbol, tr.Side, tr.EntryPrice, tr.ExitPrice, tr.Quantity, c.TradeCount)

	c.resetAttempt()
}

// handleTimer escalates an exit that outlived its deadline: cancel the
// resting limit and go out at market. Escalated is only set once the
// cancel went through, so a failed cancel (transport error, or the
// order filled in flight) is retried on every later tick until either
// the cancel succeeds or a polled update resolves the attempt.
func (s *Session) handleTimer(ctx context.Context, now time.Time) {
	c := s.state

	if c.State != StateWaitingExit || c.Escalated {
		return
	}
	if c.ExitDeadline.IsZero() || now.Before(c.ExitDeadline) {
		return
	}

	if c.ExitOrderID != "" {
		if err := s.broker.CancelOrder(ctx, c.ExitOrderID); err != nil {
			logger.Warn("runner: %s cancel exit %s on timeout: %v", s.symbol, c.ExitOrderID, err)
			return
		}
		s.retired[c.ExitOrderID] = roleExit
		c.ExitOrderID = ""
		c.ExitQty = 0
	}

	c.Escalated = true
	s.notifier.Sendf(ctx, "[%s] exit timeout after %s, going to market", s.symbol, s.cfg.ExitTimeout)
	s.ensureExit(ctx)
}
