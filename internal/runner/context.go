package runner

import (
	"time"

	"intraday_bot/internal/models"
)

type State string

const (
	StateIdle         State = "idle"
	StateWaitingEntry State = "waiting_entry"
	StateHolding      State = "holding"
	StateWaitingExit  State = "waiting_exit"
)

// Context is the execution state of one instrument. Only the owning
// session goroutine touches it; there is no lock here on purpose.
//
// The cycle is Idle -> WaitingEntry -> Holding -> WaitingExit -> Idle.
// Holding is the window between an entry fill and a resting exit order;
// normally it lasts one event, it only persists when the exit submit
// itself failed and has to be retried.
type Context struct {
	Symbol string
	State  State

	Side models.Side // entry side of the current attempt

	EntryOrderID string
	EntryPrice   float64 // working entry limit price
	AvgEntry     float64 // price the position was actually opened at
	ATR          float64 // ATR captured at signal time, prices exits

	ExitOrderID string
	ExitQty     float64

	Position float64 // quantity currently held, always >= 0
	Quantity float64 // target size of the attempt

	ExitDeadline time.Time // escalation deadline, set on first exit submit
	Escalated    bool      // exit already re-sent as a market order

	OpenedAt time.Time
	Reason   string

	TradeCount int // completed round trips today
}

func (c *Context) resetAttempt() {
	c.State = StateIdle
	c.Side = models.SideNone
	c.EntryOrderID = ""
	c.EntryPrice = 0
	c.AvgEntry = 0
	c.ATR = 0
	c.ExitOrderID = ""
	c.ExitQty = 0
	c.Position = 0
	c.Quantity = 0
	c.ExitDeadline = time.Time{}
	c.Escalated = false
	c.OpenedAt = time.Time{}
	c.Reason = ""
}
