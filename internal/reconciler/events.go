package reconciler

import "intraday_bot/internal/models"

// Update is emitted whenever a poll observes an order whose status or
// filled quantity changed. Delivery is at-least-once: the same broker
// state can be observed and re-emitted across polls, so consumers must
// key decisions off the values carried here, never off the fact that an
// update arrived.
type Update struct {
	Order models.OrderRecord

	// FilledDelta is the fill increment observed in this poll, > 0 only
	// when the filled quantity grew. It stands in for the trade feed the
	// broker does not push.
	FilledDelta float64
}
