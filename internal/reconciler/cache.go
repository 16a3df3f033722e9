package reconciler

import (
	"sync"
	"time"

	"intraday_bot/internal/models"
)

// OrderCache holds the last known state of every broker order, plus the
// watermark of the last successful reconcile poll. The watermark only
// moves forward.
type OrderCache struct {
	mu        sync.RWMutex
	orders    map[string]models.OrderRecord
	watermark time.Time
}

func NewOrderCache(start time.Time) *OrderCache {
	return &OrderCache{
		orders:    make(map[string]models.OrderRecord),
		watermark: start,
	}
}

func (c *OrderCache) Get(orderID string) (models.OrderRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.orders[orderID]
	return rec, ok
}

// Upsert stores rec and reports whether it differs from the cached copy.
// Only status and filled quantity count as a difference; repeated polls
// returning an unchanged order must not look like news.
func (c *OrderCache) Upsert(rec models.OrderRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.orders[rec.OrderID]
	c.orders[rec.OrderID] = rec
	if !ok {
		return true
	}
	return prev.Status != rec.Status || prev.Filled != rec.Filled
}

// ActiveIDs returns ids of orders not yet in a terminal status.
func (c *OrderCache) ActiveIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, rec := range c.orders {
		if !rec.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *OrderCache) LastReconcileTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watermark
}

// AdvanceReconcileTime moves the watermark to t. Moves backwards are
// ignored so a delayed caller cannot reopen an already scanned window.
func (c *OrderCache) AdvanceReconcileTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.watermark) {
		c.watermark = t
	}
}
