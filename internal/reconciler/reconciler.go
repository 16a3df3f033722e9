package reconciler

import (
	"context"
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// Broker is the pull-only order book view the reconciler polls.
type Broker interface {
	QueryOrdersUpdatedAfter(ctx context.Context, since time.Time) ([]models.OrderRecord, error)
	QueryOrder(ctx context.Context, orderID string) (models.OrderRecord, error)
}

type Config struct {
	PollInterval time.Duration
	QueryTimeout time.Duration
	// PointLookups additionally queries locally non-terminal orders by id
	// each cycle. Lower latency on fills, not needed for correctness.
	PointLookups bool
}

// Reconciler bridges the pull-only broker API to push-style consumers.
// It polls on a fixed interval, diffs results against the OrderCache and
// emits an Update for every observed change. One cycle runs at a time;
// the loop never starts a poll while the previous one is outstanding.
type Reconciler struct {
	cfg    Config
	broker Broker
	cache  *OrderCache
	out    chan<- Update
}

func New(cfg Config, broker Broker, cache *OrderCache, out chan<- Update) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return &Reconciler{
		cfg:    cfg,
		broker: broker,
		cache:  cache,
		out:    out,
	}
}

func (r *Reconciler) Cache() *OrderCache {
	return r.cache
}

// Run drives the poll loop until ctx is done. Poll failures are logged
// and retried on the next tick; nothing here is fatal.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.PollOnce(ctx); err != nil {
				logger.Error("reconciler: poll failed, will retry: %v", err)
			}
		}
	}
}

// PollOnce executes a single reconcile cycle. The watermark advances to
// the wall-clock time captured before the query, and only on success, so
// a failed cycle rescans the same window and an order updated while the
// query was in flight is picked up next time.
func (r *Reconciler) PollOnce(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconciler.poll")
	defer span.Finish()

	start := time.Now()

	qctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	records, err := r.broker.QueryOrdersUpdatedAfter(qctx, r.cache.LastReconcileTime())
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.OrderID] = struct{}{}
		r.apply(rec)
	}

	if r.cfg.PointLookups {
		r.pollActive(qctx, seen)
	}

	// Advance even on an empty result, otherwise the scan window grows
	// without bound.
	r.cache.AdvanceReconcileTime(start)
	return nil
}

// pollActive point-queries non-terminal orders the window scan did not
// return. Best effort: individual failures are logged and skipped.
func (r *Reconciler) pollActive(ctx context.Context, seen map[string]struct{}) {
	for _, id := range r.cache.ActiveIDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		rec, err := r.broker.QueryOrder(ctx, id)
		if err != nil {
			logger.Warn("reconciler: point lookup %s failed: %v", id, err)
			continue
		}
		r.apply(rec)
	}
}

func (r *Reconciler) apply(rec models.OrderRecord) {
	prev, had := r.cache.Get(rec.OrderID)
	if !r.cache.Upsert(rec) {
		return
	}

	var delta float64
	if had {
		delta = rec.Filled - prev.Filled
	} else {
		delta = rec.Filled
	}
	if delta < 0 {
		delta = 0
	}

	r.out <- Update{Order: rec, FilledDelta: delta}
}
