package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeBroker struct {
	window    []models.OrderRecord
	windowErr error

	byID    map[string]models.OrderRecord
	queried []string
}

func (f *fakeBroker) QueryOrdersUpdatedAfter(ctx context.Context, since time.Time) ([]models.OrderRecord, error) {
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	return f.window, nil
}

func (f *fakeBroker) QueryOrder(ctx context.Context, orderID string) (models.OrderRecord, error) {
	f.queried = append(f.queried, orderID)
	rec, ok := f.byID[orderID]
	if !ok {
		return models.OrderRecord{}, errors.New("not found")
	}
	return rec, nil
}

func drain(ch chan Update) []Update {
	var out []Update
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func newTestReconciler(b Broker) (*Reconciler, chan Update) {
	out := make(chan Update, 64)
	cache := NewOrderCache(time.Date(2025, 7, 18, 8, 50, 0, 0, time.UTC))
	return New(Config{PollInterval: time.Second, QueryTimeout: time.Second}, b, cache, out), out
}

func TestPollEmitsUpdatesWithFillDeltas(t *testing.T) {
	b := &fakeBroker{window: []models.OrderRecord{rec("o1", models.OrderPartFilled, 30)}}
	r, out := newTestReconciler(b)

	require.NoError(t, r.PollOnce(context.Background()))
	ups := drain(out)
	require.Len(t, ups, 1)
	assert.Equal(t, "o1", ups[0].Order.OrderID)
	assert.Equal(t, 30.0, ups[0].FilledDelta, "first sight delta is the whole fill")

	b.window = []models.OrderRecord{rec("o1", models.OrderFilled, 100)}
	require.NoError(t, r.PollOnce(context.Background()))
	ups = drain(out)
	require.Len(t, ups, 1)
	assert.Equal(t, 70.0, ups[0].FilledDelta)
}

func TestReplayedWindowEmitsNothing(t *testing.T) {
	b := &fakeBroker{window: []models.OrderRecord{rec("o1", models.OrderWorking, 0)}}
	r, out := newTestReconciler(b)

	require.NoError(t, r.PollOnce(context.Background()))
	drain(out)

	// the broker returns the same unchanged order again
	require.NoError(t, r.PollOnce(context.Background()))
	assert.Empty(t, drain(out), "no change, no update")
}

func TestFillDeltaNeverNegative(t *testing.T) {
	b := &fakeBroker{window: []models.OrderRecord{rec("o1", models.OrderPartFilled, 50)}}
	r, out := newTestReconciler(b)
	require.NoError(t, r.PollOnce(context.Background()))
	drain(out)

	// broker reports a smaller fill than before
	b.window = []models.OrderRecord{rec("o1", models.OrderCancelled, 20)}
	require.NoError(t, r.PollOnce(context.Background()))
	ups := drain(out)
	require.Len(t, ups, 1)
	assert.Equal(t, 0.0, ups[0].FilledDelta)
}

func TestWatermarkAdvancesOnSuccessOnly(t *testing.T) {
	b := &fakeBroker{}
	r, _ := newTestReconciler(b)
	before := r.Cache().LastReconcileTime()

	// empty result still advances, the scan window must not grow forever
	require.NoError(t, r.PollOnce(context.Background()))
	afterEmpty := r.Cache().LastReconcileTime()
	assert.True(t, afterEmpty.After(before))

	b.windowErr = errors.New("gateway down")
	require.Error(t, r.PollOnce(context.Background()))
	assert.Equal(t, afterEmpty, r.Cache().LastReconcileTime(), "failure leaves the window to rescan")
}

func TestPointLookupsCoverActiveOrdersMissedByWindow(t *testing.T) {
	b := &fakeBroker{
		byID: map[string]models.OrderRecord{
			"o1": rec("o1", models.OrderFilled, 100),
		},
	}
	out := make(chan Update, 64)
	cache := NewOrderCache(time.Now())
	cache.Upsert(rec("o1", models.OrderWorking, 0))
	cache.Upsert(rec("done", models.OrderFilled, 100))

	r := New(Config{PollInterval: time.Second, QueryTimeout: time.Second, PointLookups: true},
		b, cache, out)

	require.NoError(t, r.PollOnce(context.Background()))

	assert.Equal(t, []string{"o1"}, b.queried, "only non-terminal orders are point-queried")
	ups := drain(out)
	require.Len(t, ups, 1)
	assert.Equal(t, models.OrderFilled, ups[0].Order.Status)
	assert.Equal(t, 100.0, ups[0].FilledDelta)
}
