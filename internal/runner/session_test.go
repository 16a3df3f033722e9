package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraday_bot/internal/models"
	"intraday_bot/internal/reconciler"
	"intraday_bot/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeBroker struct {
	nextID    int
	submits   []models.OrderRequest
	cancels   []string
	submitErr error
	cancelErr error
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	f.submits = append(f.submits, req)
	return fmt.Sprintf("ORDER_%06d", f.nextID), nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancels = append(f.cancels, orderID)
	return nil
}

func (f *fakeBroker) lastID() string {
	return fmt.Sprintf("ORDER_%06d", f.nextID)
}

type fakeBinder struct {
	bound map[string]string
}

func (f *fakeBinder) Bind(orderID, symbol string) {
	if f.bound == nil {
		f.bound = make(map[string]string)
	}
	f.bound[orderID] = symbol
}
func (f *fakeBinder) Release(orderID string) { delete(f.bound, orderID) }

type fakeNotifier struct{ msgs []string }

func (f *fakeNotifier) Send(ctx context.Context, msg string) { f.msgs = append(f.msgs, msg) }
func (f *fakeNotifier) Sendf(ctx context.Context, format string, args ...any) {
	f.Send(ctx, fmt.Sprintf(format, args...))
}

type fakeEngine struct {
	entryPrice float64
	entryOK    bool
	sig        models.Signal
	sigOK      bool
}

func (f *fakeEngine) Name() string                                { return "fake" }
func (f *fakeEngine) OnTick(models.Tick)                          {}
func (f *fakeEngine) OnBarClose(models.Bar) (models.Signal, bool) { return f.sig, f.sigOK }
func (f *fakeEngine) EntryPrice(string) (float64, bool)           { return f.entryPrice, f.entryOK }
func (f *fakeEngine) ExitPrice(side models.Side, entry, atr float64) float64 {
	if side == models.SideSell {
		return entry - atr
	}
	return entry + atr
}
func (f *fakeEngine) GapDirection(string) models.GapDirection { return models.GapUp }

func testSession(t *testing.T) (*Session, *fakeBroker, *fakeEngine, *fakeNotifier) {
	t.Helper()
	broker := &fakeBroker{}
	engine := &fakeEngine{}
	s := newSession("7203", Config{
		PositionSize:   100,
		ExitTimeout:    5 * time.Minute,
		MaxDailyTrades: 3,
	}, engine, broker, &fakeBinder{}, &fakeNotifier{}, nil)
	notifier := s.notifier.(*fakeNotifier)
	return s, broker, engine, notifier
}

func testSignal() models.Signal {
	return models.Signal{
		Symbol:     "7203",
		Time:       time.Date(2025, 7, 18, 9, 30, 0, 0, time.UTC),
		Side:       models.SideSell,
		EntryPrice: 105,
		VWAP:       102,
		ATR:        2,
		Reason:     "vwap_failure_up",
	}
}

func update(id string, status models.OrderStatus, delta float64) reconciler.Update {
	return reconciler.Update{
		Order: models.OrderRecord{
			OrderID: id,
			Symbol:  "7203",
			Status:  status,
			Price:   105,
		},
		FilledDelta: delta,
	}
}

func barAt(min int) models.Bar {
	return models.Bar{Symbol: "7203", Start: time.Date(2025, 7, 18, 9, 30+min, 0, 0, time.UTC)}
}

func TestSignalSubmitsEntry(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)

	require.Len(t, broker.submits, 1)
	req := broker.submits[0]
	assert.Equal(t, models.SideSell, req.Side)
	assert.Equal(t, models.OrderLimit, req.Kind)
	assert.Equal(t, 105.0, req.Price)
	assert.Equal(t, 100.0, req.Quantity)

	assert.Equal(t, StateWaitingEntry, s.state.State)
	assert.Equal(t, broker.lastID(), s.state.EntryOrderID)
}

func TestNoSignalStaysIdle(t *testing.T) {
	s, broker, _, _ := testSession(t)
	s.handleBarClose(context.Background(), barAt(0), models.Signal{}, false)
	assert.Empty(t, broker.submits)
	assert.Equal(t, StateIdle, s.state.State)
}

func TestEntryFillPlacesExit(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	entryID := s.state.EntryOrderID

	s.handleOrderUpdate(ctx, update(entryID, models.OrderFilled, 100))

	assert.Equal(t, StateWaitingExit, s.state.State)
	assert.Equal(t, 100.0, s.state.Position)
	require.Len(t, broker.submits, 2)
	exitReq := broker.submits[1]
	assert.Equal(t, models.SideBuy, exitReq.Side, "short exits by buying back")
	assert.Equal(t, models.OrderLimit, exitReq.Kind)
	// entry 105, atr 2: cover at 103
	assert.Equal(t, 103.0, exitReq.Price)
	assert.False(t, s.state.ExitDeadline.IsZero())
}

func TestExitFillCompletesRoundTrip(t *testing.T) {
	s, broker, _, notifier := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	exitID := s.state.ExitOrderID
	require.NotEmpty(t, exitID)

	s.handleOrderUpdate(ctx, update(exitID, models.OrderFilled, 100))

	assert.Equal(t, StateIdle, s.state.State)
	assert.Equal(t, 0.0, s.state.Position)
	assert.Equal(t, 1, s.state.TradeCount)
	assert.Empty(t, broker.cancels)
	assert.NotEmpty(t, notifier.msgs)
}

func TestDuplicateUpdatesAreIdempotent(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	entryID := s.state.EntryOrderID

	// same fill observed twice: the second carries no delta
	s.handleOrderUpdate(ctx, update(entryID, models.OrderFilled, 100))
	s.handleOrderUpdate(ctx, update(entryID, models.OrderFilled, 0))

	assert.Equal(t, 100.0, s.state.Position)
	assert.Len(t, broker.submits, 2, "exit not re-submitted on replay")
	assert.Equal(t, StateWaitingExit, s.state.State)
}

func TestEntryRejectedReturnsToIdle(t *testing.T) {
	s, _, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderRejected, 0))

	assert.Equal(t, StateIdle, s.state.State)
	assert.Equal(t, 0, s.state.TradeCount, "a rejected entry is not a trade")
}

func TestEntryCancelledAfterPartialFillStillExits(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	entryID := s.state.EntryOrderID

	s.handleOrderUpdate(ctx, update(entryID, models.OrderPartFilled, 40))
	assert.Equal(t, StateWaitingEntry, s.state.State)

	s.handleOrderUpdate(ctx, update(entryID, models.OrderCancelled, 0))

	assert.Equal(t, StateWaitingExit, s.state.State)
	require.Len(t, broker.submits, 2)
	assert.Equal(t, 40.0, broker.submits[1].Quantity, "exit covers the partial position")
}

func TestBarCloseRepricesEntry(t *testing.T) {
	s, broker, engine, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	oldID := s.state.EntryOrderID

	engine.entryPrice = 104
	engine.entryOK = true
	s.handleBarClose(ctx, barAt(1), models.Signal{}, false)

	assert.Equal(t, []string{oldID}, broker.cancels)
	require.Len(t, broker.submits, 2)
	assert.Equal(t, 104.0, broker.submits[1].Price)
	assert.NotEqual(t, oldID, s.state.EntryOrderID)
	assert.Equal(t, roleEntry, s.retired[oldID], "old id stays routed until terminal")

	// terminal cancel for the retired order releases it without state change
	s.handleOrderUpdate(ctx, update(oldID, models.OrderCancelled, 0))
	assert.Equal(t, StateWaitingEntry, s.state.State)
	_, still := s.retired[oldID]
	assert.False(t, still)
}

func TestRepriceSkippedWhenPriceUnchanged(t *testing.T) {
	s, broker, engine, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	engine.entryPrice = 105
	engine.entryOK = true
	s.handleBarClose(ctx, barAt(1), models.Signal{}, false)

	assert.Empty(t, broker.cancels)
	assert.Len(t, broker.submits, 1)
}

func TestLateFillOnRetiredEntryIsStillOurs(t *testing.T) {
	s, broker, engine, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	oldID := s.state.EntryOrderID

	engine.entryPrice = 104
	engine.entryOK = true
	s.handleBarClose(ctx, barAt(1), models.Signal{}, false)
	newID := s.state.EntryOrderID

	// the cancel lost the race: the old order filled
	s.handleOrderUpdate(ctx, update(oldID, models.OrderFilled, 100))

	assert.Equal(t, 100.0, s.state.Position)
	assert.Equal(t, StateWaitingExit, s.state.State)
	assert.Contains(t, broker.cancels, newID, "replacement entry pulled")
	require.Len(t, broker.submits, 3)
	assert.Equal(t, models.SideBuy, broker.submits[2].Side)
}

func TestExitRejectedRetriesNextBar(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	exitID := s.state.ExitOrderID

	s.handleOrderUpdate(ctx, update(exitID, models.OrderRejected, 0))
	assert.Equal(t, StateHolding, s.state.State)

	s.handleBarClose(ctx, barAt(2), models.Signal{}, false)
	assert.Equal(t, StateWaitingExit, s.state.State)
	assert.Len(t, broker.submits, 3)
}

func TestExitSubmitFailureHoldsAndRetries(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)

	broker.submitErr = errors.New("gateway down")
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	assert.Equal(t, StateHolding, s.state.State)

	broker.submitErr = nil
	s.handleBarClose(ctx, barAt(1), models.Signal{}, false)
	assert.Equal(t, StateWaitingExit, s.state.State)
}

func TestExitTimeoutEscalatesToMarket(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 18, 9, 30, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	limitExitID := s.state.ExitOrderID
	deadline := s.state.ExitDeadline
	require.Equal(t, now.Add(5*time.Minute), deadline)

	// before the deadline nothing happens
	s.handleTimer(ctx, now.Add(time.Minute))
	assert.False(t, s.state.Escalated)

	s.handleTimer(ctx, deadline.Add(time.Second))
	assert.True(t, s.state.Escalated)
	assert.Equal(t, []string{limitExitID}, broker.cancels)
	require.Len(t, broker.submits, 3)
	market := broker.submits[2]
	assert.Equal(t, models.OrderMarket, market.Kind)
	assert.Equal(t, 0.0, market.Price)
	assert.Equal(t, StateWaitingExit, s.state.State, "still waiting, now at market")

	// second timer tick must not escalate again
	s.handleTimer(ctx, deadline.Add(time.Minute))
	assert.Len(t, broker.submits, 3)
}

func TestExitEscalationRetriesWhileCancelFails(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 18, 9, 30, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	limitExitID := s.state.ExitOrderID
	deadline := s.state.ExitDeadline

	// the gateway flakes at the deadline: the limit exit is still resting,
	// so the attempt must stay eligible for escalation
	broker.cancelErr = errors.New("http 502")
	s.handleTimer(ctx, deadline.Add(time.Second))

	assert.False(t, s.state.Escalated)
	assert.Equal(t, StateWaitingExit, s.state.State)
	assert.Equal(t, limitExitID, s.state.ExitOrderID)
	assert.Len(t, broker.submits, 2, "no market order while the limit rests")

	broker.cancelErr = nil
	s.handleTimer(ctx, deadline.Add(time.Hour))

	assert.True(t, s.state.Escalated)
	assert.Equal(t, []string{limitExitID}, broker.cancels)
	require.Len(t, broker.submits, 3)
	assert.Equal(t, models.OrderMarket, broker.submits[2].Kind)
}

func TestRetiredExitFillCompletesAndCancelsReplacement(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	now := time.Date(2025, 7, 18, 9, 30, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	limitExitID := s.state.ExitOrderID

	s.handleTimer(ctx, s.state.ExitDeadline.Add(time.Second))
	marketExitID := s.state.ExitOrderID
	require.NotEqual(t, limitExitID, marketExitID)

	// the cancelled limit exit turns out to have filled first
	s.handleOrderUpdate(ctx, update(limitExitID, models.OrderFilled, 100))

	assert.Equal(t, StateIdle, s.state.State)
	assert.Equal(t, 1, s.state.TradeCount)
	assert.Contains(t, broker.cancels, marketExitID, "leftover market exit pulled")
}

func TestDailyTradeLimit(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.handleBarClose(ctx, barAt(i*2), testSignal(), true)
		s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
		s.handleOrderUpdate(ctx, update(s.state.ExitOrderID, models.OrderFilled, 100))
	}
	require.Equal(t, 3, s.state.TradeCount)
	submitted := len(broker.submits)

	s.handleBarClose(ctx, barAt(10), testSignal(), true)
	assert.Equal(t, StateIdle, s.state.State)
	assert.Len(t, broker.submits, submitted, "limit reached, signal ignored")
}

func TestResetClearsDayState(t *testing.T) {
	s, _, _, _ := testSession(t)
	ctx := context.Background()

	s.handleBarClose(ctx, barAt(0), testSignal(), true)
	s.handleOrderUpdate(ctx, update(s.state.EntryOrderID, models.OrderFilled, 100))
	s.handleOrderUpdate(ctx, update(s.state.ExitOrderID, models.OrderFilled, 100))
	require.Equal(t, 1, s.state.TradeCount)

	s.handleReset()
	assert.Equal(t, 0, s.state.TradeCount)
	assert.Equal(t, StateIdle, s.state.State)
	assert.Empty(t, s.retired)
}

func TestUnknownOrderUpdateIgnored(t *testing.T) {
	s, broker, _, _ := testSession(t)
	ctx := context.Background()

	s.handleOrderUpdate(ctx, update("STRANGER", models.OrderFilled, 100))
	assert.Equal(t, StateIdle, s.state.State)
	assert.Equal(t, 0.0, s.state.Position)
	assert.Empty(t, broker.submits)
}
