package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/trade"
)

type mockStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
	// failOn makes every write targeting the given state fail.
	failOn map[State]error
}

func newMockStore() *mockStore {
	return &mockStore{
		orders: map[uuid.UUID]*Order{},
		failOn: map[State]error{},
	}
}

func (m *mockStore) InsertOrder(o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockStore) UpdateOrderState(id uuid.UUID, state State, executionPrice *decimal.Decimal, reason *FailureReason) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[state]; ok {
		return nil, err
	}

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found", id)
	}
	if !CanTransition(o.State, state) {
		return nil, fmt.Errorf("cannot transition order %s from %s to %s: %w", id, o.State, state, ErrStateConflict)
	}

	o.State = state
	if executionPrice != nil {
		o.ExecutionPrice = executionPrice
	}
	if reason != nil {
		o.FailureReason = reason
	}

	cp := *o
	return &cp, nil
}

func (m *mockStore) MaybeGetOrderInFilling() (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.State == StateFilling {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) MaybeGetOpenOrders() ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var open []*Order
	for _, o := range m.orders {
		if !IsTerminal(o.State) {
			cp := *o
			open = append(open, &cp)
		}
	}
	return open, nil
}

func (m *mockStore) GetAsyncOrder() (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.Reason == ReasonExpired && !IsTerminal(o.State) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) get(id uuid.UUID) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

type mockOrderbook struct {
	err    error
	posted []uuid.UUID
}

func (m *mockOrderbook) PostNewOrder(ctx context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.posted = append(m.posted, o.ID)
	return nil
}

type mockPositions struct {
	matchErr   error
	reserved   int
	resetCalls int
}

func (m *mockPositions) PositionMatchingOrder(o *Order) error { return m.matchErr }
func (m *mockPositions) UpdateAfterOrderSubmitted(o *Order) error {
	m.reserved++
	return nil
}
func (m *mockPositions) ResetToOpen(symbol trade.ContractSymbol) error {
	m.resetCalls++
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (m *mockPublisher) RegisterSubscriber(s events.EventSubscriber) {}
func (m *mockPublisher) RemoveSubscriber(s events.EventSubscriber)   {}
func (m *mockPublisher) Publish(e *events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func testOrder() *Order {
	return &Order{
		ID:             uuid.New(),
		TraderPubkey:   "02a1b2c3",
		Direction:      trade.DirectionLong,
		Quantity:       decimal.NewFromInt(100),
		Price:          decimal.NewFromFloat(30_000.5),
		Leverage:       2.0,
		ContractSymbol: trade.ContractSymbolBtcUsd,
		Type:           TypeMarket,
		Reason:         ReasonManual,
		Expiry:         time.Now().Add(time.Hour),
	}
}

func newTestHandler(store *mockStore, orderbook *mockOrderbook, positions *mockPositions) (*Handler, *mockPublisher) {
	publisher := &mockPublisher{}
	return NewHandler(store, orderbook, positions, publisher), publisher
}

func TestSubmitOrder_MarketOrderOpensAndReservesPosition(t *testing.T) {
	store := newMockStore()
	orderbook := &mockOrderbook{}
	positions := &mockPositions{}
	handler, publisher := newTestHandler(store, orderbook, positions)

	o := testOrder()
	id, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, o.ID, id)

	stored := store.get(o.ID)
	assert.Equal(t, StateOpen, stored.State)
	assert.Equal(t, []uuid.UUID{o.ID}, orderbook.posted)
	assert.Equal(t, 1, positions.reserved)
	assert.NotEmpty(t, publisher.events)
}

func TestSubmitOrder_UnacceptableOrderFailsWithoutPosting(t *testing.T) {
	store := newMockStore()
	orderbook := &mockOrderbook{}
	positions := &mockPositions{matchErr: errors.New("order would extend the position")}
	handler, _ := newTestHandler(store, orderbook, positions)

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.Error(t, err)

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, FailureOrderNotAcceptable, *stored.FailureReason)
	assert.Empty(t, orderbook.posted, "unacceptable order must never reach the server")
}

func TestSubmitOrder_PostFailureRejectsAndReleases(t *testing.T) {
	store := newMockStore()
	orderbook := &mockOrderbook{err: errors.New("connection refused")}
	positions := &mockPositions{}
	handler, _ := newTestHandler(store, orderbook, positions)

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.Error(t, err)

	stored := store.get(o.ID)
	assert.Equal(t, StateRejected, stored.State)
	assert.Equal(t, 1, positions.resetCalls)
	assert.Equal(t, 0, positions.reserved)
}

func TestOrderFilling_FailClosed(t *testing.T) {
	store := newMockStore()
	positions := &mockPositions{}
	handler, _ := newTestHandler(store, &mockOrderbook{}, positions)

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)

	store.failOn[StateFilling] = errors.New("disk full")

	err = handler.OrderFilling(o.ID, decimal.NewFromFloat(100.5))
	require.Error(t, err)

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, FailureFailedToSetToFilling, *stored.FailureReason)
	assert.Equal(t, 1, positions.resetCalls)
}

func TestOrderFilling_ConflictDoesNotFailClosed(t *testing.T) {
	store := newMockStore()
	positions := &mockPositions{}
	handler, _ := newTestHandler(store, &mockOrderbook{}, positions)

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)

	// Another transition already committed a terminal state.
	require.NoError(t, handler.OrderFailed(&o.ID, FailureTimedOut, errors.New("stale")))
	positions.resetCalls = 0

	err = handler.OrderFilling(o.ID, decimal.NewFromFloat(100.5))
	require.ErrorIs(t, err, ErrStateConflict)

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, FailureTimedOut, *stored.FailureReason, "the committed failure must not be overwritten")
	assert.Equal(t, 0, positions.resetCalls)
}

func TestOrderFilled(t *testing.T) {
	store := newMockStore()
	handler, _ := newTestHandler(store, &mockOrderbook{}, &mockPositions{})

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)
	require.NoError(t, handler.OrderFilling(o.ID, decimal.NewFromFloat(100.5)))

	filled, err := handler.OrderFilled()
	require.NoError(t, err)

	assert.Equal(t, StateFilled, filled.State)
	require.NotNil(t, filled.ExecutionPrice)
	assert.True(t, decimal.NewFromFloat(100.5).Equal(*filled.ExecutionPrice))
}

func TestOrderFilled_NoOrderInFilling(t *testing.T) {
	handler, _ := newTestHandler(newMockStore(), &mockOrderbook{}, &mockPositions{})

	_, err := handler.OrderFilled()
	assert.ErrorIs(t, err, ErrNoOrderInFilling)
}

func TestOrderFailed_Idempotent(t *testing.T) {
	store := newMockStore()
	positions := &mockPositions{}
	handler, _ := newTestHandler(store, &mockOrderbook{}, positions)

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)

	cause := errors.New("no usable channel")
	require.NoError(t, handler.OrderFailed(&o.ID, FailureNoUsableChannel, cause))
	require.NoError(t, handler.OrderFailed(&o.ID, FailureNoUsableChannel, cause))

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, FailureNoUsableChannel, *stored.FailureReason)
	assert.Equal(t, 1, positions.resetCalls, "an already-Open position must not be reset twice")
}

func TestOrderFailed_TargetsOrderInFilling(t *testing.T) {
	store := newMockStore()
	handler, _ := newTestHandler(store, &mockOrderbook{}, &mockPositions{})

	o := testOrder()
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)
	require.NoError(t, handler.OrderFilling(o.ID, decimal.NewFromFloat(99)))

	require.NoError(t, handler.OrderFailed(nil, FailureTradeResponse, errors.New("bad response")))

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
}

func TestCheckOpenOrders_StalenessBoundary(t *testing.T) {
	store := newMockStore()
	handler, _ := newTestHandler(store, &mockOrderbook{}, &mockPositions{})

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	handler.clock = func() time.Time { return created }

	o := testOrder()
	o.CreationTimestamp = created
	_, err := handler.SubmitOrder(context.Background(), o)
	require.NoError(t, err)

	handler.clock = func() time.Time { return created.Add(4*time.Minute + 59*time.Second) }
	require.NoError(t, handler.CheckOpenOrders())
	assert.Equal(t, StateOpen, store.get(o.ID).State)

	handler.clock = func() time.Time { return created.Add(5*time.Minute + 1*time.Second) }
	require.NoError(t, handler.CheckOpenOrders())

	stored := store.get(o.ID)
	assert.Equal(t, StateFailed, stored.State)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, FailureTimedOut, *stored.FailureReason)
}

func TestGetAsyncOrder(t *testing.T) {
	store := newMockStore()
	handler, _ := newTestHandler(store, &mockOrderbook{}, &mockPositions{})

	o := testOrder()
	o.Reason = ReasonExpired
	o.State = StateOpen
	require.NoError(t, store.InsertOrder(o))

	async, err := handler.GetAsyncOrder()
	require.NoError(t, err)
	require.NotNil(t, async)
	assert.Equal(t, o.ID, async.ID)
}
