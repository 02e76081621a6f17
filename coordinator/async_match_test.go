package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikraj2/10101/orderbook"
	"github.com/bikraj2/10101/trade"
	tradeorder "github.com/bikraj2/10101/trade/order"
)

const testOraclePubkey = "16f88cf7d21e6c0f46bcbc983a4e3b19726c6c98858cc31c83551a88fde171c0"

type fakeStore struct {
	orders  map[string]*orderbook.Order
	matches map[uuid.UUID][]orderbook.Match
}

func (s *fakeStore) OrderByTraderIDAndState(ctx context.Context, traderPubkey string, state orderbook.State) (*orderbook.Order, error) {
	o, ok := s.orders[traderPubkey]
	if !ok || o.State != state {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) MatchesByOrderID(ctx context.Context, orderID uuid.UUID) ([]orderbook.Match, error) {
	return s.matches[orderID], nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []orderbook.TraderMessage
	err  error
}

func (s *recordingSender) Send(msg orderbook.TraderMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []orderbook.TraderMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]orderbook.TraderMessage(nil), s.sent...)
}

func matchedOrder(traderPubkey string, reason tradeorder.Reason) *orderbook.Order {
	return &orderbook.Order{
		ID:             uuid.New(),
		TraderPubkey:   traderPubkey,
		Direction:      trade.DirectionLong,
		Quantity:       decimal.NewFromInt(1000),
		Price:          decimal.NewFromFloat(30_000.5),
		Leverage:       2.0,
		ContractSymbol: trade.ContractSymbolBtcUsd,
		Type:           tradeorder.TypeLimit,
		Reason:         reason,
		State:          orderbook.StateMatched,
		Timestamp:      time.Now().UTC(),
	}
}

func newTestNotifier(store Store, sender Sender) *AsyncMatchNotifier {
	return NewAsyncMatchNotifier(store, NewUserFeed(), sender, testOraclePubkey, &chaincfg.RegressionNetParams)
}

func TestNotify_ReplaysAsyncMatchForExpiredOrder(t *testing.T) {
	trader := "02a1b2c3"
	order := matchedOrder(trader, tradeorder.ReasonExpired)
	store := &fakeStore{
		orders: map[string]*orderbook.Order{trader: order},
		matches: map[uuid.UUID][]orderbook.Match{
			order.ID: {
				{
					ID:             uuid.New(),
					OrderID:        order.ID,
					Quantity:       decimal.NewFromInt(1000),
					Pubkey:         "03maker",
					ExecutionPrice: decimal.NewFromFloat(30_000.5),
				},
			},
		},
	}
	sender := &recordingSender{}
	notifier := newTestNotifier(store, sender)

	require.NoError(t, notifier.notify(context.Background(), trader))

	sent := sender.messages()
	require.Len(t, sent, 1)
	msg := sent[0]

	assert.Equal(t, trader, msg.TraderPubkey)
	assert.Equal(t, orderbook.MessageTypeAsyncMatch, msg.Message.Type)
	require.NotNil(t, msg.Message.AsyncMatch)
	assert.Equal(t, order.ID, msg.Message.AsyncMatch.Order.ID)
	assert.Len(t, msg.Message.AsyncMatch.FilledWith.Matches, 1)
	assert.Equal(t, testOraclePubkey, msg.Message.AsyncMatch.FilledWith.OraclePubkey)
	assert.NotNil(t, msg.Notification, "async matches carry a push notification")
}

func TestNotify_ReplaysPlainMatchForManualOrder(t *testing.T) {
	trader := "02a1b2c3"
	order := matchedOrder(trader, tradeorder.ReasonManual)
	store := &fakeStore{
		orders: map[string]*orderbook.Order{trader: order},
		matches: map[uuid.UUID][]orderbook.Match{
			order.ID: {{ID: uuid.New(), OrderID: order.ID, Quantity: decimal.NewFromInt(1000)}},
		},
	}
	sender := &recordingSender{}
	notifier := newTestNotifier(store, sender)

	require.NoError(t, notifier.notify(context.Background(), trader))

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, orderbook.MessageTypeMatch, sent[0].Message.Type)
	assert.Nil(t, sent[0].Message.AsyncMatch)
	assert.Nil(t, sent[0].Notification)
}

func TestNotify_NoMatchedOrderIsNoop(t *testing.T) {
	store := &fakeStore{orders: map[string]*orderbook.Order{}}
	sender := &recordingSender{}
	notifier := newTestNotifier(store, sender)

	require.NoError(t, notifier.notify(context.Background(), "02a1b2c3"))
	assert.Empty(t, sender.messages())
}

func TestNotify_MatchedOrderWithoutMatchesIsInconsistent(t *testing.T) {
	trader := "02a1b2c3"
	order := matchedOrder(trader, tradeorder.ReasonExpired)
	store := &fakeStore{
		orders:  map[string]*orderbook.Order{trader: order},
		matches: map[uuid.UUID][]orderbook.Match{},
	}
	sender := &recordingSender{}
	notifier := newTestNotifier(store, sender)

	err := notifier.notify(context.Background(), trader)
	require.Error(t, err)
	assert.ErrorIs(t, err, orderbook.ErrNoMatches)
	assert.Empty(t, sender.messages())
}

func TestNotify_SendFailureIsNotAnError(t *testing.T) {
	trader := "02a1b2c3"
	order := matchedOrder(trader, tradeorder.ReasonManual)
	store := &fakeStore{
		orders: map[string]*orderbook.Order{trader: order},
		matches: map[uuid.UUID][]orderbook.Match{
			order.ID: {{ID: uuid.New(), OrderID: order.ID, Quantity: decimal.NewFromInt(1000)}},
		},
	}
	sender := &recordingSender{err: errors.New("trader disconnected")}
	notifier := newTestNotifier(store, sender)

	assert.NoError(t, notifier.notify(context.Background(), trader), "delivery is best effort")
}

func TestRun_NotifiesOnUserEvent(t *testing.T) {
	trader := "02a1b2c3"
	order := matchedOrder(trader, tradeorder.ReasonManual)
	store := &fakeStore{
		orders: map[string]*orderbook.Order{trader: order},
		matches: map[uuid.UUID][]orderbook.Match{
			order.ID: {{ID: uuid.New(), OrderID: order.ID, Quantity: decimal.NewFromInt(1000)}},
		},
	}
	sender := &recordingSender{}
	feed := NewUserFeed()
	notifier := NewAsyncMatchNotifier(store, feed, sender, testOraclePubkey, &chaincfg.RegressionNetParams)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.Run(ctx)

	// Give Run a moment to subscribe before publishing.
	require.Eventually(t, func() bool {
		feed.Publish(NewUserMessage{TraderPubkey: trader})
		return len(sender.messages()) > 0
	}, 2*time.Second, 50*time.Millisecond)
}
