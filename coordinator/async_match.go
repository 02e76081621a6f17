package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bikraj2/10101/logger"
	"github.com/bikraj2/10101/orderbook"
	tradeorder "github.com/bikraj2/10101/trade/order"
)

// Sender delivers a message to a trader's outbound channel.
type Sender interface {
	Send(msg orderbook.TraderMessage) error
}

const asyncMatchNotification = "Your pending order has been filled!"

// AsyncMatchNotifier replays pending matches to traders when they connect.
// A trader with a Matched order gets the fill it missed while offline.
type AsyncMatchNotifier struct {
	store        Store
	feed         *UserFeed
	sender       Sender
	oraclePubkey string
	network      *chaincfg.Params
}

func NewAsyncMatchNotifier(store Store, feed *UserFeed, sender Sender, oraclePubkey string, network *chaincfg.Params) *AsyncMatchNotifier {
	return &AsyncMatchNotifier{
		store:        store,
		feed:         feed,
		sender:       sender,
		oraclePubkey: oraclePubkey,
		network:      network,
	}
}

// Run consumes the user feed until the context is cancelled. Each event is
// handled on its own goroutine so that a slow trader cannot delay the rest.
func (n *AsyncMatchNotifier) Run(ctx context.Context) {
	events := n.feed.Subscribe()

	logger.Logger.Info().Msg("Async match notifier started")

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info().Msg("Async match notifier stopped")
			return
		case event, ok := <-events:
			if !ok {
				logger.Logger.Info().Msg("User feed closed, stopping async match notifier")
				return
			}

			go func(traderPubkey string) {
				err := n.notify(ctx, traderPubkey)
				if err != nil {
					logger.Logger.Error().Err(err).
						Str("traderId", traderPubkey).
						Msg("Failed to process pending match")
				}
			}(event.TraderPubkey)
		}
	}
}

// notify checks for a pending match for the trader and replays it. Having no
// Matched order is the common case and not an error. A Matched order without
// any recorded matches is a data inconsistency; it is reported and the order
// is left untouched for inspection.
func (n *AsyncMatchNotifier) notify(ctx context.Context, traderPubkey string) error {
	order, err := n.store.OrderByTraderIDAndState(ctx, traderPubkey, orderbook.StateMatched)
	if err != nil {
		return fmt.Errorf("failed to look up matched order: %w", err)
	}
	if order == nil {
		logger.Logger.Debug().
			Str("traderId", traderPubkey).
			Msg("No pending match for trader")
		return nil
	}

	matches, err := n.store.MatchesByOrderID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load matches for order %s: %w", order.ID, err)
	}

	expiry := orderbook.CalculateNextExpiry(time.Now().UTC(), n.network)
	filledWith, err := orderbook.NewFilledWith(matches, n.oraclePubkey, expiry)
	if err != nil {
		return fmt.Errorf("order %s is in state Matched but has no matches: %w", order.ID, err)
	}

	msg := orderbook.TraderMessage{TraderPubkey: traderPubkey}
	switch order.Reason {
	case tradeorder.ReasonExpired:
		msg.Message = orderbook.NewAsyncMatchMessage(*order, *filledWith)
		notification := asyncMatchNotification
		msg.Notification = &notification
	default:
		msg.Message = orderbook.NewMatchMessage(*filledWith)
	}

	logger.Logger.Info().
		Str("traderId", traderPubkey).
		Str("orderId", order.ID.String()).
		Str("messageType", string(msg.Message.Type)).
		Msg("Replaying pending match")

	// Delivery is best effort. The trader will get another chance on their
	// next reconnect.
	err = n.sender.Send(msg)
	if err != nil {
		logger.Logger.Warn().Err(err).
			Str("traderId", traderPubkey).
			Str("orderId", order.ID.String()).
			Msg("Failed to send pending match to trader")
	}

	return nil
}
