package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bikraj2/10101/constants"
	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/logger"
	"github.com/bikraj2/10101/trade"
)

// ErrStateConflict is reported by the store when a transition loses the race
// against another transition that already committed. Callers treat it as
// "the other transition won" and no-op.
var ErrStateConflict = errors.New("order state conflict")

// ErrNoOrderInFilling is reported when no order is currently being filled.
var ErrNoOrderInFilling = errors.New("no order in state filling")

// Store is the durable order store consumed by the handler. Each call is
// atomic; no cross-call transactions are assumed.
type Store interface {
	InsertOrder(order *Order) error
	// UpdateOrderState commits the transition only if the stored state is a
	// valid predecessor of the target state and returns ErrStateConflict
	// otherwise.
	UpdateOrderState(id uuid.UUID, state State, executionPrice *decimal.Decimal, reason *FailureReason) (*Order, error)
	MaybeGetOrderInFilling() (*Order, error)
	MaybeGetOpenOrders() ([]*Order, error)
	GetAsyncOrder() (*Order, error)
}

// OrderbookClient posts new orders to the coordinator.
type OrderbookClient interface {
	PostNewOrder(ctx context.Context, order *Order) error
}

// PositionGuard is the slice of the position handler the order state machine
// needs: the submission precondition, the optimistic reservation and the
// compensating release.
type PositionGuard interface {
	PositionMatchingOrder(order *Order) error
	UpdateAfterOrderSubmitted(order *Order) error
	ResetToOpen(symbol trade.ContractSymbol) error
}

type Handler struct {
	store          Store
	orderbook      OrderbookClient
	positions      PositionGuard
	eventPublisher events.EventPublisher

	clock func() time.Time
}

func NewHandler(store Store, orderbook OrderbookClient, positions PositionGuard, eventPublisher events.EventPublisher) *Handler {
	return &Handler{
		store:          store,
		orderbook:      orderbook,
		positions:      positions,
		eventPublisher: eventPublisher,
		clock:          time.Now,
	}
}

// SubmitOrder persists the order, posts it to the coordinator's orderbook and
// optimistically reserves the trader's position.
//
// An order that would extend or reduce an existing position is marked
// Failed(OrderNotAcceptable) without ever reaching the server. A transmission
// failure rolls the order back to Rejected and releases the reservation.
func (h *Handler) SubmitOrder(ctx context.Context, order *Order) (uuid.UUID, error) {
	order.State = StateInitial
	if order.CreationTimestamp.IsZero() {
		order.CreationTimestamp = h.clock()
	}

	if err := h.store.InsertOrder(order); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := h.positions.PositionMatchingOrder(order); err != nil {
		if ferr := h.OrderFailed(&order.ID, FailureOrderNotAcceptable, err); ferr != nil {
			logger.Logger.Error().Err(ferr).
				Str("order_id", order.ID.String()).
				Msg("Failed to set unacceptable order to failed")
		}
		return uuid.Nil, fmt.Errorf("order is not acceptable against the current position: %w", err)
	}

	if err := h.orderbook.PostNewOrder(ctx, order); err != nil {
		logger.Logger.Error().Err(err).
			Str("order_id", order.ID.String()).
			Msg("Failed to post new order")

		next, _, effects := FailClosed(StateOpen)
		if _, uerr := h.updateOrderStateInDBAndUI(order.ID, next, nil, nil); uerr != nil {
			return uuid.Nil, fmt.Errorf("failed to reject order after failed submission: %w", uerr)
		}
		if err := h.applyEffects(effects, order.ContractSymbol); err != nil {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("could not post order to orderbook: %w", err)
	}

	if _, err := h.updateOrderStateInDBAndUI(order.ID, StateOpen, nil, nil); err != nil {
		return uuid.Nil, err
	}
	if err := h.positions.UpdateAfterOrderSubmitted(order); err != nil {
		return uuid.Nil, fmt.Errorf("failed to update position after order submission: %w", err)
	}

	return order.ID, nil
}

// OrderFilling transitions an open order to Filling once a tentative
// execution price is known. If the write fails the order is forced to
// Failed(FailedToSetToFilling): fail closed rather than ambiguous.
func (h *Handler) OrderFilling(id uuid.UUID, executionPrice decimal.Decimal) error {
	if _, err := h.updateOrderStateInDBAndUI(id, StateFilling, &executionPrice, nil); err != nil {
		if errors.Is(err, ErrStateConflict) {
			logger.Logger.Warn().
				Str("order_id", id.String()).
				Msg("Not setting order to filling, another transition already committed")
			return err
		}

		next, reason, effects := FailClosed(StateFilling)
		if failedOrder, ferr := h.updateOrderStateInDBAndUI(id, next, nil, &reason); ferr != nil {
			logger.Logger.Error().Err(ferr).
				Str("order_id", id.String()).
				Msg("Failed to set order to failed, after failing to set it to filling")
		} else {
			logger.Logger.Debug().
				Str("order_id", id.String()).
				Msg("Set order to failed, after failing to set it to filling")
			if eerr := h.applyEffects(effects, failedOrder.ContractSymbol); eerr != nil {
				logger.Logger.Error().Err(eerr).Msg("Failed to apply compensating effects")
			}
		}

		return fmt.Errorf("failed to set order %s to filling: %w", id, err)
	}

	return nil
}

// OrderFilled transitions the order currently in Filling to Filled. There is
// at most one such order at a time.
func (h *Handler) OrderFilled() (*Order, error) {
	orderBeingFilled, err := h.orderBeingFilled()
	if err != nil {
		return nil, err
	}

	executionPrice := orderBeingFilled.ExecutionPriceOrZero()

	filledOrder, err := h.updateOrderStateInDBAndUI(orderBeingFilled.ID, StateFilled, &executionPrice, nil)
	if err != nil {
		return nil, err
	}

	return filledOrder, nil
}

// OrderFailed marks the order as failed. If no id is given the order
// currently in Filling is targeted. The trader's position is always reset to
// Open as a compensating action, even if the error is unrelated to the
// position.
func (h *Handler) OrderFailed(id *uuid.UUID, reason FailureReason, cause error) error {
	logger.Logger.Error().
		Err(cause).
		Interface("order_id", id).
		Str("reason", string(reason)).
		Msg("Failed to execute trade")

	if id == nil {
		orderBeingFilled, err := h.orderBeingFilled()
		if err != nil {
			return err
		}
		id = &orderBeingFilled.ID
	}

	order, err := h.updateOrderStateInDBAndUI(*id, StateFailed, nil, &reason)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			// Already terminal: the compensation ran when the first
			// transition committed.
			logger.Logger.Debug().
				Str("order_id", id.String()).
				Msg("Order already in a terminal state, not overwriting")
			return nil
		}
		return err
	}

	if err := h.positions.ResetToOpen(order.ContractSymbol); err != nil {
		return fmt.Errorf("could not reset position to open: %w", err)
	}

	return nil
}

// CheckOpenOrders forces every order that has not reached a terminal state
// within the staleness window to Failed(TimedOut). The client, not the
// server, gives up on a stale match attempt.
func (h *Handler) CheckOpenOrders() error {
	openOrders, err := h.store.MaybeGetOpenOrders()
	if err != nil {
		return fmt.Errorf("failed to load open orders: %w", err)
	}

	now := h.clock()

	for _, openOrder := range openOrders {
		if openOrder.CreationTimestamp.Add(constants.ORDER_OUTDATED_AFTER).Before(now) {
			err := h.OrderFailed(
				&openOrder.ID,
				FailureTimedOut,
				fmt.Errorf("order was not matched within %s", constants.ORDER_OUTDATED_AFTER),
			)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// WatchOpenOrders runs the staleness sweep periodically until the context is
// cancelled.
func (h *Handler) WatchOpenOrders(ctx context.Context) {
	ticker := time.NewTicker(constants.ORDER_SWEEP_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.CheckOpenOrders(); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to check open orders")
			}
		}
	}
}

// GetAsyncOrder returns the order that was matched asynchronously while the
// trader was offline, if any.
func (h *Handler) GetAsyncOrder() (*Order, error) {
	return h.store.GetAsyncOrder()
}

func (h *Handler) orderBeingFilled() (*Order, error) {
	orderBeingFilled, err := h.store.MaybeGetOrderInFilling()
	if err != nil {
		return nil, fmt.Errorf("failed to load order being filled: %w", err)
	}
	if orderBeingFilled == nil {
		return nil, ErrNoOrderInFilling
	}

	return orderBeingFilled, nil
}

// updateOrderStateInDBAndUI writes the transition through to the store and
// then publishes a UI notification. The store write strictly precedes the
// event so observers never see a state that failed to persist.
func (h *Handler) updateOrderStateInDBAndUI(id uuid.UUID, state State, executionPrice *decimal.Decimal, reason *FailureReason) (*Order, error) {
	order, err := h.store.UpdateOrderState(id, state, executionPrice, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s with state %s: %w", id, state, err)
	}

	h.eventPublisher.Publish(&events.Event{
		Event:      events.EVENT_ORDER_UPDATED,
		Properties: order,
	})

	return order, nil
}

func (h *Handler) applyEffects(effects []Effect, symbol trade.ContractSymbol) error {
	for _, effect := range effects {
		switch effect {
		case EffectReleasePosition:
			if err := h.positions.ResetToOpen(symbol); err != nil {
				return fmt.Errorf("could not reset position to open: %w", err)
			}
		}
	}
	return nil
}
