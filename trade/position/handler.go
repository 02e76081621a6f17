package position

import (
	"fmt"

	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/logger"
	"github.com/bikraj2/10101/trade"
	"github.com/bikraj2/10101/trade/order"
)

// Store is the durable position store consumed by the handler.
type Store interface {
	// MaybeGetPosition returns nil when the trader holds no position for
	// the symbol.
	MaybeGetPosition(symbol trade.ContractSymbol) (*Position, error)
	SetPositionState(symbol trade.ContractSymbol, state State) error
}

type Handler struct {
	store          Store
	eventPublisher events.EventPublisher
}

func NewHandler(store Store, eventPublisher events.EventPublisher) *Handler {
	return &Handler{
		store:          store,
		eventPublisher: eventPublisher,
	}
}

// PositionMatchingOrder checks that the order is compatible with the current
// position. Without a position any order is acceptable; with one, only an
// exact close is. Extending or reducing a position is not supported.
func (h *Handler) PositionMatchingOrder(o *order.Order) error {
	position, err := h.store.MaybeGetPosition(o.ContractSymbol)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if position == nil {
		return nil
	}

	if o.Direction != position.Direction.Opposite() || !o.Quantity.Equal(position.Quantity) {
		return fmt.Errorf("order would extend or reduce the %s position, only an exact close is supported", position.ContractSymbol)
	}

	return nil
}

// UpdateAfterOrderSubmitted reserves the position while the closing order is
// in flight.
func (h *Handler) UpdateAfterOrderSubmitted(o *order.Order) error {
	position, err := h.store.MaybeGetPosition(o.ContractSymbol)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if position == nil {
		// Opening order: the position is created once the order fills.
		return nil
	}

	return h.setState(o.ContractSymbol, StateClosing)
}

// ResetToOpen releases any reservation on the position. Safe to call when
// the position is already Open or does not exist.
func (h *Handler) ResetToOpen(symbol trade.ContractSymbol) error {
	position, err := h.store.MaybeGetPosition(symbol)
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if position == nil || position.State == StateOpen {
		return nil
	}

	return h.setState(symbol, StateOpen)
}

func (h *Handler) setState(symbol trade.ContractSymbol, state State) error {
	if err := h.store.SetPositionState(symbol, state); err != nil {
		return fmt.Errorf("failed to set position state to %s: %w", state, err)
	}

	logger.Logger.Debug().
		Str("contract_symbol", string(symbol)).
		Str("state", string(state)).
		Msg("Updated position state")

	h.eventPublisher.Publish(&events.Event{
		Event:      events.EVENT_POSITION_UPDATED,
		Properties: symbol,
	})

	return nil
}
