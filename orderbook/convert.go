package orderbook

import (
	tradeorder "github.com/bikraj2/10101/trade/order"
)

// The client and the coordinator each own an order state enum. The split is
// deliberate: the processes fail independently and only ever reconcile
// through messages, so the conversions below are total and explicit instead
// of assuming the enums stay in lockstep.

// StateFromClient maps the client-side state to the coordinator-side one.
// Client states the coordinator does not track map to the closest
// server-side observation: an order the client considers in-flight is Open
// for the coordinator until a match is taken, and every client-side terminal
// failure is Failed.
func StateFromClient(s tradeorder.State) State {
	switch s {
	case tradeorder.StateInitial, tradeorder.StateOpen:
		return StateOpen
	case tradeorder.StateFilling:
		return StateMatched
	case tradeorder.StateFilled:
		return StateTaken
	case tradeorder.StateFailed, tradeorder.StateRejected:
		return StateFailed
	default:
		return StateFailed
	}
}

// StateToClient maps the coordinator-side state to the client-side one.
func StateToClient(s State) tradeorder.State {
	switch s {
	case StateOpen:
		return tradeorder.StateOpen
	case StateMatched:
		return tradeorder.StateFilling
	case StateTaken:
		return tradeorder.StateFilled
	case StateFailed:
		return tradeorder.StateFailed
	default:
		return tradeorder.StateFailed
	}
}

// NewOrderFromClient builds the post_new_order payload from a client order.
func NewOrderFromClient(o *tradeorder.Order) NewOrder {
	return NewOrder{
		ID:             o.ID,
		TraderPubkey:   o.TraderPubkey,
		Direction:      o.Direction,
		Quantity:       o.Quantity,
		Price:          o.Price,
		Leverage:       o.Leverage,
		ContractSymbol: o.ContractSymbol,
		Type:           o.Type,
		Expiry:         o.Expiry,
	}
}

// OrderToClient converts a coordinator order into the trader's local
// representation, used when an async match replays an order the trader has
// never seen.
func OrderToClient(o *Order) *tradeorder.Order {
	return &tradeorder.Order{
		ID:                o.ID,
		TraderPubkey:      o.TraderPubkey,
		Direction:         o.Direction,
		Quantity:          o.Quantity,
		Price:             o.Price,
		Leverage:          o.Leverage,
		ContractSymbol:    o.ContractSymbol,
		Type:              o.Type,
		Reason:            o.Reason,
		State:             StateToClient(o.State),
		CreationTimestamp: o.Timestamp,
		Expiry:            o.Expiry,
	}
}
