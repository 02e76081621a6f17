// Package orderbook holds the types exchanged between the trader and the
// coordinator: the coordinator-side view of an order, matches, and the
// messages replayed to a trader.
package orderbook

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bikraj2/10101/trade"
	tradeorder "github.com/bikraj2/10101/trade/order"
)

// State is the coordinator's order state enum. It is independent from the
// client-side enum; the two are reconciled only through message exchange.
type State string

const (
	StateOpen    State = "Open"
	StateMatched State = "Matched"
	StateTaken   State = "Taken"
	StateFailed  State = "Failed"
)

// Order is the coordinator's view of an order as exchanged on the wire.
type Order struct {
	ID             uuid.UUID            `json:"id"`
	TraderPubkey   string               `json:"trader_id"`
	Direction      trade.Direction      `json:"direction"`
	Quantity       decimal.Decimal      `json:"quantity"`
	Price          decimal.Decimal      `json:"price"`
	Leverage       float32              `json:"leverage"`
	ContractSymbol trade.ContractSymbol `json:"contract_symbol"`
	Type           tradeorder.Type      `json:"order_type"`
	Reason         tradeorder.Reason    `json:"order_reason"`
	State          State                `json:"order_state"`
	Timestamp      time.Time            `json:"timestamp"`
	Expiry         time.Time            `json:"expiry"`
}

// NewOrder is the payload of post_new_order.
type NewOrder struct {
	ID             uuid.UUID            `json:"id"`
	TraderPubkey   string               `json:"trader_id"`
	Direction      trade.Direction      `json:"direction"`
	Quantity       decimal.Decimal      `json:"quantity"`
	Price          decimal.Decimal      `json:"price"`
	Leverage       float32              `json:"leverage"`
	ContractSymbol trade.ContractSymbol `json:"contract_symbol"`
	Type           tradeorder.Type      `json:"order_type"`
	Expiry         time.Time            `json:"expiry"`
}

// Match is a single execution against an order.
type Match struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Pubkey         string          `json:"pubkey"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
}

// ErrNoMatches is reported when a FilledWith is constructed from an empty
// match set.
var ErrNoMatches = errors.New("need at least one match to construct a FilledWith")

// FilledWith aggregates all matches for an order together with the oracle
// that will attest the trade and the settlement expiry.
type FilledWith struct {
	OrderID         uuid.UUID `json:"order_id"`
	OraclePubkey    string    `json:"oracle_pk"`
	ExpiryTimestamp time.Time `json:"expiry_timestamp"`
	Matches         []Match   `json:"matches"`
}

// NewFilledWith fails, with no partial result, when given no matches.
func NewFilledWith(matches []Match, oraclePubkey string, expiry time.Time) (*FilledWith, error) {
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}

	return &FilledWith{
		OrderID:         matches[0].OrderID,
		OraclePubkey:    oraclePubkey,
		ExpiryTimestamp: expiry,
		Matches:         matches,
	}, nil
}

// Message is a tagged union of the messages the coordinator sends a trader.
// Exactly one of the variant fields is set, indicated by Type.
type Message struct {
	Type       MessageType `json:"type"`
	Match      *FilledWith `json:"match,omitempty"`
	AsyncMatch *AsyncMatch `json:"async_match,omitempty"`
}

type MessageType string

const (
	MessageTypeMatch      MessageType = "Match"
	MessageTypeAsyncMatch MessageType = "AsyncMatch"
)

// AsyncMatch replays a match for an order that was matched while its
// submitter was offline: the original order plus the fill.
type AsyncMatch struct {
	Order      Order      `json:"order"`
	FilledWith FilledWith `json:"filled_with"`
}

func NewMatchMessage(filledWith FilledWith) Message {
	return Message{
		Type:  MessageTypeMatch,
		Match: &filledWith,
	}
}

func NewAsyncMatchMessage(order Order, filledWith FilledWith) Message {
	return Message{
		Type:       MessageTypeAsyncMatch,
		AsyncMatch: &AsyncMatch{Order: order, FilledWith: filledWith},
	}
}

// TraderMessage is the envelope handed to the per-trader outbound channel.
// The push notification is optional; at reconnect time the trader is online
// and none is attached.
type TraderMessage struct {
	TraderPubkey string
	Message      Message
	Notification *string
}
