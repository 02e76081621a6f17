package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bikraj2/10101/constants"
	"github.com/bikraj2/10101/trade"
)

type State string

const (
	StateInitial  State = constants.ORDER_STATE_INITIAL
	StateOpen     State = constants.ORDER_STATE_OPEN
	StateFilling  State = constants.ORDER_STATE_FILLING
	StateFilled   State = constants.ORDER_STATE_FILLED
	StateFailed   State = constants.ORDER_STATE_FAILED
	StateRejected State = constants.ORDER_STATE_REJECTED
)

type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
)

type Reason string

const (
	ReasonManual  Reason = "Manual"
	ReasonExpired Reason = "Expired"
)

type FailureReason string

const (
	FailureTradeRequest         FailureReason = "TradeRequest"
	FailureTradeResponse        FailureReason = "TradeResponse"
	FailureNodeAccess           FailureReason = "NodeAccess"
	FailureNoUsableChannel      FailureReason = "NoUsableChannel"
	FailureProposeDlcChannel    FailureReason = "ProposeDlcChannel"
	FailureFailedToSetToFilling FailureReason = "FailedToSetToFilling"
	FailureOrderNotAcceptable   FailureReason = "OrderNotAcceptable"
	FailureTimedOut             FailureReason = "TimedOut"
)

// Order is the trader's local view of a trade request. The coordinator keeps
// an independent copy keyed by the same id with its own state enum; the two
// are reconciled only through message exchange.
type Order struct {
	ID                uuid.UUID
	TraderPubkey      string
	Direction         trade.Direction
	Quantity          decimal.Decimal
	Price             decimal.Decimal
	Leverage          float32
	ContractSymbol    trade.ContractSymbol
	Type              Type
	Reason            Reason
	State             State
	ExecutionPrice    *decimal.Decimal
	FailureReason     *FailureReason
	CreationTimestamp time.Time
	Expiry            time.Time
}

// ExecutionPriceOrZero defaults the execution price in case we don't know it.
func (o *Order) ExecutionPriceOrZero() decimal.Decimal {
	if o.ExecutionPrice == nil {
		return decimal.Zero
	}
	return *o.ExecutionPrice
}
