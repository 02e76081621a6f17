package position

import (
	"github.com/shopspring/decimal"

	"github.com/bikraj2/10101/constants"
	"github.com/bikraj2/10101/trade"
)

type State string

const (
	StateOpen     State = constants.POSITION_STATE_OPEN
	StateClosing  State = constants.POSITION_STATE_CLOSING
	StateRollover State = constants.POSITION_STATE_ROLLOVER
)

// Position is derived from a filled order. At most one active position per
// trader and contract symbol exists at any time.
type Position struct {
	TraderPubkey   string
	ContractSymbol trade.ContractSymbol
	Direction      trade.Direction
	Quantity       decimal.Decimal
	AverageEntry   decimal.Decimal
	Leverage       float32
	State          State
}
