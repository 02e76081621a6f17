package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string `gorm:"primaryKey"`
	TraderPubkey      string
	Direction         string
	Quantity          decimal.Decimal `gorm:"type:numeric"`
	Price             decimal.Decimal `gorm:"type:numeric"`
	Leverage          float32
	ContractSymbol    string
	OrderType         string
	OrderReason       string
	State             string `gorm:"index"`
	ExecutionPrice    *decimal.Decimal `gorm:"type:numeric"`
	FailureReason     *string
	CreationTimestamp time.Time
	Expiry            time.Time
	UpdatedAt         time.Time
}

type Position struct {
	ID             uint `gorm:"primaryKey"`
	TraderPubkey   string
	ContractSymbol string `gorm:"uniqueIndex"`
	Direction      string
	Quantity       decimal.Decimal `gorm:"type:numeric"`
	AverageEntry   decimal.Decimal `gorm:"type:numeric"`
	Leverage       float32
	State          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Payment struct {
	PaymentHash string `gorm:"primaryKey"`
	Preimage    *string
	Secret      *string
	Status      string
	AmountMsat  *uint64
	FeeMsat     *uint64
	Flow        string
	Timestamp   time.Time
	Description string
	Invoice     string
	UpdatedAt   time.Time
}

type Channel struct {
	UserChannelID     string `gorm:"primaryKey"`
	TraderPubkey      string
	State             string
	LiquidityOptionID *int32
	FundingTxid       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
