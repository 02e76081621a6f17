package node

import (
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/bikraj2/10101/constants"
)

type HTLCStatus string

const (
	HTLCStatusPending   HTLCStatus = constants.HTLC_STATUS_PENDING
	HTLCStatusSucceeded HTLCStatus = constants.HTLC_STATUS_SUCCEEDED
	HTLCStatusFailed    HTLCStatus = constants.HTLC_STATUS_FAILED
)

type PaymentFlow string

const (
	PaymentFlowInbound  PaymentFlow = constants.PAYMENT_FLOW_INBOUND
	PaymentFlowOutbound PaymentFlow = constants.PAYMENT_FLOW_OUTBOUND
)

// PaymentInfo is the node's record of a payment, keyed by payment hash.
// Created when an invoice is paid or received; the terminal status is written
// by the payment-completion callback outside this pipeline. Never deleted.
type PaymentInfo struct {
	Preimage    *lntypes.Preimage
	Secret      *[32]byte
	Status      HTLCStatus
	AmountMsat  *lnwire.MilliSatoshi
	FeeMsat     *lnwire.MilliSatoshi
	Flow        PaymentFlow
	Timestamp   time.Time
	Description string
	Invoice     string
}

// LiquidityRequest registers a trader's interest in a JIT channel. It is
// keyed by the intercept SCID allocated for it and lives in the node's
// pending-intents table until the corresponding HTLC arrives or the request
// is discarded.
type LiquidityRequest struct {
	TraderPubkey      string
	UserChannelID     uuid.UUID
	LiquidityOptionID int32
}

type ChannelState string

const (
	ChannelStatePending           ChannelState = "Pending"
	ChannelStateOpenUnpaid        ChannelState = "OpenUnpaid"
	ChannelStateOpen              ChannelState = "Open"
	ChannelStateClosed            ChannelState = "Closed"
	ChannelStateForceClosedLocal  ChannelState = "ForceClosedLocal"
	ChannelStateForceClosedRemote ChannelState = "ForceClosedRemote"
)

// Channel is the persisted view of a payment channel. A JIT channel is
// persisted as a shadow record before it exists on-chain so the rest of the
// system can already reference it.
type Channel struct {
	UserChannelID     uuid.UUID
	TraderPubkey      string
	State             ChannelState
	LiquidityOptionID *int32
	FundingTxid       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewJitChannel returns the shadow record for a channel that is yet to be
// opened by an intercepted HTLC.
func NewJitChannel(userChannelID uuid.UUID, traderPubkey string, liquidityOptionID int32) Channel {
	now := time.Now().UTC()
	return Channel{
		UserChannelID:     userChannelID,
		TraderPubkey:      traderPubkey,
		State:             ChannelStatePending,
		LiquidityOptionID: &liquidityOptionID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Storage is the durable store consumed by the node. Each call is atomic;
// no cross-call transactions are assumed.
type Storage interface {
	UpsertChannel(channel Channel) error
	// GetPayment returns nil when no payment is recorded for the hash.
	GetPayment(hash lntypes.Hash) (*PaymentInfo, error)
	InsertPayment(hash lntypes.Hash, info PaymentInfo) error
	// UpdatePayment overwrites the payment status and, when non-nil, the
	// preimage and fee.
	UpdatePayment(hash lntypes.Hash, status HTLCStatus, preimage *lntypes.Preimage, feeMsat *uint64) error
}
