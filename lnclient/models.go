// Package lnclient abstracts the Lightning backend the node runs against.
package lnclient

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// Typed payment failures. Callers branch on these to decide whether a
// payment attempt is retryable or permanently dead.
var (
	ErrRouteNotFound    = errors.New("no route to destination")
	ErrDuplicatePayment = errors.New("payment with this hash already in flight")
	ErrPaymentExpired   = errors.New("invoice has expired")
)

type NodeInfo struct {
	Pubkey      string
	Alias       string
	Network     string
	BlockHeight uint32
}

// Channel is the backend's view of a channel with a peer.
type Channel struct {
	ChannelID         uint64
	RemotePubkey      string
	CapacitySat       uint64
	LocalBalanceMsat  uint64
	RemoteBalanceMsat uint64
	// InboundSCID is the id a payer should reference in a route hint, the
	// peer's alias when one is negotiated.
	InboundSCID uint64
	Active      bool
	Public      bool
	Confirmed   bool
}

// InboundPayment holds the secrets for an invoice whose HTLCs the node
// settles itself. The preimage never leaves the node process.
type InboundPayment struct {
	PaymentHash   lntypes.Hash
	PaymentSecret [32]byte
	Preimage      lntypes.Preimage
}

type PayResponse struct {
	Preimage lntypes.Preimage
	FeeMsat  lnwire.MilliSatoshi
}

// PaymentSentEventProperties is published when the backend reports an
// outbound payment as settled.
type PaymentSentEventProperties struct {
	PaymentHash lntypes.Hash
	Preimage    lntypes.Preimage
	AmountMsat  lnwire.MilliSatoshi
	FeeMsat     lnwire.MilliSatoshi
}

// PaymentFailedEventProperties is published when the backend reports an
// outbound payment as permanently failed.
type PaymentFailedEventProperties struct {
	PaymentHash lntypes.Hash
	Reason      string
}

// LNClient is the node's Lightning backend.
type LNClient interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	GetPubkey() string
	ListChannels(ctx context.Context) ([]Channel, error)

	// GetInterceptSCID allocates a fresh short channel id under which HTLCs
	// for a not-yet-existing JIT channel can be intercepted.
	GetInterceptSCID(ctx context.Context) (uint64, error)

	// RegisterInboundPayment generates and registers the secrets for an
	// invoice the node will settle itself.
	RegisterInboundPayment(ctx context.Context) (*InboundPayment, error)

	// SendPayment pays the invoice. amountMsat overrides the invoice amount
	// and must be set for zero-amount invoices. The backend retries failed
	// paths up to maxAttempts times before giving up.
	SendPayment(ctx context.Context, bolt11 string, amountMsat *lnwire.MilliSatoshi, maxAttempts int) (*PayResponse, error)

	Shutdown() error
}
