// Package node implements the Lightning-node side of trade settlement: JIT
// channel negotiation, invoice construction and the outbound payment
// pipeline.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"

	"github.com/bikraj2/10101/lnclient"
	"github.com/bikraj2/10101/logger"
)

// ErrNoUsableChannel is returned when a route hint is requested for a peer
// we have no confirmed channel with.
var ErrNoUsableChannel = errors.New("no usable channel to peer")

// ChannelConfig is the live fee schedule advertised in route hints.
type ChannelConfig struct {
	FeeBaseMsat               uint32
	FeeProportionalMillionths uint32
	CLTVExpiryDelta           uint16
}

// Node composes the Lightning backend with the durable store and owns the
// pending JIT liquidity requests.
type Node struct {
	storage Storage
	ln      lnclient.LNClient
	nodeKey *btcec.PrivateKey
	network *chaincfg.Params

	channelConfigMtx sync.RWMutex
	channelConfig    ChannelConfig

	// Keyed by intercept SCID. Accessed by both the route-hint preparation
	// path and the HTLC interception handler; the lock is never held across
	// I/O.
	liquidityMtx      sync.Mutex
	liquidityRequests map[uint64]LiquidityRequest
}

func NewNode(storage Storage, ln lnclient.LNClient, nodeKey *btcec.PrivateKey, network *chaincfg.Params, channelConfig ChannelConfig) *Node {
	return &Node{
		storage:           storage,
		ln:                ln,
		nodeKey:           nodeKey,
		network:           network,
		channelConfig:     channelConfig,
		liquidityRequests: map[uint64]LiquidityRequest{},
	}
}

// SetChannelConfig replaces the fee schedule used for new route hints.
// In-flight negotiations keep the schedule they read.
func (n *Node) SetChannelConfig(cfg ChannelConfig) {
	n.channelConfigMtx.Lock()
	defer n.channelConfigMtx.Unlock()

	n.channelConfig = cfg
}

// PrepareOnboardingPayment allocates an intercept SCID for a trader without
// a channel, registers the liquidity request under it and persists the
// shadow JIT channel. The returned hop carries the intercept SCID so the
// inbound HTLC can be recognised later.
func (n *Node) PrepareOnboardingPayment(ctx context.Context, request LiquidityRequest) (zpay32.HopHint, error) {
	scid, err := n.ln.GetInterceptSCID(ctx)
	if err != nil {
		return zpay32.HopHint{}, fmt.Errorf("failed to allocate intercept SCID: %w", err)
	}

	n.liquidityMtx.Lock()
	n.liquidityRequests[scid] = request
	n.liquidityMtx.Unlock()

	channel := NewJitChannel(request.UserChannelID, request.TraderPubkey, request.LiquidityOptionID)
	err = n.storage.UpsertChannel(channel)
	if err != nil {
		n.liquidityMtx.Lock()
		delete(n.liquidityRequests, scid)
		n.liquidityMtx.Unlock()

		return zpay32.HopHint{}, fmt.Errorf("failed to persist shadow channel: %w", err)
	}

	logger.Logger.Info().
		Str("traderId", request.TraderPubkey).
		Str("userChannelId", request.UserChannelID.String()).
		Uint64("scid", scid).
		Msg("Prepared onboarding payment")

	return n.routeHintHop(scid), nil
}

// PreparePaymentWithRouteHint builds a hop over an existing confirmed
// channel with the trader.
func (n *Node) PreparePaymentWithRouteHint(ctx context.Context, traderPubkey string) (zpay32.HopHint, error) {
	channels, err := n.ln.ListChannels(ctx)
	if err != nil {
		return zpay32.HopHint{}, fmt.Errorf("failed to list channels: %w", err)
	}

	for _, channel := range channels {
		if channel.RemotePubkey != traderPubkey {
			continue
		}
		if !channel.Active || !channel.Confirmed {
			continue
		}

		return n.routeHintHop(channel.InboundSCID), nil
	}

	return zpay32.HopHint{}, fmt.Errorf("%w: %s", ErrNoUsableChannel, traderPubkey)
}

// LiquidityRequestBySCID returns the pending request registered under the
// intercept SCID, if any.
func (n *Node) LiquidityRequestBySCID(scid uint64) (LiquidityRequest, bool) {
	n.liquidityMtx.Lock()
	defer n.liquidityMtx.Unlock()

	request, ok := n.liquidityRequests[scid]
	return request, ok
}

// ConsumeLiquidityRequest removes and returns the pending request for the
// SCID. Called by the HTLC interception handler once the HTLC arrives.
func (n *Node) ConsumeLiquidityRequest(scid uint64) (LiquidityRequest, bool) {
	n.liquidityMtx.Lock()
	defer n.liquidityMtx.Unlock()

	request, ok := n.liquidityRequests[scid]
	if ok {
		delete(n.liquidityRequests, scid)
	}
	return request, ok
}

func (n *Node) routeHintHop(scid uint64) zpay32.HopHint {
	n.channelConfigMtx.RLock()
	cfg := n.channelConfig
	n.channelConfigMtx.RUnlock()

	return zpay32.HopHint{
		NodeID:                    n.nodeKey.PubKey(),
		ChannelID:                 scid,
		FeeBaseMSat:               cfg.FeeBaseMsat,
		FeeProportionalMillionths: cfg.FeeProportionalMillionths,
		CLTVExpiryDelta:           cfg.CLTVExpiryDelta,
	}
}
