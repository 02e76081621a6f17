// Package lnd implements lnclient.LNClient on top of an LND node reached
// over grpc.
package lnd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/lnclient"
	"github.com/bikraj2/10101/lnclient/lnd/wrapper"
	"github.com/bikraj2/10101/logger"
)

const (
	// Per-attempt slice of the overall payment deadline handed to LND's
	// router, which retries internally until the deadline passes.
	paymentTimeoutPerAttempt = 6 * time.Second

	maxPaymentParts = 16
	maxFeeMsat      = 50_000_000

	// Intercept SCIDs are minted with a block height beyond the current tip
	// so they can never collide with a real channel.
	interceptSCIDHeightOffset = 1 << 16
)

type LNDService struct {
	client         *wrapper.LNDWrapper
	nodeInfo       *lnclient.NodeInfo
	cancel         context.CancelFunc
	eventPublisher events.EventPublisher
	logger         zerolog.Logger

	scidMtx     sync.Mutex
	mintedSCIDs map[uint64]struct{}
}

func NewLNDService(ctx context.Context, eventPublisher events.EventPublisher, lndAddress, lndCertHex, lndMacaroonHex string) (lnclient.LNClient, error) {
	lndClient, err := wrapper.NewLNDclient(wrapper.LNDoptions{
		Address:     lndAddress,
		CertHex:     lndCertHex,
		MacaroonHex: lndMacaroonHex,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to create new LND client")
		return nil, err
	}

	var nodeInfo *lnclient.NodeInfo
	maxRetries := 5
	for i := range maxRetries {
		nodeInfo, err = fetchNodeInfo(ctx, lndClient)
		if err == nil {
			break
		}
		logger.Logger.Error().Err(err).
			Int("iteration", i).
			Msg("Failed to connect to LND, retrying in 2s")

		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to connect to LND on final attempt, not attempting further retries")
		return nil, err
	}

	lndCtx, cancel := context.WithCancel(ctx)

	lndService := &LNDService{
		client:         lndClient,
		nodeInfo:       nodeInfo,
		cancel:         cancel,
		eventPublisher: eventPublisher,
		logger:         logger.Logger.With().Str("backend", "LND").Logger(),
		mintedSCIDs:    map[uint64]struct{}{},
	}

	go lndService.subscribePayments(lndCtx)

	logger.Logger.Info().Str("alias", nodeInfo.Alias).Msg("Connected to LND")

	return lndService, nil
}

// subscribePayments follows LND's payment tracker and republishes terminal
// payment updates on the event bus. The stream is re-established with a
// backoff after any subscription or receive error.
func (svc *LNDService) subscribePayments(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			paymentStream, err := svc.client.SubscribePayments(ctx, &routerrpc.TrackPaymentsRequest{
				NoInflightUpdates: true,
			})
			if err != nil {
				svc.logger.Error().Err(err).Msg("Error subscribing to payments")
				select {
				case <-ctx.Done():
					return
				case <-time.After(10 * time.Second):
					continue
				}
			}
		paymentsLoop:
			for {
				payment, err := paymentStream.Recv()
				if err != nil {
					svc.logger.Error().Err(err).Msg("Failed to receive payment")
					select {
					case <-ctx.Done():
						return
					case <-time.After(2 * time.Second):
						break paymentsLoop
					}
				}

				hash, err := lntypes.MakeHashFromStr(payment.PaymentHash)
				if err != nil {
					svc.logger.Error().Err(err).
						Str("paymentHash", payment.PaymentHash).
						Msg("LND reported a payment with an invalid hash")
					continue
				}

				switch payment.Status {
				case lnrpc.Payment_FAILED:
					svc.logger.Info().
						Str("paymentHash", payment.PaymentHash).
						Str("reason", payment.FailureReason.String()).
						Msg("Received payment failed notification")

					svc.eventPublisher.Publish(&events.Event{
						Event: events.EVENT_PAYMENT_FAILED,
						Properties: &lnclient.PaymentFailedEventProperties{
							PaymentHash: hash,
							Reason:      payment.FailureReason.String(),
						},
					})
				case lnrpc.Payment_SUCCEEDED:
					svc.logger.Info().
						Str("paymentHash", payment.PaymentHash).
						Msg("Received payment sent notification")

					preimage, err := lntypes.MakePreimageFromStr(payment.PaymentPreimage)
					if err != nil {
						svc.logger.Error().Err(err).
							Str("paymentHash", payment.PaymentHash).
							Msg("LND reported a settled payment with an invalid preimage")
						continue
					}
					svc.eventPublisher.Publish(&events.Event{
						Event: events.EVENT_PAYMENT_SENT,
						Properties: &lnclient.PaymentSentEventProperties{
							PaymentHash: hash,
							Preimage:    preimage,
							AmountMsat:  lnwire.MilliSatoshi(payment.ValueMsat),
							FeeMsat:     lnwire.MilliSatoshi(payment.FeeMsat),
						},
					})
				default:
					continue
				}
			}
		}
	}
}

func fetchNodeInfo(ctx context.Context, client *wrapper.LNDWrapper) (*lnclient.NodeInfo, error) {
	resp, err := client.Client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, err
	}

	network := ""
	if len(resp.Chains) > 0 {
		network = resp.Chains[0].Network
	}

	return &lnclient.NodeInfo{
		Pubkey:      resp.IdentityPubkey,
		Alias:       resp.Alias,
		Network:     network,
		BlockHeight: resp.BlockHeight,
	}, nil
}

func (svc *LNDService) GetInfo(ctx context.Context) (*lnclient.NodeInfo, error) {
	return fetchNodeInfo(ctx, svc.client)
}

func (svc *LNDService) GetPubkey() string {
	return svc.nodeInfo.Pubkey
}

func (svc *LNDService) ListChannels(ctx context.Context) ([]lnclient.Channel, error) {
	resp, err := svc.client.Client.ListChannels(ctx, &lnrpc.ListChannelsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	channels := make([]lnclient.Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		inboundSCID := ch.ChanId
		if ch.PeerScidAlias != 0 {
			inboundSCID = ch.PeerScidAlias
		}

		channels = append(channels, lnclient.Channel{
			ChannelID:         ch.ChanId,
			RemotePubkey:      ch.RemotePubkey,
			CapacitySat:       uint64(ch.Capacity),
			LocalBalanceMsat:  uint64(ch.LocalBalance) * 1000,
			RemoteBalanceMsat: uint64(ch.RemoteBalance) * 1000,
			InboundSCID:       inboundSCID,
			Active:            ch.Active,
			Public:            !ch.Private,
			Confirmed:         ch.ChanId != 0,
		})
	}

	return channels, nil
}

// GetInterceptSCID mints a short channel id that cannot belong to a real
// channel: its block height lies far beyond the current tip. Minted ids are
// tracked so the same id is never handed out twice within a process.
func (svc *LNDService) GetInterceptSCID(ctx context.Context) (uint64, error) {
	info, err := svc.GetInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query block height: %w", err)
	}

	svc.scidMtx.Lock()
	defer svc.scidMtx.Unlock()

	for i := 0; i < 100; i++ {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}

		scid := lnwire.ShortChannelID{
			BlockHeight: info.BlockHeight + interceptSCIDHeightOffset,
			TxIndex:     uint32(buf[0])<<8 | uint32(buf[1]),
			TxPosition:  uint16(buf[2])<<8 | uint16(buf[3]),
		}.ToUint64()

		if _, taken := svc.mintedSCIDs[scid]; taken {
			continue
		}
		svc.mintedSCIDs[scid] = struct{}{}

		return scid, nil
	}

	return 0, errors.New("failed to mint a fresh intercept SCID")
}

// RegisterInboundPayment generates the preimage and payment secret locally.
// The HTLCs for the resulting invoice are settled by this node, not by LND's
// invoice registry.
func (svc *LNDService) RegisterInboundPayment(ctx context.Context) (*lnclient.InboundPayment, error) {
	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, fmt.Errorf("failed to generate preimage: %w", err)
	}

	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("failed to generate payment secret: %w", err)
	}

	return &lnclient.InboundPayment{
		PaymentHash:   preimage.Hash(),
		PaymentSecret: secret,
		Preimage:      preimage,
	}, nil
}

func (svc *LNDService) SendPayment(ctx context.Context, bolt11 string, amountMsat *lnwire.MilliSatoshi, maxAttempts int) (*lnclient.PayResponse, error) {
	req := &routerrpc.SendPaymentRequest{
		PaymentRequest: bolt11,
		TimeoutSeconds: int32(time.Duration(maxAttempts) * paymentTimeoutPerAttempt / time.Second),
		MaxParts:       maxPaymentParts,
		FeeLimitMsat:   maxFeeMsat,
	}
	if amountMsat != nil {
		req.AmtMsat = int64(*amountMsat)
	}

	payStream, err := svc.client.Router.SendPaymentV2(ctx, req)
	if err != nil {
		return nil, mapSendError(err)
	}

	payment, err := getPaymentResult(payStream)
	if err != nil {
		return nil, mapSendError(err)
	}

	if payment.Status != lnrpc.Payment_SUCCEEDED {
		svc.logger.Error().
			Str("paymentHash", payment.PaymentHash).
			Str("reason", payment.FailureReason.String()).
			Msg("Payment failed")
		return nil, mapFailureReason(payment.FailureReason)
	}

	preimage, err := lntypes.MakePreimageFromStr(payment.PaymentPreimage)
	if err != nil {
		return nil, fmt.Errorf("LND returned an invalid preimage: %w", err)
	}

	return &lnclient.PayResponse{
		Preimage: preimage,
		FeeMsat:  lnwire.MilliSatoshi(payment.FeeMsat),
	}, nil
}

func getPaymentResult(stream routerrpc.Router_SendPaymentV2Client) (*lnrpc.Payment, error) {
	for {
		payment, err := stream.Recv()
		if err != nil {
			return nil, err
		}

		if payment.Status != lnrpc.Payment_IN_FLIGHT {
			return payment, nil
		}
	}
}

func mapSendError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	msg := strings.ToLower(st.Message())
	switch {
	case st.Code() == codes.AlreadyExists,
		strings.Contains(msg, "payment is in transition"),
		strings.Contains(msg, "duplicate payment"):
		return fmt.Errorf("%w: %s", lnclient.ErrDuplicatePayment, st.Message())
	case strings.Contains(msg, "invoice expired"),
		strings.Contains(msg, "invoice is expired"):
		return fmt.Errorf("%w: %s", lnclient.ErrPaymentExpired, st.Message())
	default:
		return err
	}
}

func mapFailureReason(reason lnrpc.PaymentFailureReason) error {
	switch reason {
	case lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE:
		return lnclient.ErrRouteNotFound
	case lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT:
		return fmt.Errorf("%w: route attempts timed out", lnclient.ErrRouteNotFound)
	default:
		return errors.New(reason.String())
	}
}

func (svc *LNDService) Shutdown() error {
	svc.logger.Info().Msg("cancelling LND context")
	svc.cancel()
	return svc.client.Close()
}
