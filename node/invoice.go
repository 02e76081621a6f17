package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"

	"github.com/bikraj2/10101/constants"
	"github.com/bikraj2/10101/logger"
)

var (
	// ErrAmountRequired is returned when a zero-amount invoice is paid
	// without an explicit amount.
	ErrAmountRequired = errors.New("invoice has no amount, an explicit amount is required")
	// ErrWaitForPending rejects waiting for a non-terminal payment status.
	ErrWaitForPending = errors.New("cannot wait for a payment to become pending")
	// ErrPaymentTimedOut is returned when the expected payment status was
	// not observed within the wait window.
	ErrPaymentTimedOut = errors.New("timed out waiting for payment")
)

// Invoice is a freshly signed BOLT11 invoice together with the secrets the
// node needs to settle its HTLCs itself.
type Invoice struct {
	Bolt11      string
	PaymentHash lntypes.Hash
	Preimage    lntypes.Preimage
	Secret      [32]byte
}

// CreateInvoiceWithRouteHint builds and signs an invoice carrying exactly
// one private route hint. The final CLTV delta is fixed well above the
// fail-back buffer so incoming HTLCs are not failed spuriously close to
// expiry.
func (n *Node) CreateInvoiceWithRouteHint(ctx context.Context, amountMsat *lnwire.MilliSatoshi, expiry *time.Duration, description string, hopHint zpay32.HopHint) (*Invoice, error) {
	inbound, err := n.ln.RegisterInboundPayment(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to register inbound payment: %w", err)
	}

	invoiceExpiry := constants.INVOICE_DEFAULT_EXPIRY
	if expiry != nil {
		invoiceExpiry = *expiry
	}

	options := []func(*zpay32.Invoice){
		zpay32.Description(description),
		zpay32.Destination(n.nodeKey.PubKey()),
		zpay32.Expiry(invoiceExpiry),
		zpay32.CLTVExpiry(constants.MIN_FINAL_CLTV_EXPIRY_DELTA),
		zpay32.RouteHint([]zpay32.HopHint{hopHint}),
		zpay32.PaymentAddr(inbound.PaymentSecret),
		zpay32.Features(lnwire.NewFeatureVector(
			lnwire.NewRawFeatureVector(
				lnwire.TLVOnionPayloadOptional,
				lnwire.PaymentAddrOptional,
			),
			lnwire.Features,
		)),
	}
	if amountMsat != nil {
		options = append(options, zpay32.Amount(*amountMsat))
	}

	invoice, err := zpay32.NewInvoice(n.network, [32]byte(inbound.PaymentHash), time.Now(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice: %w", err)
	}

	bolt11, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(n.nodeKey, chainhash.HashB(msg), true), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign invoice: %w", err)
	}

	logger.Logger.Info().
		Str("paymentHash", inbound.PaymentHash.String()).
		Uint64("scid", hopHint.ChannelID).
		Msg("Created invoice with route hint")

	return &Invoice{
		Bolt11:      bolt11,
		PaymentHash: inbound.PaymentHash,
		Preimage:    inbound.Preimage,
		Secret:      inbound.PaymentSecret,
	}, nil
}

// PayInvoice decodes and pays the invoice. A malformed invoice is fatal and
// leaves no record. A send failure is recorded as Failed before the error is
// surfaced, so the caller never learns about a failure the store does not
// know about. On success the payment is recorded as Pending; the terminal
// status is written later by the payment-completion callback.
func (n *Node) PayInvoice(ctx context.Context, bolt11 string, amountMsat *lnwire.MilliSatoshi) (lntypes.Hash, error) {
	invoice, err := zpay32.Decode(bolt11, n.network)
	if err != nil {
		return lntypes.Hash{}, fmt.Errorf("failed to decode invoice: %w", err)
	}

	var amount *lnwire.MilliSatoshi
	switch {
	case invoice.MilliSat != nil:
		amount = invoice.MilliSat
	case amountMsat != nil:
		amount = amountMsat
	default:
		return lntypes.Hash{}, ErrAmountRequired
	}

	hash := lntypes.Hash(*invoice.PaymentHash)

	description := ""
	if invoice.Description != nil {
		description = *invoice.Description
	}

	// Only zero-amount invoices get the explicit amount passed through;
	// otherwise the backend takes the amount from the invoice itself.
	var amountOverride *lnwire.MilliSatoshi
	if invoice.MilliSat == nil {
		amountOverride = amountMsat
	}

	resp, err := n.ln.SendPayment(ctx, bolt11, amountOverride, constants.PAYMENT_RETRY_ATTEMPTS)
	if err != nil {
		info := PaymentInfo{
			Status:      HTLCStatusFailed,
			AmountMsat:  amount,
			Flow:        PaymentFlowOutbound,
			Timestamp:   time.Now().UTC(),
			Description: description,
			Invoice:     bolt11,
		}
		if storeErr := n.storage.InsertPayment(hash, info); storeErr != nil {
			logger.Logger.Error().Err(storeErr).
				Str("paymentHash", hash.String()).
				Msg("Failed to record failed payment")
		}

		return hash, fmt.Errorf("failed to send payment %s: %w", hash, err)
	}

	info := PaymentInfo{
		Status:      HTLCStatusPending,
		AmountMsat:  amount,
		FeeMsat:     &resp.FeeMsat,
		Flow:        PaymentFlowOutbound,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Invoice:     bolt11,
	}
	err = n.storage.InsertPayment(hash, info)
	if err != nil {
		// The payment-completion callback can beat this insert when the
		// backend settles quickly; the store then already holds the
		// terminal record and there is nothing left to do.
		existing, lookupErr := n.storage.GetPayment(hash)
		if lookupErr == nil && existing != nil {
			logger.Logger.Debug().
				Str("paymentHash", hash.String()).
				Str("status", string(existing.Status)).
				Msg("Payment already recorded by completion callback")
			return hash, nil
		}
		return hash, fmt.Errorf("failed to record pending payment %s: %w", hash, err)
	}

	logger.Logger.Info().
		Str("paymentHash", hash.String()).
		Msg("Dispatched payment")

	return hash, nil
}

// WaitForPayment polls the store until the payment reaches the expected
// status or the timeout elapses. The default window is 10 seconds.
func (n *Node) WaitForPayment(ctx context.Context, hash lntypes.Hash, expected HTLCStatus, timeout *time.Duration) error {
	if expected == HTLCStatusPending {
		return ErrWaitForPending
	}

	window := constants.WAIT_FOR_PAYMENT_TIMEOUT
	if timeout != nil {
		window = *timeout
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	ticker := time.NewTicker(constants.WAIT_FOR_PAYMENT_INTERVAL)
	defer ticker.Stop()

	for {
		payment, err := n.storage.GetPayment(hash)
		if err != nil {
			return fmt.Errorf("failed to look up payment %s: %w", hash, err)
		}
		if payment != nil && payment.Status == expected {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrPaymentTimedOut, hash)
		case <-ticker.C:
		}
	}
}
