package node

import (
	"context"
	"time"

	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/lnclient"
	"github.com/bikraj2/10101/logger"
)

type paymentUpdateConsumer struct {
	events.EventSubscriber
	storage Storage
}

// NewPaymentUpdateConsumer returns the subscriber that writes the terminal
// status of outbound payments reported by the Lightning backend. Registered
// on the event bus at startup.
func NewPaymentUpdateConsumer(storage Storage) events.EventSubscriber {
	return &paymentUpdateConsumer{storage: storage}
}

func (c *paymentUpdateConsumer) ConsumeEvent(ctx context.Context, event *events.Event, globalProperties map[string]interface{}) {
	switch event.Event {
	case events.EVENT_PAYMENT_SENT:
		properties, ok := event.Properties.(*lnclient.PaymentSentEventProperties)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event")
			return
		}
		c.markPaymentSucceeded(properties)
	case events.EVENT_PAYMENT_FAILED:
		properties, ok := event.Properties.(*lnclient.PaymentFailedEventProperties)
		if !ok {
			logger.Logger.Error().Interface("event", event).Msg("Failed to cast event")
			return
		}
		c.markPaymentFailed(properties)
	}
}

// markPaymentSucceeded merges the settled outcome into the store. The
// notification can arrive before the dispatching call has recorded its
// pending entry, so a missing row is created rather than dropped.
func (c *paymentUpdateConsumer) markPaymentSucceeded(properties *lnclient.PaymentSentEventProperties) {
	payment, err := c.storage.GetPayment(properties.PaymentHash)
	if err != nil {
		logger.Logger.Error().Err(err).
			Str("paymentHash", properties.PaymentHash.String()).
			Msg("Failed to look up payment for sent notification")
		return
	}

	if payment == nil {
		preimage := properties.Preimage
		amount := properties.AmountMsat
		fee := properties.FeeMsat
		err := c.storage.InsertPayment(properties.PaymentHash, PaymentInfo{
			Preimage:   &preimage,
			Status:     HTLCStatusSucceeded,
			AmountMsat: &amount,
			FeeMsat:    &fee,
			Flow:       PaymentFlowOutbound,
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			logger.Logger.Error().Err(err).
				Str("paymentHash", properties.PaymentHash.String()).
				Msg("Failed to record settled payment")
		}
		return
	}

	if payment.Status == HTLCStatusSucceeded {
		logger.Logger.Debug().
			Str("paymentHash", properties.PaymentHash.String()).
			Msg("Payment already settled, ignoring payment sent notification")
		return
	}

	preimage := properties.Preimage
	fee := uint64(properties.FeeMsat)
	err = c.storage.UpdatePayment(properties.PaymentHash, HTLCStatusSucceeded, &preimage, &fee)
	if err != nil {
		logger.Logger.Error().Err(err).
			Str("paymentHash", properties.PaymentHash.String()).
			Msg("Failed to mark payment as succeeded")
	}
}

func (c *paymentUpdateConsumer) markPaymentFailed(properties *lnclient.PaymentFailedEventProperties) {
	payment, err := c.storage.GetPayment(properties.PaymentHash)
	if err != nil {
		logger.Logger.Error().Err(err).
			Str("paymentHash", properties.PaymentHash.String()).
			Msg("Failed to look up payment for failed notification")
		return
	}

	if payment == nil {
		// The dispatching call records its own failure synchronously;
		// there is nothing to merge.
		logger.Logger.Warn().
			Str("paymentHash", properties.PaymentHash.String()).
			Str("reason", properties.Reason).
			Msg("No recorded payment for failed notification")
		return
	}

	if payment.Status == HTLCStatusSucceeded {
		logger.Logger.Error().
			Str("paymentHash", properties.PaymentHash.String()).
			Str("reason", properties.Reason).
			Msg("Ignoring failure notification for a settled payment")
		return
	}

	err = c.storage.UpdatePayment(properties.PaymentHash, HTLCStatusFailed, nil, nil)
	if err != nil {
		logger.Logger.Error().Err(err).
			Str("paymentHash", properties.PaymentHash.String()).
			Msg("Failed to mark payment as failed")
	}
}
