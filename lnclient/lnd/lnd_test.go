package lnd

import (
	"errors"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bikraj2/10101/lnclient"
)

func TestMapSendError(t *testing.T) {
	err := mapSendError(status.Error(codes.AlreadyExists, "payment already exists"))
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)

	err = mapSendError(status.Error(codes.Internal, "payment is in transition"))
	assert.ErrorIs(t, err, lnclient.ErrDuplicatePayment)

	err = mapSendError(status.Error(codes.InvalidArgument, "invoice expired"))
	assert.ErrorIs(t, err, lnclient.ErrPaymentExpired)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapSendError(plain))
}

func TestMapFailureReason(t *testing.T) {
	err := mapFailureReason(lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE)
	assert.ErrorIs(t, err, lnclient.ErrRouteNotFound)

	err = mapFailureReason(lnrpc.PaymentFailureReason_FAILURE_REASON_TIMEOUT)
	assert.ErrorIs(t, err, lnclient.ErrRouteNotFound)

	err = mapFailureReason(lnrpc.PaymentFailureReason_FAILURE_REASON_INSUFFICIENT_BALANCE)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, lnclient.ErrRouteNotFound)
}
