// Package wrapper bundles the LND grpc sub-clients behind a single
// authenticated connection.
package wrapper

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

type LNDoptions struct {
	Address     string
	CertHex     string
	MacaroonHex string
}

type LNDWrapper struct {
	conn *grpc.ClientConn

	Client lnrpc.LightningClient
	Router routerrpc.RouterClient
}

// NewLNDclient dials LND with TLS and macaroon credentials taken from hex
// encoded config values.
func NewLNDclient(lndOptions LNDoptions) (*LNDWrapper, error) {
	if lndOptions.Address == "" || lndOptions.MacaroonHex == "" {
		return nil, errors.New("LND address and macaroon are required")
	}

	var creds credentials.TransportCredentials
	if lndOptions.CertHex != "" {
		certBytes, err := hex.DecodeString(lndOptions.CertHex)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TLS cert hex: %w", err)
		}
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(certBytes) {
			return nil, errors.New("failed to parse TLS cert")
		}
		creds = credentials.NewClientTLSFromCert(certPool, "")
	} else {
		creds = credentials.NewTLS(nil)
	}

	macBytes, err := hex.DecodeString(lndOptions.MacaroonHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode macaroon hex: %w", err)
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to parse macaroon: %w", err)
	}

	conn, err := grpc.NewClient(
		lndOptions.Address,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(&macaroonCredential{macaroonHex: lndOptions.MacaroonHex}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial LND at %s: %w", lndOptions.Address, err)
	}

	return &LNDWrapper{
		conn:   conn,
		Client: lnrpc.NewLightningClient(conn),
		Router: routerrpc.NewRouterClient(conn),
	}, nil
}

// SubscribePayments streams status updates for outgoing payments.
func (w *LNDWrapper) SubscribePayments(ctx context.Context, req *routerrpc.TrackPaymentsRequest, options ...grpc.CallOption) (routerrpc.Router_TrackPaymentsClient, error) {
	return w.Router.TrackPayments(ctx, req, options...)
}

func (w *LNDWrapper) Close() error {
	return w.conn.Close()
}

type macaroonCredential struct {
	macaroonHex string
}

func (c *macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": c.macaroonHex}, nil
}

func (c *macaroonCredential) RequireTransportSecurity() bool {
	return true
}
