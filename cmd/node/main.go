package main

import (
	"context"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"

	"github.com/bikraj2/10101/config"
	"github.com/bikraj2/10101/db"
	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/lnclient/lnd"
	"github.com/bikraj2/10101/logger"
	"github.com/bikraj2/10101/node"
)

func main() {
	osSignalChannel := make(chan os.Signal, 1)
	signal.Notify(osSignalChannel, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sig := <-osSignalChannel
		logger.Logger.Info().Interface("signal", sig).Msg("Received OS signal")
		cancel()
	}()

	appConfig, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
		return
	}

	logger.Logger.Info().Msg("10101 node starting")

	nodeKey, err := appConfig.ParseNodeKey()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid node key")
		return
	}

	gormDB, err := db.NewDB(appConfig.DatabaseUri)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to open database")
		return
	}
	store := db.NewStore(gormDB)

	eventPublisher := events.NewEventPublisher()
	eventPublisher.RegisterSubscriber(node.NewPaymentUpdateConsumer(store))

	lndCertHex, err := appConfig.ReadLNDCertHex()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to read LND TLS cert")
		return
	}
	lndMacaroonHex, err := appConfig.ReadLNDMacaroonHex()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to read LND macaroon")
		return
	}

	ln, err := lnd.NewLNDService(ctx, eventPublisher, appConfig.LNDAddress, lndCertHex, lndMacaroonHex)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to LND")
		return
	}

	// Invoices are signed with the node key and advertise its public key as
	// the destination. Payments only route if that key is the identity of
	// the backing LND node.
	identity := hex.EncodeToString(nodeKey.PubKey().SerializeCompressed())
	if identity != ln.GetPubkey() {
		logger.Logger.Fatal().
			Str("nodeKey", identity).
			Str("lndIdentity", ln.GetPubkey()).
			Msg("Node key does not match the LND identity")
		return
	}

	eventPublisher.SetGlobalProperty("node_id", ln.GetPubkey())
	eventPublisher.SetGlobalProperty("network", appConfig.Network)

	<-ctx.Done()

	if err := ln.Shutdown(); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shut down LND client")
	}
	logger.Logger.Info().Msg("10101 node exited")
}
