package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bikraj2/10101/config"
	"github.com/bikraj2/10101/db"
	"github.com/bikraj2/10101/events"
	"github.com/bikraj2/10101/logger"
	"github.com/bikraj2/10101/orderbook"
	"github.com/bikraj2/10101/trade/order"
	"github.com/bikraj2/10101/trade/position"
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

	logger.Logger.Info().Msg("10101 trader starting")

	gormDB, err := db.NewDB(appConfig.DatabaseUri)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to open database")
		return
	}
	store := db.NewStore(gormDB)

	eventPublisher := events.NewEventPublisher()

	positionHandler := position.NewHandler(store, eventPublisher)
	orderbookClient := orderbook.NewClient(appConfig.CoordinatorEndpoint)
	orderHandler := order.NewHandler(store, orderbookClient, positionHandler, eventPublisher)

	// Orders that went stale while the app was offline are failed right
	// away instead of waiting for the first sweep tick.
	if err := orderHandler.CheckOpenOrders(); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to check open orders on startup")
	}

	asyncOrder, err := orderHandler.GetAsyncOrder()
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to look up async order on startup")
	} else if asyncOrder != nil {
		logger.Logger.Info().
			Str("order_id", asyncOrder.ID.String()).
			Msg("Found order matched while offline")
	}

	go orderHandler.WatchOpenOrders(ctx)

	<-ctx.Done()

	logger.Logger.Info().Msg("10101 trader exited")
}
