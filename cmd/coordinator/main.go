package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bikraj2/10101/config"
	"github.com/bikraj2/10101/coordinator"
	"github.com/bikraj2/10101/logger"
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

	logger.Logger.Info().Msg("10101 coordinator starting")

	network, err := appConfig.ChainParams()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid network")
		return
	}

	// Fail fast on a malformed oracle key; the notifier embeds it into
	// every FilledWith.
	_, err = appConfig.ParseOraclePubkey()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid oracle pubkey")
		return
	}

	pool, err := pgxpool.New(ctx, appConfig.CoordinatorDatabaseUri)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to coordinator database")
		return
	}
	defer pool.Close()

	store := coordinator.NewPGStore(pool)
	feed := coordinator.NewUserFeed()
	sender := coordinator.NewMessageChannelSender(100)

	notifier := coordinator.NewAsyncMatchNotifier(store, feed, sender, appConfig.OraclePubkey, network)
	go notifier.Run(ctx)

	<-ctx.Done()

	feed.Close()
	logger.Logger.Info().Msg("10101 coordinator exited")
}
