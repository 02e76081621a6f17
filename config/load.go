package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bikraj2/10101/logger"
)

// Load reads the configuration from the environment and an optional .env
// file, initialises logging and fills in the workdir default.
func Load() (*AppConfig, error) {
	godotenv.Load(".env")

	appConfig := &AppConfig{}
	err := envconfig.Process("", appConfig)
	if err != nil {
		return nil, err
	}

	logger.Init(appConfig.LogLevel)

	if appConfig.Workdir == "" {
		appConfig.Workdir = filepath.Join(xdg.DataHome, "10101")
		logger.Logger.Info().Str("workdir", appConfig.Workdir).Msg("No workdir specified, using default")
	}
	os.MkdirAll(appConfig.Workdir, os.ModePerm)

	if appConfig.LogToFile {
		err = logger.AddFileLogger(appConfig.Workdir)
		if err != nil {
			return nil, err
		}
	}

	// If DATABASE_URI is a URI or a path, leave it unchanged.
	// If it only contains a filename, prepend the workdir.
	if !strings.HasPrefix(appConfig.DatabaseUri, "file:") {
		databasePath, _ := filepath.Split(appConfig.DatabaseUri)
		if databasePath == "" {
			appConfig.DatabaseUri = filepath.Join(appConfig.Workdir, appConfig.DatabaseUri)
		}
	}

	return appConfig, nil
}

// ReadLNDCertHex loads the TLS certificate file and returns it hex encoded,
// or an empty string when no cert file is configured.
func (c *AppConfig) ReadLNDCertHex() (string, error) {
	if c.LNDCertFile == "" {
		return "", nil
	}
	certBytes, err := os.ReadFile(c.LNDCertFile)
	if err != nil {
		return "", fmt.Errorf("failed to read LND cert file: %w", err)
	}
	return hex.EncodeToString(certBytes), nil
}

// ReadLNDMacaroonHex loads the macaroon file and returns it hex encoded.
func (c *AppConfig) ReadLNDMacaroonHex() (string, error) {
	if c.LNDMacaroonFile == "" {
		return "", fmt.Errorf("LND_MACAROON_FILE is not set")
	}
	macBytes, err := os.ReadFile(c.LNDMacaroonFile)
	if err != nil {
		return "", fmt.Errorf("failed to read LND macaroon file: %w", err)
	}
	return hex.EncodeToString(macBytes), nil
}
