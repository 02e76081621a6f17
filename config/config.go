package config

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
)

// ChainParams maps the configured network name to chain parameters.
func (c *AppConfig) ChainParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "bitcoin", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest", "":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", c.Network)
	}
}

// ParseNodeKey decodes the hex-encoded invoice signing key.
func (c *AppConfig) ParseNodeKey() (*btcec.PrivateKey, error) {
	if c.NodeKey == "" {
		return nil, fmt.Errorf("NODE_KEY is not set")
	}
	keyBytes, err := hex.DecodeString(c.NodeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode NODE_KEY: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(keyBytes)
	return priv, nil
}

// ParseOraclePubkey decodes the configured x-only oracle public key.
func (c *AppConfig) ParseOraclePubkey() (*btcec.PublicKey, error) {
	if c.OraclePubkey == "" {
		return nil, fmt.Errorf("ORACLE_PUBKEY is not set")
	}
	keyBytes, err := hex.DecodeString(c.OraclePubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ORACLE_PUBKEY: %w", err)
	}
	return schnorr.ParsePubKey(keyBytes)
}
