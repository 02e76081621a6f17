package orderbook

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
)

func TestCalculateNextExpiry_Regtest(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	expiry := CalculateNextExpiry(now, &chaincfg.RegressionNetParams)
	assert.Equal(t, now.Add(24*time.Hour), expiry)
}

func TestCalculateNextExpiry_Midweek(t *testing.T) {
	// Friday
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	expiry := CalculateNextExpiry(now, &chaincfg.MainNetParams)
	assert.Equal(t, time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC), expiry)
	assert.Equal(t, time.Sunday, expiry.Weekday())
}

func TestCalculateNextExpiry_SundayBeforeCutoff(t *testing.T) {
	now := time.Date(2024, 3, 3, 14, 59, 0, 0, time.UTC)

	expiry := CalculateNextExpiry(now, &chaincfg.MainNetParams)
	assert.Equal(t, time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC), expiry)
}

func TestCalculateNextExpiry_SundayAfterCutoff(t *testing.T) {
	now := time.Date(2024, 3, 3, 15, 0, 0, 0, time.UTC)

	expiry := CalculateNextExpiry(now, &chaincfg.MainNetParams)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC), expiry, "expiry is strictly after now")
}
