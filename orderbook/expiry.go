package orderbook

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Contracts roll over weekly, expiring on Sunday at 15:00 UTC. On regtest we
// shorten the cycle to a day so that settlement can be exercised without
// waiting out a week.
const (
	expiryWeekday = time.Sunday
	expiryHourUTC = 15

	regtestExpiry = 24 * time.Hour
)

// CalculateNextExpiry returns the settlement expiry for a trade executed at
// now: the next Sunday 15:00 UTC strictly after now, or now plus a day on
// regtest.
func CalculateNextExpiry(now time.Time, network *chaincfg.Params) time.Time {
	if network.Name == chaincfg.RegressionNetParams.Name {
		return now.Add(regtestExpiry)
	}

	now = now.UTC()

	daysUntilSunday := (int(expiryWeekday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), expiryHourUTC, 0, 0, 0, time.UTC).
		AddDate(0, 0, daysUntilSunday)

	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}

	return candidate
}
