// Package status derives a credential's compliance status from its expiry date.
//
// Domain purity: no I/O and no clock reads. The evaluation time is always passed
// in by the caller.
package status

import (
	"time"

	"fieldcomply/internal/compliance/models"
)

// ExpiringSoonDays is the inclusive window, in calendar days, in which a
// credential is reported as EXPIRING_SOON rather than VALID.
const ExpiringSoonDays = 30

// Calculate returns the status of a credential with the given expiry at now.
//
//   - no expiry: PENDING
//   - expiry before today: EXPIRED
//   - expiry today through ExpiringSoonDays days out: EXPIRING_SOON
//   - otherwise: VALID
func Calculate(expiry *time.Time, now time.Time) models.Status {
	if expiry == nil || expiry.IsZero() {
		return models.StatusPending
	}
	days := DaysUntil(*expiry, now)
	switch {
	case days < 0:
		return models.StatusExpired
	case days <= ExpiringSoonDays:
		return models.StatusExpiringSoon
	default:
		return models.StatusValid
	}
}

// DaysUntil returns the number of calendar days from now's date to expiry's date.
// Expiry is a calendar date, so its own year/month/day are used as-is; now is read
// in its own location. Time of day never matters.
func DaysUntil(expiry, now time.Time) int {
	ey, em, ed := expiry.Date()
	ny, nm, nd := now.Date()
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(n) / (24 * time.Hour))
}

// Effective recalculates c's status at now. Stored statuses are assigned at write
// time and go stale as days pass, so derivation always goes through here.
func Effective(c models.Credential, now time.Time) models.Status {
	return Calculate(c.ExpiryDate, now)
}
