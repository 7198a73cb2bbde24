package score

import (
	"math"
	"time"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/status"
	id "fieldcomply/pkg/domain"
)

// Evaluate derives an entity's compliance from its required documents and the
// credentials it holds. This is pure domain logic: no I/O, time is a parameter.
//
// Every required document is classified as missing (no credential), or by the
// credential's effective status. VALID and EXPIRING_SOON count toward the score.
// The overall status is the least favorable classification, which yields the
// fixed priority EXPIRED > MISSING > PENDING > EXPIRING_SOON > VALID.
func Evaluate(required models.Set[id.DocumentTypeID], credentials []models.Credential, now time.Time) models.Result {
	total := required.Len()
	if total == 0 {
		return models.Result{Score: 100, Status: models.StatusValid}
	}

	held := make(map[id.DocumentTypeID]models.Credential, len(credentials))
	for _, c := range credentials {
		held[c.DocumentTypeID] = c
	}

	overall := models.StatusValid
	compliant := 0
	for docID := range required {
		st := models.StatusMissing
		if c, ok := held[docID]; ok {
			st = status.Effective(c, now)
		}
		if st.Compliant() {
			compliant++
		}
		overall = models.Worst(overall, st)
	}

	return models.Result{
		Score:     Percent(compliant, total),
		Status:    overall,
		Required:  total,
		Compliant: compliant,
	}
}

// Percent returns round(100*part/total), or 100 when total is zero.
func Percent(part, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
