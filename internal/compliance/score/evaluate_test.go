package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fieldcomply/internal/compliance/models"
	id "fieldcomply/pkg/domain"
)

var evalNow = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

func expiresIn(days int) *time.Time {
	d := time.Date(2026, time.June, 1+days, 0, 0, 0, 0, time.UTC)
	return &d
}

func cred(doc id.DocumentTypeID, expiry *time.Time) models.Credential {
	return models.Credential{ID: id.NewCredentialID(), DocumentTypeID: doc, ExpiryDate: expiry}
}

func TestEvaluate(t *testing.T) {
	d1, d2, d3 := id.NewDocumentTypeID(), id.NewDocumentTypeID(), id.NewDocumentTypeID()

	tests := []struct {
		name        string
		required    models.Set[id.DocumentTypeID]
		credentials []models.Credential
		wantScore   int
		wantStatus  models.Status
	}{
		{
			name:       "no requirements is vacuously compliant",
			required:   models.NewSet[id.DocumentTypeID](),
			wantScore:  100,
			wantStatus: models.StatusValid,
		},
		{
			name:        "single expiring credential still scores 100",
			required:    models.NewSet(d1),
			credentials: []models.Credential{cred(d1, expiresIn(10))},
			wantScore:   100,
			wantStatus:  models.StatusExpiringSoon,
		},
		{
			name:        "one valid two missing rounds down to 33",
			required:    models.NewSet(d1, d2, d3),
			credentials: []models.Credential{cred(d1, expiresIn(90))},
			wantScore:   33,
			wantStatus:  models.StatusMissing,
		},
		{
			name:        "two of three valid rounds up to 67",
			required:    models.NewSet(d1, d2, d3),
			credentials: []models.Credential{cred(d1, expiresIn(90)), cred(d2, expiresIn(90)), cred(d3, nil)},
			wantScore:   67,
			wantStatus:  models.StatusPending,
		},
		{
			name:        "expired outranks missing",
			required:    models.NewSet(d1, d2),
			credentials: []models.Credential{cred(d1, expiresIn(-1))},
			wantScore:   0,
			wantStatus:  models.StatusExpired,
		},
		{
			name:        "pending outranks expiring",
			required:    models.NewSet(d1, d2),
			credentials: []models.Credential{cred(d1, nil), cred(d2, expiresIn(3))},
			wantScore:   50,
			wantStatus:  models.StatusPending,
		},
		{
			name:        "all valid",
			required:    models.NewSet(d1, d2),
			credentials: []models.Credential{cred(d1, expiresIn(31)), cred(d2, expiresIn(400))},
			wantScore:   100,
			wantStatus:  models.StatusValid,
		},
		{
			name:        "credentials outside the requirement set are ignored",
			required:    models.NewSet(d1),
			credentials: []models.Credential{cred(d1, expiresIn(90)), cred(d2, expiresIn(-30))},
			wantScore:   100,
			wantStatus:  models.StatusValid,
		},
		{
			name:        "stale stored status is recalculated",
			required:    models.NewSet(d1),
			credentials: []models.Credential{{DocumentTypeID: d1, ExpiryDate: expiresIn(-2), Status: models.StatusValid}},
			wantScore:   0,
			wantStatus:  models.StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.required, tt.credentials, evalNow)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.required.Len(), got.Required)
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	d1, d2 := id.NewDocumentTypeID(), id.NewDocumentTypeID()
	required := models.NewSet(d1, d2)
	creds := []models.Credential{cred(d1, expiresIn(5))}

	first := Evaluate(required, creds, evalNow)
	assert.Equal(t, first, Evaluate(required, creds, evalNow))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 100, Percent(0, 0))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 0, Percent(0, 7))
}
