// Package alerts derives organization-level alerts from resolved compliance state.
package alerts

import (
	"fmt"
	"slices"
	"time"

	"fieldcomply/internal/compliance/models"
	"fieldcomply/internal/compliance/status"
	id "fieldcomply/pkg/domain"
)

const (
	IDTechsExpired     = "techs-expired"
	IDExpiringWeek     = "expiring-7d"
	IDTechsPending     = "techs-pending"
	IDExpiringMonth    = "expiring-30d"
	idNoCompliantPref  = "company-no-compliant-"
	idLowCompliantPref = "company-low-compliance-"
)

// Thresholds tune alert derivation.
type Thresholds struct {
	// Credentials expiring within this many days raise a warning.
	WarningDays int
	// Credentials expiring within this many days raise a notice.
	NoticeDays int
	// Companies need at least this many linked technicians for the low-compliance warning.
	LowComplianceMinTechnicians int
	// Share of VALID technicians, in percent, under which a company is low compliance.
	LowCompliancePercent int
}

// DefaultThresholds are the production values.
var DefaultThresholds = Thresholds{
	WarningDays:                 7,
	NoticeDays:                  status.ExpiringSoonDays,
	LowComplianceMinTechnicians: 3,
	LowCompliancePercent:        30,
}

// NoCompliantID is the alert ID raised for a company without a single VALID technician.
func NoCompliantID(companyID id.CompanyID) string {
	return idNoCompliantPref + companyID.String()
}

// LowComplianceID is the alert ID raised for a company under the compliance threshold.
func LowComplianceID(companyID id.CompanyID) string {
	return idLowCompliantPref + companyID.String()
}

// Derive produces alerts ordered CRITICAL, WARNING, INFO. Within a severity the
// rule order is kept. Nil entries are ignored and empty input yields no alerts.
func Derive(technicians []*models.Technician, companies []*models.Company, now time.Time, th Thresholds) []models.Alert {
	var out []models.Alert

	var expiredTechs, pendingTechs, expiringWeek, expiringMonth int
	for _, tech := range technicians {
		if tech == nil {
			continue
		}
		hasExpired := false
		for _, cred := range tech.Credentials {
			switch st := status.Effective(cred, now); {
			case st == models.StatusExpired:
				hasExpired = true
			case cred.ExpiryDate != nil:
				days := status.DaysUntil(*cred.ExpiryDate, now)
				if days <= th.WarningDays {
					expiringWeek++
				}
				if days <= th.NoticeDays {
					expiringMonth++
				}
			}
		}
		if hasExpired {
			expiredTechs++
		}
		if tech.OverallStatus == models.StatusPending {
			pendingTechs++
		}
	}

	if expiredTechs > 0 {
		out = append(out, models.Alert{
			ID:       IDTechsExpired,
			Severity: models.SeverityCritical,
			Title:    "Expired credentials",
			Message:  fmt.Sprintf("%d %s an expired credential", expiredTechs, plural(expiredTechs, "technician holds", "technicians hold")),
			Count:    expiredTechs,
			Link:     "/technicians?status=EXPIRED",
		})
	}
	if expiringWeek > 0 {
		out = append(out, models.Alert{
			ID:          IDExpiringWeek,
			Severity:    models.SeverityWarning,
			Title:       "Credentials expiring this week",
			Message:     fmt.Sprintf("%d %s within %d days", expiringWeek, plural(expiringWeek, "credential expires", "credentials expire"), th.WarningDays),
			Count:       expiringWeek,
			Link:        "/technicians?status=EXPIRING_SOON",
			Dismissable: true,
		})
	}

	out = append(out, companyAlerts(technicians, companies, th)...)

	if pendingTechs > 0 {
		out = append(out, models.Alert{
			ID:          IDTechsPending,
			Severity:    models.SeverityInfo,
			Title:       "Pending credentials",
			Message:     fmt.Sprintf("%d %s waiting on document review", pendingTechs, plural(pendingTechs, "technician is", "technicians are")),
			Count:       pendingTechs,
			Link:        "/technicians?status=PENDING",
			Dismissable: true,
		})
	}
	if expiringMonth > 0 && expiringWeek == 0 {
		out = append(out, models.Alert{
			ID:          IDExpiringMonth,
			Severity:    models.SeverityInfo,
			Title:       "Credentials expiring this month",
			Message:     fmt.Sprintf("%d %s within %d days", expiringMonth, plural(expiringMonth, "credential expires", "credentials expire"), th.NoticeDays),
			Count:       expiringMonth,
			Link:        "/technicians?status=EXPIRING_SOON",
			Dismissable: true,
		})
	}

	slices.SortStableFunc(out, func(a, b models.Alert) int {
		return a.Severity.Rank() - b.Severity.Rank()
	})
	return out
}

func companyAlerts(technicians []*models.Technician, companies []*models.Company, th Thresholds) []models.Alert {
	type tally struct{ linked, valid int }
	tallies := make(map[id.CompanyID]*tally, len(companies))
	for _, c := range companies {
		if c != nil {
			tallies[c.ID] = &tally{}
		}
	}
	for _, tech := range technicians {
		if tech == nil {
			continue
		}
		for companyID := range tech.CompanyIDs {
			t, ok := tallies[companyID]
			if !ok {
				continue
			}
			t.linked++
			if tech.OverallStatus == models.StatusValid {
				t.valid++
			}
		}
	}

	var critical, warning []models.Alert
	for _, c := range companies {
		if c == nil {
			continue
		}
		t := tallies[c.ID]
		if t.linked == 0 {
			continue
		}
		if t.valid == 0 {
			critical = append(critical, models.Alert{
				ID:       NoCompliantID(c.ID),
				Severity: models.SeverityCritical,
				Title:    "No compliant technicians",
				Message:  fmt.Sprintf("%s has %d linked %s and none fully compliant", c.Name, t.linked, plural(t.linked, "technician", "technicians")),
				Count:    t.linked,
				Link:     "/companies/" + c.ID.String(),
			})
		}
		if t.linked >= th.LowComplianceMinTechnicians && t.valid*100 < th.LowCompliancePercent*t.linked {
			warning = append(warning, models.Alert{
				ID:          LowComplianceID(c.ID),
				Severity:    models.SeverityWarning,
				Title:       "Low technician compliance",
				Message:     fmt.Sprintf("%s has %d of %d technicians fully compliant", c.Name, t.valid, t.linked),
				Count:       t.linked - t.valid,
				Link:        "/companies/" + c.ID.String(),
				Dismissable: true,
			})
		}
	}
	return append(critical, warning...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
