package cache

import (
	"fmt"
	"strings"
	"time"

	id "fieldcomply/pkg/domain"
)

// TTLClass buckets cached data by volatility. Credential-derived data uses the
// shortest class, catalog-like data the longest.
type TTLClass int

const (
	Realtime TTLClass = iota
	Short
	Standard
	Long
)

var ttlClassNames = map[TTLClass]string{
	Realtime: "realtime",
	Short:    "short",
	Standard: "standard",
	Long:     "long",
}

func (c TTLClass) String() string {
	if name, ok := ttlClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("TTLClass(%d)", int(c))
}

// DefaultTTLs are the freshness tiers used when no configuration overrides them.
var DefaultTTLs = map[TTLClass]time.Duration{
	Realtime: 1 * time.Minute,
	Short:    5 * time.Minute,
	Standard: 15 * time.Minute,
	Long:     30 * time.Minute,
}

// Cache keys. Patterns ending in "*" in the invalidation graph match by prefix.
const (
	KeyTechnicians   = "technicians"
	KeyCompanies     = "companies"
	KeyDocumentTypes = "document-types"
	KeyBranchStats   = "branch-stats"

	PrefixTechnician = "technician:"
	PrefixCompany    = "company:"

	matchAll = "*"
)

// TechnicianKey is the per-technician detail key.
func TechnicianKey(techID id.TechnicianID) string {
	return PrefixTechnician + techID.String()
}

// TechnicianRequirementsKey caches a technician's resolved requirement set.
func TechnicianRequirementsKey(techID id.TechnicianID) string {
	return PrefixTechnician + techID.String() + ":requirements"
}

// CompanyKey is the per-company detail key.
func CompanyKey(companyID id.CompanyID) string {
	return PrefixCompany + companyID.String()
}

func matches(pattern, key string) bool {
	if pattern == matchAll {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
