package models

import (
	"fmt"

	dErrors "fieldcomply/pkg/domain-errors"
)

// Status is the compliance state of a single credential or of a whole entity.
//
// The set of values is closed: the zero value is not a valid status and every
// exported constant appears in statusTable, which also fixes the severity order
// used when several document states collapse into one entity status.
type Status uint8

const (
	StatusValid Status = iota + 1
	StatusExpiringSoon
	StatusPending
	StatusMissing
	StatusExpired
)

type statusInfo struct {
	name string
	// severity orders statuses from most favorable (0) to least favorable.
	severity int
	// compliant statuses count toward the score numerator.
	compliant bool
}

var statusTable = map[Status]statusInfo{
	StatusValid:        {name: "VALID", severity: 0, compliant: true},
	StatusExpiringSoon: {name: "EXPIRING_SOON", severity: 1, compliant: true},
	StatusPending:      {name: "PENDING", severity: 2},
	StatusMissing:      {name: "MISSING", severity: 3},
	StatusExpired:      {name: "EXPIRED", severity: 4},
}

// AllStatuses lists every status from most to least favorable.
var AllStatuses = []Status{StatusValid, StatusExpiringSoon, StatusPending, StatusMissing, StatusExpired}

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	_, ok := statusTable[s]
	return ok
}

// Severity returns the position of s in the priority order. Invalid statuses
// sort below VALID so they never mask a real condition.
func (s Status) Severity() int {
	if info, ok := statusTable[s]; ok {
		return info.severity
	}
	return -1
}

// Compliant reports whether s counts toward the compliance score.
func (s Status) Compliant() bool {
	return statusTable[s].compliant
}

// Worst returns the least favorable of a and b.
func Worst(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

func (s Status) String() string {
	if info, ok := statusTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus converts the stored representation back to a Status.
func ParseStatus(v string) (Status, error) {
	for s, info := range statusTable {
		if info.name == v {
			return s, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown compliance status: "+v)
}

// MarshalText encodes the status name. The zero value, held by entities that
// have never been evaluated, encodes as an empty string.
func (s Status) MarshalText() ([]byte, error) {
	if s == 0 {
		return []byte{}, nil
	}
	if !s.IsValid() {
		return nil, fmt.Errorf("marshal invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = 0
		return nil
	}
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
