package models

// Severity ranks organization alerts. Lower rank sorts first.
type Severity uint8

const (
	SeverityCritical Severity = iota + 1
	SeverityWarning
	SeverityInfo
)

var severityNames = map[Severity]string{
	SeverityCritical: "CRITICAL",
	SeverityWarning:  "WARNING",
	SeverityInfo:     "INFO",
}

// Rank orders severities CRITICAL < WARNING < INFO; unknown values sort last.
func (s Severity) Rank() int {
	if _, ok := severityNames[s]; !ok {
		return int(SeverityInfo) + 1
	}
	return int(s)
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Alert is an organization-level notice derived from resolved compliance state.
type Alert struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Count       int      `json:"count"`
	Link        string   `json:"link,omitempty"`
	Dismissable bool     `json:"dismissable"`
}
