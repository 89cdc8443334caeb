package model

// Severity is the severity level of a finding. The values are lowercase
// strings so they can travel unchanged through tool output, the API and
// report artifacts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "informational"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Score returns a numeric rank for ordering and comparison.
// Critical=5, High=4, Medium=3, Low=2, Informational=1, unknown=0.
func (s Severity) Score() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string { return string(s) }

// ParseSeverity normalizes tool-specific severity spellings into the shared
// vocabulary. Unrecognized values map to informational rather than being
// dropped, so a finding never disappears over a label mismatch.
func ParseSeverity(raw string) Severity {
	switch raw {
	case "critical", "Critical", "CRITICAL":
		return SeverityCritical
	case "high", "High", "HIGH":
		return SeverityHigh
	case "medium", "Medium", "MEDIUM":
		return SeverityMedium
	case "low", "Low", "LOW":
		return SeverityLow
	default:
		return SeverityInfo
	}
}
