package model

// Vulnerability is a single finding produced by a tool capability. The
// coordination layer passes these through unmodified: it accumulates them into
// per-run and per-batch result sets but never rewrites their content.
type Vulnerability struct {
	// ID is unique within the producing tool's output for one run.
	ID string `json:"id"`

	// Tool names the capability that produced the finding (e.g. "zap", "nuclei").
	Tool string `json:"tool"`

	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity"`

	// Confidence is the tool's own confidence label, passed through verbatim.
	Confidence string `json:"confidence,omitempty"`

	// Location of the finding.
	URL       string `json:"url"`
	Method    string `json:"method,omitempty"`
	Parameter string `json:"parameter,omitempty"`

	Evidence    string `json:"evidence,omitempty"`
	Remediation string `json:"remediation,omitempty"`
	CWE         string `json:"cwe,omitempty"`
}

// CountBySeverity tallies vulnerabilities per severity level.
func CountBySeverity(vulns []Vulnerability) map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range vulns {
		counts[v.Severity]++
	}
	return counts
}
