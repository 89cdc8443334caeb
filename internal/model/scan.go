package model

import "time"

// Phase is one fixed step of the single-target scan pipeline, plus the
// terminal states a run can settle in. The execution order and progress
// weights live in the orchestrator package; this is the shared vocabulary.
type Phase string

const (
	PhasePending        Phase = "pending"
	PhaseBrowserInit    Phase = "browser_init"
	PhaseProxyStart     Phase = "proxy_start"
	PhaseNavigating     Phase = "navigating"
	PhaseSpider         Phase = "spider"
	PhaseAjaxSpider     Phase = "ajax_spider"
	PhaseActiveScan     Phase = "active_scan"
	PhaseNucleiScan     Phase = "nuclei_scan"
	PhaseAssetDiscovery Phase = "asset_discovery"
	PhaseReporting      Phase = "reporting"

	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether p is a terminal state rather than a pipeline step.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// ScanConfig is the immutable input to one pipeline run. The caller builds it
// once; the controller never mutates it after submission.
type ScanConfig struct {
	// Target is the absolute URL the run is scanned against.
	Target string `json:"target" yaml:"target"`

	// SpiderDepth bounds passive link discovery. 0 means the tool default.
	SpiderDepth int `json:"spider_depth,omitempty" yaml:"spider_depth"`

	// AuthHeaders are forwarded to tools that probe authenticated surfaces.
	AuthHeaders map[string]string `json:"auth_headers,omitempty" yaml:"auth_headers"`

	// AjaxSpider enables script-driven discovery on top of the passive spider.
	AjaxSpider bool `json:"ajax_spider" yaml:"ajax_spider"`

	// ActiveScan enables active probing. When false the run is passive-only
	// and the active_scan phase is skipped (its weight is still credited).
	ActiveScan bool `json:"active_scan" yaml:"active_scan"`

	// AssetDiscovery enables subdomain/asset enumeration.
	AssetDiscovery bool `json:"asset_discovery" yaml:"asset_discovery"`

	// AIEnrichment is forwarded to the report capability; the coordination
	// layer itself does not act on it.
	AIEnrichment bool `json:"ai_enrichment" yaml:"ai_enrichment"`

	// Headless controls the browser capability's window mode.
	Headless bool `json:"headless" yaml:"headless"`

	// PollInterval overrides the status-poll cadence for tool-driven
	// sub-scans. 0 means the controller default.
	PollInterval time.Duration `json:"poll_interval,omitempty" yaml:"poll_interval"`
}

// ScanError is a tagged error record appended to a run's error list.
// Entries are never removed.
type ScanError struct {
	// Code is a stable machine-readable identifier.
	Code string `json:"code"`

	Message string `json:"message"`

	// Phase the error occurred in.
	Phase Phase `json:"phase"`

	// Recoverable marks whether the pipeline continued past this error.
	Recoverable bool `json:"recoverable"`

	// Remediation is an optional hint for the operator.
	Remediation string `json:"remediation,omitempty"`
}

func (e ScanError) Error() string {
	return string(e.Phase) + ": " + e.Message
}

// ScanState is the mutable record of one pipeline run. It is owned exclusively
// by the controller for the duration of the run; observers only ever see
// copies taken under the controller's lock.
type ScanState struct {
	ID string `json:"id"`

	// Target echoes the scanned URL so a run record is self-contained.
	Target string `json:"target"`

	Phase Phase `json:"phase"`

	// Progress is cumulative, 0-100, non-decreasing, and reaches exactly 100
	// on every terminal outcome.
	Progress int `json:"progress"`

	CurrentURL string `json:"current_url,omitempty"`

	URLsDiscovered int `json:"urls_discovered"`
	AlertsFound    int `json:"alerts_found"`
	NucleiFindings int `json:"nuclei_findings"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Errors          []ScanError     `json:"errors,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (s *ScanState) Clone() *ScanState {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	out.Errors = append([]ScanError(nil), s.Errors...)
	out.Vulnerabilities = append([]Vulnerability(nil), s.Vulnerabilities...)
	return &out
}

// Succeeded reports whether the run reached completed without a
// non-recoverable failure.
func (s *ScanState) Succeeded() bool {
	return s.Phase == PhaseCompleted
}
