package interfaces

import (
	"context"

	"github.com/sentinelscan/sentinelscan/internal/model"
)

// The scan coordination layer consumes the surrounding tools exclusively
// through the narrow contracts below. Implementations are injected at
// construction time and are never reassigned while a run is active. When a
// batch runs multiple items concurrently, each item gets its own isolated set
// of instances; sharing a browser or proxy across concurrent runs is not
// supported.

// BrowserConfig carries the options a run hands to the browser capability.
type BrowserConfig struct {
	// Headless controls the window mode.
	Headless bool

	// ProxyAddr routes browser traffic through the intercepting scan proxy.
	ProxyAddr string

	// UserAgent overrides the browser's user agent when non-empty.
	UserAgent string
}

// Session is the authenticated browser state captured after navigation, for
// forwarding to tools that probe authenticated surfaces.
type Session struct {
	Cookies map[string]string
	Headers map[string]string
}

// Browser is a controllable browser/session.
type Browser interface {
	Start(ctx context.Context, cfg BrowserConfig) error
	Navigate(ctx context.Context, url string) error
	CaptureSession(ctx context.Context) (*Session, error)
	Stop() error
}

// JobStatus is the progress of one asynchronous proxy job.
type JobStatus struct {
	Complete bool
	Progress int // 0-100
}

// ScanProxy is the intercepting scan proxy. Spider, AjaxSpider and ActiveScan
// start asynchronous jobs identified by the returned job ID; callers poll
// Status until Complete.
type ScanProxy interface {
	Start(ctx context.Context) error
	Stop() error

	Spider(ctx context.Context, url string) (jobID string, err error)
	AjaxSpider(ctx context.Context, url string) (jobID string, err error)
	ActiveScan(ctx context.Context, url string) (jobID string, err error)
	Status(ctx context.Context, jobID string) (JobStatus, error)

	Alerts(ctx context.Context) ([]model.Vulnerability, error)
	DiscoveredURLs(ctx context.Context) ([]string, error)
}

// TemplateScanner runs template-based checks against a set of URLs.
type TemplateScanner interface {
	Scan(ctx context.Context, targets []string) ([]model.Vulnerability, error)

	// SetAuthHeaders configures headers attached to every templated request.
	SetAuthHeaders(headers map[string]string)
}

// AssetDiscoverer enumerates subdomains/assets of a registered domain.
type AssetDiscoverer interface {
	DiscoverSubdomains(ctx context.Context, domain string) ([]string, error)
}

// Reporter persists a terminal run record into durable report artifacts.
// The run record carries the run ID and every finding the renderer needs.
// It returns a reference to the produced artifact (a path or URL).
type Reporter interface {
	Generate(ctx context.Context, run *model.ScanState) (string, error)
}
