// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding capability interfaces from the
// production code, allowing injection into components under test without real
// browsers, proxies or subprocesses.
package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements interfaces.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Debugs []string
	Infos  []string
	Warns  []string
	Errors []string
}

func (l *DummyLogger) Debug(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...interfaces.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...interfaces.Field) interfaces.Logger { return l }

// WarnCount returns the number of recorded warnings.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Browser ───────────────────────────────────────────────────────────

// DummyBrowser implements interfaces.Browser. Set StartErr or NavigateErr to
// force phase failures; calls are recorded for assertions.
type DummyBrowser struct {
	StartErr    error
	NavigateErr error
	Session     *interfaces.Session

	mu        sync.Mutex
	Started   bool
	Stopped   bool
	Navigated []string
}

func (b *DummyBrowser) Start(ctx context.Context, cfg interfaces.BrowserConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.StartErr != nil {
		return b.StartErr
	}
	b.Started = true
	return nil
}

func (b *DummyBrowser) Navigate(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NavigateErr != nil {
		return b.NavigateErr
	}
	b.Navigated = append(b.Navigated, url)
	return nil
}

func (b *DummyBrowser) CaptureSession(ctx context.Context) (*interfaces.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Session != nil {
		return b.Session, nil
	}
	return &interfaces.Session{}, nil
}

func (b *DummyBrowser) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Stopped = true
	return nil
}

// ─── ScanProxy ─────────────────────────────────────────────────────────

// DummyProxy implements interfaces.ScanProxy. Jobs complete after Ticks
// polls (default: first poll). Errors per operation are injectable.
type DummyProxy struct {
	StartErr      error
	SpiderErr     error
	AjaxErr       error
	ActiveErr     error
	StatusErr     error
	AlertsErr     error
	Ticks         int
	AlertList     []model.Vulnerability
	DiscoveredSet []string

	mu         sync.Mutex
	Started    bool
	Stopped    bool
	jobs       map[string]int
	jobCounter int
	ActiveRuns []string
}

func (p *DummyProxy) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return p.StartErr
	}
	p.Started = true
	return nil
}

func (p *DummyProxy) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stopped = true
	return nil
}

func (p *DummyProxy) newJob() string {
	if p.jobs == nil {
		p.jobs = make(map[string]int)
	}
	p.jobCounter++
	id := "job-" + strconv.Itoa(p.jobCounter)
	p.jobs[id] = 0
	return id
}

func (p *DummyProxy) Spider(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SpiderErr != nil {
		return "", p.SpiderErr
	}
	return p.newJob(), nil
}

func (p *DummyProxy) AjaxSpider(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AjaxErr != nil {
		return "", p.AjaxErr
	}
	return p.newJob(), nil
}

func (p *DummyProxy) ActiveScan(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ActiveErr != nil {
		return "", p.ActiveErr
	}
	p.ActiveRuns = append(p.ActiveRuns, url)
	return p.newJob(), nil
}

func (p *DummyProxy) Status(ctx context.Context, jobID string) (interfaces.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StatusErr != nil {
		return interfaces.JobStatus{}, p.StatusErr
	}
	p.jobs[jobID]++
	if p.jobs[jobID] > p.Ticks {
		return interfaces.JobStatus{Complete: true, Progress: 100}, nil
	}
	return interfaces.JobStatus{Progress: 100 * p.jobs[jobID] / (p.Ticks + 1)}, nil
}

func (p *DummyProxy) Alerts(ctx context.Context) ([]model.Vulnerability, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AlertsErr != nil {
		return nil, p.AlertsErr
	}
	return append([]model.Vulnerability(nil), p.AlertList...), nil
}

func (p *DummyProxy) DiscoveredURLs(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.DiscoveredSet...), nil
}

// ─── TemplateScanner ───────────────────────────────────────────────────

// DummyTemplateScanner implements interfaces.TemplateScanner.
type DummyTemplateScanner struct {
	Findings []model.Vulnerability
	ScanErr  error

	mu          sync.Mutex
	ScannedSets [][]string
	AuthHeaders map[string]string
}

func (d *DummyTemplateScanner) Scan(ctx context.Context, targets []string) ([]model.Vulnerability, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScanErr != nil {
		return nil, d.ScanErr
	}
	d.ScannedSets = append(d.ScannedSets, append([]string(nil), targets...))
	return append([]model.Vulnerability(nil), d.Findings...), nil
}

func (d *DummyTemplateScanner) SetAuthHeaders(headers map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AuthHeaders = headers
}

// ─── AssetDiscoverer ───────────────────────────────────────────────────

// DummyAssetDiscoverer implements interfaces.AssetDiscoverer.
type DummyAssetDiscoverer struct {
	Subdomains []string
	Err        error

	mu      sync.Mutex
	Domains []string
}

func (d *DummyAssetDiscoverer) DiscoverSubdomains(ctx context.Context, domain string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	d.Domains = append(d.Domains, domain)
	return append([]string(nil), d.Subdomains...), nil
}

// ─── Reporter ──────────────────────────────────────────────────────────

// DummyReporter implements interfaces.Reporter.
type DummyReporter struct {
	Err error

	mu   sync.Mutex
	Runs []*model.ScanState
}

func (d *DummyReporter) Generate(ctx context.Context, run *model.ScanState) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return "", d.Err
	}
	d.Runs = append(d.Runs, run)
	return "reports/" + run.ID, nil
}
