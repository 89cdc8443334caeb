// Package app wires the scan tooling into running controllers and owns their
// lifecycles. There is no global state; everything hangs off an Application
// built by New.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sentinelscan/sentinelscan/internal/assetdiscovery"
	"github.com/sentinelscan/sentinelscan/internal/browser"
	"github.com/sentinelscan/sentinelscan/internal/bulk"
	"github.com/sentinelscan/sentinelscan/internal/history"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/nucleirunner"
	"github.com/sentinelscan/sentinelscan/internal/orchestrator"
	"github.com/sentinelscan/sentinelscan/internal/report"
	"github.com/sentinelscan/sentinelscan/internal/zapclient"
)

var (
	ErrScanNotFound = errors.New("scan not found")
	ErrBulkNotFound = errors.New("bulk scan not found")
)

// Application owns the toolset factory, the run archive and every live scan
// controller. Controllers are one-shot; the Application keeps them addressable
// by ID after they finish so results stay queryable.
type Application struct {
	cfg     *Config
	logger  logging.Logger
	archive *history.Archive
	factory orchestrator.ToolsetFactory

	mu    sync.Mutex
	scans map[string]*orchestrator.Orchestrator
	bulks map[string]*bulk.Scheduler
}

// Option customizes an Application.
type Option func(*Application)

// WithToolsetFactory replaces the real tool wiring, mainly for tests.
func WithToolsetFactory(f orchestrator.ToolsetFactory) Option {
	return func(a *Application) { a.factory = f }
}

// New builds an Application from cfg. The storage root is created if missing.
func New(cfg *Config, logger logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	root, err := expandPath(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("expand storage root: %w", err)
	}
	cfg.StorageRoot = root
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	archive, err := history.New(filepath.Join(root, "history"), logger)
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}

	a := &Application{
		cfg:     cfg,
		logger:  logger,
		archive: archive,
		scans:   map[string]*orchestrator.Orchestrator{},
		bulks:   map[string]*bulk.Scheduler{},
	}
	a.factory = orchestrator.ToolsetFactoryFunc(a.newToolset)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// newToolset builds one isolated set of real tool capabilities.
func (a *Application) newToolset(ctx context.Context) (*orchestrator.Toolset, error) {
	nucleiOpts := []nucleirunner.Option{nucleirunner.WithBinary(a.cfg.Nuclei.Binary)}
	if a.cfg.Nuclei.Severity != "" {
		nucleiOpts = append(nucleiOpts, nucleirunner.WithSeverityFilter(a.cfg.Nuclei.Severity))
	}
	if a.cfg.Nuclei.RateLimit > 0 {
		nucleiOpts = append(nucleiOpts, nucleirunner.WithRateLimit(a.cfg.Nuclei.RateLimit))
	}

	return &orchestrator.Toolset{
		Browser:   browser.NewChrome(a.logger),
		Proxy:     zapclient.New(a.cfg.ZAP.Addr, a.cfg.ZAP.APIKey, nil, a.logger),
		Templates: nucleirunner.New(a.logger, nucleiOpts...),
		Assets:    assetdiscovery.New(a.logger, assetdiscovery.WithBinary(a.cfg.Subfinder.Binary)),
		Reporter:  report.New(filepath.Join(a.cfg.StorageRoot, "reports"), a.logger),
	}, nil
}

func (a *Application) orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		PollInterval: a.cfg.Scan.PollInterval,
		ProxyAddr:    a.cfg.ProxyAddr(),
	}
}

// StartScan launches a single-target run and returns its run ID. The run is
// archived once it settles.
func (a *Application) StartScan(ctx context.Context, scanCfg model.ScanConfig) (string, error) {
	tools, err := a.factory.NewToolset(ctx)
	if err != nil {
		return "", fmt.Errorf("build toolset: %w", err)
	}

	orch := orchestrator.New(tools, a.logger, a.orchestratorConfig())
	runID, err := orch.Start(context.WithoutCancel(ctx), scanCfg)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.scans[runID] = orch
	a.mu.Unlock()

	go func() {
		<-orch.Done()
		if err := a.archive.ArchiveRun(context.Background(), orch.State()); err != nil {
			a.logger.Warn("archiving run failed",
				logging.Field{Key: "run_id", Value: runID},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	return runID, nil
}

// ScanState returns a snapshot of the run, live or finished.
func (a *Application) ScanState(runID string) (*model.ScanState, error) {
	orch, err := a.scan(runID)
	if err != nil {
		return nil, err
	}
	return orch.State(), nil
}

// ScanEvents returns the run's event stream. The channel closes when the run
// settles.
func (a *Application) ScanEvents(runID string) (<-chan model.ScanEvent, error) {
	orch, err := a.scan(runID)
	if err != nil {
		return nil, err
	}
	return orch.Events(), nil
}

// CancelScan requests cancellation of a live run.
func (a *Application) CancelScan(runID string) error {
	orch, err := a.scan(runID)
	if err != nil {
		return err
	}
	orch.Cancel()
	return nil
}

// ListScans snapshots every run the Application knows about.
func (a *Application) ListScans() []*model.ScanState {
	a.mu.Lock()
	orchs := make([]*orchestrator.Orchestrator, 0, len(a.scans))
	for _, orch := range a.scans {
		orchs = append(orchs, orch)
	}
	a.mu.Unlock()

	out := make([]*model.ScanState, 0, len(orchs))
	for _, orch := range orchs {
		out = append(out, orch.State())
	}
	return out
}

func (a *Application) scan(runID string) (*orchestrator.Orchestrator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	orch, ok := a.scans[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrScanNotFound)
	}
	return orch, nil
}

// StartBulkScan launches a batch and returns its bulk ID.
func (a *Application) StartBulkScan(ctx context.Context, bulkCfg model.BulkScanConfig) (string, error) {
	sched := bulk.NewScheduler(a.factory, a.logger, bulk.Config{
		Orchestrator: a.orchestratorConfig(),
	})

	bulkID, err := sched.StartBulkScan(context.WithoutCancel(ctx), bulkCfg)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.bulks[bulkID] = sched
	a.mu.Unlock()
	return bulkID, nil
}

// PauseBulkScan stops admitting new batch items; running ones finish.
func (a *Application) PauseBulkScan(bulkID string) error {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return err
	}
	sched.PauseBulkScan()
	return nil
}

// ResumeBulkScan reopens admission after a pause.
func (a *Application) ResumeBulkScan(bulkID string) error {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return err
	}
	sched.ResumeBulkScan()
	return nil
}

// CancelBulkScan cancels in-flight items and marks pending ones cancelled.
func (a *Application) CancelBulkScan(bulkID string) error {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return err
	}
	sched.CancelBulkScan()
	return nil
}

// BulkStatus snapshots the batch queue.
func (a *Application) BulkStatus(bulkID string) ([]model.ScanQueueItem, error) {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return nil, err
	}
	return sched.QueueStatus(), nil
}

// BulkSummary returns the final summary, or nil while the batch is running.
func (a *Application) BulkSummary(bulkID string) (*model.BulkSummary, error) {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return nil, err
	}
	return sched.Summary(), nil
}

// BulkEvents returns the batch's event stream.
func (a *Application) BulkEvents(bulkID string) (<-chan model.BulkEvent, error) {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return nil, err
	}
	return sched.Events(), nil
}

// ExportBulkResults serializes the finished batch as JSON.
func (a *Application) ExportBulkResults(bulkID string) ([]byte, error) {
	sched, err := a.bulkScheduler(bulkID)
	if err != nil {
		return nil, err
	}
	return sched.ExportResults()
}

func (a *Application) bulkScheduler(bulkID string) (*bulk.Scheduler, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sched, ok := a.bulks[bulkID]
	if !ok {
		return nil, fmt.Errorf("bulk %s: %w", bulkID, ErrBulkNotFound)
	}
	return sched, nil
}

// History exposes the run archive for queries over past runs.
func (a *Application) History() *history.Archive {
	return a.archive
}

// Close cancels live work and releases resources.
func (a *Application) Close() {
	a.mu.Lock()
	scans := make([]*orchestrator.Orchestrator, 0, len(a.scans))
	for _, orch := range a.scans {
		scans = append(scans, orch)
	}
	bulks := make([]*bulk.Scheduler, 0, len(a.bulks))
	for _, sched := range a.bulks {
		bulks = append(bulks, sched)
	}
	a.mu.Unlock()

	for _, sched := range bulks {
		sched.CancelBulkScan()
	}
	for _, orch := range scans {
		orch.Cancel()
	}
	if err := a.archive.Close(); err != nil {
		a.logger.Warn("closing archive", logging.Field{Key: "error", Value: err.Error()})
	}
}
