// Package orchestrator drives one scan of one target through the ordered,
// weighted phase pipeline, invoking the injected tool capabilities per phase
// and emitting progress, vulnerability and error events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/targets"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultEventBuffer  = 64
)

// Config holds the controller's own knobs, as opposed to the per-run
// model.ScanConfig supplied at Start.
type Config struct {
	// PollInterval is the status-poll cadence for tool-driven sub-scans.
	PollInterval time.Duration

	// ProxyAddr is handed to the browser capability so its traffic is routed
	// through the intercepting scan proxy.
	ProxyAddr string

	// EventBuffer sizes the event channel. Sends never block; events beyond
	// the buffer are dropped, and observers needing authoritative results
	// read State after Done.
	EventBuffer int
}

// Orchestrator executes a single pipeline run. Construct one per run; a
// second Start on the same instance is rejected with ErrAlreadyRunning.
type Orchestrator struct {
	cfg    Config
	tools  *Toolset
	logger logging.Logger

	mu         sync.Mutex
	state      *model.ScanState
	scanCfg    *model.ScanConfig
	cancel     context.CancelFunc
	started    bool
	seenAlerts map[string]struct{}
	sessionHdr map[string]string

	events chan model.ScanEvent
	done   chan struct{}
}

// New creates a controller bound to an isolated toolset.
func New(tools *Toolset, logger logging.Logger, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Orchestrator{
		cfg:        cfg,
		tools:      tools,
		logger:     logger,
		seenAlerts: make(map[string]struct{}),
		events:     make(chan model.ScanEvent, cfg.EventBuffer),
		done:       make(chan struct{}),
	}
}

// Start begins the run and returns its ID. The pipeline executes in a
// background goroutine; observe it via Events, Done and State.
func (o *Orchestrator) Start(ctx context.Context, cfg model.ScanConfig) (string, error) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return "", model.ErrAlreadyRunning
	}
	if o.tools == nil {
		o.mu.Unlock()
		return "", fmt.Errorf("toolset: %w", model.ErrCapabilityUnavailable)
	}
	if cfg.Target == "" {
		o.mu.Unlock()
		return "", model.ErrNoValidTargets
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)

	o.started = true
	o.cancel = cancel
	o.scanCfg = &cfg
	o.state = &model.ScanState{
		ID:        runID,
		Target:    cfg.Target,
		Phase:     model.PhasePending,
		StartedAt: time.Now().UTC(),
	}
	o.mu.Unlock()

	o.logger.Info("scan run starting",
		logging.Field{Key: "run_id", Value: runID},
		logging.Field{Key: "target", Value: cfg.Target})

	o.emit(model.ScanEvent{RunID: runID, Kind: model.EventStarted, Message: cfg.Target})

	go o.execute(runCtx)

	return runID, nil
}

// Cancel requests cancellation. The underlying tool capabilities are asked to
// stop synchronously so no subprocess or connection is left dangling; the run
// then settles into the cancelled terminal state.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	o.stopTools()
}

// State returns a copy of the run record, or nil before Start.
func (o *Orchestrator) State() *model.ScanState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Events is the run's notification stream. It is closed after the terminal
// event has been emitted.
func (o *Orchestrator) Events() <-chan model.ScanEvent {
	return o.events
}

// Done is closed once the run has reached a terminal state.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// execute walks the phase table in order. Each phase's weight is credited
// fully before the next phase begins; recoverable failures are downgraded to
// warnings and the weight is still credited, so progress reaches exactly 100
// on every terminal outcome.
func (o *Orchestrator) execute(ctx context.Context) {
	base := 0

	for _, step := range pipeline {
		if ctx.Err() != nil {
			o.finish(model.PhaseCancelled)
			return
		}

		if step.skip != nil {
			if skip, reason := step.skip(o.scanCfg); skip {
				base += step.weight
				o.setProgress(base)
				o.emitProgress(step.phase, base, "skipped: "+reason)
				continue
			}
		}

		o.setPhase(step.phase)
		o.emitProgress(step.phase, base, "phase started")

		err := step.run(o, ctx)
		if err != nil {
			if ctx.Err() != nil {
				o.finish(model.PhaseCancelled)
				return
			}

			scanErr := o.recordError(step, err)
			if !step.recoverable {
				o.emit(model.ScanEvent{
					RunID: o.runID(),
					Kind:  model.EventError,
					Phase: step.phase,
					Err:   &scanErr,
				})
				o.finish(model.PhaseFailed)
				return
			}

			o.logger.Warn("recoverable phase failure, continuing",
				logging.Field{Key: "run_id", Value: o.runID()},
				logging.Field{Key: "phase", Value: string(step.phase)},
				logging.Field{Key: "error", Value: err.Error()})
			o.emit(model.ScanEvent{
				RunID: o.runID(),
				Kind:  model.EventWarning,
				Phase: step.phase,
				Err:   &scanErr,
			})
		}

		base += step.weight
		o.setProgress(base)
		msg := "phase complete"
		if err != nil {
			msg = "phase weight credited after recoverable failure"
		}
		o.emitProgress(step.phase, base, msg)
	}

	o.finish(model.PhaseCompleted)
}

// finish settles the run into a terminal state, forces progress to 100,
// releases the tool capabilities and emits the terminal event.
func (o *Orchestrator) finish(terminal model.Phase) {
	o.stopTools()

	o.mu.Lock()
	now := time.Now().UTC()
	o.state.Phase = terminal
	o.state.Progress = 100
	o.state.EndedAt = &now
	runID := o.state.ID
	errs := append([]model.ScanError(nil), o.state.Errors...)
	o.mu.Unlock()

	o.logger.Info("scan run finished",
		logging.Field{Key: "run_id", Value: runID},
		logging.Field{Key: "state", Value: string(terminal)},
		logging.Field{Key: "errors", Value: len(errs)})

	o.emit(model.ScanEvent{
		RunID:    runID,
		Kind:     model.EventCompleted,
		Phase:    terminal,
		Progress: 100,
		Success:  terminal == model.PhaseCompleted,
		Errors:   errs,
	})

	close(o.events)
	close(o.done)
}

// stopTools asks the browser and proxy to shut down. Both stops are expected
// to be idempotent; errors are logged and otherwise ignored.
func (o *Orchestrator) stopTools() {
	if o.tools == nil {
		return
	}
	if o.tools.Browser != nil {
		if err := o.tools.Browser.Stop(); err != nil {
			o.logger.Warn("stopping browser", logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if o.tools.Proxy != nil {
		if err := o.tools.Proxy.Stop(); err != nil {
			o.logger.Warn("stopping scan proxy", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// ─── phase implementations ─────────────────────────────────────────────

func (o *Orchestrator) runBrowserInit(ctx context.Context) error {
	if o.tools.Browser == nil {
		return fmt.Errorf("browser: %w", model.ErrCapabilityUnavailable)
	}
	return o.tools.Browser.Start(ctx, interfaces.BrowserConfig{
		Headless:  o.scanCfg.Headless,
		ProxyAddr: o.cfg.ProxyAddr,
	})
}

func (o *Orchestrator) runProxyStart(ctx context.Context) error {
	if o.tools.Proxy == nil {
		return fmt.Errorf("scan proxy: %w", model.ErrCapabilityUnavailable)
	}
	return o.tools.Proxy.Start(ctx)
}

func (o *Orchestrator) runNavigate(ctx context.Context) error {
	if o.tools.Browser == nil {
		return fmt.Errorf("browser: %w", model.ErrCapabilityUnavailable)
	}

	target := o.scanCfg.Target
	o.mu.Lock()
	o.state.CurrentURL = target
	o.mu.Unlock()

	if err := o.tools.Browser.Navigate(ctx, target); err != nil {
		return err
	}

	// Session capture is best-effort; a target without cookies is still a
	// perfectly scannable target.
	session, err := o.tools.Browser.CaptureSession(ctx)
	if err != nil {
		o.logger.Warn("capturing browser session",
			logging.Field{Key: "run_id", Value: o.runID()},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	o.mu.Lock()
	o.sessionHdr = sessionHeaders(session, o.scanCfg.AuthHeaders)
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) runSpider(ctx context.Context) error {
	return o.runProxyJob(ctx, model.PhaseSpider, func(ctx context.Context) (string, error) {
		return o.tools.Proxy.Spider(ctx, o.scanCfg.Target)
	})
}

func (o *Orchestrator) runAjaxSpider(ctx context.Context) error {
	return o.runProxyJob(ctx, model.PhaseAjaxSpider, func(ctx context.Context) (string, error) {
		return o.tools.Proxy.AjaxSpider(ctx, o.scanCfg.Target)
	})
}

func (o *Orchestrator) runActiveScan(ctx context.Context) error {
	return o.runProxyJob(ctx, model.PhaseActiveScan, func(ctx context.Context) (string, error) {
		return o.tools.Proxy.ActiveScan(ctx, o.scanCfg.Target)
	})
}

// runProxyJob starts an asynchronous proxy job, polls it to completion and
// harvests new alerts and discovered URLs afterwards.
func (o *Orchestrator) runProxyJob(ctx context.Context, phase model.Phase, start func(ctx context.Context) (string, error)) error {
	if o.tools.Proxy == nil {
		return fmt.Errorf("scan proxy: %w", model.ErrCapabilityUnavailable)
	}

	jobID, err := start(ctx)
	if err != nil {
		return err
	}

	if err := o.pollJob(ctx, phase, jobID); err != nil {
		return err
	}

	if urls, err := o.tools.Proxy.DiscoveredURLs(ctx); err == nil {
		o.mu.Lock()
		if len(urls) > o.state.URLsDiscovered {
			o.state.URLsDiscovered = len(urls)
		}
		o.mu.Unlock()
	}

	return o.collectAlerts(ctx, phase)
}

// pollJob polls the proxy for phase completion on a fixed interval, mapping
// the job's own 0-100 progress linearly into this phase's progress span.
func (o *Orchestrator) pollJob(ctx context.Context, phase model.Phase, jobID string) error {
	interval := o.cfg.PollInterval
	if o.scanCfg.PollInterval > 0 {
		interval = o.scanCfg.PollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := o.tools.Proxy.Status(ctx, jobID)
			if err != nil {
				return fmt.Errorf("poll %s job %s: %w", phase, jobID, err)
			}
			o.subProgress(phase, status.Progress)
			if status.Complete {
				return nil
			}
		}
	}
}

// collectAlerts pulls the proxy's alert list, keeps only alerts not yet seen
// this run and publishes them.
func (o *Orchestrator) collectAlerts(ctx context.Context, phase model.Phase) error {
	alerts, err := o.tools.Proxy.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("fetch alerts: %w", err)
	}

	var fresh []model.Vulnerability
	o.mu.Lock()
	for _, alert := range alerts {
		key := alert.Tool + "/" + alert.ID
		if _, seen := o.seenAlerts[key]; seen {
			continue
		}
		o.seenAlerts[key] = struct{}{}
		fresh = append(fresh, alert)
	}
	o.state.Vulnerabilities = append(o.state.Vulnerabilities, fresh...)
	o.state.AlertsFound = len(o.seenAlerts)
	runID := o.state.ID
	o.mu.Unlock()

	if len(fresh) > 0 {
		o.emit(model.ScanEvent{
			RunID:           runID,
			Kind:            model.EventVulnerabilities,
			Phase:           phase,
			Vulnerabilities: fresh,
		})
	}
	return nil
}

func (o *Orchestrator) runNucleiScan(ctx context.Context) error {
	if o.tools.Templates == nil {
		return fmt.Errorf("template scanner: %w", model.ErrCapabilityUnavailable)
	}

	seeds := []string{o.scanCfg.Target}
	if o.tools.Proxy != nil {
		if urls, err := o.tools.Proxy.DiscoveredURLs(ctx); err == nil {
			seeds = append(seeds, urls...)
		}
	}
	seeds = dedupe(seeds)

	o.mu.Lock()
	headers := o.sessionHdr
	o.mu.Unlock()
	if len(headers) > 0 {
		o.tools.Templates.SetAuthHeaders(headers)
	} else if len(o.scanCfg.AuthHeaders) > 0 {
		o.tools.Templates.SetAuthHeaders(o.scanCfg.AuthHeaders)
	}

	findings, err := o.tools.Templates.Scan(ctx, seeds)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.Vulnerabilities = append(o.state.Vulnerabilities, findings...)
	o.state.NucleiFindings += len(findings)
	runID := o.state.ID
	o.mu.Unlock()

	if len(findings) > 0 {
		o.emit(model.ScanEvent{
			RunID:           runID,
			Kind:            model.EventVulnerabilities,
			Phase:           model.PhaseNucleiScan,
			Vulnerabilities: findings,
		})
	}
	return nil
}

func (o *Orchestrator) runAssetDiscovery(ctx context.Context) error {
	if o.tools.Assets == nil {
		return fmt.Errorf("asset discovery: %w", model.ErrCapabilityUnavailable)
	}

	host, err := targets.Host(o.scanCfg.Target)
	if err != nil {
		return err
	}

	assets, err := o.tools.Assets.DiscoverSubdomains(ctx, host)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.URLsDiscovered += len(assets)
	o.mu.Unlock()

	o.logger.Info("asset discovery finished",
		logging.Field{Key: "run_id", Value: o.runID()},
		logging.Field{Key: "domain", Value: host},
		logging.Field{Key: "assets", Value: len(assets)})
	return nil
}

func (o *Orchestrator) runReporting(ctx context.Context) error {
	if o.tools.Reporter == nil {
		return fmt.Errorf("reporter: %w", model.ErrCapabilityUnavailable)
	}

	artifact, err := o.tools.Reporter.Generate(ctx, o.State())
	if err != nil {
		return err
	}
	o.logger.Info("report generated",
		logging.Field{Key: "run_id", Value: o.runID()},
		logging.Field{Key: "artifact", Value: artifact})
	return nil
}

// ─── bookkeeping ───────────────────────────────────────────────────────

func (o *Orchestrator) runID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.ID
}

func (o *Orchestrator) setPhase(phase model.Phase) {
	o.mu.Lock()
	o.state.Phase = phase
	o.mu.Unlock()
}

// setProgress raises cumulative progress. Decreases are ignored so progress
// stays monotone no matter what a tool reports.
func (o *Orchestrator) setProgress(progress int) {
	o.mu.Lock()
	if progress > o.state.Progress {
		o.state.Progress = progress
	}
	o.mu.Unlock()
}

// subProgress maps a phase's own 0-100 progress into the phase's span of the
// cumulative scale and emits a progress event.
func (o *Orchestrator) subProgress(phase model.Phase, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	base := 0
	for _, step := range pipeline {
		if step.phase == phase {
			progress := base + step.weight*pct/100
			o.setProgress(progress)
			o.emitProgress(phase, o.progress(), "")
			return
		}
		base += step.weight
	}
}

func (o *Orchestrator) progress() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Progress
}

// recordError appends a tagged ScanError to the run record and returns it.
func (o *Orchestrator) recordError(step phaseStep, err error) model.ScanError {
	code := string(step.phase) + "_failed"
	if errors.Is(err, model.ErrCapabilityUnavailable) {
		code = "capability_unavailable"
	}

	scanErr := model.ScanError{
		Code:        code,
		Message:     err.Error(),
		Phase:       step.phase,
		Recoverable: step.recoverable,
		Remediation: step.remediation,
	}

	o.mu.Lock()
	o.state.Errors = append(o.state.Errors, scanErr)
	o.mu.Unlock()
	return scanErr
}

func (o *Orchestrator) emitProgress(phase model.Phase, progress int, message string) {
	o.emit(model.ScanEvent{
		RunID:    o.runID(),
		Kind:     model.EventProgress,
		Phase:    phase,
		Progress: progress,
		Message:  message,
	})
}

// emit delivers an event without blocking; when the buffer is full the event
// is dropped. Terminal results are always available through State.
func (o *Orchestrator) emit(ev model.ScanEvent) {
	ev.Time = time.Now().UTC()
	select {
	case o.events <- ev:
	default:
	}
}

func sessionHeaders(session *interfaces.Session, auth map[string]string) map[string]string {
	headers := make(map[string]string)
	if session != nil {
		for k, v := range session.Headers {
			headers[k] = v
		}
		if len(session.Cookies) > 0 {
			cookie := ""
			for k, v := range session.Cookies {
				if cookie != "" {
					cookie += "; "
				}
				cookie += k + "=" + v
			}
			headers["Cookie"] = cookie
		}
	}
	for k, v := range auth {
		headers[k] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
