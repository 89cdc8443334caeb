package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/testutil"
)

func testToolset() (*Toolset, *testutil.DummyBrowser, *testutil.DummyProxy, *testutil.DummyTemplateScanner) {
	browser := &testutil.DummyBrowser{}
	proxy := &testutil.DummyProxy{}
	templates := &testutil.DummyTemplateScanner{}
	tools := &Toolset{
		Browser:   browser,
		Proxy:     proxy,
		Templates: templates,
		Assets:    &testutil.DummyAssetDiscoverer{},
		Reporter:  &testutil.DummyReporter{},
	}
	return tools, browser, proxy, templates
}

func newTestOrchestrator(t *testing.T, tools *Toolset) *Orchestrator {
	t.Helper()
	return New(tools, &testutil.DummyLogger{}, Config{PollInterval: time.Millisecond})
}

func waitDone(t *testing.T, o *Orchestrator) *model.ScanState {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not terminate")
	}
	return o.State()
}

func baseConfig() model.ScanConfig {
	return model.ScanConfig{
		Target:         "https://example.com",
		AjaxSpider:     true,
		ActiveScan:     true,
		AssetDiscovery: true,
	}
}

func TestPhaseWeightsSumTo100(t *testing.T) {
	if got := TotalWeight(); got != 100 {
		t.Fatalf("phase weights sum to %d, want 100", got)
	}
}

func TestCompletedRunReachesFullProgress(t *testing.T) {
	tools, browser, proxy, _ := testToolset()
	proxy.AlertList = []model.Vulnerability{
		{ID: "1", Tool: "proxy", Name: "X-Frame-Options missing", Severity: model.SeverityLow, URL: "https://example.com"},
	}

	o := newTestOrchestrator(t, tools)
	runID, err := o.Start(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	state := waitDone(t, o)
	if state.ID != runID {
		t.Errorf("state ID = %q, want %q", state.ID, runID)
	}
	if state.Phase != model.PhaseCompleted {
		t.Errorf("phase = %s, want completed", state.Phase)
	}
	if state.Progress != 100 {
		t.Errorf("progress = %d, want 100", state.Progress)
	}
	if len(state.Vulnerabilities) != 1 {
		t.Errorf("vulnerabilities = %d, want 1", len(state.Vulnerabilities))
	}
	if !browser.Started || !browser.Stopped {
		t.Error("browser should be started and stopped")
	}
	if state.EndedAt == nil {
		t.Error("EndedAt should be set on a terminal run")
	}
}

func TestStartTwiceRejected(t *testing.T) {
	tools, _, _, _ := testToolset()
	o := newTestOrchestrator(t, tools)
	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := o.Start(context.Background(), baseConfig()); !errors.Is(err, model.ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
	waitDone(t, o)
}

func TestPassiveOnlySkipsActiveScan(t *testing.T) {
	tools, _, proxy, _ := testToolset()
	cfg := baseConfig()
	cfg.ActiveScan = false

	o := newTestOrchestrator(t, tools)

	// Drain events while watching for an active_scan skip notice.
	sawSkip := false
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range o.Events() {
			if ev.Kind == model.EventProgress && ev.Phase == model.PhaseActiveScan && ev.Message != "" {
				sawSkip = true
			}
		}
	}()

	if _, err := o.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state := waitDone(t, o)
	<-drained

	if state.Phase != model.PhaseCompleted || state.Progress != 100 {
		t.Fatalf("state = %s/%d, want completed/100", state.Phase, state.Progress)
	}
	if len(proxy.ActiveRuns) != 0 {
		t.Errorf("active scan invoked %d times, want 0", len(proxy.ActiveRuns))
	}
	if !sawSkip {
		t.Error("expected a progress event explaining the active_scan skip")
	}
}

func TestRecoverablePhaseFailureContinues(t *testing.T) {
	tools, _, proxy, _ := testToolset()
	proxy.SpiderErr = errors.New("spider exploded")

	o := newTestOrchestrator(t, tools)

	warnings := 0
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range o.Events() {
			if ev.Kind == model.EventWarning {
				warnings++
			}
		}
	}()

	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state := waitDone(t, o)
	<-drained

	if state.Phase != model.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.Phase)
	}
	if state.Progress != 100 {
		t.Errorf("progress = %d, want 100", state.Progress)
	}
	if warnings == 0 {
		t.Error("expected at least one warning event")
	}
	if len(state.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(state.Errors))
	}
	if !state.Errors[0].Recoverable || state.Errors[0].Phase != model.PhaseSpider {
		t.Errorf("unexpected error record: %+v", state.Errors[0])
	}
	if state.Errors[0].Remediation == "" {
		t.Error("error should carry a remediation hint")
	}
}

func TestBrowserInitFailureAbortsRun(t *testing.T) {
	tools, browser, proxy, templates := testToolset()
	browser.StartErr = errors.New("no chrome binary")

	o := newTestOrchestrator(t, tools)
	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state := waitDone(t, o)

	if state.Phase != model.PhaseFailed {
		t.Fatalf("phase = %s, want failed", state.Phase)
	}
	if state.Progress != 100 {
		t.Errorf("progress = %d, want 100 on failure", state.Progress)
	}
	if proxy.Started {
		t.Error("proxy must not start after browser_init failure")
	}
	if len(templates.ScannedSets) != 0 {
		t.Error("template scan must not run after browser_init failure")
	}
	if len(state.Errors) != 1 || state.Errors[0].Recoverable {
		t.Fatalf("want exactly one non-recoverable error, got %+v", state.Errors)
	}
}

func TestReportingFailureIsFatal(t *testing.T) {
	tools, _, _, _ := testToolset()
	tools.Reporter = &testutil.DummyReporter{Err: errors.New("disk full")}

	o := newTestOrchestrator(t, tools)
	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state := waitDone(t, o)

	if state.Phase != model.PhaseFailed || state.Progress != 100 {
		t.Fatalf("state = %s/%d, want failed/100", state.Phase, state.Progress)
	}
}

func TestCancelSettlesCancelled(t *testing.T) {
	tools, browser, proxy, _ := testToolset()
	proxy.Ticks = 1000 // keep the spider polling until cancelled

	o := New(tools, &testutil.DummyLogger{}, Config{PollInterval: 5 * time.Millisecond})
	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	o.Cancel()
	state := waitDone(t, o)

	if state.Phase != model.PhaseCancelled {
		t.Fatalf("phase = %s, want cancelled", state.Phase)
	}
	if state.Progress != 100 {
		t.Errorf("progress = %d, want 100", state.Progress)
	}
	if !browser.Stopped || !proxy.Stopped {
		t.Error("cancel must stop browser and proxy")
	}
}

func TestMissingTemplateScannerIsRecoverable(t *testing.T) {
	tools, _, _, _ := testToolset()
	tools.Templates = nil

	o := newTestOrchestrator(t, tools)
	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state := waitDone(t, o)

	if state.Phase != model.PhaseCompleted {
		t.Fatalf("phase = %s, want completed", state.Phase)
	}
	found := false
	for _, e := range state.Errors {
		if e.Code == "capability_unavailable" && e.Phase == model.PhaseNucleiScan {
			found = true
		}
	}
	if !found {
		t.Errorf("expected capability_unavailable error for nuclei_scan, got %+v", state.Errors)
	}
}

func TestProgressIsMonotone(t *testing.T) {
	tools, _, proxy, _ := testToolset()
	proxy.Ticks = 3

	o := newTestOrchestrator(t, tools)

	last := -1
	monotone := true
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range o.Events() {
			if ev.Kind != model.EventProgress {
				continue
			}
			if ev.Progress < last {
				monotone = false
			}
			if ev.Progress > last {
				last = ev.Progress
			}
		}
	}()

	if _, err := o.Start(context.Background(), baseConfig()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, o)
	<-drained

	if !monotone {
		t.Error("progress events went backwards")
	}
}

func TestAuthHeadersForwardedToTemplateScan(t *testing.T) {
	tools, browser, _, templates := testToolset()
	browser.Session = &interfaces.Session{Cookies: map[string]string{"sid": "abc123"}}

	cfg := baseConfig()
	cfg.AuthHeaders = map[string]string{"Authorization": "Bearer tok"}

	o := newTestOrchestrator(t, tools)
	if _, err := o.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, o)

	if templates.AuthHeaders == nil {
		t.Fatal("template scanner never received auth headers")
	}
	if templates.AuthHeaders["Authorization"] != "Bearer tok" {
		t.Errorf("Authorization header missing: %v", templates.AuthHeaders)
	}
	if templates.AuthHeaders["Cookie"] == "" {
		t.Errorf("captured session cookie missing: %v", templates.AuthHeaders)
	}
}
