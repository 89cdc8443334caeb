package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentinelscan/sentinelscan/internal/app"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/orchestrator"
	"github.com/sentinelscan/sentinelscan/internal/testutil"
)

func dummyFactory() orchestrator.ToolsetFactory {
	return orchestrator.ToolsetFactoryFunc(func(ctx context.Context) (*orchestrator.Toolset, error) {
		return &orchestrator.Toolset{
			Browser:   &testutil.DummyBrowser{},
			Proxy:     &testutil.DummyProxy{},
			Templates: &testutil.DummyTemplateScanner{},
			Assets:    &testutil.DummyAssetDiscoverer{},
			Reporter:  &testutil.DummyReporter{},
		}, nil
	})
}

func newApp(t *testing.T) *app.Application {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Scan.PollInterval = time.Millisecond

	a, err := app.New(cfg, &testutil.DummyLogger{}, app.WithToolsetFactory(dummyFactory()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestStartScanArchivesOnCompletion(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	runID, err := a.StartScan(ctx, model.ScanConfig{Target: "https://example.com"})
	if err != nil {
		t.Fatalf("StartScan: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		state, err := a.ScanState(runID)
		if err != nil {
			t.Fatalf("ScanState: %v", err)
		}
		if state.Phase.Terminal() {
			if state.Phase != model.PhaseCompleted {
				t.Fatalf("phase = %s, want completed", state.Phase)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scan did not settle")
		}
		time.Sleep(2 * time.Millisecond)
	}

	// The archive write happens after Done; poll for it.
	deadline = time.Now().Add(5 * time.Second)
	for {
		run, err := a.History().GetRun(ctx, runID)
		if err == nil {
			if run.Target != "https://example.com" {
				t.Errorf("archived target = %q", run.Target)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never archived: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestUnknownIDsReturnNotFound(t *testing.T) {
	a := newApp(t)

	if _, err := a.ScanState("nope"); !errors.Is(err, app.ErrScanNotFound) {
		t.Errorf("ScanState err = %v", err)
	}
	if err := a.CancelScan("nope"); !errors.Is(err, app.ErrScanNotFound) {
		t.Errorf("CancelScan err = %v", err)
	}
	if _, err := a.BulkStatus("nope"); !errors.Is(err, app.ErrBulkNotFound) {
		t.Errorf("BulkStatus err = %v", err)
	}
}

func TestStartBulkScanRunsToSummary(t *testing.T) {
	a := newApp(t)

	bulkID, err := a.StartBulkScan(context.Background(), model.BulkScanConfig{
		RawTargets:  "example.com\ntest.com",
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("StartBulkScan: %v", err)
	}

	events, err := a.BulkEvents(bulkID)
	if err != nil {
		t.Fatalf("BulkEvents: %v", err)
	}
	for range events {
	}

	summary, err := a.BulkSummary(bulkID)
	if err != nil {
		t.Fatalf("BulkSummary: %v", err)
	}
	if summary == nil || summary.Total != 2 || summary.Completed != 2 {
		t.Errorf("summary = %+v, want 2/2 completed", summary)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("listen_addr: \":9999\"\nzap:\n  addr: http://10.0.0.2:8081\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.ZAP.Addr != "http://10.0.0.2:8081" {
		t.Errorf("ZAP.Addr = %q", cfg.ZAP.Addr)
	}
	// Untouched fields keep their defaults.
	if cfg.Nuclei.Binary != "nuclei" {
		t.Errorf("Nuclei.Binary = %q", cfg.Nuclei.Binary)
	}
	if cfg.ProxyAddr() != "10.0.0.2:8081" {
		t.Errorf("ProxyAddr() = %q", cfg.ProxyAddr())
	}
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	if _, err := app.LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
