package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

func newArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(t.TempDir(), interfaces.NewTestLogger(testing.Verbose()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func terminalRun(id, target string, vulns ...model.Vulnerability) *model.ScanState {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ended := started.Add(5 * time.Minute)
	return &model.ScanState{
		ID:              id,
		Target:          target,
		Phase:           model.PhaseCompleted,
		Progress:        100,
		URLsDiscovered:  7,
		StartedAt:       started,
		EndedAt:         &ended,
		Vulnerabilities: vulns,
	}
}

func TestArchiveAndGetRoundTrip(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	run := terminalRun("run-1", "https://example.com",
		model.Vulnerability{ID: "40012", Tool: "zap", Name: "XSS", Severity: model.SeverityHigh})
	if err := a.ArchiveRun(ctx, run); err != nil {
		t.Fatalf("ArchiveRun: %v", err)
	}

	got, err := a.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Target != "https://example.com" || got.Phase != model.PhaseCompleted {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.Vulnerabilities) != 1 || got.Vulnerabilities[0].ID != "40012" {
		t.Errorf("findings not preserved: %+v", got.Vulnerabilities)
	}
}

func TestArchiveRejectsInFlightRun(t *testing.T) {
	a := newArchive(t)

	run := terminalRun("run-1", "https://example.com")
	run.Phase = model.PhaseSpider
	err := a.ArchiveRun(context.Background(), run)
	if !errors.Is(err, ErrRunNotTerminal) {
		t.Fatalf("err = %v, want ErrRunNotTerminal", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	a := newArchive(t)
	if _, err := a.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	first := terminalRun("run-1", "https://example.com")
	second := terminalRun("run-2", "https://example.com")
	second.StartedAt = first.StartedAt.Add(time.Hour)
	other := terminalRun("run-3", "https://other.test")

	for _, run := range []*model.ScanState{first, second, other} {
		if err := a.ArchiveRun(ctx, run); err != nil {
			t.Fatalf("ArchiveRun(%s): %v", run.ID, err)
		}
	}

	runs, err := a.ListRuns(ctx, "https://example.com", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("runs not newest first: %v, %v", runs[0].ID, runs[1].ID)
	}

	all, err := a.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d runs, want 3", len(all))
	}

	limited, err := a.ListRuns(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListRuns limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d runs, want 1", len(limited))
	}
}

func TestReArchiveReplacesRecord(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	run := terminalRun("run-1", "https://example.com")
	if err := a.ArchiveRun(ctx, run); err != nil {
		t.Fatalf("ArchiveRun: %v", err)
	}
	run.URLsDiscovered = 99
	if err := a.ArchiveRun(ctx, run); err != nil {
		t.Fatalf("re-archive: %v", err)
	}

	got, err := a.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.URLsDiscovered != 99 {
		t.Errorf("record not replaced, urls = %d", got.URLsDiscovered)
	}
}

func TestDiffRunsIdentifiesNewAndResolved(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	xss := model.Vulnerability{ID: "40012", Tool: "zap", Name: "XSS", Severity: model.SeverityHigh}
	sqli := model.Vulnerability{ID: "40018", Tool: "zap", Name: "SQLi", Severity: model.SeverityHigh}
	headers := model.Vulnerability{ID: "headers", Tool: "nuclei", Name: "Missing Headers", Severity: model.SeverityInfo}

	base := terminalRun("run-base", "https://example.com", xss, headers)
	head := terminalRun("run-head", "https://example.com", headers, sqli)
	head.StartedAt = base.StartedAt.Add(24 * time.Hour)

	for _, run := range []*model.ScanState{base, head} {
		if err := a.ArchiveRun(ctx, run); err != nil {
			t.Fatalf("ArchiveRun(%s): %v", run.ID, err)
		}
	}

	diff, err := a.DiffRuns(ctx, "run-base", "run-head")
	if err != nil {
		t.Fatalf("DiffRuns: %v", err)
	}

	if len(diff.NewFindings) != 1 || diff.NewFindings[0].ID != "40018" {
		t.Errorf("new findings = %+v, want just SQLi", diff.NewFindings)
	}
	if len(diff.ResolvedFindings) != 1 || diff.ResolvedFindings[0].ID != "40012" {
		t.Errorf("resolved findings = %+v, want just XSS", diff.ResolvedFindings)
	}
	if !strings.Contains(diff.RecordDiff, "SQLi") {
		t.Error("record diff missing head-side content")
	}
}

func TestDiffRunsMissingBase(t *testing.T) {
	a := newArchive(t)
	if _, err := a.DiffRuns(context.Background(), "nope", "also-nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}
