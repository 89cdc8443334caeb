package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

func sampleRun() *model.ScanState {
	started := time.Now().Add(-3 * time.Minute)
	ended := time.Now()
	return &model.ScanState{
		ID:             "run-123",
		Phase:          model.PhaseCompleted,
		Progress:       100,
		URLsDiscovered: 12,
		StartedAt:      started,
		EndedAt:        &ended,
		Vulnerabilities: []model.Vulnerability{
			{ID: "40012", Tool: "zap", Name: "Reflected XSS", Severity: model.SeverityHigh,
				URL: "https://example.com/search", Remediation: "Encode output."},
			{ID: "headers", Tool: "nuclei", Name: "Missing Headers", Severity: model.SeverityInfo,
				URL: "https://example.com/"},
			{ID: "sqli", Tool: "zap", Name: "SQL Injection", Severity: model.SeverityHigh,
				URL: "https://example.com/login"},
		},
	}
}

func TestGenerateWritesJSONAndHTML(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, interfaces.NewTestLogger(testing.Verbose()))

	run := sampleRun()
	htmlPath, err := r.Generate(context.Background(), run)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if htmlPath != filepath.Join(dir, "run-123", "report.html") {
		t.Errorf("unexpected artifact path %q", htmlPath)
	}

	jsonPath := filepath.Join(dir, "run-123", "report.json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json artifact: %v", err)
	}
	if !strings.Contains(string(data), `"run-123"`) {
		t.Error("json artifact missing run id")
	}
}

func TestHTMLReportStructure(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, interfaces.NewTestLogger(testing.Verbose()))

	htmlPath, err := r.Generate(context.Background(), sampleRun())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f, err := os.Open(htmlPath)
	if err != nil {
		t.Fatalf("open html artifact: %v", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	if got := doc.Find("#run-summary .run-id").Text(); got != "run-123" {
		t.Errorf("run id cell = %q", got)
	}
	if got := doc.Find("#run-summary .finding-count").Text(); got != "3" {
		t.Errorf("finding count cell = %q", got)
	}

	rows := doc.Find("#findings tr.finding")
	if rows.Length() != 3 {
		t.Fatalf("got %d finding rows, want 3", rows.Length())
	}
	// Findings are ordered most severe first.
	if sev := rows.First().Find("td").First().Text(); sev != "high" {
		t.Errorf("first row severity = %q, want high", sev)
	}
	if sev := rows.Last().Find("td").First().Text(); sev != "informational" {
		t.Errorf("last row severity = %q, want informational", sev)
	}

	sevRows := doc.Find("#severity-summary tr").Length()
	if sevRows != 3 { // header + high + informational
		t.Errorf("severity summary rows = %d, want 3", sevRows)
	}
}

func TestGenerateWithoutFindings(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, interfaces.NewTestLogger(testing.Verbose()))

	run := sampleRun()
	run.Vulnerabilities = nil
	htmlPath, err := r.Generate(context.Background(), run)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f, err := os.Open(htmlPath)
	if err != nil {
		t.Fatalf("open html artifact: %v", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if doc.Find("#no-findings").Length() != 1 {
		t.Error("expected empty-findings notice")
	}
}

func TestGenerateRejectsNilRun(t *testing.T) {
	r := New(t.TempDir(), interfaces.NewTestLogger(testing.Verbose()))
	if _, err := r.Generate(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil run")
	}
}
