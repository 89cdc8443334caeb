package nucleirunner

import (
	"context"
	"strings"
	"testing"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

func TestParseResults(t *testing.T) {
	output := strings.Join([]string{
		`{"template-id":"http-missing-security-headers","info":{"name":"Missing Security Headers","severity":"info"},"matched-at":"https://example.com/"}`,
		``,
		`not json at all`,
		`{"template-id":"cve-2021-44228","info":{"name":"Log4j RCE","severity":"critical","remediation":"Upgrade log4j.","classification":{"cwe-id":["CWE-502","CWE-917"]}},"host":"https://example.com","extracted-results":["${jndi:ldap}"]}`,
	}, "\n")

	vulns, err := parseResults(strings.NewReader(output), interfaces.NewTestLogger(testing.Verbose()))
	if err != nil {
		t.Fatalf("parseResults: %v", err)
	}
	if len(vulns) != 2 {
		t.Fatalf("got %d vulns, want 2", len(vulns))
	}

	first := vulns[0]
	if first.ID != "http-missing-security-headers" || first.Tool != "nuclei" {
		t.Errorf("unexpected first vuln: %+v", first)
	}
	if first.Severity != model.SeverityInfo {
		t.Errorf("severity = %q, want informational", first.Severity)
	}
	if first.URL != "https://example.com/" {
		t.Errorf("url = %q", first.URL)
	}

	second := vulns[1]
	if second.Severity != model.SeverityCritical {
		t.Errorf("severity = %q, want critical", second.Severity)
	}
	if second.URL != "https://example.com" {
		t.Errorf("expected host fallback, got %q", second.URL)
	}
	if second.Evidence != "${jndi:ldap}" {
		t.Errorf("evidence = %q", second.Evidence)
	}
	if second.CWE != "CWE-502,CWE-917" {
		t.Errorf("cwe = %q", second.CWE)
	}
}

func TestBuildArgsIncludesAuthHeadersAndFilters(t *testing.T) {
	r := New(interfaces.NewTestLogger(testing.Verbose()),
		WithSeverityFilter("high,critical"),
		WithRateLimit(50))
	r.SetAuthHeaders(map[string]string{"Authorization": "Bearer tok"})

	args := r.buildArgs("/tmp/targets.txt")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-l /tmp/targets.txt",
		"-jsonl",
		"-severity high,critical",
		"-rate-limit 50",
		"-H Authorization: Bearer tok",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
}

func TestScanEmptyTargetListIsNoop(t *testing.T) {
	r := New(interfaces.NewTestLogger(testing.Verbose()), WithBinary("/nonexistent/nuclei"))
	vulns, err := r.Scan(context.Background(), nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if vulns != nil {
		t.Errorf("expected no findings, got %v", vulns)
	}
}

func TestScanMissingBinaryFails(t *testing.T) {
	r := New(interfaces.NewTestLogger(testing.Verbose()), WithBinary("/nonexistent/nuclei"))
	if _, err := r.Scan(context.Background(), []string{"https://example.com"}); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
