// Package report renders terminal run records into durable JSON and HTML
// artifacts.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

// FileReporter writes one directory of artifacts per run under Dir:
//
//	<dir>/<runID>/report.json
//	<dir>/<runID>/report.html
//
// Generate returns the HTML path.
type FileReporter struct {
	dir    string
	logger logging.Logger
}

// New creates a reporter rooted at dir.
func New(dir string, logger logging.Logger) *FileReporter {
	return &FileReporter{
		dir:    dir,
		logger: logger.With(logging.Field{Key: "component", Value: "report"}),
	}
}

func (r *FileReporter) Generate(ctx context.Context, run *model.ScanState) (string, error) {
	if run == nil {
		return "", fmt.Errorf("nil run record")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	runDir := filepath.Join(r.dir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	jsonPath := filepath.Join(runDir, "report.json")
	if err := writeJSON(jsonPath, run); err != nil {
		return "", err
	}

	htmlPath := filepath.Join(runDir, "report.html")
	if err := writeHTML(htmlPath, run); err != nil {
		return "", err
	}

	r.logger.Info("report written",
		logging.Field{Key: "run_id", Value: run.ID},
		logging.Field{Key: "path", Value: htmlPath})
	return htmlPath, nil
}

func writeJSON(path string, run *model.ScanState) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// reportData is the view handed to the HTML template.
type reportData struct {
	Run            *model.ScanState
	GeneratedAt    string
	Duration       string
	SeverityCounts []severityCount
	Findings       []model.Vulnerability
}

type severityCount struct {
	Severity model.Severity
	Count    int
}

func writeHTML(path string, run *model.ScanState) error {
	counts := model.CountBySeverity(run.Vulnerabilities)
	ordered := make([]severityCount, 0, len(counts))
	for sev, n := range counts {
		ordered = append(ordered, severityCount{Severity: sev, Count: n})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Severity.Score() > ordered[j].Severity.Score()
	})

	findings := append([]model.Vulnerability(nil), run.Vulnerabilities...)
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Score() > findings[j].Severity.Score()
	})

	duration := ""
	if run.EndedAt != nil {
		duration = run.EndedAt.Sub(run.StartedAt).Round(time.Second).String()
	}

	data := reportData{
		Run:            run,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Duration:       duration,
		SeverityCounts: ordered,
		Findings:       findings,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Scan Report {{.Run.ID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
th { background: #f0f0f0; }
.sev-critical { color: #fff; background: #7b1fa2; }
.sev-high { color: #fff; background: #c62828; }
.sev-medium { color: #222; background: #f9a825; }
.sev-low { color: #222; background: #9ccc65; }
.sev-informational { color: #222; background: #e0e0e0; }
</style>
</head>
<body>
<h1>Scan Report</h1>
<table id="run-summary">
<tr><th>Run ID</th><td class="run-id">{{.Run.ID}}</td></tr>
<tr><th>Target</th><td class="run-target">{{.Run.Target}}</td></tr>
<tr><th>Status</th><td class="run-status">{{.Run.Phase}}</td></tr>
<tr><th>Generated</th><td>{{.GeneratedAt}}</td></tr>
{{if .Duration}}<tr><th>Duration</th><td>{{.Duration}}</td></tr>{{end}}
<tr><th>URLs discovered</th><td>{{.Run.URLsDiscovered}}</td></tr>
<tr><th>Findings</th><td class="finding-count">{{len .Findings}}</td></tr>
</table>

{{if .SeverityCounts}}
<h2>Findings by severity</h2>
<table id="severity-summary">
<tr><th>Severity</th><th>Count</th></tr>
{{range .SeverityCounts}}
<tr><td class="sev-{{.Severity}}">{{.Severity}}</td><td>{{.Count}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Findings}}
<h2>Findings</h2>
<table id="findings">
<tr><th>Severity</th><th>Name</th><th>Tool</th><th>URL</th><th>Remediation</th></tr>
{{range .Findings}}
<tr class="finding">
<td class="sev-{{.Severity}}">{{.Severity}}</td>
<td>{{.Name}}</td>
<td>{{.Tool}}</td>
<td>{{.URL}}</td>
<td>{{.Remediation}}</td>
</tr>
{{end}}
</table>
{{else}}
<p id="no-findings">No findings recorded.</p>
{{end}}

{{if .Run.Errors}}
<h2>Errors</h2>
<table id="errors">
<tr><th>Phase</th><th>Code</th><th>Message</th></tr>
{{range .Run.Errors}}
<tr><td>{{.Phase}}</td><td>{{.Code}}</td><td>{{.Message}}</td></tr>
{{end}}
</table>
{{end}}
</body>
</html>
`))
