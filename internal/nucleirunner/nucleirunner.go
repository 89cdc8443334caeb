// Package nucleirunner implements the template scanner capability by
// shelling out to the nuclei binary and parsing its JSONL output.
package nucleirunner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

const defaultScanTimeout = 30 * time.Minute

// Runner invokes nuclei once per Scan call. Targets are passed through a
// temp file so large URL sets never hit argv limits.
type Runner struct {
	binary    string
	severity  string
	rateLimit int
	timeout   time.Duration
	logger    logging.Logger

	mu          sync.Mutex
	authHeaders map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the nuclei binary path.
func WithBinary(path string) Option { return func(r *Runner) { r.binary = path } }

// WithSeverityFilter restricts templates to the given comma-separated
// severities (nuclei's -severity flag).
func WithSeverityFilter(s string) Option { return func(r *Runner) { r.severity = s } }

// WithRateLimit caps requests per second (nuclei's -rate-limit flag).
func WithRateLimit(n int) Option { return func(r *Runner) { r.rateLimit = n } }

// WithTimeout bounds a whole Scan invocation.
func WithTimeout(d time.Duration) Option { return func(r *Runner) { r.timeout = d } }

// New creates a template scanner backed by the nuclei CLI.
func New(logger logging.Logger, opts ...Option) *Runner {
	r := &Runner{
		binary:  "nuclei",
		timeout: defaultScanTimeout,
		logger:  logger.With(logging.Field{Key: "component", Value: "nuclei"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAuthHeaders configures headers attached to every templated request.
func (r *Runner) SetAuthHeaders(headers map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authHeaders = make(map[string]string, len(headers))
	for k, v := range headers {
		r.authHeaders[k] = v
	}
}

// Scan runs nuclei against targets and returns the parsed findings.
func (r *Runner) Scan(ctx context.Context, targets []string) ([]model.Vulnerability, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	listFile, err := writeTargetList(targets)
	if err != nil {
		return nil, err
	}
	defer os.Remove(listFile)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := r.buildArgs(listFile)
	r.logger.Info("starting nuclei scan",
		logging.Field{Key: "targets", Value: len(targets)})

	cmd := exec.CommandContext(ctx, r.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start nuclei: %w", err)
	}

	vulns, parseErr := parseResults(stdout, r.logger)
	waitErr := cmd.Wait()

	if parseErr != nil {
		return vulns, parseErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return vulns, ctx.Err()
		}
		// Some findings may have been parsed before the process died;
		// surface both.
		if len(vulns) > 0 {
			r.logger.Warn("nuclei exited with error after producing results",
				logging.Field{Key: "error", Value: waitErr.Error()})
			return vulns, nil
		}
		return nil, fmt.Errorf("nuclei: %w", waitErr)
	}

	r.logger.Info("nuclei scan finished",
		logging.Field{Key: "findings", Value: len(vulns)})
	return vulns, nil
}

func (r *Runner) buildArgs(listFile string) []string {
	args := []string{"-l", listFile, "-jsonl", "-silent", "-no-color"}
	if r.severity != "" {
		args = append(args, "-severity", r.severity)
	}
	if r.rateLimit > 0 {
		args = append(args, "-rate-limit", fmt.Sprintf("%d", r.rateLimit))
	}

	r.mu.Lock()
	for k, v := range r.authHeaders {
		args = append(args, "-H", k+": "+v)
	}
	r.mu.Unlock()

	return args
}

func writeTargetList(targets []string) (string, error) {
	f, err := os.CreateTemp("", "nuclei-targets-*.txt")
	if err != nil {
		return "", fmt.Errorf("create target list: %w", err)
	}
	for _, t := range targets {
		if _, err := fmt.Fprintln(f, t); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write target list: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close target list: %w", err)
	}
	return f.Name(), nil
}

// nucleiResult is one JSONL line of nuclei output.
type nucleiResult struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		Severity       string   `json:"severity"`
		Remediation    string   `json:"remediation"`
		Classification struct {
			CWEID []string `json:"cwe-id"`
		} `json:"classification"`
	} `json:"info"`
	Type             string   `json:"type"`
	Host             string   `json:"host"`
	MatchedAt        string   `json:"matched-at"`
	MatcherName      string   `json:"matcher-name"`
	ExtractedResults []string `json:"extracted-results"`
}

// parseResults decodes JSONL findings line by line. Malformed lines are
// logged and skipped rather than aborting the whole scan.
func parseResults(rd io.Reader, logger logging.Logger) ([]model.Vulnerability, error) {
	var vulns []model.Vulnerability

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		var res nucleiResult
		if err := json.Unmarshal([]byte(line), &res); err != nil {
			logger.Warn("skipping malformed nuclei output line",
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		vulns = append(vulns, toVulnerability(res))
	}
	if err := scanner.Err(); err != nil {
		return vulns, fmt.Errorf("read nuclei output: %w", err)
	}
	return vulns, nil
}

func toVulnerability(res nucleiResult) model.Vulnerability {
	url := res.MatchedAt
	if url == "" {
		url = res.Host
	}

	evidence := res.MatcherName
	if len(res.ExtractedResults) > 0 {
		evidence = strings.Join(res.ExtractedResults, ", ")
	}

	return model.Vulnerability{
		ID:          res.TemplateID,
		Tool:        "nuclei",
		Name:        res.Info.Name,
		Description: res.Info.Description,
		Severity:    model.ParseSeverity(res.Info.Severity),
		URL:         url,
		Evidence:    evidence,
		Remediation: res.Info.Remediation,
		CWE:         strings.Join(res.Info.Classification.CWEID, ","),
	}
}
