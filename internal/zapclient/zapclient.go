// Package zapclient implements the scan proxy capability against a running
// OWASP ZAP daemon over its JSON API.
package zapclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

// Job IDs returned by Spider/AjaxSpider/ActiveScan are prefixed with the
// engine that owns them, so Status can route the poll to the right view.
const (
	spiderJobPrefix = "spider:"
	ajaxJobPrefix   = "ajax:"
	ascanJobPrefix  = "ascan:"
)

// Client talks to one ZAP daemon. A fresh ZAP session is opened on Start so
// concurrent runs against separate daemons never see each other's alerts.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logging.Logger
}

// New creates a client for the daemon at baseURL (for example
// "http://127.0.0.1:8080"). apiKey may be empty when the daemon runs with
// api.disablekey=true.
func New(baseURL, apiKey string, httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
		logger:  logger.With(logging.Field{Key: "component", Value: "zap"}),
	}
}

// Start verifies the daemon is reachable and opens a fresh session.
func (c *Client) Start(ctx context.Context) error {
	var version struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "/JSON/core/view/version/", nil, &version); err != nil {
		return fmt.Errorf("zap daemon unreachable at %s: %w", c.baseURL, err)
	}

	params := url.Values{"name": {"sentinelscan-" + uuid.NewString()}}
	if err := c.call(ctx, "/JSON/core/action/newSession/", params, nil); err != nil {
		return fmt.Errorf("new zap session: %w", err)
	}

	c.logger.Info("zap session opened", logging.Field{Key: "version", Value: version.Version})
	return nil
}

// Stop leaves the external daemon running; the per-run session opened by
// Start is simply abandoned.
func (c *Client) Stop() error {
	c.logger.Debug("zap client stopped")
	return nil
}

func (c *Client) Spider(ctx context.Context, target string) (string, error) {
	var resp struct {
		Scan string `json:"scan"`
	}
	params := url.Values{"url": {target}, "recurse": {"true"}}
	if err := c.call(ctx, "/JSON/spider/action/scan/", params, &resp); err != nil {
		return "", fmt.Errorf("start spider: %w", err)
	}
	return spiderJobPrefix + resp.Scan, nil
}

func (c *Client) AjaxSpider(ctx context.Context, target string) (string, error) {
	params := url.Values{"url": {target}, "inScope": {"false"}}
	if err := c.call(ctx, "/JSON/ajaxSpider/action/scan/", params, nil); err != nil {
		return "", fmt.Errorf("start ajax spider: %w", err)
	}
	// The ajax spider runs at most one crawl per session, so the ID carries
	// no scan number.
	return ajaxJobPrefix + "crawl", nil
}

func (c *Client) ActiveScan(ctx context.Context, target string) (string, error) {
	var resp struct {
		Scan string `json:"scan"`
	}
	params := url.Values{"url": {target}, "recurse": {"true"}}
	if err := c.call(ctx, "/JSON/ascan/action/scan/", params, &resp); err != nil {
		return "", fmt.Errorf("start active scan: %w", err)
	}
	return ascanJobPrefix + resp.Scan, nil
}

// Status polls the job's owning engine and maps its answer onto the common
// JobStatus shape.
func (c *Client) Status(ctx context.Context, jobID string) (interfaces.JobStatus, error) {
	switch {
	case strings.HasPrefix(jobID, spiderJobPrefix):
		return c.percentStatus(ctx, "/JSON/spider/view/status/", strings.TrimPrefix(jobID, spiderJobPrefix))
	case strings.HasPrefix(jobID, ascanJobPrefix):
		return c.percentStatus(ctx, "/JSON/ascan/view/status/", strings.TrimPrefix(jobID, ascanJobPrefix))
	case strings.HasPrefix(jobID, ajaxJobPrefix):
		return c.ajaxStatus(ctx)
	default:
		return interfaces.JobStatus{}, fmt.Errorf("unknown job id %q", jobID)
	}
}

func (c *Client) percentStatus(ctx context.Context, path, scanID string) (interfaces.JobStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	params := url.Values{"scanId": {scanID}}
	if err := c.call(ctx, path, params, &resp); err != nil {
		return interfaces.JobStatus{}, err
	}
	pct, err := strconv.Atoi(resp.Status)
	if err != nil {
		return interfaces.JobStatus{}, fmt.Errorf("parse status %q: %w", resp.Status, err)
	}
	return interfaces.JobStatus{Complete: pct >= 100, Progress: pct}, nil
}

// The ajax spider only reports running/stopped, so progress holds at zero
// until the crawl finishes.
func (c *Client) ajaxStatus(ctx context.Context) (interfaces.JobStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "/JSON/ajaxSpider/view/status/", nil, &resp); err != nil {
		return interfaces.JobStatus{}, err
	}
	if resp.Status == "stopped" {
		return interfaces.JobStatus{Complete: true, Progress: 100}, nil
	}
	return interfaces.JobStatus{Complete: false, Progress: 0}, nil
}

// zapAlert is the wire shape of one ZAP alert.
type zapAlert struct {
	ID          string `json:"id"`
	PluginID    string `json:"pluginId"`
	Alert       string `json:"alert"`
	Description string `json:"description"`
	Risk        string `json:"risk"`
	Confidence  string `json:"confidence"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	Param       string `json:"param"`
	Evidence    string `json:"evidence"`
	Solution    string `json:"solution"`
	CWEID       string `json:"cweid"`
}

// Alerts fetches every alert recorded in the current session.
func (c *Client) Alerts(ctx context.Context) ([]model.Vulnerability, error) {
	var resp struct {
		Alerts []zapAlert `json:"alerts"`
	}
	if err := c.call(ctx, "/JSON/core/view/alerts/", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}

	vulns := make([]model.Vulnerability, 0, len(resp.Alerts))
	for _, a := range resp.Alerts {
		id := a.ID
		if id == "" {
			id = a.PluginID
		}
		vulns = append(vulns, model.Vulnerability{
			ID:          id,
			Tool:        "zap",
			Name:        a.Alert,
			Description: a.Description,
			Severity:    riskToSeverity(a.Risk),
			Confidence:  strings.ToLower(a.Confidence),
			URL:         a.URL,
			Method:      a.Method,
			Parameter:   a.Param,
			Evidence:    a.Evidence,
			Remediation: a.Solution,
			CWE:         a.CWEID,
		})
	}
	return vulns, nil
}

// DiscoveredURLs lists every URL the session has seen.
func (c *Client) DiscoveredURLs(ctx context.Context) ([]string, error) {
	var resp struct {
		URLs []string `json:"urls"`
	}
	if err := c.call(ctx, "/JSON/core/view/urls/", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch urls: %w", err)
	}
	return resp.URLs, nil
}

// riskToSeverity maps ZAP's risk labels onto the shared severity scale. ZAP
// has no critical tier.
func riskToSeverity(risk string) model.Severity {
	switch strings.ToLower(risk) {
	case "high":
		return model.SeverityHigh
	case "medium":
		return model.SeverityMedium
	case "low":
		return model.SeverityLow
	default:
		return model.SeverityInfo
	}
}

// call performs one GET against the JSON API and decodes the response into
// out when non-nil.
func (c *Client) call(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zap api %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
