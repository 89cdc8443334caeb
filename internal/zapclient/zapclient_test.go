package zapclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

func newFakeDaemon(t *testing.T, handlers map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range handlers {
		payload := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(payload))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStartOpensSession(t *testing.T) {
	var sessionName string
	mux := http.NewServeMux()
	mux.HandleFunc("/JSON/core/view/version/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"2.15.0"}`))
	})
	mux.HandleFunc("/JSON/core/action/newSession/", func(w http.ResponseWriter, r *http.Request) {
		sessionName = r.URL.Query().Get("name")
		w.Write([]byte(`{"Result":"OK"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "", nil, interfaces.NewTestLogger(testing.Verbose()))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sessionName == "" {
		t.Error("expected a fresh session to be opened")
	}
}

func TestStartFailsWhenDaemonDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "", nil, interfaces.NewTestLogger(testing.Verbose()))
	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected error for unreachable daemon")
	}
}

func TestSpiderJobLifecycle(t *testing.T) {
	srv := newFakeDaemon(t, map[string]string{
		"/JSON/spider/action/scan/": `{"scan":"3"}`,
		"/JSON/spider/view/status/": `{"status":"100"}`,
	})

	c := New(srv.URL, "", nil, interfaces.NewTestLogger(testing.Verbose()))
	jobID, err := c.Spider(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Spider: %v", err)
	}
	if jobID != "spider:3" {
		t.Errorf("jobID = %q, want spider:3", jobID)
	}

	st, err := c.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Complete || st.Progress != 100 {
		t.Errorf("status = %+v, want complete at 100", st)
	}
}

func TestAjaxSpiderStatusMapsRunningAndStopped(t *testing.T) {
	status := `{"status":"running"}`
	mux := http.NewServeMux()
	mux.HandleFunc("/JSON/ajaxSpider/action/scan/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Result":"OK"}`))
	})
	mux.HandleFunc("/JSON/ajaxSpider/view/status/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(status))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "", nil, interfaces.NewTestLogger(testing.Verbose()))
	jobID, err := c.AjaxSpider(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("AjaxSpider: %v", err)
	}

	st, err := c.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Complete {
		t.Error("running crawl reported complete")
	}

	status = `{"status":"stopped"}`
	st, err = c.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Complete {
		t.Error("stopped crawl not reported complete")
	}
}

func TestStatusRejectsUnknownJobID(t *testing.T) {
	c := New("http://127.0.0.1:1", "", nil, interfaces.NewTestLogger(testing.Verbose()))
	if _, err := c.Status(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for unknown job id")
	}
}

func TestAlertsMapToVulnerabilities(t *testing.T) {
	srv := newFakeDaemon(t, map[string]string{
		"/JSON/core/view/alerts/": `{"alerts":[
			{"id":"17","alert":"X-Frame-Options Missing","risk":"Medium","confidence":"High",
			 "url":"https://example.com/","method":"GET","solution":"Set the header.","cweid":"1021"},
			{"pluginId":"40012","alert":"Reflected XSS","risk":"High","confidence":"Medium",
			 "url":"https://example.com/search","param":"q","evidence":"<script>"}
		]}`,
	})

	c := New(srv.URL, "", nil, interfaces.NewTestLogger(testing.Verbose()))
	vulns, err := c.Alerts(context.Background())
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(vulns) != 2 {
		t.Fatalf("got %d vulns, want 2", len(vulns))
	}

	first := vulns[0]
	if first.ID != "17" || first.Tool != "zap" || first.Severity != model.SeverityMedium {
		t.Errorf("unexpected first vuln: %+v", first)
	}
	if first.CWE != "1021" {
		t.Errorf("CWE = %q, want 1021", first.CWE)
	}

	second := vulns[1]
	if second.ID != "40012" {
		t.Errorf("expected pluginId fallback, got ID %q", second.ID)
	}
	if second.Severity != model.SeverityHigh || second.Parameter != "q" {
		t.Errorf("unexpected second vuln: %+v", second)
	}
}

func TestAPIKeyAttachedToEveryCall(t *testing.T) {
	var gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("/JSON/core/view/urls/", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		w.Write([]byte(`{"urls":["https://example.com/"]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "secret", nil, interfaces.NewTestLogger(testing.Verbose()))
	urls, err := c.DiscoveredURLs(context.Background())
	if err != nil {
		t.Fatalf("DiscoveredURLs: %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("got %d urls, want 1", len(urls))
	}
	if gotKey != "secret" {
		t.Errorf("apikey = %q, want secret", gotKey)
	}
}
