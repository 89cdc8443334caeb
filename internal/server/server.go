// Package server is the HTTP + WebSocket API surface over the scan
// coordination layer.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sentinelscan/sentinelscan/internal/app"
	"github.com/sentinelscan/sentinelscan/internal/history"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"

	_ "github.com/sentinelscan/sentinelscan/docs/swagger" // registered API spec
)

// Server fronts one Application.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server with its own Application. opts are forwarded to
// the application constructor (tests inject a toolset factory this way).
func NewServer(cfg Config, opts ...app.Option) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	application, err := app.New(cfg.AppConfig, logger, opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		app:    application,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}
	s.routes()
	return s, nil
}

// Application returns the underlying application for advanced use (tests, etc.).
func (s *Server) Application() *app.Application {
	return s.app
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Options("/scans", s.optionsHandler("GET, POST"))
	r.Options("/scans/{runID}", s.optionsHandler("GET, DELETE"))
	r.Options("/bulk", s.optionsHandler("POST"))
	r.Options("/bulk/{bulkID}", s.optionsHandler("GET, DELETE"))
	r.Options("/bulk/{bulkID}/pause", s.optionsHandler("POST"))
	r.Options("/bulk/{bulkID}/resume", s.optionsHandler("POST"))
	r.Options("/bulk/{bulkID}/export", s.optionsHandler("GET"))
	r.Options("/history", s.optionsHandler("GET"))
	r.Options("/history/diff", s.optionsHandler("GET"))
	r.Options("/history/{runID}", s.optionsHandler("GET"))

	// Single-target scans
	r.Post("/scans", s.handleStartScan)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{runID}", s.handleGetScan)
	r.Delete("/scans/{runID}", s.handleCancelScan)

	// Batches
	r.Post("/bulk", s.handleStartBulk)
	r.Get("/bulk/{bulkID}", s.handleGetBulk)
	r.Delete("/bulk/{bulkID}", s.handleCancelBulk)
	r.Post("/bulk/{bulkID}/pause", s.handlePauseBulk)
	r.Post("/bulk/{bulkID}/resume", s.handleResumeBulk)
	r.Get("/bulk/{bulkID}/export", s.handleExportBulk)

	// Run history
	r.Get("/history", s.handleListHistory)
	r.Get("/history/diff", s.handleDiffHistory)
	r.Get("/history/{runID}", s.handleGetHistory)

	// WebSockets for live progress
	r.Get("/ws/scans/{runID}", s.handleScanWS)
	r.Get("/ws/bulk/{bulkID}", s.handleBulkWS)

	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the application and underlying resources.
func (s *Server) Close() {
	s.app.Close()
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeAppError maps domain errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrScanNotFound),
		errors.Is(err, app.ErrBulkNotFound),
		errors.Is(err, history.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrNoValidTargets):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (r StartScanRequest) scanConfig() model.ScanConfig {
	return model.ScanConfig{
		Target:         r.Target,
		SpiderDepth:    r.SpiderDepth,
		AuthHeaders:    r.AuthHeaders,
		AjaxSpider:     r.AjaxSpider,
		ActiveScan:     r.ActiveScan,
		AssetDiscovery: r.AssetDiscovery,
		AIEnrichment:   r.AIEnrichment,
		Headless:       r.Headless,
	}
}

// --- Scan handlers ---

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Target == "" {
		writeError(w, http.StatusBadRequest, "missing target")
		return
	}

	runID, err := s.app.StartScan(r.Context(), body.scanConfig())
	if err != nil {
		s.logger.Warn("starting scan", logging.Field{Key: "error", Value: err.Error()})
		s.writeAppError(w, err)
		return
	}
	s.logger.Info("started scan",
		logging.Field{Key: "run_id", Value: runID},
		logging.Field{Key: "target", Value: body.Target})
	writeJSON(w, http.StatusAccepted, StartScanResponse{RunID: runID})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans := s.app.ListScans()
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	state, err := s.app.ScanState(runID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.app.CancelScan(runID); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.logger.Info("cancelled scan", logging.Field{Key: "run_id", Value: runID})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// --- Bulk handlers ---

func (s *Server) handleStartBulk(w http.ResponseWriter, r *http.Request) {
	var body StartBulkScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	bulkID, err := s.app.StartBulkScan(r.Context(), model.BulkScanConfig{
		RawTargets:  body.Targets,
		Targets:     body.TargetList,
		Concurrency: body.Concurrency,
		ScanOptions: body.Options.scanConfig(),
	})
	if err != nil {
		s.logger.Warn("starting bulk scan", logging.Field{Key: "error", Value: err.Error()})
		s.writeAppError(w, err)
		return
	}
	s.logger.Info("started bulk scan", logging.Field{Key: "bulk_id", Value: bulkID})
	writeJSON(w, http.StatusAccepted, StartBulkScanResponse{BulkID: bulkID})
}

func (s *Server) handleGetBulk(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")
	items, err := s.app.BulkStatus(bulkID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	summary, err := s.app.BulkSummary(bulkID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   items,
		"summary": summary,
	})
}

func (s *Server) handleCancelBulk(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")
	if err := s.app.CancelBulkScan(bulkID); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.logger.Info("cancelled bulk scan", logging.Field{Key: "bulk_id", Value: bulkID})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handlePauseBulk(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")
	if err := s.app.PauseBulkScan(bulkID); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "paused"})
}

func (s *Server) handleResumeBulk(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")
	if err := s.app.ResumeBulkScan(bulkID); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resumed"})
}

func (s *Server) handleExportBulk(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")
	data, err := s.app.ExportBulkResults(bulkID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="bulk-`+bulkID+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// --- History handlers ---

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	runs, err := s.app.History().ListRuns(r.Context(), target, limit)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.app.History().GetRun(r.Context(), runID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDiffHistory(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	head := r.URL.Query().Get("head")
	if base == "" || head == "" {
		writeError(w, http.StatusBadRequest, "missing base or head query parameter")
		return
	}

	diff, err := s.app.History().DiffRuns(r.Context(), base, head)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// --- WebSockets ---

// handleScanWS streams one run's events. The final authoritative state is
// sent after the event channel closes, then the connection shuts down.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, err := s.app.ScanEvents(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	if state, err := s.app.ScanState(runID); err == nil {
		_ = conn.WriteJSON(state)
	}
}

func (s *Server) handleBulkWS(w http.ResponseWriter, r *http.Request) {
	bulkID := chi.URLParam(r, "bulkID")

	events, err := s.app.BulkEvents(bulkID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	if summary, err := s.app.BulkSummary(bulkID); err == nil && summary != nil {
		_ = conn.WriteJSON(summary)
	}
}
