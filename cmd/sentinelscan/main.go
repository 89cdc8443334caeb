// Command sentinelscan runs the scan coordination layer: an HTTP API server,
// or one-off single-target and batch scans from the terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/sentinelscan/sentinelscan/internal/app"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/server"
)

type CLI struct {
	Config string `help:"Path to a YAML config file." type:"path"`

	Serve ServeCmd `cmd:"" help:"Run the HTTP API server."`
	Scan  ScanCmd  `cmd:"" help:"Scan one target and wait for the result."`
	Bulk  BulkCmd  `cmd:"" help:"Scan multiple targets with bounded concurrency."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Description(description()),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)

	cfg, err := app.LoadConfig(cli.Config)
	ctx.FatalIfErrorf(err)

	err = ctx.Run(cfg)
	ctx.FatalIfErrorf(err)
}

func description() string {
	return `
Coordinate browser, proxy, template and asset-discovery tooling into
multi-phase web security scans.

Examples:
  sentinelscan serve --listen :8090
  sentinelscan scan https://example.com --active-scan
  sentinelscan bulk example.com test.com --concurrency 3
`
}

// ServeCmd runs the API server until interrupted.
type ServeCmd struct {
	Listen string `help:"HTTP listen address (overrides config)."`
}

func (c *ServeCmd) Run(cfg *app.Config) error {
	if c.Listen != "" {
		cfg.ListenAddr = c.Listen
	}
	logger := logging.NewStdoutLogger("sentinelscan")

	srv, err := server.NewServer(server.Config{
		ListenAddr: cfg.ListenAddr,
		AppConfig:  cfg,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := srv.HTTPServer()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		_ = httpSrv.Shutdown(context.Background())
	}()

	logger.Info("listening", logging.Field{Key: "addr", Value: cfg.ListenAddr})
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ScanCmd runs one pipeline in the foreground and prints the run record.
type ScanCmd struct {
	Target string `arg:"" help:"Target URL or hostname."`

	AjaxSpider     bool              `help:"Enable script-driven discovery."`
	ActiveScan     bool              `help:"Enable active probing."`
	AssetDiscovery bool              `help:"Enable subdomain enumeration."`
	SpiderDepth    int               `help:"Spider depth bound (0 = tool default)."`
	Header         map[string]string `help:"Auth headers forwarded to the tools." mapsep:","`
	Headed         bool              `help:"Run the browser with a visible window."`
}

func (c *ScanCmd) Run(cfg *app.Config) error {
	logger := logging.NewStdoutLogger("sentinelscan")

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	runID, err := application.StartScan(context.Background(), model.ScanConfig{
		Target:         c.Target,
		SpiderDepth:    c.SpiderDepth,
		AuthHeaders:    c.Header,
		AjaxSpider:     c.AjaxSpider,
		ActiveScan:     c.ActiveScan,
		AssetDiscovery: c.AssetDiscovery,
		Headless:       !c.Headed,
	})
	if err != nil {
		return err
	}

	events, err := application.ScanEvents(runID)
	if err != nil {
		return err
	}
	for ev := range events {
		logger.Info("scan_event",
			logging.Field{Key: "kind", Value: string(ev.Kind)},
			logging.Field{Key: "phase", Value: string(ev.Phase)},
			logging.Field{Key: "progress", Value: ev.Progress},
			logging.Field{Key: "message", Value: ev.Message})
	}

	state, err := application.ScanState(runID)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !state.Succeeded() {
		return fmt.Errorf("scan settled %s", state.Phase)
	}
	return nil
}

// BulkCmd runs a batch in the foreground and prints the summary.
type BulkCmd struct {
	Targets []string `arg:"" optional:"" help:"Target URLs or hostnames."`

	File        string `help:"File with newline or comma separated targets." type:"path"`
	Concurrency int    `help:"Concurrent targets, clamped to 1-10." default:"3"`
	ActiveScan  bool   `help:"Enable active probing on every target."`
}

func (c *BulkCmd) Run(cfg *app.Config) error {
	logger := logging.NewStdoutLogger("sentinelscan")

	bulkCfg := model.BulkScanConfig{
		Targets:     c.Targets,
		Concurrency: c.Concurrency,
		ScanOptions: model.ScanConfig{
			ActiveScan: c.ActiveScan,
			Headless:   true,
		},
	}
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return fmt.Errorf("read target file: %w", err)
		}
		bulkCfg.RawTargets = string(data)
		bulkCfg.Targets = nil
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	bulkID, err := application.StartBulkScan(context.Background(), bulkCfg)
	if err != nil {
		return err
	}

	events, err := application.BulkEvents(bulkID)
	if err != nil {
		return err
	}
	for ev := range events {
		logger.Info("bulk_event",
			logging.Field{Key: "kind", Value: string(ev.Kind)},
			logging.Field{Key: "target", Value: ev.Target},
			logging.Field{Key: "progress", Value: ev.Progress},
			logging.Field{Key: "error", Value: ev.Error})
	}

	out, err := application.ExportBulkResults(bulkID)
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	summary, err := application.BulkSummary(bulkID)
	if err != nil {
		return err
	}
	if summary != nil && summary.Failed > 0 {
		return fmt.Errorf("%d of %d targets failed", summary.Failed, summary.Total)
	}
	return nil
}
