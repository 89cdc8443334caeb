package orchestrator

import (
	"context"

	"github.com/sentinelscan/sentinelscan/internal/model"
)

// phaseStep is one entry of the pipeline's phase table. This table is the
// single canonical definition of phase order, progress weights and
// recoverability; the presentation layer reads the same table through
// PhaseWeights.
type phaseStep struct {
	phase  model.Phase
	weight int

	// recoverable phases record their error as a warning and the pipeline
	// proceeds; non-recoverable phases abort the run as failed.
	recoverable bool

	// skip, when non-nil, can exclude the phase by configuration. A skipped
	// phase still credits its full weight.
	skip func(cfg *model.ScanConfig) (bool, string)

	// run is a method expression, so the receiver comes first.
	run func(o *Orchestrator, ctx context.Context) error

	// remediation is the operator hint attached to errors from this phase.
	remediation string
}

// pipeline is the fixed phase order. Weights sum to exactly 100; the
// transition rule credits each weight fully before the next phase begins, so
// progress always lands on 100 at any terminal outcome.
var pipeline []phaseStep

// The table is assigned in init rather than in the var declaration because
// the run method expressions themselves read pipeline, which the compiler
// would otherwise reject as an initialization cycle.
func init() {
	pipeline = []phaseStep{
		{
			phase:       model.PhaseBrowserInit,
			weight:      5,
			recoverable: false,
			run:         (*Orchestrator).runBrowserInit,
			remediation: "ensure a Chrome/Chromium binary is installed and reachable",
		},
		{
			phase:       model.PhaseProxyStart,
			weight:      5,
			recoverable: true,
			run:         (*Orchestrator).runProxyStart,
			remediation: "verify the scan proxy daemon is running and its API is reachable",
		},
		{
			phase:       model.PhaseNavigating,
			weight:      10,
			recoverable: true,
			run:         (*Orchestrator).runNavigate,
			remediation: "verify target URL is accessible",
		},
		{
			phase:       model.PhaseSpider,
			weight:      20,
			recoverable: true,
			run:         (*Orchestrator).runSpider,
			remediation: "verify target URL is accessible and serves crawlable content",
		},
		{
			phase:       model.PhaseAjaxSpider,
			weight:      10,
			recoverable: true,
			skip: func(cfg *model.ScanConfig) (bool, string) {
				if !cfg.AjaxSpider {
					return true, "ajax spider disabled by configuration"
				}
				return false, ""
			},
			run:         (*Orchestrator).runAjaxSpider,
			remediation: "check that the proxy's ajax spider engine is available",
		},
		{
			phase:       model.PhaseActiveScan,
			weight:      25,
			recoverable: true,
			skip: func(cfg *model.ScanConfig) (bool, string) {
				if !cfg.ActiveScan {
					return true, "passive-only scan, active probing disabled"
				}
				return false, ""
			},
			run:         (*Orchestrator).runActiveScan,
			remediation: "check the proxy's active scan policy configuration",
		},
		{
			phase:       model.PhaseNucleiScan,
			weight:      15,
			recoverable: true,
			run:         (*Orchestrator).runNucleiScan,
			remediation: "ensure the nuclei binary and its templates are installed",
		},
		{
			phase:       model.PhaseAssetDiscovery,
			weight:      5,
			recoverable: true,
			skip: func(cfg *model.ScanConfig) (bool, string) {
				if !cfg.AssetDiscovery {
					return true, "asset discovery disabled by configuration"
				}
				return false, ""
			},
			run:         (*Orchestrator).runAssetDiscovery,
			remediation: "ensure the subdomain discovery tool is installed",
		},
		{
			phase:       model.PhaseReporting,
			weight:      5,
			recoverable: false,
			run:         (*Orchestrator).runReporting,
			remediation: "check that the report output directory exists and is writable",
		},
	}
}

// PhaseWeights returns the canonical phase weight table in execution order.
func PhaseWeights() map[model.Phase]int {
	weights := make(map[model.Phase]int, len(pipeline))
	for _, step := range pipeline {
		weights[step.phase] = step.weight
	}
	return weights
}

// PhaseOrder returns the phases in execution order.
func PhaseOrder() []model.Phase {
	order := make([]model.Phase, 0, len(pipeline))
	for _, step := range pipeline {
		order = append(order, step.phase)
	}
	return order
}

// TotalWeight sums the phase weights. It is 100 by contract.
func TotalWeight() int {
	total := 0
	for _, step := range pipeline {
		total += step.weight
	}
	return total
}
