package orchestrator

import (
	"context"

	"github.com/sentinelscan/sentinelscan/internal/interfaces"
)

// Toolset is the fixed set of tool capabilities one pipeline run owns.
// Exactly one run may own a toolset at a time; concurrent runs must each be
// given their own isolated instances.
type Toolset struct {
	Browser   interfaces.Browser
	Proxy     interfaces.ScanProxy
	Templates interfaces.TemplateScanner
	Assets    interfaces.AssetDiscoverer
	Reporter  interfaces.Reporter
}

// ToolsetFactory builds an isolated toolset per run. The batch scheduler uses
// it to give every concurrent queue item its own browser/proxy instances.
type ToolsetFactory interface {
	NewToolset(ctx context.Context) (*Toolset, error)
}

// ToolsetFactoryFunc adapts a function to the ToolsetFactory interface.
type ToolsetFactoryFunc func(ctx context.Context) (*Toolset, error)

func (f ToolsetFactoryFunc) NewToolset(ctx context.Context) (*Toolset, error) {
	return f(ctx)
}
