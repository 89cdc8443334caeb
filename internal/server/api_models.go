package server

// StartScanRequest is the payload for launching a single-target scan.
type StartScanRequest struct {
	Target         string            `json:"target" example:"https://example.com"`
	SpiderDepth    int               `json:"spider_depth,omitempty" example:"3"`
	AuthHeaders    map[string]string `json:"auth_headers,omitempty"`
	AjaxSpider     bool              `json:"ajax_spider" example:"false"`
	ActiveScan     bool              `json:"active_scan" example:"true"`
	AssetDiscovery bool              `json:"asset_discovery" example:"false"`
	AIEnrichment   bool              `json:"ai_enrichment" example:"false"`
	Headless       bool              `json:"headless" example:"true"`
}

// StartScanResponse carries the ID of the accepted run.
type StartScanResponse struct {
	RunID string `json:"run_id" example:"7f6c0a4e-33d4-4f0e-9a51-0f2b6a3d9a11"`
}

// StartBulkScanRequest is the payload for launching a batch. Targets may be
// given as one newline/comma separated blob or as an explicit list.
type StartBulkScanRequest struct {
	Targets     string           `json:"targets,omitempty" example:"example.com, https://test.com"`
	TargetList  []string         `json:"target_list,omitempty"`
	Concurrency int              `json:"concurrency" example:"3"`
	Options     StartScanRequest `json:"options"`
}

// StartBulkScanResponse carries the ID of the accepted batch.
type StartBulkScanResponse struct {
	BulkID string `json:"bulk_id" example:"b2f1c9d0-5cd0-4b9e-8b43-52a3f7cf2f44"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
