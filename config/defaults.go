package config

import "time"

// Default runtime limits and guardrails for the Shopper Insights server.
// They are referenced by internal/runtime, internal/datasets and internal/analytics.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 10
	DefaultMaxOpenDatasets       = 4

	// Payload and row limits
	DefaultMaxPayloadBytes = 128 * 1024 // 128KB
	DefaultMaxRowsPerLoad  = 1_000_000
	DefaultPageSize        = 100 // segment assignments per page
	DefaultMaxPageSize     = 1000
)

const (
	// Timeouts
	DefaultOperationTimeout      = 30 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second

	// Dataset cache
	DefaultDatasetIdleTTL       = 15 * time.Minute
	DefaultDatasetCleanupPeriod = time.Minute
)

const (
	// Ranked output sizes
	DefaultTopPaths       = 10
	DefaultTopEntryExit   = 5
	DefaultTopDepths      = 10
	DefaultTopCategories  = 5
	DefaultTopProducts    = 10
	DefaultPathSeparator  = "->"
	DefaultFocusCategory  = "Electronics"
	DefaultClickAction    = "Click"
	DefaultPurchaseAction = "Purchase"
)

const (
	// Segmentation
	DefaultClusterCount  = 4
	DefaultClusterSeed   = 42
	DefaultClusterRuns   = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)
