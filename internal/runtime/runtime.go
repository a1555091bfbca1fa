package runtime

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vinodismyname/shopperinsights/config"
)

// Limits are the guardrails applied to tool calls and loaded datasets.
type Limits struct {
	MaxConcurrentRequests int
	MaxOpenDatasets       int

	// Load and response bounds
	MaxPayloadBytes int
	MaxRowsPerLoad  int
	PageSize        int
	MaxPageSize     int

	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
}

// NewLimits fills unset caps from config defaults.
func NewLimits(maxConcurrentRequests, maxOpenDatasets int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenDatasets <= 0 {
		maxOpenDatasets = config.DefaultMaxOpenDatasets
	}
	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenDatasets:       maxOpenDatasets,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		MaxRowsPerLoad:        config.DefaultMaxRowsPerLoad,
		PageSize:              config.DefaultPageSize,
		MaxPageSize:           config.DefaultMaxPageSize,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
	}
}

// Controller owns the request and dataset-slot semaphores.
type Controller struct {
	limits   Limits
	requests *semaphore.Weighted
	datasets *semaphore.Weighted
}

func NewController(limits Limits) *Controller {
	return &Controller{
		limits:   limits,
		requests: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		datasets: semaphore.NewWeighted(int64(limits.MaxOpenDatasets)),
	}
}

// AcquireRequest blocks until a request slot is free or ctx is done.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	return c.requests.Acquire(ctx, 1)
}

func (c *Controller) ReleaseRequest() { c.requests.Release(1) }

// AcquireDataset reserves a slot for one loaded table. It never waits: a full
// cache is reported immediately so the caller can close something first.
func (c *Controller) AcquireDataset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.datasets.TryAcquire(1) {
		return ErrDatasetCapacity
	}
	return nil
}

func (c *Controller) ReleaseDataset() { c.datasets.Release(1) }

// LimitsSnapshot exposes the configured guardrails.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
