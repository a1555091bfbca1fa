package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/shopperinsights/config"
)

func TestNewLimitsDefaults(t *testing.T) {
	limits := NewLimits(0, -1)
	require.Equal(t, config.DefaultMaxConcurrentRequests, limits.MaxConcurrentRequests)
	require.Equal(t, config.DefaultMaxOpenDatasets, limits.MaxOpenDatasets)
	require.Equal(t, config.DefaultMaxRowsPerLoad, limits.MaxRowsPerLoad)
	require.Equal(t, config.DefaultPageSize, limits.PageSize)
	require.Equal(t, config.DefaultOperationTimeout, limits.OperationTimeout)
}

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	ctrl := NewController(limits)
	require.Equal(t, limits, ctrl.LimitsSnapshot())

	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	ctrl.ReleaseRequest()

	require.NoError(t, ctrl.AcquireDataset(context.Background()))
	err := ctrl.AcquireDataset(context.Background())
	require.True(t, errors.Is(err, ErrDatasetCapacity))
	ctrl.ReleaseDataset()
	require.NoError(t, ctrl.AcquireDataset(context.Background()))
	ctrl.ReleaseDataset()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, ctrl.AcquireDataset(ctx), context.Canceled)
}
