package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func callTool(name string) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	return req
}

func TestMiddleware_AllowsWhenCapacity(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.OperationTimeout = 200 * time.Millisecond
	limits.AcquireRequestTimeout = 50 * time.Millisecond
	mw := NewMiddleware(NewController(limits), zerolog.Nop())

	var hasDeadline bool
	next := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		_, hasDeadline = ctx.Deadline()
		return mcp.NewToolResultText("ok"), nil
	}
	res, err := mw.ToolMiddleware(server.ToolHandlerFunc(next))(context.Background(), callTool("key_metrics"))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.False(t, res.IsError)
	require.True(t, hasDeadline)
}

func TestMiddleware_BusyWhenSaturated(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.AcquireRequestTimeout = 10 * time.Millisecond
	ctrl := NewController(limits)
	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	defer ctrl.ReleaseRequest()

	next := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t.Fatal("next must not run when saturated")
		return nil, nil
	}
	res, err := NewMiddleware(ctrl, zerolog.Nop()).ToolMiddleware(server.ToolHandlerFunc(next))(context.Background(), callTool("segment_users"))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestMiddleware_TimeoutApplied(t *testing.T) {
	limits := NewLimits(1, 1)
	limits.OperationTimeout = 20 * time.Millisecond
	limits.AcquireRequestTimeout = 20 * time.Millisecond

	next := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	res, err := NewMiddleware(NewController(limits), zerolog.Nop()).ToolMiddleware(server.ToolHandlerFunc(next))(context.Background(), callTool("clickstream_report"))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.IsError)
}
