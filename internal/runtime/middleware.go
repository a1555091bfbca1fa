package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Middleware bounds concurrent tool calls, applies the operation timeout and
// attaches the service logger to each call's context.
type Middleware struct {
	ctrl   *Controller
	logger zerolog.Logger
}

func NewMiddleware(ctrl *Controller, logger zerolog.Logger) *Middleware {
	return &Middleware{ctrl: ctrl, logger: logger}
}

// ToolMiddleware implements mcp-go's tool handler middleware.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limits := m.ctrl.limits
		log := m.logger.With().Str("tool", req.Params.Name).Logger()

		acquireCtx := ctx
		if limits.AcquireRequestTimeout > 0 {
			var cancel context.CancelFunc
			acquireCtx, cancel = context.WithTimeout(ctx, limits.AcquireRequestTimeout)
			defer cancel()
		}
		if err := m.ctrl.AcquireRequest(acquireCtx); err != nil {
			log.Warn().Int("max", limits.MaxConcurrentRequests).Msg("request rejected: busy")
			msg := fmt.Sprintf("BUSY_RESOURCE: concurrent request limit reached (max=%d) | nextSteps: Retry after a short delay", limits.MaxConcurrentRequests)
			return mcp.NewToolResultError(msg), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if limits.OperationTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, limits.OperationTimeout)
		}
		defer cancel()
		callCtx = log.WithContext(callCtx)

		start := time.Now()
		res, err := next(callCtx, req)
		elapsed := time.Since(start)

		if errors.Is(err, context.DeadlineExceeded) || (callCtx.Err() == context.DeadlineExceeded && res == nil && err == nil) {
			log.Warn().Dur("elapsed", elapsed).Msg("tool call timed out")
			return mcp.NewToolResultError(fmt.Sprintf("TIMEOUT: operation exceeded %s | nextSteps: Retry with fewer clusters or a smaller file", limits.OperationTimeout)), nil
		}
		if res != nil && res.IsError {
			log.Debug().Dur("elapsed", elapsed).Msg("tool call returned error result")
		} else {
			log.Debug().Dur("elapsed", elapsed).Msg("tool call finished")
		}
		return res, err
	}
}
