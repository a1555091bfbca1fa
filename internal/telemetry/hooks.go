package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks logs MCP session and tool lifecycle events. Tool calls are timed from
// the before-call hook to the after-call hook by request id.
type Hooks struct {
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewHooks constructs a Hooks instance with the provided logger.
func NewHooks(logger zerolog.Logger) *Hooks {
	return &Hooks{logger: logger, now: time.Now, starts: map[string]time.Time{}}
}

// Server returns mcp-go hooks bound to h.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionStart(session.SessionID())
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.OnSessionEnd(session.SessionID())
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.toolStarted(id)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		h.OnToolCall(req.Params.Name, h.toolElapsed(id), res != nil && res.IsError)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.toolElapsed(id)
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}

// OnSessionStart records the start of a client session.
func (h *Hooks) OnSessionStart(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session started")
}

// OnSessionEnd records the end of a client session.
func (h *Hooks) OnSessionEnd(sessionID string) {
	h.logger.Info().Str("session_id", sessionID).Msg("session ended")
}

// OnToolCall logs a tool invocation and whether it returned a tool error.
func (h *Hooks) OnToolCall(toolName string, duration time.Duration, toolError bool) {
	evt := h.logger.Info()
	if toolError {
		evt = h.logger.Warn()
	}
	evt.Str("tool", toolName).Dur("duration", duration).Bool("tool_error", toolError).Msg("tool call served")
}

func (h *Hooks) toolStarted(id any) {
	h.mu.Lock()
	h.starts[key(id)] = h.now()
	h.mu.Unlock()
}

// toolElapsed returns the time since toolStarted for id and forgets it; zero
// when the start was not seen.
func (h *Hooks) toolElapsed(id any) time.Duration {
	k := key(id)
	h.mu.Lock()
	start, ok := h.starts[k]
	delete(h.starts, k)
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return h.now().Sub(start)
}

// Pending reports calls that started but have not finished.
func (h *Hooks) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.starts)
}

func key(id any) string { return fmt.Sprint(id) }
