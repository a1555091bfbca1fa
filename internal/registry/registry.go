package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tmc/langchaingo/llms"
)

// DefaultModel sizes text summaries when no client model is configured.
const DefaultModel = "gpt-4o"

// ToolProvider resolves MCP tool definitions and associates runtime metadata.
type ToolProvider interface {
	Tools(context.Context) ([]mcp.Tool, error)
}

// Registry maintains tool definitions, their handlers and the model whose
// context window bounds the text summaries attached to results.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]mcp.Tool
	handlers map[string]server.ToolHandlerFunc
	model    string
}

// New constructs an empty Registry ready for tool population.
func New() *Registry {
	return &Registry{
		tools:    map[string]mcp.Tool{},
		handlers: map[string]server.ToolHandlerFunc{},
		model:    DefaultModel,
	}
}

// WithModel names the client model used to size text summaries.
func (r *Registry) WithModel(model string) {
	if model == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.model = model
}

// Model returns the configured model name.
func (r *Registry) Model() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model
}

// Register stores a tool definition for discovery.
func (r *Registry) Register(tool mcp.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
}

// Add registers tool on s and records both definition and handler.
func (r *Registry) Add(s *server.MCPServer, tool mcp.Tool, h server.ToolHandlerFunc) {
	s.AddTool(tool, h)
	r.Register(tool)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[tool.Name] = h
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Handler returns the handler recorded for a tool.
func (r *Registry) Handler(name string) (server.ToolHandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools, nil
}

// ModelContextSize exposes the configured model's context window when available.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// SummaryBudget is the character budget for a result's text content: one
// thirty-second of the model context, at roughly four characters per token.
func (r *Registry) SummaryBudget() int {
	return r.ModelContextSize(r.Model()) * 4 / 32
}
