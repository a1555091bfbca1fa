package registry

import (
	"context"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// EnvEnableWrites opts into tools that write files.
const EnvEnableWrites = "SHOPPERINSIGHTS_ENABLE_WRITES"

// WriteToolFilter hides tools that write files unless explicitly enabled.
type WriteToolFilter struct {
	allowWrites bool
}

func NewWriteToolFilter(allowWrites bool) *WriteToolFilter {
	return &WriteToolFilter{allowWrites: allowWrites}
}

// NewWriteToolFilterFromEnv reads EnvEnableWrites ("1", "true" or "yes").
func NewWriteToolFilterFromEnv() *WriteToolFilter {
	return NewWriteToolFilter(WritesEnabled())
}

// WritesEnabled reports whether EnvEnableWrites is set to a truthy value.
func WritesEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(EnvEnableWrites)))
	return v == "1" || v == "true" || v == "yes"
}

// FilterTools implements server tool filtering semantics. When writes are
// disabled, export_ and write_ tools are excluded from discovery.
func (f *WriteToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowWrites {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if isWriteTool(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isWriteTool(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "export_") || strings.HasPrefix(name, "write_")
}
