package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/pkg/mcperr"
	"github.com/vinodismyname/shopperinsights/pkg/validation"
)

// describeFunc renders the one-line summary and optional detail lines of a result.
type describeFunc[Out any] func(Out) (string, []string)

// typedHandler validates input, runs fn and maps failures to catalog errors.
// Successful results carry the structured output plus a bounded text summary.
func typedHandler[In, Out any](reg *Registry, limits runtime.Limits, fallback mcperr.Code, fn func(context.Context, In) (Out, error), describe describeFunc[Out]) server.ToolHandlerFunc {
	return mcp.NewTypedToolHandler(func(ctx context.Context, req mcp.CallToolRequest, in In) (*mcp.CallToolResult, error) {
		if msg := validation.ValidateStruct(in); msg != "" {
			return mcperr.FromText(msg), nil
		}
		out, err := fn(ctx, in)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("tool", req.Params.Name).Msg("tool failed")
			return mcperr.FromError(err, fallback), nil
		}
		summary, lines := describe(out)
		return respond(reg, limits, out, summary, lines), nil
	})
}

// respond enforces the payload cap and attaches the text summary.
func respond(reg *Registry, limits runtime.Limits, out any, summary string, lines []string) *mcp.CallToolResult {
	b, err := json.Marshal(out)
	if err != nil {
		return mcperr.Wrapf(mcperr.AnalysisFailed, "encode result: %v", err)
	}
	if limits.MaxPayloadBytes > 0 && len(b) > limits.MaxPayloadBytes {
		return mcperr.Wrapf(mcperr.PayloadTooLarge, "result is %d bytes; limit is %d", len(b), limits.MaxPayloadBytes)
	}
	text := clip(strings.Join(append([]string{summary}, lines...), "\n"), reg.SummaryBudget())
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(text)}
	return res
}

// clip cuts s to at most n bytes on a line boundary when one is available.
func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n..."
}

// countLines renders up to max ranked entries as "- key: count".
func countLines(label string, counts []analytics.Count, max int) []string {
	if len(counts) == 0 {
		return nil
	}
	if max > 0 && len(counts) > max {
		counts = counts[:max]
	}
	lines := make([]string, 0, len(counts)+1)
	lines = append(lines, label+":")
	for _, c := range counts {
		lines = append(lines, fmt.Sprintf("- %s: %d", c.Key, c.Count))
	}
	return lines
}
