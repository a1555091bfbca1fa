package registry

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/shopperinsights/internal/insights"
	"github.com/vinodismyname/shopperinsights/pkg/mcperr"
)

// Dataset tool names.
const (
	ToolOpenDataset  = "open_dataset"
	ToolCloseDataset = "close_dataset"
	ToolListDatasets = "list_datasets"
)

// RegisterDatasetTools wires the dataset lifecycle tools.
func RegisterDatasetTools(s *server.MCPServer, reg *Registry, an *insights.Analyst) {
	limits := an.Limits

	// open_dataset
	open := mcp.NewTool(
		ToolOpenDataset,
		mcp.WithDescription("Load a clickstream file (.csv or .xlsx) and return a dataset handle with row, session and user counts. Required columns: user_id, session_id, timestamp, page_type, product_id, category, action, device_type, platform (header case and spacing are ignored). Opening the same file and sheet again returns the cached handle with reused=true. Handles expire after an idle period; errors include PERMISSION_DENIED (outside allowed directories), VALIDATION (missing columns), PARSE_FAILED (bad timestamp with row number) and LIMIT_EXCEEDED (too many open datasets)."),
		mcp.WithInputSchema[insights.OpenDatasetInput](),
		mcp.WithOutputSchema[insights.OpenDatasetOutput](),
	)
	reg.Add(s, open, typedHandler(reg, limits, mcperr.OpenFailed, an.OpenDataset, func(out insights.OpenDatasetOutput) (string, []string) {
		return fmt.Sprintf("dataset_id=%s rows=%d sessions=%d users=%d reused=%v", out.ID, out.Rows, out.Sessions, out.Users, out.Reused), nil
	}))

	// close_dataset
	closeTool := mcp.NewTool(
		ToolCloseDataset,
		mcp.WithDescription("Release a dataset handle and free its slot. Use when finished with a file or when open_dataset reports LIMIT_EXCEEDED."),
		mcp.WithInputSchema[insights.CloseDatasetInput](),
		mcp.WithOutputSchema[insights.CloseDatasetOutput](),
	)
	reg.Add(s, closeTool, typedHandler(reg, limits, mcperr.InvalidHandle, an.CloseDataset, func(out insights.CloseDatasetOutput) (string, []string) {
		return fmt.Sprintf("closed=%v", out.Success), nil
	}))

	// list_datasets
	list := mcp.NewTool(
		ToolListDatasets,
		mcp.WithDescription("List open dataset handles, oldest first, with source path, format, counts and idle expiry."),
		mcp.WithInputSchema[insights.ListDatasetsInput](),
		mcp.WithOutputSchema[insights.ListDatasetsOutput](),
	)
	reg.Add(s, list, typedHandler(reg, limits, mcperr.AnalysisFailed, an.ListDatasets, func(out insights.ListDatasetsOutput) (string, []string) {
		lines := make([]string, 0, len(out.Datasets))
		for _, d := range out.Datasets {
			lines = append(lines, fmt.Sprintf("- %s %s rows=%d", d.ID, d.Path, d.Rows))
		}
		return fmt.Sprintf("datasets=%d capacity=%d", len(out.Datasets), out.Capacity), lines
	}))
}
