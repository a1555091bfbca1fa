package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/shopperinsights/internal/datasets"
	"github.com/vinodismyname/shopperinsights/internal/insights"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/internal/security"
)

const clicksCSV = `user_id,session_id,timestamp,page_type,product_id,category,action,device_type,platform
U1,S1,2024-03-01 10:00:00,Home,P1,Electronics,View,Mobile,Web
U1,S1,2024-03-01 10:01:00,Product,P1,Electronics,Click,Mobile,Web
U2,S2,2024-03-01 11:00:00,Home,P2,Books,View,Desktop,iOS
U2,S2,2024-03-01 11:05:00,Checkout,P2,Books,Purchase,Desktop,iOS
U3,S3,2024-03-02 09:00:00,Home,P3,Books,View,Mobile,Android
`

type env struct {
	dir  string
	path string
	reg  *Registry
}

func setup(t *testing.T, limits runtime.Limits) env {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "clicks.csv")
	require.NoError(t, os.WriteFile(path, []byte(clicksCSV), 0o644))

	sec, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)
	mgr := datasets.NewManager(datasets.Options{Gate: runtime.NewController(limits), Validator: sec})
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	reg := New()
	srv := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))
	an := &insights.Analyst{Limits: limits, Mgr: mgr}
	RegisterDatasetTools(srv, reg, an)
	RegisterAnalysisTools(srv, reg, an)
	return env{dir: dir, path: path, reg: reg}
}

func call(t *testing.T, reg *Registry, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h, ok := reg.Handler(name)
	require.True(t, ok, name)
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestToolsRegistered(t *testing.T) {
	e := setup(t, runtime.NewLimits(2, 2))
	tools, err := e.reg.Tools(context.Background())
	require.NoError(t, err)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	require.Equal(t, []string{
		ToolBehaviorProfile, ToolReport, ToolCloseDataset, ToolExportReport, ToolFunnelAnalysis,
		ToolKeyMetrics, ToolListDatasets, ToolOpenDataset, ToolPathAnalysis, ToolSegmentUsers, ToolSessionMetrics,
	}, names)

	km, ok := e.reg.Get(ToolKeyMetrics)
	require.True(t, ok)
	require.Contains(t, km.Description, "users with at least one Purchase over all users")

	visible := NewWriteToolFilter(false).FilterTools(context.Background(), tools)
	require.Len(t, visible, len(tools)-1)
	for _, tool := range visible {
		require.NotEqual(t, ToolExportReport, tool.Name)
	}
}

func TestOpenDatasetAndKeyMetrics(t *testing.T) {
	e := setup(t, runtime.NewLimits(2, 2))

	res := call(t, e.reg, ToolOpenDataset, map[string]any{"path": e.path})
	require.False(t, res.IsError, text(t, res))
	require.Contains(t, text(t, res), "rows=5 sessions=3 users=3 reused=false")
	out, ok := res.StructuredContent.(insights.OpenDatasetOutput)
	require.True(t, ok)

	res = call(t, e.reg, ToolKeyMetrics, map[string]any{"dataset_id": out.ID})
	require.False(t, res.IsError, text(t, res))
	require.True(t, strings.HasPrefix(text(t, res), "users=3 sessions=3 conversion=33.33%"), text(t, res))
}

func TestToolErrorsUseCatalogCodes(t *testing.T) {
	e := setup(t, runtime.NewLimits(2, 2))
	outside := filepath.Join(t.TempDir(), "clicks.csv")
	require.NoError(t, os.WriteFile(outside, []byte(clicksCSV), 0o644))

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"bad extension", ToolOpenDataset, map[string]any{"path": "clicks.json"}, "VALIDATION: path must be a clickstream file"},
		{"no dataset", ToolFunnelAnalysis, map[string]any{}, "VALIDATION: datasetid is required (or supply path)"},
		{"no dataset or cursor", ToolSegmentUsers, map[string]any{}, "VALIDATION: datasetid is required (or supply path or cursor)"},
		{"bad cursor", ToolSegmentUsers, map[string]any{"cursor": "@@"}, "CURSOR_INVALID:"},
		{"unknown handle", ToolKeyMetrics, map[string]any{"dataset_id": "missing"}, "INVALID_HANDLE:"},
		{"outside allow list", ToolKeyMetrics, map[string]any{"path": outside}, "PERMISSION_DENIED:"},
		{"too many clusters", ToolSegmentUsers, map[string]any{"path": e.path, "clusters": 5}, "INSUFFICIENT_DATA:"},
		{"exports off", ToolExportReport, map[string]any{"path": e.path, "output": filepath.Join(e.dir, "r.xlsx")}, "PERMISSION_DENIED:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, e.reg, tt.tool, tt.args)
			require.True(t, res.IsError)
			require.True(t, strings.HasPrefix(text(t, res), tt.want), text(t, res))
			require.Contains(t, text(t, res), "nextSteps:")
		})
	}
}

func TestPayloadLimit(t *testing.T) {
	limits := runtime.NewLimits(2, 2)
	limits.MaxPayloadBytes = 64
	e := setup(t, limits)

	res := call(t, e.reg, ToolReport, map[string]any{"path": e.path, "clusters": 2})
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(text(t, res), "PAYLOAD_TOO_LARGE:"), text(t, res))
}

func TestSegmentUsersCursorRoundTrip(t *testing.T) {
	e := setup(t, runtime.NewLimits(2, 2))

	res := call(t, e.reg, ToolSegmentUsers, map[string]any{"path": e.path, "clusters": 2, "page_size": 2})
	require.False(t, res.IsError, text(t, res))
	first := res.StructuredContent.(insights.SegmentUsersOutput)
	require.Len(t, first.Assignments, 2)
	require.NotEmpty(t, first.Page.NextCursor)

	res = call(t, e.reg, ToolSegmentUsers, map[string]any{"cursor": first.Page.NextCursor})
	require.False(t, res.IsError, text(t, res))
	second := res.StructuredContent.(insights.SegmentUsersOutput)
	require.Len(t, second.Assignments, 1)
	require.Equal(t, "U3", second.Assignments[0].UserID)
	require.Empty(t, second.Page.NextCursor)
}

func TestClip(t *testing.T) {
	require.Equal(t, "abc", clip("abc", 10))
	require.Equal(t, "abc", clip("abc", 0))
	require.Equal(t, "line1\n...", clip("line1\nline2\nline3", 8))
	require.Equal(t, "abcd\n...", clip("abcdefgh", 4))
}
