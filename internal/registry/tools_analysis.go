package registry

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/shopperinsights/internal/insights"
	"github.com/vinodismyname/shopperinsights/pkg/mcperr"
)

// Analysis tool names.
const (
	ToolSessionMetrics  = "session_metrics"
	ToolPathAnalysis    = "path_analysis"
	ToolFunnelAnalysis  = "funnel_analysis"
	ToolSegmentUsers    = "segment_users"
	ToolKeyMetrics      = "key_metrics"
	ToolBehaviorProfile = "behavior_profile"
	ToolReport          = "clickstream_report"
	ToolExportReport    = "export_report"
)

// RegisterAnalysisTools wires the clickstream analysis tools. Every tool
// accepts dataset_id or path; a path is opened and cached on first use.
func RegisterAnalysisTools(s *server.MCPServer, reg *Registry, an *insights.Analyst) {
	limits := an.Limits

	// session_metrics
	sm := mcp.NewTool(
		ToolSessionMetrics,
		mcp.WithDescription("Aggregate sessions: average duration (seconds between first and last event), average page views, top 5 entry and exit pages, session depth distribution and per-page time spans. Set include_sessions to also return per-session rows (session_id, user_id, duration, page_views, unique_actions, entry/exit page), limit rows per page; pass page.next_cursor back as cursor for the next page. Sessions keep file order; errors include INSUFFICIENT_DATA for an empty file."),
		mcp.WithInputSchema[insights.SessionMetricsInput](),
		mcp.WithOutputSchema[insights.SessionMetricsOutput](),
	)
	reg.Add(s, sm, typedHandler(reg, limits, mcperr.AnalysisFailed, an.SessionMetrics, func(out insights.SessionMetricsOutput) (string, []string) {
		sum := out.Summary
		lines := countLines("entry pages", sum.TopEntryPages, 5)
		lines = append(lines, countLines("exit pages", sum.TopExitPages, 5)...)
		if out.Page != nil {
			lines = append(lines, fmt.Sprintf("session rows: offset=%d returned=%d truncated=%v", out.Page.Offset, out.Page.Returned, out.Page.Truncated))
		}
		return fmt.Sprintf("sessions=%d avg_duration=%.1fs avg_page_views=%.2f avg_time_by_page=%.1fs", sum.TotalSessions, sum.AvgSessionDuration, sum.AvgPageViews, sum.AvgTimeByPage), lines
	}))

	// path_analysis
	pa := mcp.NewTool(
		ToolPathAnalysis,
		mcp.WithDescription("Mine navigation: top 10 page paths and action sequences (steps joined by \"->\"), top 10 page-to-page transitions, and click patterns grouped by \"{category} - {page_type}\" with focus_category ranked first (default Electronics). Counts are per session for paths and per event for clicks; ties keep first-seen order."),
		mcp.WithInputSchema[insights.PathAnalysisInput](),
		mcp.WithOutputSchema[insights.PathAnalysisOutput](),
	)
	reg.Add(s, pa, typedHandler(reg, limits, mcperr.AnalysisFailed, an.PathAnalysis, func(out insights.PathAnalysisOutput) (string, []string) {
		p := out.Paths
		lines := countLines("paths", p.CommonPaths, 5)
		lines = append(lines, countLines("click patterns", p.ClickPatterns, 5)...)
		return fmt.Sprintf("paths=%d action_sequences=%d transitions=%d click_patterns=%d", len(p.CommonPaths), len(p.ActionSequences), len(p.TopTransitions), len(p.ClickPatterns)), lines
	}))

	// funnel_analysis
	fa := mcp.NewTool(
		ToolFunnelAnalysis,
		mcp.WithDescription("Compute the View, Click, Add to Cart, Purchase funnel: sessions reaching each stage (at least one event with that action), the percentage of all sessions, step conversion from the previous stage, and the bottleneck stage with the lowest step conversion. Stages are counted independently, so counts need not decrease."),
		mcp.WithInputSchema[insights.FunnelAnalysisInput](),
		mcp.WithOutputSchema[insights.FunnelAnalysisOutput](),
	)
	reg.Add(s, fa, typedHandler(reg, limits, mcperr.AnalysisFailed, an.FunnelAnalysis, func(out insights.FunnelAnalysisOutput) (string, []string) {
		f := out.Funnel
		lines := make([]string, 0, len(f.Stages))
		for i, st := range f.Stages {
			lines = append(lines, fmt.Sprintf("- %s: %d (%.2f%%)", st.Key, st.Count, f.Rates[i].Value))
		}
		return fmt.Sprintf("sessions=%d bottleneck=%s", f.TotalSessions, f.Bottleneck), lines
	}))

	// segment_users
	su := mcp.NewTool(
		ToolSegmentUsers,
		mcp.WithDescription("Cluster users with k-means on standardized features (sessions, purchases, distinct categories, distinct platforms). Defaults: clusters=4, seed=42; the same file, clusters and seed always produce the same labels, numbered by first appearance. Returns per-segment mean profiles and a page of user assignments; pass next_cursor back as cursor for the following page (the cursor pins dataset, clusters and seed). Errors include INSUFFICIENT_DATA when there are fewer users than clusters and CURSOR_INVALID when the dataset changed."),
		mcp.WithInputSchema[insights.SegmentUsersInput](),
		mcp.WithOutputSchema[insights.SegmentUsersOutput](),
	)
	reg.Add(s, su, typedHandler(reg, limits, mcperr.AnalysisFailed, an.SegmentUsers, func(out insights.SegmentUsersOutput) (string, []string) {
		lines := make([]string, 0, len(out.Profiles))
		for _, p := range out.Profiles {
			lines = append(lines, fmt.Sprintf("- segment %d: users=%d sessions=%.2f purchases=%.2f categories=%.2f platforms=%.2f", p.Segment, p.Users, p.Sessions, p.Purchases, p.CategoryDiversity, p.PlatformDiversity))
		}
		return fmt.Sprintf("clusters=%d seed=%d users=%d returned=%d truncated=%v", out.Clusters, out.Seed, out.Page.Total, out.Page.Returned, out.Page.Truncated), lines
	}))

	// key_metrics
	km := mcp.NewTool(
		ToolKeyMetrics,
		mcp.WithDescription("Headline metrics: distinct users and sessions, conversion rate (users with at least one Purchase over all users, percent), average events per session and bounce rate (single-event sessions, percent)."),
		mcp.WithInputSchema[insights.KeyMetricsInput](),
		mcp.WithOutputSchema[insights.KeyMetricsOutput](),
	)
	reg.Add(s, km, typedHandler(reg, limits, mcperr.AnalysisFailed, an.KeyMetrics, func(out insights.KeyMetricsOutput) (string, []string) {
		m := out.Metrics
		return fmt.Sprintf("users=%d sessions=%d conversion=%.2f%% bounce=%.2f%% pages_per_session=%.2f", m.TotalUsers, m.TotalSessions, m.ConversionRate, m.BounceRate, m.AvgPagesSession), nil
	}))

	// behavior_profile
	bp := mcp.NewTool(
		ToolBehaviorProfile,
		mcp.WithDescription("Describe who does what: device, action and platform distributions, top 5 categories, event counts by hour of day, and Purchase-based sales (top 10 products, categories, platforms and monthly YYYY-MM counts)."),
		mcp.WithInputSchema[insights.BehaviorProfileInput](),
		mcp.WithOutputSchema[insights.BehaviorProfileOutput](),
	)
	reg.Add(s, bp, typedHandler(reg, limits, mcperr.AnalysisFailed, an.BehaviorProfile, func(out insights.BehaviorProfileOutput) (string, []string) {
		lines := countLines("categories", out.Behavior.CategoryPreferences, 5)
		lines = append(lines, countLines("top products", out.Sales.TopProducts, 5)...)
		purchases := 0
		for _, c := range out.Sales.PlatformSales {
			purchases += c.Count
		}
		return fmt.Sprintf("devices=%d platforms=%d active_hours=%d purchases=%d", len(out.Behavior.DeviceUsage), len(out.Behavior.PlatformDistribution), len(out.Behavior.HourlyActivity), purchases), lines
	}))

	// clickstream_report
	rp := mcp.NewTool(
		ToolReport,
		mcp.WithDescription("Run every analysis (sessions, paths, funnel, segmentation, key metrics, behavior, sales) concurrently and return the combined report. Per-user assignments are included, so large files may exceed the payload limit; use segment_users to page them instead. Set allow_partial to report segmentation shortfalls as warnings."),
		mcp.WithInputSchema[insights.ReportInput](),
		mcp.WithOutputSchema[insights.ReportOutput](),
	)
	reg.Add(s, rp, typedHandler(reg, limits, mcperr.AnalysisFailed, an.Report, func(out insights.ReportOutput) (string, []string) {
		r := out.Report
		segments := 0
		if r.Segmentation != nil {
			segments = len(r.Segmentation.Profiles)
		}
		return fmt.Sprintf("rows=%d sessions=%d conversion=%.2f%% bottleneck=%s segments=%d warnings=%d", r.Rows, r.Metrics.TotalSessions, r.Metrics.ConversionRate, r.Funnel.Bottleneck, segments, len(r.Warnings)), r.Warnings
	}))

	// export_report
	ex := mcp.NewTool(
		ToolExportReport,
		mcp.WithDescription("Write the combined report as an .xlsx workbook (one sheet per section) under an allowed directory. Hidden unless SHOPPERINSIGHTS_ENABLE_WRITES is set. Errors include PERMISSION_DENIED and WRITE_FAILED."),
		mcp.WithInputSchema[insights.ExportReportInput](),
		mcp.WithOutputSchema[insights.ExportReportOutput](),
	)
	reg.Add(s, ex, typedHandler(reg, limits, mcperr.WriteFailed, an.ExportReport, func(out insights.ExportReportOutput) (string, []string) {
		return fmt.Sprintf("wrote %s sheets=%d warnings=%d", out.Path, len(out.Sheets), len(out.Warnings)), out.Warnings
	}))
}
