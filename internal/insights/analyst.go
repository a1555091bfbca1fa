package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
	"github.com/vinodismyname/shopperinsights/internal/datasets"
	"github.com/vinodismyname/shopperinsights/internal/export"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/internal/security"
	"github.com/vinodismyname/shopperinsights/pkg/pagination"
)

// Analyst answers clickstream questions over datasets held by the manager.
// Writer bounds export destinations; exports fail when it is nil.
type Analyst struct {
	Limits runtime.Limits
	Mgr    *datasets.Manager
	Writer *security.Manager
}

// resolve returns the handle named by ref, opening ref.Path when no id is set.
func (a *Analyst) resolve(ctx context.Context, ref DatasetRef) (*datasets.Handle, error) {
	if id := strings.TrimSpace(ref.DatasetID); id != "" {
		h, ok := a.Mgr.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", datasets.ErrHandleNotFound, id)
		}
		return h, nil
	}
	path := strings.TrimSpace(ref.Path)
	if path == "" {
		return nil, &clickstream.ValidationError{Kind: clickstream.InvalidOption, Fields: []string{"dataset_id", "path"}, Msg: "dataset_id or path is required"}
	}
	h, _, err := a.Mgr.Open(ctx, path, strings.TrimSpace(ref.Sheet))
	return h, err
}

func meta(h *datasets.Handle) Meta {
	info := h.Info()
	return Meta{DatasetID: info.ID, Source: info.Path, Rows: info.Rows, Sessions: info.Sessions, Users: info.Users}
}

// OpenDataset loads a file, or returns the cached handle when already open.
func (a *Analyst) OpenDataset(ctx context.Context, in OpenDatasetInput) (OpenDatasetOutput, error) {
	var out OpenDatasetOutput
	h, reused, err := a.Mgr.Open(ctx, strings.TrimSpace(in.Path), strings.TrimSpace(in.Sheet))
	if err != nil {
		return out, err
	}
	out.Info = h.Info()
	out.Reused = reused
	out.MaxPayloadBytes = a.Limits.MaxPayloadBytes
	out.PageSize = a.Limits.PageSize
	return out, nil
}

func (a *Analyst) CloseDataset(ctx context.Context, in CloseDatasetInput) (CloseDatasetOutput, error) {
	if err := a.Mgr.CloseHandle(strings.TrimSpace(in.DatasetID)); err != nil {
		return CloseDatasetOutput{}, err
	}
	zerolog.Ctx(ctx).Debug().Str("dataset_id", in.DatasetID).Msg("dataset closed")
	return CloseDatasetOutput{Success: true}, nil
}

func (a *Analyst) ListDatasets(ctx context.Context, _ ListDatasetsInput) (ListDatasetsOutput, error) {
	return ListDatasetsOutput{Datasets: a.Mgr.List(), Capacity: a.Limits.MaxOpenDatasets}, nil
}

// SessionMetrics aggregates per-session statistics. Per-session rows are only
// returned on request, one page of in.Limit rows at a time.
func (a *Analyst) SessionMetrics(ctx context.Context, in SessionMetricsInput) (SessionMetricsOutput, error) {
	var out SessionMetricsOutput
	ref := in.Ref()
	off, ps := 0, a.clampPage(in.Limit)
	cur, err := decodePageCursor(in.Cursor, pagination.UnitSessions)
	if err != nil {
		return out, err
	}
	if cur != nil {
		ref = DatasetRef{DatasetID: cur.Did}
		off, ps = cur.Off, a.clampPage(cur.Ps)
	}

	h, err := a.resolve(ctx, ref)
	if err != nil {
		return out, err
	}
	if cur != nil && !cur.Matches(h.ID, h.Table.Len()) {
		return out, fmt.Errorf("%w: dataset changed since the cursor was issued", pagination.ErrInvalidCursor)
	}
	out.Meta = meta(h)
	sum, err := analytics.AggregateSessions(h.Table)
	if err != nil {
		return out, err
	}
	out.Summary = sum
	if !in.IncludeSessions && cur == nil {
		return out, nil
	}

	total := len(sum.Sessions)
	start, end, next := pagination.Window(off, ps, total)
	out.Sessions = sum.Sessions[start:end]
	out.Page = &PageMeta{Total: total, Offset: start, Returned: end - start, Truncated: next >= 0}
	if next >= 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			Did:  h.ID,
			U:    pagination.UnitSessions,
			Off:  next,
			Ps:   ps,
			Rows: h.Table.Len(),
		})
		if err != nil {
			return out, err
		}
		out.Page.NextCursor = token
	}
	return out, nil
}

func (a *Analyst) PathAnalysis(ctx context.Context, in PathAnalysisInput) (PathAnalysisOutput, error) {
	var out PathAnalysisOutput
	h, err := a.resolve(ctx, in.DatasetRef)
	if err != nil {
		return out, err
	}
	out.Meta = meta(h)
	paths, err := analytics.MinePaths(h.Table)
	if err != nil {
		return out, err
	}
	if focus := strings.TrimSpace(in.FocusCategory); focus != "" && focus != config.DefaultFocusCategory {
		paths.ClickPatterns = analytics.ClickPatterns(h.Table, focus, config.DefaultTopPaths)
	}
	out.Paths = paths
	return out, nil
}

func (a *Analyst) FunnelAnalysis(ctx context.Context, in FunnelAnalysisInput) (FunnelAnalysisOutput, error) {
	var out FunnelAnalysisOutput
	h, err := a.resolve(ctx, in.DatasetRef)
	if err != nil {
		return out, err
	}
	out.Meta = meta(h)
	out.Funnel, err = analytics.AnalyzeFunnel(h.Table)
	return out, err
}

// SegmentUsers clusters users and pages through their assignments. A cursor
// pins the dataset, cluster count and seed of the first page, and is rejected
// once the dataset behind its handle changes.
func (a *Analyst) SegmentUsers(ctx context.Context, in SegmentUsersInput) (SegmentUsersOutput, error) {
	var out SegmentUsersOutput
	ref, opts := in.Ref(), in.ClusterOptions.Segment()
	off, ps := 0, a.clampPage(in.PageSize)

	cur, err := decodePageCursor(in.Cursor, pagination.UnitUsers)
	if err != nil {
		return out, err
	}
	if cur != nil {
		ref = DatasetRef{DatasetID: cur.Did}
		opts.Clusters, opts.Seed = cur.K, cur.Seed
		off, ps = cur.Off, a.clampPage(cur.Ps)
	}

	h, err := a.resolve(ctx, ref)
	if err != nil {
		return out, err
	}
	if cur != nil && !cur.Matches(h.ID, h.Table.Len()) {
		return out, fmt.Errorf("%w: dataset changed since the cursor was issued", pagination.ErrInvalidCursor)
	}
	out.Meta = meta(h)

	seg, err := analytics.SegmentUsers(ctx, h.Table, opts)
	if err != nil {
		return out, err
	}
	out.Clusters, out.Seed, out.Inertia = seg.Clusters, seg.Seed, seg.Inertia
	out.Profiles = seg.Profiles

	total := len(seg.Assignments)
	start, end, next := pagination.Window(off, ps, total)
	out.Assignments = seg.Assignments[start:end]
	out.Page = PageMeta{Total: total, Offset: start, Returned: end - start, Truncated: next >= 0}
	if next >= 0 {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			Did:  h.ID,
			U:    pagination.UnitUsers,
			Off:  next,
			Ps:   ps,
			Rows: h.Table.Len(),
			K:    seg.Clusters,
			Seed: seg.Seed,
		})
		if err != nil {
			return out, err
		}
		out.Page.NextCursor = token
	}
	return out, nil
}

// decodePageCursor returns nil for an empty token. A token issued for another
// unit is rejected.
func decodePageCursor(token string, unit pagination.Unit) (*pagination.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	c, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidCursor, err)
	}
	if c.U != unit {
		return nil, fmt.Errorf("%w: unit %q", pagination.ErrInvalidCursor, c.U)
	}
	return c, nil
}

func (a *Analyst) KeyMetrics(ctx context.Context, in KeyMetricsInput) (KeyMetricsOutput, error) {
	var out KeyMetricsOutput
	h, err := a.resolve(ctx, in.DatasetRef)
	if err != nil {
		return out, err
	}
	out.Meta = meta(h)
	out.Metrics, err = analytics.KeyMetrics(h.Table)
	return out, err
}

func (a *Analyst) BehaviorProfile(ctx context.Context, in BehaviorProfileInput) (BehaviorProfileOutput, error) {
	var out BehaviorProfileOutput
	h, err := a.resolve(ctx, in.DatasetRef)
	if err != nil {
		return out, err
	}
	out.Meta = meta(h)
	if out.Behavior, err = analytics.AnalyzeBehavior(h.Table); err != nil {
		return out, err
	}
	if out.Sales, err = analytics.AnalyzeSales(h.Table); err != nil {
		return out, err
	}
	out.PageTimeSpans, out.AvgTimeByPage = analytics.PageTimeSpans(h.Table)
	return out, nil
}

// Report runs every analysis pass and assembles the combined report.
func (a *Analyst) Report(ctx context.Context, in ReportInput) (ReportOutput, error) {
	var out ReportOutput
	h, err := a.resolve(ctx, in.DatasetRef)
	if err != nil {
		return out, err
	}
	out.Meta = meta(h)
	out.Report, err = analytics.Analyze(ctx, h.Table, analytics.Options{
		Segments:     in.ClusterOptions.Segment(),
		AllowPartial: in.AllowPartial,
	})
	return out, err
}

// ExportReport writes the combined report as a workbook under an allowed
// directory and reports the sheets written.
func (a *Analyst) ExportReport(ctx context.Context, in ExportReportInput) (ExportReportOutput, error) {
	var out ExportReportOutput
	if a.Writer == nil {
		return out, fmt.Errorf("%w: exports are not configured", security.ErrPathDenied)
	}
	dest, err := a.Writer.ValidateWritePath(strings.TrimSpace(in.Output))
	if err != nil {
		return out, err
	}
	rep, err := a.Report(ctx, ReportInput{DatasetRef: in.DatasetRef, ClusterOptions: in.ClusterOptions, AllowPartial: in.AllowPartial})
	if err != nil {
		return out, err
	}
	if err := export.WriteFile(dest, rep.Report); err != nil {
		return out, err
	}
	out.Meta = rep.Meta
	out.Path = dest
	out.Sheets = export.SheetNames()
	out.Warnings = rep.Report.Warnings
	out.WrittenAt = time.Now().UTC()
	zerolog.Ctx(ctx).Info().Str("dataset_id", out.Meta.DatasetID).Str("path", dest).Msg("report exported")
	return out, nil
}

// clampPage applies the default page size and the configured maximum.
func (a *Analyst) clampPage(n int) int {
	if n <= 0 {
		n = a.Limits.PageSize
	}
	if n <= 0 {
		n = config.DefaultPageSize
	}
	if a.Limits.MaxPageSize > 0 && n > a.Limits.MaxPageSize {
		n = a.Limits.MaxPageSize
	}
	return n
}
