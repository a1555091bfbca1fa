package insights

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/datasets"
	"github.com/vinodismyname/shopperinsights/internal/export"
	"github.com/vinodismyname/shopperinsights/internal/runtime"
	"github.com/vinodismyname/shopperinsights/internal/security"
	"github.com/vinodismyname/shopperinsights/pkg/pagination"
)

const clicksCSV = `user_id,session_id,timestamp,page_type,product_id,category,action,device_type,platform
U1,S1,2024-03-01 10:00:00,Home,P1,Electronics,View,Mobile,Web
U1,S1,2024-03-01 10:01:00,Product,P1,Electronics,Click,Mobile,Web
U2,S2,2024-03-01 11:00:00,Home,P2,Books,View,Desktop,iOS
U2,S2,2024-03-01 11:02:00,Product,P2,Books,Click,Desktop,iOS
U2,S2,2024-03-01 11:05:00,Checkout,P2,Books,Purchase,Desktop,iOS
U3,S3,2024-03-02 09:00:00,Home,P3,Books,View,Mobile,Android
U4,S4,2024-03-02 12:00:00,Product,P4,Electronics,Click,Tablet,Web
U4,S5,2024-03-03 12:00:00,Checkout,P4,Electronics,Purchase,Tablet,Web
U5,S6,2024-03-03 13:00:00,Home,P5,Toys,View,Desktop,Web
`

type fixture struct {
	dir  string
	path string
	a    *Analyst
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "clicks.csv")
	require.NoError(t, os.WriteFile(path, []byte(clicksCSV), 0o644))

	reader, err := security.NewManager([]string{dir}, nil)
	require.NoError(t, err)
	writer, err := security.NewManager([]string{dir}, []string{".xlsx"})
	require.NoError(t, err)

	limits := runtime.NewLimits(4, 2)
	ctrl := runtime.NewController(limits)
	mgr := datasets.NewManager(datasets.Options{Gate: ctrl, Validator: reader})
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	return fixture{dir: dir, path: path, a: &Analyst{Limits: limits, Mgr: mgr, Writer: writer}}
}

func TestOpenListClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.a.OpenDataset(ctx, OpenDatasetInput{Path: f.path})
	require.NoError(t, err)
	require.False(t, out.Reused)
	require.Equal(t, 9, out.Rows)
	require.Equal(t, 6, out.Sessions)
	require.Equal(t, 5, out.Users)
	require.Equal(t, f.a.Limits.MaxPayloadBytes, out.MaxPayloadBytes)

	again, err := f.a.OpenDataset(ctx, OpenDatasetInput{Path: f.path})
	require.NoError(t, err)
	require.True(t, again.Reused)
	require.Equal(t, out.ID, again.ID)

	list, err := f.a.ListDatasets(ctx, ListDatasetsInput{})
	require.NoError(t, err)
	require.Len(t, list.Datasets, 1)
	require.Equal(t, 2, list.Capacity)

	closed, err := f.a.CloseDataset(ctx, CloseDatasetInput{DatasetID: out.ID})
	require.NoError(t, err)
	require.True(t, closed.Success)

	_, err = f.a.KeyMetrics(ctx, KeyMetricsInput{DatasetRef{DatasetID: out.ID}})
	require.True(t, errors.Is(err, datasets.ErrHandleNotFound))
}

func TestPathOpensOnDemand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	km, err := f.a.KeyMetrics(ctx, KeyMetricsInput{DatasetRef{Path: f.path}})
	require.NoError(t, err)
	require.Equal(t, 5, km.Metrics.TotalUsers)
	require.Equal(t, 6, km.Metrics.TotalSessions)
	require.NotEmpty(t, km.Meta.DatasetID)

	// The second call reuses the cached handle.
	fa, err := f.a.FunnelAnalysis(ctx, FunnelAnalysisInput{DatasetRef{Path: f.path}})
	require.NoError(t, err)
	require.Equal(t, km.Meta.DatasetID, fa.Meta.DatasetID)
	require.Equal(t, 6, fa.Funnel.TotalSessions)
	require.Equal(t, 1, f.a.Mgr.Count())

	outside := filepath.Join(t.TempDir(), "clicks.csv")
	require.NoError(t, os.WriteFile(outside, []byte(clicksCSV), 0o644))
	_, err = f.a.KeyMetrics(ctx, KeyMetricsInput{DatasetRef{Path: outside}})
	require.True(t, errors.Is(err, security.ErrPathDenied))
}

func TestSessionMetricsPagesWithCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.a.SessionMetrics(ctx, SessionMetricsInput{Path: f.path})
	require.NoError(t, err)
	require.Equal(t, 6, out.Summary.TotalSessions)
	require.Nil(t, out.Sessions)
	require.Nil(t, out.Page)

	out, err = f.a.SessionMetrics(ctx, SessionMetricsInput{Path: f.path, IncludeSessions: true, Limit: 4})
	require.NoError(t, err)
	require.Len(t, out.Sessions, 4)
	require.Equal(t, "S1", out.Sessions[0].SessionID)
	require.Equal(t, 6, out.Page.Total)
	require.True(t, out.Page.Truncated)
	require.NotEmpty(t, out.Page.NextCursor)

	// A cursor alone continues the listing.
	next, err := f.a.SessionMetrics(ctx, SessionMetricsInput{Cursor: out.Page.NextCursor})
	require.NoError(t, err)
	require.Equal(t, out.Meta.DatasetID, next.Meta.DatasetID)
	require.Len(t, next.Sessions, 2)
	require.Equal(t, "S5", next.Sessions[0].SessionID)
	require.Equal(t, "S6", next.Sessions[1].SessionID)
	require.Equal(t, 4, next.Page.Offset)
	require.False(t, next.Page.Truncated)
	require.Empty(t, next.Page.NextCursor)

	users, err := pagination.EncodeCursor(pagination.Cursor{Did: out.Meta.DatasetID, U: pagination.UnitUsers, Ps: 2, Rows: 9})
	require.NoError(t, err)
	_, err = f.a.SessionMetrics(ctx, SessionMetricsInput{Cursor: users})
	require.True(t, errors.Is(err, pagination.ErrInvalidCursor))

	stale, err := pagination.EncodeCursor(pagination.Cursor{Did: out.Meta.DatasetID, U: pagination.UnitSessions, Ps: 2, Rows: 7})
	require.NoError(t, err)
	_, err = f.a.SessionMetrics(ctx, SessionMetricsInput{Cursor: stale})
	require.True(t, errors.Is(err, pagination.ErrInvalidCursor))
}

func TestPathAnalysisFocusCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	def, err := f.a.PathAnalysis(ctx, PathAnalysisInput{DatasetRef: DatasetRef{Path: f.path}})
	require.NoError(t, err)
	require.Equal(t, analytics.Count{Key: "Electronics - Product", Count: 2}, def.Paths.ClickPatterns[0])

	books, err := f.a.PathAnalysis(ctx, PathAnalysisInput{DatasetRef: DatasetRef{Path: f.path}, FocusCategory: "Books"})
	require.NoError(t, err)
	require.Equal(t, analytics.Count{Key: "Books - Product", Count: 1}, books.Paths.ClickPatterns[0])
	require.Equal(t, def.Paths.CommonPaths, books.Paths.CommonPaths)
}

func TestSegmentUsersPagesWithCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := SegmentUsersInput{Path: f.path, ClusterOptions: ClusterOptions{Clusters: 2}, PageSize: 2}
	first, err := f.a.SegmentUsers(ctx, in)
	require.NoError(t, err)
	require.Equal(t, 2, first.Clusters)
	require.Equal(t, uint64(42), first.Seed)
	require.Equal(t, 5, first.Page.Total)
	require.Len(t, first.Assignments, 2)
	require.Equal(t, 0, first.Assignments[0].Segment)
	require.True(t, first.Page.Truncated)
	require.NotEmpty(t, first.Page.NextCursor)

	var users []string
	for _, a := range first.Assignments {
		users = append(users, a.UserID)
	}
	token := first.Page.NextCursor
	for token != "" {
		page, err := f.a.SegmentUsers(ctx, SegmentUsersInput{Cursor: token})
		require.NoError(t, err)
		require.Equal(t, first.Profiles, page.Profiles)
		for _, a := range page.Assignments {
			users = append(users, a.UserID)
		}
		token = page.Page.NextCursor
	}
	require.Equal(t, []string{"U1", "U2", "U3", "U4", "U5"}, users)
}

func TestSegmentUsersRejectsStaleCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open, err := f.a.OpenDataset(ctx, OpenDatasetInput{Path: f.path})
	require.NoError(t, err)

	stale, err := pagination.EncodeCursor(pagination.Cursor{Did: open.ID, U: pagination.UnitUsers, Ps: 2, Rows: 99, K: 2})
	require.NoError(t, err)
	_, err = f.a.SegmentUsers(ctx, SegmentUsersInput{Cursor: stale})
	require.True(t, errors.Is(err, pagination.ErrInvalidCursor))

	wrongUnit, err := pagination.EncodeCursor(pagination.Cursor{Did: open.ID, U: pagination.UnitSessions, Ps: 2, Rows: 9, K: 2})
	require.NoError(t, err)
	_, err = f.a.SegmentUsers(ctx, SegmentUsersInput{Cursor: wrongUnit})
	require.True(t, errors.Is(err, pagination.ErrInvalidCursor))

	_, err = f.a.SegmentUsers(ctx, SegmentUsersInput{Cursor: "%%%"})
	require.True(t, errors.Is(err, pagination.ErrInvalidCursor))
}

func TestSegmentUsersTooFewUsers(t *testing.T) {
	f := newFixture(t)
	_, err := f.a.SegmentUsers(context.Background(), SegmentUsersInput{Path: f.path, ClusterOptions: ClusterOptions{Clusters: 6}})
	require.True(t, errors.Is(err, analytics.ErrInsufficientData))
}

func TestReportAllowPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref := DatasetRef{Path: f.path}

	_, err := f.a.Report(ctx, ReportInput{DatasetRef: ref, ClusterOptions: ClusterOptions{Clusters: 6}})
	require.True(t, errors.Is(err, analytics.ErrInsufficientData))

	out, err := f.a.Report(ctx, ReportInput{DatasetRef: ref, ClusterOptions: ClusterOptions{Clusters: 6}, AllowPartial: true})
	require.NoError(t, err)
	require.Nil(t, out.Report.Segmentation)
	require.Len(t, out.Report.Warnings, 1)
	require.Equal(t, 9, out.Report.Rows)
}

func TestBehaviorProfile(t *testing.T) {
	f := newFixture(t)
	out, err := f.a.BehaviorProfile(context.Background(), BehaviorProfileInput{DatasetRef{Path: f.path}})
	require.NoError(t, err)
	require.Equal(t, []analytics.Count{{Key: "Books", Count: 1}, {Key: "Electronics", Count: 1}}, out.Sales.CategorySales)
	require.Equal(t, analytics.Count{Key: "2024-03", Count: 2}, out.Sales.MonthlySales[0])
	require.NotEmpty(t, out.Behavior.HourlyActivity)
}

func TestExportReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dest := filepath.Join(f.dir, "report.xlsx")

	seed := uint64(7)
	out, err := f.a.ExportReport(ctx, ExportReportInput{
		DatasetRef:     DatasetRef{Path: f.path},
		ClusterOptions: ClusterOptions{Clusters: 2, Seed: &seed},
		Output:         dest,
	})
	require.NoError(t, err)
	require.Equal(t, dest, out.Path)
	require.Equal(t, export.SheetNames(), out.Sheets)
	_, err = os.Stat(dest)
	require.NoError(t, err)

	_, err = f.a.ExportReport(ctx, ExportReportInput{DatasetRef: DatasetRef{Path: f.path}, Output: filepath.Join(t.TempDir(), "x.xlsx")})
	require.True(t, errors.Is(err, security.ErrPathDenied))

	f.a.Writer = nil
	_, err = f.a.ExportReport(ctx, ExportReportInput{DatasetRef: DatasetRef{Path: f.path}, Output: dest})
	require.True(t, errors.Is(err, security.ErrPathDenied))
}

func TestClusterOptionsSegment(t *testing.T) {
	opts := ClusterOptions{}.Segment()
	require.Equal(t, 4, opts.Clusters)
	require.Equal(t, uint64(42), opts.Seed)

	seed := uint64(0)
	opts = ClusterOptions{Clusters: 3, Seed: &seed}.Segment()
	require.Equal(t, 3, opts.Clusters)
	require.Equal(t, uint64(0), opts.Seed)
}
