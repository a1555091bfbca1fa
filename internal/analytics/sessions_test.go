package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregateSessions_Journey(t *testing.T) {
	sum, err := AggregateSessions(journeyTable())
	require.NoError(t, err)
	require.Equal(t, 2, sum.TotalSessions)
	require.InDelta(t, 150.0, sum.AvgSessionDuration, 1e-9) // (180 + 120) / 2
	require.InDelta(t, 4.0, sum.AvgPageViews, 1e-9)
	require.Equal(t, []Count{{Key: "Home", Count: 2}}, sum.TopEntryPages)
	require.Equal(t, []Count{{Key: "Home", Count: 1}, {Key: "Checkout", Count: 1}}, sum.TopExitPages)
	require.Equal(t, []DepthCount{{Depth: 4, Count: 2}}, sum.DepthDistribution)

	s1 := sum.Sessions[0]
	require.Equal(t, "S1", s1.SessionID)
	require.Equal(t, "U1", s1.UserID)
	require.Equal(t, 3, s1.UniqueActions)
	require.Equal(t, 0, sum.BounceCount())
}

func TestAggregateSessions_SingleEventSession(t *testing.T) {
	sum, err := AggregateSessions(table(ev("U1", "S1", "2024-03-01 10:00:00", "Home", "Books", "View")))
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalSessions)

	st := sum.Sessions[0]
	require.Equal(t, 0.0, st.DurationSeconds)
	require.Equal(t, 1, st.PageViews)
	require.Equal(t, 1, st.Depth)
	require.Equal(t, 1, st.UniqueActions)
	require.Equal(t, st.EntryPage, st.ExitPage)
	require.Equal(t, "Home", st.EntryPage)
	require.Equal(t, 1, sum.BounceCount())
}

func TestAggregateSessions_RowOrderNotTimestampOrder(t *testing.T) {
	// Rows arrive out of chronological order: entry/exit follow rows, duration follows timestamps.
	tbl := table(
		ev("U1", "S1", "2024-03-01 10:05:00", "Product", "Books", "Click"),
		ev("U1", "S1", "2024-03-01 10:00:00", "Home", "Books", "View"),
		ev("U1", "S1", "2024-03-01 10:02:00", "Cart", "Books", "Add to Cart"),
	)
	sum, err := AggregateSessions(tbl)
	require.NoError(t, err)
	st := sum.Sessions[0]
	require.Equal(t, "Product", st.EntryPage)
	require.Equal(t, "Cart", st.ExitPage)
	require.Equal(t, 300.0, st.DurationSeconds)
}

func TestAggregateSessions_Idempotent(t *testing.T) {
	tbl := journeyTable()
	a, err := AggregateSessions(tbl)
	require.NoError(t, err)
	b, err := AggregateSessions(tbl)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestAggregateSessions_DepthDistributionRanked(t *testing.T) {
	tbl := table(
		ev("U1", "S1", "2024-03-01 10:00:00", "Home", "Books", "View"),
		ev("U1", "S2", "2024-03-01 11:00:00", "Home", "Books", "View"),
		ev("U1", "S2", "2024-03-01 11:00:10", "Product", "Books", "Click"),
		ev("U2", "S3", "2024-03-01 12:00:00", "Home", "Books", "View"),
		ev("U2", "S3", "2024-03-01 12:00:10", "Product", "Books", "Click"),
		ev("U3", "S4", "2024-03-01 12:00:00", "Home", "Books", "View"),
	)
	sum, err := AggregateSessions(tbl)
	require.NoError(t, err)
	require.Equal(t, []DepthCount{{Depth: 1, Count: 2}, {Depth: 2, Count: 2}}, sum.DepthDistribution)
	require.Equal(t, 2, sum.BounceCount())
}

func TestAggregateSessions_EmptyTable(t *testing.T) {
	_, err := AggregateSessions(table())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInsufficientData))
}

func TestPageTimeSpans(t *testing.T) {
	spans, avg := PageTimeSpans(journeyTable())
	require.Equal(t, "Home", spans[0].Key)
	// Home: 2024-03-01 10:00:00 to 2024-03-02 18:00:00.
	require.Equal(t, 32.0*3600, spans[0].Value)
	require.Len(t, spans, 4)

	var total float64
	for _, s := range spans {
		total += s.Value
	}
	require.InDelta(t, total/4, avg, 1e-9)
}
