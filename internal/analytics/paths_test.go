package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

func TestMinePaths_SingleJourney(t *testing.T) {
	tbl := table(
		ev("U1", "S1", "2024-03-01 10:00:00", "Home", "Electronics", "View"),
		ev("U1", "S1", "2024-03-01 10:01:00", "Product", "Electronics", "Click"),
		ev("U1", "S1", "2024-03-01 10:02:00", "Cart", "Electronics", "Add to Cart"),
		ev("U1", "S1", "2024-03-01 10:03:00", "Home", "Electronics", "View"),
	)
	sum, err := MinePaths(tbl)
	require.NoError(t, err)
	require.Equal(t, []Count{{Key: "Home->Product->Cart->Home", Count: 1}}, sum.CommonPaths)
	require.Equal(t, []Count{{Key: "View->Click->Add to Cart->View", Count: 1}}, sum.ActionSequences)
	require.Equal(t, []Transition{
		{From: "Home", To: "Product", Count: 1},
		{From: "Product", To: "Cart", Count: 1},
		{From: "Cart", To: "Home", Count: 1},
	}, sum.TopTransitions)
}

func TestMinePaths_RanksAndTies(t *testing.T) {
	sum, err := MinePaths(journeyTable())
	require.NoError(t, err)
	// Equal counts keep first-seen order.
	require.Equal(t, []Count{
		{Key: "Home->Product->Cart->Home", Count: 1},
		{Key: "Home->Product->Cart->Checkout", Count: 1},
	}, sum.CommonPaths)
	require.Equal(t, Transition{From: "Home", To: "Product", Count: 2}, sum.TopTransitions[0])
	require.Equal(t, Transition{From: "Product", To: "Cart", Count: 2}, sum.TopTransitions[1])
	require.Len(t, sum.TopTransitions, 4)
}

func TestMinePaths_TopTenCap(t *testing.T) {
	var events []clickstream.Event
	pages := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	for i, p := range pages {
		sid := "S" + p
		events = append(events,
			ev("U1", sid, "2024-03-01 10:00:00", "Home", "Books", "View"),
			ev("U1", sid, "2024-03-01 10:00:01", p, "Books", "View"),
		)
		if i == len(pages)-1 {
			// Make the last path the most frequent one.
			events = append(events,
				ev("U1", "SX", "2024-03-01 10:00:00", "Home", "Books", "View"),
				ev("U1", "SX", "2024-03-01 10:00:01", p, "Books", "View"),
			)
		}
	}
	sum, err := MinePaths(table(events...))
	require.NoError(t, err)
	require.Len(t, sum.CommonPaths, 10)
	require.Equal(t, Count{Key: "Home->L", Count: 2}, sum.CommonPaths[0])
	require.Equal(t, "Home->A", sum.CommonPaths[1].Key)
}

func TestClickPatterns_FocusCategoryFirst(t *testing.T) {
	tbl := table(
		ev("U1", "S1", "2024-03-01 10:00:00", "Product", "Books", "Click"),
		ev("U1", "S1", "2024-03-01 10:00:10", "Product", "Books", "Click"),
		ev("U1", "S1", "2024-03-01 10:00:20", "Product", "Books", "Click"),
		ev("U2", "S2", "2024-03-01 11:00:00", "Home", "Electronics", "Click"),
		ev("U2", "S2", "2024-03-01 11:00:10", "Product", "Electronics", "Click"),
		ev("U2", "S2", "2024-03-01 11:00:20", "Product", "Electronics", "Click"),
		ev("U2", "S2", "2024-03-01 11:00:30", "Home", "Electronics", "View"),
	)
	got := ClickPatterns(tbl, "Electronics", 10)
	require.Equal(t, []Count{
		{Key: "Electronics - Product", Count: 2},
		{Key: "Electronics - Home", Count: 1},
		{Key: "Books - Product", Count: 3},
	}, got)

	sum, err := MinePaths(tbl)
	require.NoError(t, err)
	require.Equal(t, got, sum.ClickPatterns)
	require.Len(t, ClickPatterns(tbl, "Electronics", 2), 2)
}

func TestMinePaths_EmptyTable(t *testing.T) {
	_, err := MinePaths(table())
	require.True(t, errors.Is(err, ErrInsufficientData))
}
