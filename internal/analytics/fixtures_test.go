package analytics

import (
	"time"

	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

func ev(user, session, ts, page, category, action string) clickstream.Event {
	at, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		panic(err)
	}
	return clickstream.Event{
		UserID:     user,
		SessionID:  session,
		Timestamp:  at,
		PageType:   page,
		ProductID:  "P-" + category,
		Category:   category,
		Action:     action,
		DeviceType: "Mobile",
		Platform:   "Web",
	}
}

func on(e clickstream.Event, platform string) clickstream.Event {
	e.Platform = platform
	return e
}

func table(events ...clickstream.Event) *clickstream.Table {
	for i := range events {
		events[i].Row = i + 1
	}
	return clickstream.NewTable("test", clickstream.FormatCSV, events)
}

// journeyTable has two users: S1 browses Home->Product->Cart->Home without
// buying, S2 goes through the whole funnel.
func journeyTable() *clickstream.Table {
	return table(
		ev("U1", "S1", "2024-03-01 10:00:00", "Home", "Electronics", "View"),
		ev("U1", "S1", "2024-03-01 10:01:00", "Product", "Electronics", "Click"),
		ev("U1", "S1", "2024-03-01 10:02:30", "Cart", "Electronics", "Add to Cart"),
		ev("U1", "S1", "2024-03-01 10:03:00", "Home", "Electronics", "View"),
		ev("U2", "S2", "2024-03-02 18:00:00", "Home", "Books", "View"),
		ev("U2", "S2", "2024-03-02 18:00:20", "Product", "Books", "Click"),
		ev("U2", "S2", "2024-03-02 18:01:00", "Cart", "Books", "Add to Cart"),
		ev("U2", "S2", "2024-03-02 18:02:00", "Checkout", "Books", "Purchase"),
	)
}
