package analytics

import (
	"fmt"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// Metrics are the headline numbers of a batch.
type Metrics struct {
	TotalUsers      int     `json:"total_users"`
	TotalSessions   int     `json:"total_sessions"`
	ConversionRate  float64 `json:"conversion_rate"`
	AvgPagesSession float64 `json:"avg_pages_per_session"`
	BounceRate      float64 `json:"bounce_rate"`
}

// KeyMetrics computes user and session totals, the share of users with a
// purchase, mean events per session and the single-event session share.
// A batch with no single-event session has a bounce rate of 0.
func KeyMetrics(t *clickstream.Table) (Metrics, error) {
	var out Metrics
	if t.Len() == 0 {
		return out, noSessions("key metrics")
	}
	sessions := t.Sessions()
	users := t.Users()
	buyers := map[string]struct{}{}
	for _, ev := range t.Events {
		if ev.Action == config.DefaultPurchaseAction {
			buyers[ev.UserID] = struct{}{}
		}
	}
	bounces := 0
	for _, s := range sessions {
		if len(s.Events) == 1 {
			bounces++
		}
	}
	out.TotalUsers = len(users)
	out.TotalSessions = len(sessions)
	out.ConversionRate = pct(len(buyers), len(users))
	out.AvgPagesSession = float64(t.Len()) / float64(len(sessions))
	out.BounceRate = pct(bounces, len(sessions))
	return out, nil
}

// HourCount is the number of events within one hour of the day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Behavior describes how users reach and use the store.
type Behavior struct {
	DeviceUsage          []Count     `json:"device_usage"`
	CategoryPreferences  []Count     `json:"category_preferences"`
	ActionDistribution   []Count     `json:"action_distribution"`
	PlatformDistribution []Count     `json:"platform_distribution"`
	HourlyActivity       []HourCount `json:"hourly_activity"`
}

// AnalyzeBehavior counts events per device, category (top 5), action,
// platform and hour of day. Hours are reported in ascending order and only
// when they carry events.
func AnalyzeBehavior(t *clickstream.Table) (Behavior, error) {
	var out Behavior
	if t.Len() == 0 {
		return out, noSessions("behavior profile")
	}
	devices, categories, actions, platforms := newCounter(), newCounter(), newCounter(), newCounter()
	var hours [24]int
	for _, ev := range t.Events {
		devices.add(ev.DeviceType, 1)
		categories.add(ev.Category, 1)
		actions.add(ev.Action, 1)
		platforms.add(ev.Platform, 1)
		hours[ev.Timestamp.Hour()]++
	}
	out.DeviceUsage = devices.top(0)
	out.CategoryPreferences = categories.top(config.DefaultTopCategories)
	out.ActionDistribution = actions.top(0)
	out.PlatformDistribution = platforms.top(0)
	for h, n := range hours {
		if n > 0 {
			out.HourlyActivity = append(out.HourlyActivity, HourCount{Hour: h, Count: n})
		}
	}
	return out, nil
}

// Sales summarizes Purchase events.
type Sales struct {
	TopProducts   []Count `json:"top_products"`
	CategorySales []Count `json:"category_sales"`
	MonthlySales  []Count `json:"monthly_sales"`
	PlatformSales []Count `json:"platform_sales"`
}

// AnalyzeSales ranks purchased products (top 10), categories and platforms,
// and buckets purchases by calendar month ("YYYY-MM", ascending). A batch
// without purchases yields empty rankings.
func AnalyzeSales(t *clickstream.Table) (Sales, error) {
	var out Sales
	if t.Len() == 0 {
		return out, noSessions("sales analysis")
	}
	products, categories, months, platforms := newCounter(), newCounter(), newCounter(), newCounter()
	for _, ev := range t.Events {
		if ev.Action != config.DefaultPurchaseAction {
			continue
		}
		products.add(ev.ProductID, 1)
		categories.add(ev.Category, 1)
		months.add(fmt.Sprintf("%04d-%02d", ev.Timestamp.Year(), int(ev.Timestamp.Month())), 1)
		platforms.add(ev.Platform, 1)
	}
	out.TopProducts = products.top(config.DefaultTopProducts)
	out.CategorySales = categories.top(0)
	out.MonthlySales = months.byKey()
	out.PlatformSales = platforms.top(0)
	return out, nil
}

// PageTimeSpans returns, per page type in first-seen order, the seconds between
// its earliest and latest event across the batch, plus the mean of those spans.
func PageTimeSpans(t *clickstream.Table) ([]Value, float64) {
	return pageTimeSpans(t)
}
