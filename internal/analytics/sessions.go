package analytics

import (
	"sort"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// SessionStats summarizes one session.
type SessionStats struct {
	SessionID       string  `json:"session_id"`
	UserID          string  `json:"user_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	PageViews       int     `json:"page_views"`
	UniqueActions   int     `json:"unique_actions"`
	EntryPage       string  `json:"entry_page"`
	ExitPage        string  `json:"exit_page"`
	Depth           int     `json:"depth"`
}

// DepthCount is the number of sessions having a given depth.
type DepthCount struct {
	Depth int `json:"depth"`
	Count int `json:"count"`
}

// SessionSummary aggregates per-session statistics.
type SessionSummary struct {
	Sessions           []SessionStats `json:"-"`
	TotalSessions      int            `json:"total_sessions"`
	AvgSessionDuration float64        `json:"avg_session_duration"`
	AvgPageViews       float64        `json:"avg_page_views"`
	TopEntryPages      []Count        `json:"top_entry_pages"`
	TopExitPages       []Count        `json:"top_exit_pages"`
	DepthDistribution  []DepthCount   `json:"depth_distribution"`

	// PageTimeSpans is, per page type, the seconds between its first and last event in the whole batch.
	PageTimeSpans []Value `json:"page_time_spans"`
	AvgTimeByPage float64 `json:"avg_time_by_page"`
}

// SummarizeSession computes duration, views, distinct actions and the entry
// and exit pages of one session. Events are taken in row order.
func SummarizeSession(s clickstream.Session) SessionStats {
	st := SessionStats{SessionID: s.ID, UserID: s.UserID, PageViews: len(s.Events), Depth: len(s.Events)}
	if len(s.Events) == 0 {
		return st
	}
	first, last := s.Events[0], s.Events[len(s.Events)-1]
	st.EntryPage, st.ExitPage = first.PageType, last.PageType

	lo, hi := first.Timestamp, first.Timestamp
	actions := map[string]struct{}{}
	for _, ev := range s.Events {
		if ev.Timestamp.Before(lo) {
			lo = ev.Timestamp
		}
		if ev.Timestamp.After(hi) {
			hi = ev.Timestamp
		}
		actions[ev.Action] = struct{}{}
	}
	st.DurationSeconds = hi.Sub(lo).Seconds()
	st.UniqueActions = len(actions)
	return st
}

// AggregateSessions summarizes every session of the table in first-seen order.
func AggregateSessions(t *clickstream.Table) (SessionSummary, error) {
	var out SessionSummary
	sessions := t.Sessions()
	if len(sessions) == 0 {
		return out, noSessions("session aggregation")
	}

	entries, exits := newCounter(), newCounter()
	depths := map[int]int{}
	var depthOrder []int
	var totalDur float64
	var totalViews int

	out.Sessions = make([]SessionStats, 0, len(sessions))
	for _, s := range sessions {
		st := SummarizeSession(s)
		out.Sessions = append(out.Sessions, st)
		totalDur += st.DurationSeconds
		totalViews += st.PageViews
		entries.add(st.EntryPage, 1)
		exits.add(st.ExitPage, 1)
		if _, ok := depths[st.Depth]; !ok {
			depthOrder = append(depthOrder, st.Depth)
		}
		depths[st.Depth]++
	}

	n := float64(len(sessions))
	out.TotalSessions = len(sessions)
	out.AvgSessionDuration = totalDur / n
	out.AvgPageViews = float64(totalViews) / n
	out.TopEntryPages = entries.top(config.DefaultTopEntryExit)
	out.TopExitPages = exits.top(config.DefaultTopEntryExit)

	for _, d := range depthOrder {
		out.DepthDistribution = append(out.DepthDistribution, DepthCount{Depth: d, Count: depths[d]})
	}
	sort.SliceStable(out.DepthDistribution, func(i, j int) bool {
		return out.DepthDistribution[i].Count > out.DepthDistribution[j].Count
	})
	if len(out.DepthDistribution) > config.DefaultTopDepths {
		out.DepthDistribution = out.DepthDistribution[:config.DefaultTopDepths]
	}

	out.PageTimeSpans, out.AvgTimeByPage = pageTimeSpans(t)
	return out, nil
}

// BounceCount returns the number of single-event sessions; absence is zero.
func (s SessionSummary) BounceCount() int {
	n := 0
	for _, st := range s.Sessions {
		if st.Depth == 1 {
			n++
		}
	}
	return n
}

func pageTimeSpans(t *clickstream.Table) ([]Value, float64) {
	type span struct{ lo, hi int64 }
	var order []string
	spans := map[string]*span{}
	for _, ev := range t.Events {
		ns := ev.Timestamp.UnixNano()
		sp, ok := spans[ev.PageType]
		if !ok {
			order = append(order, ev.PageType)
			spans[ev.PageType] = &span{lo: ns, hi: ns}
			continue
		}
		if ns < sp.lo {
			sp.lo = ns
		}
		if ns > sp.hi {
			sp.hi = ns
		}
	}
	if len(order) == 0 {
		return nil, 0
	}
	out := make([]Value, 0, len(order))
	var total float64
	for _, p := range order {
		secs := float64(spans[p].hi-spans[p].lo) / 1e9
		out = append(out, Value{Key: p, Value: secs})
		total += secs
	}
	return out, total / float64(len(order))
}
