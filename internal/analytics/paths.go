package analytics

import (
	"sort"
	"strings"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// Transition counts an ordered pair of consecutive page types within a session.
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// PathSummary holds navigation and action sequence frequencies.
type PathSummary struct {
	CommonPaths     []Count      `json:"common_paths"`
	ActionSequences []Count      `json:"action_sequences"`
	TopTransitions  []Transition `json:"top_transitions"`
	ClickPatterns   []Count      `json:"click_patterns"`
}

// PathKey joins the page types of a session in row order.
func PathKey(s clickstream.Session) string {
	parts := make([]string, len(s.Events))
	for i, ev := range s.Events {
		parts[i] = ev.PageType
	}
	return strings.Join(parts, config.DefaultPathSeparator)
}

// ActionKey joins the actions of a session in row order.
func ActionKey(s clickstream.Session) string {
	parts := make([]string, len(s.Events))
	for i, ev := range s.Events {
		parts[i] = ev.Action
	}
	return strings.Join(parts, config.DefaultPathSeparator)
}

// MinePaths counts distinct page paths, action sequences and page transitions
// across sessions, and ranks click patterns with the focus category first.
func MinePaths(t *clickstream.Table) (PathSummary, error) {
	var out PathSummary
	sessions := t.Sessions()
	if len(sessions) == 0 {
		return out, noSessions("path mining")
	}

	paths, actions := newCounter(), newCounter()
	type pair struct{ from, to string }
	var pairOrder []pair
	pairs := map[pair]int{}

	for _, s := range sessions {
		paths.add(PathKey(s), 1)
		actions.add(ActionKey(s), 1)
		for i := 0; i+1 < len(s.Events); i++ {
			p := pair{s.Events[i].PageType, s.Events[i+1].PageType}
			if _, ok := pairs[p]; !ok {
				pairOrder = append(pairOrder, p)
			}
			pairs[p]++
		}
	}

	out.CommonPaths = paths.top(config.DefaultTopPaths)
	out.ActionSequences = actions.top(config.DefaultTopPaths)

	out.TopTransitions = make([]Transition, 0, len(pairOrder))
	for _, p := range pairOrder {
		out.TopTransitions = append(out.TopTransitions, Transition{From: p.from, To: p.to, Count: pairs[p]})
	}
	sort.SliceStable(out.TopTransitions, func(i, j int) bool {
		return out.TopTransitions[i].Count > out.TopTransitions[j].Count
	})
	if len(out.TopTransitions) > config.DefaultTopPaths {
		out.TopTransitions = out.TopTransitions[:config.DefaultTopPaths]
	}

	out.ClickPatterns = ClickPatterns(t, config.DefaultFocusCategory, config.DefaultTopPaths)
	return out, nil
}

// ClickPatterns groups Click events by category and page type. Groups of the
// focus category rank ahead of all others regardless of count; each partition
// is ordered by descending count. Keys read "{category} - {page_type}".
func ClickPatterns(t *clickstream.Table, focus string, n int) []Count {
	type group struct {
		category, page string
		count          int
	}
	var groups []*group
	index := map[[2]string]*group{}
	for _, ev := range t.Events {
		if ev.Action != config.DefaultClickAction {
			continue
		}
		k := [2]string{ev.Category, ev.PageType}
		g, ok := index[k]
		if !ok {
			g = &group{category: ev.Category, page: ev.PageType}
			index[k] = g
			groups = append(groups, g)
		}
		g.count++
	}
	sort.SliceStable(groups, func(i, j int) bool {
		fi, fj := groups[i].category == focus, groups[j].category == focus
		if fi != fj {
			return fi
		}
		return groups[i].count > groups[j].count
	})
	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	out := make([]Count, 0, len(groups))
	for _, g := range groups {
		out = append(out, Count{Key: g.category + " - " + g.page, Count: g.count})
	}
	return out
}
