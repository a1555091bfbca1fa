package analytics

import (
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
)

// FunnelStages are the ordered journey milestones, matched against Event.Action.
var FunnelStages = []string{"View", "Click", "Add to Cart", "Purchase"}

// Funnel reports distinct-session reach per stage.
type Funnel struct {
	TotalSessions int     `json:"total_sessions"`
	Stages        []Count `json:"funnel_stages"`
	Rates         []Value `json:"funnel_rates"`

	// StepConversion is each stage's count over the previous stage's (first stage 1).
	StepConversion []Value `json:"step_conversion"`
	Bottleneck     string  `json:"bottleneck_stage,omitempty"`
}

// AnalyzeFunnel counts, for each stage, the sessions containing at least one
// event with that action, and the share of all sessions that represents.
// Stages are not required to be monotone.
func AnalyzeFunnel(t *clickstream.Table) (Funnel, error) {
	var out Funnel
	total := len(t.Sessions())
	if total == 0 {
		return out, noSessions("funnel analysis")
	}
	out.TotalSessions = total

	reached := make(map[string]map[string]struct{}, len(FunnelStages))
	for _, st := range FunnelStages {
		reached[st] = map[string]struct{}{}
	}
	for _, ev := range t.Events {
		if set, ok := reached[ev.Action]; ok {
			set[ev.SessionID] = struct{}{}
		}
	}

	for i, st := range FunnelStages {
		n := len(reached[st])
		out.Stages = append(out.Stages, Count{Key: st, Count: n})
		out.Rates = append(out.Rates, Value{Key: st, Value: pct(n, total)})

		step := 1.0
		if i > 0 {
			step = 0
			if prev := out.Stages[i-1].Count; prev > 0 {
				step = float64(n) / float64(prev)
			}
		}
		out.StepConversion = append(out.StepConversion, Value{Key: st, Value: step})
	}

	// Bottleneck: minimal step conversion among transitions; earliest wins ties.
	best := -1
	for i := 1; i < len(out.StepConversion); i++ {
		if best < 0 || out.StepConversion[i].Value < out.StepConversion[best].Value {
			best = i
		}
	}
	if best > 0 {
		out.Bottleneck = out.StepConversion[best].Key
	}
	return out, nil
}

// Rate returns the conversion percentage of a stage, or 0 when unknown.
func (f Funnel) Rate(stage string) float64 {
	for _, r := range f.Rates {
		if r.Key == stage {
			return r.Value
		}
	}
	return 0
}

// Count returns the session count of a stage, or 0 when unknown.
func (f Funnel) Count(stage string) int {
	for _, c := range f.Stages {
		if c.Key == stage {
			return c.Count
		}
	}
	return 0
}
