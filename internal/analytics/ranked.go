package analytics

import (
	"math"
	"sort"
)

// Count is one entry of a frequency mapping. Slices of Count keep rank order
// through JSON encoding, which a Go map would not.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Value is one entry of a real-valued mapping.
type Value struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// counter accumulates frequencies and remembers first-seen key order, which
// breaks ties when ranking.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

func (c *counter) len() int { return len(c.order) }

// top returns up to n entries by descending count; n <= 0 returns all.
func (c *counter) top(n int) []Count {
	out := make([]Count, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, Count{Key: k, Count: c.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// byKey returns all entries in ascending key order.
func (c *counter) byKey() []Count {
	out := c.top(0)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// distinct counts unique values per group key.
type distinct map[string]map[string]struct{}

func (d distinct) add(group, value string) {
	set, ok := d[group]
	if !ok {
		set = map[string]struct{}{}
		d[group] = set
	}
	set[value] = struct{}{}
}

func (d distinct) size(group string) int { return len(d[group]) }

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
