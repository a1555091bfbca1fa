package analytics

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
	"github.com/vinodismyname/shopperinsights/pkg/validation"
)

// Feature names of the per-user vector, in vector order.
var FeatureNames = []string{"sessions", "purchases", "category_diversity", "platform_diversity"}

// SegmentOptions controls user clustering. The seed is explicit so repeated
// runs over the same table assign the same labels.
type SegmentOptions struct {
	Clusters      int     `json:"clusters" validate:"omitempty,min=1,max=20"`
	Seed          uint64  `json:"seed"`
	Runs          int     `json:"runs,omitempty" validate:"omitempty,min=1,max=100"`
	MaxIterations int     `json:"max_iterations,omitempty" validate:"omitempty,min=1,max=10000"`
	Tolerance     float64 `json:"tolerance,omitempty" validate:"omitempty,gt=0"`
}

// DefaultSegmentOptions returns four clusters seeded with 42.
func DefaultSegmentOptions() SegmentOptions {
	return SegmentOptions{
		Clusters:      config.DefaultClusterCount,
		Seed:          config.DefaultClusterSeed,
		Runs:          config.DefaultClusterRuns,
		MaxIterations: config.DefaultMaxIterations,
		Tolerance:     config.DefaultTolerance,
	}
}

func (o SegmentOptions) withDefaults() SegmentOptions {
	d := DefaultSegmentOptions()
	if o.Clusters == 0 {
		o.Clusters = d.Clusters
	}
	if o.Runs <= 0 {
		o.Runs = d.Runs
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	return o
}

// UserFeatures is the behavioral vector of one user.
type UserFeatures struct {
	UserID            string `json:"user_id"`
	Sessions          int    `json:"sessions"`
	Purchases         int    `json:"purchases"`
	CategoryDiversity int    `json:"category_diversity"`
	PlatformDiversity int    `json:"platform_diversity"`
}

func (u UserFeatures) vector() []float64 {
	return []float64{float64(u.Sessions), float64(u.Purchases), float64(u.CategoryDiversity), float64(u.PlatformDiversity)}
}

// Assignment ties a user to a segment label.
type Assignment struct {
	UserID  string `json:"user_id"`
	Segment int    `json:"segment"`
}

// SegmentProfile is the mean raw feature vector of a segment's members, rounded to 2 decimals.
type SegmentProfile struct {
	Segment           int     `json:"segment"`
	Users             int     `json:"users"`
	Sessions          float64 `json:"sessions"`
	Purchases         float64 `json:"purchases"`
	CategoryDiversity float64 `json:"category_diversity"`
	PlatformDiversity float64 `json:"platform_diversity"`
}

// Features renders the profile keyed by feature name.
func (p SegmentProfile) Features() map[string]float64 {
	return map[string]float64{
		"sessions":           p.Sessions,
		"purchases":          p.Purchases,
		"category_diversity": p.CategoryDiversity,
		"platform_diversity": p.PlatformDiversity,
	}
}

// Segmentation is the outcome of one clustering run.
type Segmentation struct {
	Clusters    int              `json:"clusters"`
	Seed        uint64           `json:"seed"`
	Inertia     float64          `json:"inertia"`
	Users       []UserFeatures   `json:"-"`
	Assignments []Assignment     `json:"-"`
	Profiles    []SegmentProfile `json:"segment_profiles"`
}

// Labels returns user id to segment label.
func (s Segmentation) Labels() map[string]int {
	out := make(map[string]int, len(s.Assignments))
	for _, a := range s.Assignments {
		out[a.UserID] = a.Segment
	}
	return out
}

// ProfileMap returns segment label to feature means, keyed by the label's decimal form.
func (s Segmentation) ProfileMap() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(s.Profiles))
	for _, p := range s.Profiles {
		out[strconv.Itoa(p.Segment)] = p.Features()
	}
	return out
}

// BuildUserFeatures computes, per user in first-seen order, distinct sessions,
// purchase events, distinct categories and distinct platforms.
func BuildUserFeatures(t *clickstream.Table) []UserFeatures {
	sessions, categories, platforms := distinct{}, distinct{}, distinct{}
	purchases := map[string]int{}
	for _, ev := range t.Events {
		sessions.add(ev.UserID, ev.SessionID)
		categories.add(ev.UserID, ev.Category)
		platforms.add(ev.UserID, ev.Platform)
		if ev.Action == config.DefaultPurchaseAction {
			purchases[ev.UserID]++
		}
	}
	users := t.Users()
	out := make([]UserFeatures, 0, len(users))
	for _, u := range users {
		out = append(out, UserFeatures{
			UserID:            u,
			Sessions:          sessions.size(u),
			Purchases:         purchases[u],
			CategoryDiversity: categories.size(u),
			PlatformDiversity: platforms.size(u),
		})
	}
	return out
}

// Standardize centers each column on its mean and scales by its population
// standard deviation. A zero-variance column is only centered (scale 1).
func Standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	n := float64(len(rows))
	mean := make([]float64, dim)
	scale := make([]float64, dim)
	for _, r := range rows {
		for j, v := range r {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, r := range rows {
		for j, v := range r {
			scale[j] += (v - mean[j]) * (v - mean[j])
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, dim)
		for j, v := range r {
			out[i][j] = (v - mean[j]) / scale[j]
		}
	}
	return out
}

// SegmentUsers clusters users on their standardized feature vectors. Labels
// are renumbered by first appearance over users in first-seen order, so the
// first user always lands in segment 0.
func SegmentUsers(ctx context.Context, t *clickstream.Table, opts SegmentOptions) (Segmentation, error) {
	opts = opts.withDefaults()
	out := Segmentation{Clusters: opts.Clusters, Seed: opts.Seed}
	if msg := validation.ValidateStruct(opts); msg != "" {
		return out, &clickstream.ValidationError{Kind: clickstream.InvalidOption, Fields: []string{"segment options"}, Msg: strings.TrimPrefix(msg, "VALIDATION: ")}
	}

	users := BuildUserFeatures(t)
	if len(users) < opts.Clusters {
		return out, &InsufficientDataError{Pass: "user segmentation", What: "distinct users", Have: len(users), Need: opts.Clusters}
	}

	raw := make([][]float64, len(users))
	for i, u := range users {
		raw[i] = u.vector()
	}
	res, err := kmeans(ctx, Standardize(raw), kmeansConfig{
		k:       opts.Clusters,
		runs:    opts.Runs,
		maxIter: opts.MaxIterations,
		tol:     opts.Tolerance,
		seed:    opts.Seed,
	})
	if err != nil {
		return out, err
	}

	relabel := map[int]int{}
	out.Users = users
	out.Inertia = res.inertia
	out.Assignments = make([]Assignment, len(users))
	for i, u := range users {
		l, ok := relabel[res.labels[i]]
		if !ok {
			l = len(relabel)
			relabel[res.labels[i]] = l
		}
		out.Assignments[i] = Assignment{UserID: u.UserID, Segment: l}
	}

	sums := make([][]float64, len(relabel))
	counts := make([]int, len(relabel))
	for i := range sums {
		sums[i] = make([]float64, len(FeatureNames))
	}
	for i, a := range out.Assignments {
		counts[a.Segment]++
		for j, v := range raw[i] {
			sums[a.Segment][j] += v
		}
	}
	for seg := range sums {
		c := float64(counts[seg])
		out.Profiles = append(out.Profiles, SegmentProfile{
			Segment:           seg,
			Users:             counts[seg],
			Sessions:          round2(sums[seg][0] / c),
			Purchases:         round2(sums[seg][1] / c),
			CategoryDiversity: round2(sums[seg][2] / c),
			PlatformDiversity: round2(sums[seg][3] / c),
		})
	}
	return out, nil
}
