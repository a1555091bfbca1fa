package analytics

import (
	"context"
	"math"
	"math/rand/v2"
)

// kmeansConfig drives Lloyd's algorithm with k-means++ seeding.
type kmeansConfig struct {
	k       int
	runs    int
	maxIter int
	tol     float64
	seed    uint64
}

type kmeansResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kmeans clusters points into cfg.k groups. All randomness comes from a PCG
// source seeded with cfg.seed, so identical input yields identical labels.
// The run with the lowest inertia wins; earlier runs win ties.
func kmeans(ctx context.Context, points [][]float64, cfg kmeansConfig) (kmeansResult, error) {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))
	tol := cfg.tol * meanVariance(points)

	var best kmeansResult
	best.inertia = math.Inf(1)
	for run := 0; run < cfg.runs; run++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		res := lloyd(points, seedPlusPlus(points, cfg.k, rng), cfg.maxIter, tol)
		if res.inertia < best.inertia {
			best = res
		}
	}
	return best, nil
}

// seedPlusPlus picks initial centroids: the first uniformly, each next one with
// probability proportional to squared distance from the nearest chosen centroid.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	d2 := make([]float64, len(points))
	for i, p := range points {
		d2[i] = sqDist(p, centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range d2 {
				if d <= 0 {
					continue
				}
				next = i
				if r -= d; r < 0 {
					break
				}
			}
		} else {
			// Every point coincides with a centroid already.
			next = rng.IntN(len(points))
		}
		c := clone(points[next])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centroids
}

func lloyd(points, centroids [][]float64, maxIter int, tol float64) kmeansResult {
	k, dim := len(centroids), len(points[0])
	labels := make([]int, len(points))
	for iter := 0; iter < maxIter; iter++ {
		for i, p := range points {
			labels[i] = nearest(p, centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			counts[labels[i]]++
			for j, v := range p {
				sums[labels[i]][j] += v
			}
		}

		var shift float64
		for c := range centroids {
			var next []float64
			if counts[c] == 0 {
				// Relocate an empty cluster to the point worst served by its centroid.
				next = clone(points[farthest(points, labels, centroids)])
			} else {
				next = make([]float64, dim)
				for j := range next {
					next[j] = sums[c][j] / float64(counts[c])
				}
			}
			shift += sqDist(next, centroids[c])
			centroids[c] = next
		}
		if shift <= tol {
			break
		}
	}

	var inertia float64
	for i, p := range points {
		labels[i] = nearest(p, centroids)
		inertia += sqDist(p, centroids[labels[i]])
	}
	return kmeansResult{labels: labels, centroids: centroids, inertia: inertia}
}

// nearest returns the closest centroid index; the lowest index wins ties.
func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centroids {
		if d := sqDist(p, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func farthest(points [][]float64, labels []int, centroids [][]float64) int {
	idx, far := 0, -1.0
	for i, p := range points {
		if d := sqDist(p, centroids[labels[i]]); d > far {
			idx, far = i, d
		}
	}
	return idx
}

func meanVariance(points [][]float64) float64 {
	if len(points) == 0 {
		return 0
	}
	dim := len(points[0])
	var total float64
	for j := 0; j < dim; j++ {
		var mean float64
		for _, p := range points {
			mean += p[j]
		}
		mean /= float64(len(points))
		var v float64
		for _, p := range points {
			v += (p[j] - mean) * (p[j] - mean)
		}
		total += v / float64(len(points))
	}
	return total / float64(dim)
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
