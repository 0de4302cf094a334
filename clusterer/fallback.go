package clusterer

import (
	"fmt"
	"math"
)

// densityCluster runs DBSCAN over cosine distance of unit-normalized
// embedding vectors. Points in dense neighborhoods form clusters numbered
// from 0; points in sparse regions get NoiseIndex. A pure function of the
// input, safe to parallelize internally if the distance pass ever needs it.
func densityCluster(vectors [][]float32, eps float64, minPoints int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseIndex
	}
	if n == 0 {
		return labels
	}

	unit := make([][]float32, n)
	for i, v := range vectors {
		unit[i] = normalizeUnit(v)
	}

	visited := make([]bool, n)
	next := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(unit, i, eps)
		if len(neighbors) < minPoints {
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		// Expand the cluster: every density-reachable point joins it, and
		// core points extend the frontier.
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]
			if !visited[j] {
				visited[j] = true
				more := regionQuery(unit, j, eps)
				if len(more) >= minPoints {
					neighbors = append(neighbors, more...)
				}
			}
			if labels[j] == NoiseIndex {
				labels[j] = cluster
			}
		}
	}

	return labels
}

// regionQuery returns the indices of all points within eps cosine distance of
// point i, including i itself.
func regionQuery(unit [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range unit {
		if 1.0-cosineSimilarity(unit[i], unit[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

func normalizeUnit(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum <= 0 {
		return v
	}
	den := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * den
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// fallbackSession builds a session directly from density-cluster labels so
// the flat conversion path, and with it every coverage invariant, is shared
// with the AI pipeline. Fallback groups get generated names; no semantic
// labeling happens without the AI path.
func fallbackSession(phrases []Phrase, labels []int) *session {
	sess := newSession(phrases)

	// Group indices mirror the cluster labels exactly.
	for _, label := range labels {
		if label != NoiseIndex && sess.groupByIndex(label) == nil {
			sess.groups = append(sess.groups, &group{
				index:       label,
				name:        fmt.Sprintf("Cluster %d", label+1),
				description: "density cluster over embedding vectors",
			})
		}
	}

	for i, p := range phrases {
		sess.assign(normalizeText(p.Text), labels[i])
	}

	sess.status = statusCompleted
	return sess
}
