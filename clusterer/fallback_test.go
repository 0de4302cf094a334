package clusterer

import (
	"math"
	"reflect"
	"testing"
)

func TestDensityCluster(t *testing.T) {
	// Two tight bundles around orthogonal directions plus one isolated point.
	vectors := [][]float32{
		{1, 0, 0},
		{0.99, 0.05, 0},
		{0.98, 0.1, 0},
		{0, 1, 0},
		{0.05, 0.99, 0},
		{0.1, 0.98, 0},
		{0, 0, 1},
	}

	labels := densityCluster(vectors, 0.35, 3)

	if len(labels) != len(vectors) {
		t.Fatalf("got %d labels for %d vectors", len(labels), len(vectors))
	}
	if labels[0] != labels[1] || labels[1] != labels[2] {
		t.Errorf("first bundle split: %v", labels)
	}
	if labels[3] != labels[4] || labels[4] != labels[5] {
		t.Errorf("second bundle split: %v", labels)
	}
	if labels[0] == labels[3] {
		t.Errorf("orthogonal bundles merged: %v", labels)
	}
	if labels[6] != NoiseIndex {
		t.Errorf("isolated point labeled %d, want noise", labels[6])
	}
	for _, l := range labels[:6] {
		if l < 0 {
			t.Errorf("bundle point labeled noise: %v", labels)
		}
	}
}

func TestDensityClusterDeterministic(t *testing.T) {
	vectors := [][]float32{
		{1, 0}, {0.95, 0.1}, {0.9, 0.2}, {0, 1}, {0.1, 0.95}, {0.2, 0.9}, {-1, -1},
	}
	first := densityCluster(vectors, 0.35, 3)
	second := densityCluster(vectors, 0.35, 3)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("labels differ between runs: %v vs %v", first, second)
	}
}

func TestDensityClusterSparseInput(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}}
	labels := densityCluster(vectors, 0.35, 3)
	for i, l := range labels {
		if l != NoiseIndex {
			t.Errorf("labels[%d] = %d, want noise for sparse input", i, l)
		}
	}

	if got := densityCluster(nil, 0.35, 3); len(got) != 0 {
		t.Errorf("labels for empty input = %v", got)
	}
}

func TestNormalizeUnit(t *testing.T) {
	v := normalizeUnit([]float32{3, 4})
	length := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]))
	if math.Abs(length-1.0) > 1e-6 {
		t.Errorf("normalized length = %v, want 1", length)
	}

	zero := normalizeUnit([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestFallbackSessionMirrorsLabels(t *testing.T) {
	phrases := Texts([]string{"alpha one", "alpha two", "beta one", "beta two", "gamma solo"})
	labels := []int{1, 1, 0, 0, NoiseIndex}

	sess := fallbackSession(phrases, labels)

	if len(sess.groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(sess.groups))
	}
	for i, p := range phrases {
		if got := sess.assigned[normalizeText(p.Text)]; got != labels[i] {
			t.Errorf("phrase %q assigned to %d, want %d", p.Text, got, labels[i])
		}
	}

	g := sess.groupByIndex(1)
	if g == nil {
		t.Fatal("no group for label 1")
	}
	if g.name != "Cluster 2" {
		t.Errorf("group name = %q, want %q", g.name, "Cluster 2")
	}
	if len(g.members) != 2 {
		t.Errorf("group 1 has %d members, want 2", len(g.members))
	}
	if sess.status != statusCompleted {
		t.Errorf("status = %q, want %q", sess.status, statusCompleted)
	}
}
