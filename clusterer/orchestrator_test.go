package clusterer_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/grykalski/keyword-clusterer/clusterer"
	"github.com/grykalski/keyword-clusterer/internal/retry"
	"github.com/grykalski/keyword-clusterer/pkg/testutil"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

func strategyJSON(min, max int, axes ...string) string {
	quoted := make([]string, len(axes))
	for i, a := range axes {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf(`{"target_min":%d,"target_max":%d,"axes":[%s],"rationale":"test strategy"}`,
		min, max, strings.Join(quoted, ","))
}

// batchJSON assigns every phrase in each list to one new group.
func batchJSON(groups map[string][]string) string {
	var entries []string
	for name, phrases := range groups {
		for _, p := range phrases {
			entries = append(entries, fmt.Sprintf(`{"phrase":%q,"new_group":{"name":%q,"description":"about %s"}}`, p, name, name))
		}
	}
	return fmt.Sprintf(`{"assignments":[%s]}`, strings.Join(entries, ","))
}

// coverageCheck verifies the §8-style invariants every result must hold:
// one label per phrase, group memberships matching labels, and the reserved
// noise index never used by a named group.
func coverageCheck(t *testing.T, phrases []string, res *clusterer.Result) {
	t.Helper()

	if len(res.Phrases) != len(res.Labels) {
		t.Fatalf("got %d phrases but %d labels", len(res.Phrases), len(res.Labels))
	}

	seen := make(map[string]int)
	for i, p := range res.Phrases {
		seen[strings.ToLower(p)] = res.Labels[i]
	}

	memberTotal := 0
	for _, g := range res.Groups {
		if g.Index == clusterer.NoiseIndex && g.Name != "Outliers" {
			t.Errorf("group %q carries the reserved noise index", g.Name)
		}
		memberTotal += len(g.Phrases)
		for _, m := range g.Phrases {
			label, ok := seen[strings.ToLower(m)]
			if !ok {
				t.Errorf("group %q member %q is not an input phrase", g.Name, m)
				continue
			}
			if label != g.Index {
				t.Errorf("member %q of group %d is labeled %d", m, g.Index, label)
			}
		}
	}

	if memberTotal != len(res.Phrases) {
		t.Errorf("groups cover %d phrases, want %d", memberTotal, len(res.Phrases))
	}

	if size, ok := res.Metrics.GroupSizes[clusterer.NoiseIndex]; ok && size != res.Metrics.OutlierCount {
		t.Errorf("noise bucket size %d disagrees with outlier count %d", size, res.Metrics.OutlierCount)
	}
}

func TestCluster_EmptyInputRejected(t *testing.T) {
	c, err := clusterer.New(clusterer.Options{
		Embedding: &testutil.MockEmbeddingClient{},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, input := range [][]clusterer.Phrase{
		nil,
		clusterer.Texts([]string{"", "  ", "42", "ab"}),
	} {
		if _, err := c.Cluster(context.Background(), input); !errors.Is(err, clusterer.ErrNoPhrases) {
			t.Errorf("Cluster(%v) error = %v, want ErrNoPhrases", input, err)
		}
	}
}

func TestCluster_FallbackOnly(t *testing.T) {
	// Two tight clusters plus one isolated point in embedding space.
	vectors := map[string][]float32{
		"contact lenses":       {1, 0, 0},
		"soft contact lenses":  {0.99, 0.05, 0},
		"daily contact lenses": {0.98, 0.1, 0},
		"buy contact lenses":   {0.97, 0.08, 0},
		"reading glasses":      {0, 1, 0},
		"cheap glasses":        {0.05, 0.99, 0},
		"designer glasses":     {0.1, 0.98, 0},
		"glasses online":       {0.08, 0.97, 0},
		"cataract surgery":     {0, 0, 1},
	}

	embedding := &testutil.MockEmbeddingClient{
		GenerateEmbeddingsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = vectors[text]
			}
			return out, nil
		},
	}
	llm := &testutil.MockLLMClient{}

	c, err := clusterer.New(clusterer.Options{
		UseAI:     false,
		LLM:       llm,
		Embedding: embedding,
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	phrases := make([]string, 0, len(vectors))
	for p := range vectors {
		phrases = append(phrases, p)
	}

	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if res.Provenance != clusterer.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", res.Provenance, clusterer.ProvenanceFallback)
	}
	if llm.Calls() != 0 {
		t.Errorf("LLM called %d times on the fallback path", llm.Calls())
	}
	if res.Metrics.GroupCount != 2 {
		t.Errorf("group count = %d, want 2", res.Metrics.GroupCount)
	}
	if res.Metrics.OutlierCount != 1 {
		t.Errorf("outlier count = %d, want 1", res.Metrics.OutlierCount)
	}
	coverageCheck(t, phrases, res)
}

func TestCluster_AIHappyPath(t *testing.T) {
	lenses := []string{"contact lenses", "soft contact lenses", "daily contact lenses", "monthly contact lenses", "buy contact lenses"}
	glasses := []string{"reading glasses", "sun glasses online", "cheap reading glasses", "designer glasses frames", "glasses repair kit"}
	phrases := append(append([]string{}, lenses...), glasses...)

	llm := &testutil.MockLLMClient{
		Responses: []string{
			strategyJSON(2, 4, "product type"),
			batchJSON(map[string][]string{"Contact Lenses": lenses}),
			batchJSON(map[string][]string{"Glasses": glasses}),
		},
	}

	c, err := clusterer.New(clusterer.Options{
		UseAI:     true,
		LLM:       llm,
		Embedding: &testutil.MockEmbeddingClient{},
		BatchSize: 5,
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if res.Provenance != clusterer.ProvenanceAI {
		t.Fatalf("provenance = %q, want %q", res.Provenance, clusterer.ProvenanceAI)
	}
	// One strategy call plus one call per batch.
	if llm.Calls() != 3 {
		t.Errorf("LLM called %d times, want 3", llm.Calls())
	}
	if res.Metrics.GroupCount != 2 {
		t.Errorf("group count = %d, want 2", res.Metrics.GroupCount)
	}
	if !res.Metrics.TargetRangeMet {
		t.Error("target range not met for 2 groups in [2,4]")
	}
	if res.Metrics.OutlierCount != 0 {
		t.Errorf("outlier count = %d, want 0", res.Metrics.OutlierCount)
	}

	names := make(map[string]bool)
	for _, g := range res.Groups {
		names[g.Name] = true
	}
	if !names["Contact Lenses"] || !names["Glasses"] {
		t.Errorf("expected AI group names, got %v", names)
	}
	coverageCheck(t, phrases, res)
}

func TestCluster_QualityGoalScenario(t *testing.T) {
	sizes := []int{15, 12, 10, 8, 14, 11, 9, 16}
	groups := make(map[string][]string, len(sizes))
	var phrases []string
	for g, size := range sizes {
		name := fmt.Sprintf("Theme%d", g)
		for i := 0; i < size; i++ {
			p := fmt.Sprintf("theme%d keyword%d variant%d", g, g, i)
			groups[name] = append(groups[name], p)
			phrases = append(phrases, p)
		}
	}
	outliers := []string{"xerox maintenance", "quantum chromodynamics", "jazz festival lineup", "marble countertop sealing", "alpaca shearing"}
	phrases = append(phrases, outliers...)

	llm := &testutil.MockLLMClient{
		Responses: []string{
			strategyJSON(8, 12, "theme"),
			batchJSON(groups), // outliers omitted from the response on purpose
		},
	}

	c, err := clusterer.New(clusterer.Options{
		UseAI:     true,
		LLM:       llm,
		Embedding: &testutil.MockEmbeddingClient{},
		BatchSize: 100,
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if res.Metrics.GroupCount != 8 {
		t.Errorf("group count = %d, want 8", res.Metrics.GroupCount)
	}
	if res.Metrics.OutlierCount != 5 {
		t.Errorf("outlier count = %d, want 5", res.Metrics.OutlierCount)
	}
	if !res.Metrics.QualityGoalAchieved {
		t.Errorf("quality goal not achieved at outlier ratio %.2f", res.Metrics.OutlierRatio)
	}
	if !res.Metrics.TargetRangeMet {
		t.Error("target range 8-12 not met with 8 groups")
	}
	coverageCheck(t, phrases, res)
}

func TestCluster_RetryCeilingThenFallback(t *testing.T) {
	llm := &testutil.MockLLMClient{
		CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
			return "this is not json at all", nil
		},
	}

	c, err := clusterer.New(clusterer.Options{
		UseAI:     true,
		LLM:       llm,
		Embedding: &testutil.MockEmbeddingClient{},
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	phrases := []string{"contact lenses", "reading glasses", "eye drops", "lens cleaner"}
	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	// The strategy planner burns exactly its attempt budget, then the
	// session reroutes to the fallback without touching the LLM again.
	if llm.Calls() != 3 {
		t.Errorf("LLM called %d times, want exactly 3", llm.Calls())
	}
	if res.Provenance != clusterer.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", res.Provenance, clusterer.ProvenanceFallback)
	}
	coverageCheck(t, phrases, res)
}

func TestCluster_BatchRetryCeiling(t *testing.T) {
	calls := 0
	llm := &testutil.MockLLMClient{
		CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
			calls++
			if calls == 1 {
				return strategyJSON(2, 4, "intent"), nil
			}
			// Every batch response references a group that does not exist.
			return `{"assignments":[{"phrase":"contact lenses","group":99}]}`, nil
		},
	}

	c, err := clusterer.New(clusterer.Options{
		UseAI:     true,
		LLM:       llm,
		Embedding: &testutil.MockEmbeddingClient{},
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	phrases := []string{"contact lenses", "reading glasses", "eye drops", "lens cleaner"}
	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if calls != 4 {
		t.Errorf("LLM called %d times, want 4 (1 strategy + 3 batch attempts)", calls)
	}
	if res.Provenance != clusterer.ProvenanceFallback {
		t.Errorf("provenance = %q, want %q", res.Provenance, clusterer.ProvenanceFallback)
	}
}

func TestCluster_TimeoutFallback(t *testing.T) {
	llm := &testutil.MockLLMClient{
		CompleteFunc: func(ctx context.Context, system, user string) (string, error) {
			// Simulate a provider that never answers inside the budget.
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	c, err := clusterer.New(clusterer.Options{
		UseAI:          true,
		LLM:            llm,
		Embedding:      &testutil.MockEmbeddingClient{},
		SessionTimeout: 30 * time.Millisecond,
		Retry:          fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	phrases := []string{"contact lenses", "reading glasses", "eye drops", "lens cleaner"}
	res, err := c.Cluster(context.Background(), clusterer.Texts(phrases))
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if res.Provenance != clusterer.ProvenanceFallback {
		t.Fatalf("provenance = %q, want %q", res.Provenance, clusterer.ProvenanceFallback)
	}
	// Partial AI output must never leak: fallback groups carry generated
	// names only.
	for _, g := range res.Groups {
		if g.Index != clusterer.NoiseIndex && !strings.HasPrefix(g.Name, "Cluster ") {
			t.Errorf("unexpected AI-era group %q in fallback output", g.Name)
		}
	}
	coverageCheck(t, phrases, res)
}

func TestCluster_EmbeddingUnavailable(t *testing.T) {
	embedding := &testutil.MockEmbeddingClient{
		GenerateEmbeddingsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("connection refused")
		},
	}

	c, err := clusterer.New(clusterer.Options{
		Embedding: embedding,
		Retry:     fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.Cluster(context.Background(), clusterer.Texts([]string{"contact lenses", "reading glasses", "eye exam cost"}))
	if !errors.Is(err, clusterer.ErrEmbeddingUnavailable) {
		t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestCluster_VectorCacheSkipsProvider(t *testing.T) {
	cache := testutil.NewMockVectorCache()
	embedding := &testutil.MockEmbeddingClient{}

	c, err := clusterer.New(clusterer.Options{
		Embedding:   embedding,
		VectorCache: cache,
		Retry:       fastRetry(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	phrases := clusterer.Texts([]string{"contact lenses", "reading glasses", "eye drops", "lens cleaner"})
	if _, err := c.Cluster(context.Background(), phrases); err != nil {
		t.Fatalf("first Cluster failed: %v", err)
	}
	if cache.StoreCount != 4 {
		t.Errorf("cache stored %d vectors, want 4", cache.StoreCount)
	}

	providerCalls := embedding.CallCount
	if _, err := c.Cluster(context.Background(), phrases); err != nil {
		t.Fatalf("second Cluster failed: %v", err)
	}
	if embedding.CallCount != providerCalls {
		t.Errorf("embedding provider called again despite warm cache (%d -> %d)", providerCalls, embedding.CallCount)
	}
}
