package clusterer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/grykalski/keyword-clusterer/adapters"
	"github.com/grykalski/keyword-clusterer/internal/retry"
)

// Clusterer partitions keyword phrases into semantically coherent groups. The
// primary path is a multi-stage, memory-carrying AI pipeline; a deterministic
// density clusterer over embeddings serves as the safety net, so from the
// caller's point of view clustering succeeds for any usable input.
//
// A Clusterer is safe for concurrent use: each Cluster call owns its session
// state and shares only the stateless provider clients.
type Clusterer struct {
	llm       LLMClient
	embedding EmbeddingClient
	cache     VectorCache
	logger    zerolog.Logger
	opts      Options
}

// New creates a Clusterer with the given configuration. Missing provider
// clients are replaced with the default adapters; a default AI client that
// cannot be constructed (e.g. no credentials) downgrades the clusterer to
// fallback-only instead of failing.
func New(opts Options) (*Clusterer, error) {
	opts.applyDefaults()

	c := &Clusterer{
		llm:       opts.LLM,
		embedding: opts.Embedding,
		cache:     opts.VectorCache,
		logger:    opts.Logger,
		opts:      opts,
	}

	if c.llm == nil && opts.UseAI {
		client, err := adapters.NewOpenAILLMAdapter(nil, opts.Model)
		if err != nil {
			c.logger.Warn().Err(err).Msg("AI client unavailable, sessions will use the density fallback")
		} else {
			c.llm = client
		}
	}

	if c.embedding == nil {
		client, err := adapters.NewVoyageEmbeddingAdapter(nil)
		if err != nil {
			c.logger.Warn().Err(err).Msg("embedding client unavailable, density fallback will be rejected")
		} else {
			c.embedding = client
		}
	}

	return c, nil
}

// Cluster partitions the given phrases and returns the flat result. The only
// failures surfaced to the caller are unusable input (ErrNoPhrases) and total
// embedding unavailability on the fallback path; every other failure is
// absorbed by retries or by rerouting to the fallback clusterer.
func (c *Clusterer) Cluster(ctx context.Context, phrases []Phrase) (*Result, error) {
	normalized := NormalizePhrases(phrases)
	if len(normalized) == 0 {
		return nil, ErrNoPhrases
	}

	if c.opts.UseAI && c.llm != nil {
		res, err := c.clusterWithAI(ctx, normalized)
		if err == nil {
			return res, nil
		}
		c.logger.Warn().Err(err).Msg("AI clustering failed, rerouting to density fallback")
	}

	return c.clusterWithFallback(ctx, normalized)
}

// clusterWithAI runs the full AI pipeline under the session's wall-clock
// budget: strategy planning, sequential batch assignment, then deterministic
// finalization. On any failure the partially built session is discarded
// whole; AI groups are never mixed with fallback output.
func (c *Clusterer) clusterWithAI(parent context.Context, phrases []Phrase) (*Result, error) {
	ctx, cancel := context.WithTimeout(parent, c.opts.SessionTimeout)
	defer cancel()

	sess := newSession(phrases)
	logger := c.logger.With().Str("session", sess.id).Logger()

	strat, err := c.planStrategy(ctx, phrases)
	if err != nil {
		sess.status = statusFailed
		return nil, fmt.Errorf("strategy planning failed: %w", err)
	}
	sess.strategy = strat
	sess.status = statusClustering
	logger.Info().
		Int("target_min", strat.TargetMin).
		Int("target_max", strat.TargetMax).
		Strs("axes", strat.Axes).
		Msg("strategy chosen")

	if err := newBatchEngine(c, sess).run(ctx); err != nil {
		return nil, err
	}

	c.finalize(sess)
	sess.status = statusCompleted

	res := convertSession(sess, ProvenanceAI, c.opts)
	logger.Info().
		Int("groups", res.Metrics.GroupCount).
		Int("outliers", res.Metrics.OutlierCount).
		Float64("outlier_ratio", res.Metrics.OutlierRatio).
		Bool("quality_goal", res.Metrics.QualityGoalAchieved).
		Msg("AI clustering completed")
	return res, nil
}

// clusterWithFallback groups phrases by embedding density. Quality is
// expected to be worse than the AI path; availability is the point.
func (c *Clusterer) clusterWithFallback(ctx context.Context, phrases []Phrase) (*Result, error) {
	c.logger.Info().Int("phrases", len(phrases)).Msg("running density fallback clustering")

	vectors, err := c.embedAll(ctx, phrases)
	if err != nil {
		return nil, err
	}

	labels := densityCluster(vectors, c.opts.FallbackEps, c.opts.FallbackMinPoints)
	sess := fallbackSession(phrases, labels)

	res := convertSession(sess, ProvenanceFallback, c.opts)
	c.logger.Info().
		Int("groups", res.Metrics.GroupCount).
		Int("outliers", res.Metrics.OutlierCount).
		Msg("fallback clustering completed")
	return res, nil
}

// embedAll resolves an embedding vector for every phrase: session-external
// vector cache first, then the embedding provider in one batched call.
// Freshly computed vectors are written back to the cache best-effort.
func (c *Clusterer) embedAll(ctx context.Context, phrases []Phrase) ([][]float32, error) {
	if c.embedding == nil && c.cache == nil {
		return nil, ErrEmbeddingUnavailable
	}

	vectors := make([][]float32, len(phrases))
	var missing []int

	if c.cache != nil {
		for i, p := range phrases {
			vec, ok, err := c.cache.Fetch(ctx, phraseID(p.Text))
			if err != nil {
				c.logger.Debug().Err(err).Msg("vector cache fetch failed")
			}
			if ok && err == nil {
				vectors[i] = vec
				continue
			}
			missing = append(missing, i)
		}
	} else {
		for i := range phrases {
			missing = append(missing, i)
		}
	}

	if len(missing) == 0 {
		return vectors, nil
	}
	if c.embedding == nil {
		return nil, ErrEmbeddingUnavailable
	}

	texts := make([]string, len(missing))
	for i, idx := range missing {
		texts[i] = phrases[idx].Text
	}

	var computed [][]float32
	err := retry.Do(ctx, retry.Options{
		Config: c.opts.Retry,
		Name:   "embedding provider",
		Logger: c.retryLogger(),
	}, func(attempt int) error {
		out, err := c.embedding.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return fmt.Errorf("embedding provider returned %d vectors for %d texts", len(out), len(texts))
		}
		computed = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	for i, idx := range missing {
		vectors[idx] = computed[i]
		if c.cache != nil {
			meta := map[string]any{"phrase": phrases[idx].Text}
			if storeErr := c.cache.Store(ctx, phraseID(phrases[idx].Text), computed[i], meta); storeErr != nil {
				c.logger.Debug().Err(storeErr).Msg("vector cache store failed")
			}
		}
	}

	return vectors, nil
}

// retryLogger adapts the zerolog logger to the retry helper's printf shape.
func (c *Clusterer) retryLogger() retry.Logger {
	return func(message string, args ...interface{}) {
		c.logger.Debug().Msgf(message, args...)
	}
}

// phraseID derives a stable cache key from a phrase's normalized text.
func phraseID(text string) string {
	sum := sha256.Sum256([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:16])
}
