package clusterer

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/grykalski/keyword-clusterer/internal/retry"
)

const (
	// DefaultBatchSize is the number of phrases sent per batch request.
	DefaultBatchSize = 25

	// DefaultStrategySampleSize is the number of phrases shown to the
	// strategy planner.
	DefaultStrategySampleSize = 30

	// DefaultTargetGroupMin and DefaultTargetGroupMax bound the planner's
	// default group-count target. Empirically tuned for SEO keyword sets;
	// override for other domains.
	DefaultTargetGroupMin = 8
	DefaultTargetGroupMax = 12

	// DefaultMinGroupSize is the consolidation threshold: smaller groups
	// are merged away during finalization.
	DefaultMinGroupSize = 3

	// DefaultOutlierRatioCeiling is the advisory quality goal for the share
	// of phrases left unclustered.
	DefaultOutlierRatioCeiling = 0.35

	// DefaultSessionTimeout bounds the whole AI-assisted path. On expiry
	// the session falls back to density clustering.
	DefaultSessionTimeout = 300 * time.Second

	// DefaultFallbackEps is the cosine-distance neighborhood radius for the
	// density fallback over unit-normalized embeddings.
	DefaultFallbackEps = 0.35

	// DefaultFallbackMinPoints is the minimum neighborhood size for a
	// phrase to seed a density cluster.
	DefaultFallbackMinPoints = 3
)

// Options holds configuration for a Clusterer.
type Options struct {
	// UseAI selects the AI batch pipeline. When false (or when no LLM
	// client is available) every session goes straight to the density
	// fallback.
	UseAI bool

	// LLM serves the strategy planner and batch engine. If nil and UseAI
	// is set, New constructs the default OpenAI adapter; if that fails the
	// clusterer degrades to fallback-only.
	LLM LLMClient

	// Model selects the chat model for the default LLM adapter. Ignored
	// when LLM is provided; empty selects the adapter's default.
	Model string

	// Embedding converts phrases into vectors for the density fallback.
	// If nil, New constructs the default Voyage adapter.
	Embedding EmbeddingClient

	// VectorCache optionally stores phrase embeddings across runs so
	// repeated sessions over overlapping phrase sets skip the embedding
	// provider. Nil disables caching.
	VectorCache VectorCache

	// Logger receives structured phase-transition events. The zero value
	// discards them.
	Logger zerolog.Logger

	// TargetGroupMin and TargetGroupMax override the planner's default
	// group-count range.
	TargetGroupMin int
	TargetGroupMax int

	// BatchSize overrides the per-batch phrase count.
	BatchSize int

	// StrategySampleSize overrides the planner's sample size.
	StrategySampleSize int

	// MinGroupSize overrides the finalizer's consolidation threshold.
	MinGroupSize int

	// OutlierRatioCeiling overrides the advisory quality-goal threshold.
	OutlierRatioCeiling float64

	// SessionTimeout overrides the AI-path wall-clock budget.
	SessionTimeout time.Duration

	// Retry configures the shared backoff policy for planner and batch
	// engine calls.
	Retry retry.Config

	// FallbackEps and FallbackMinPoints tune the density fallback.
	FallbackEps       float64
	FallbackMinPoints int
}

// applyDefaults fills in default values for unset config fields
func (o *Options) applyDefaults() {
	if o.TargetGroupMin == 0 {
		o.TargetGroupMin = DefaultTargetGroupMin
	}
	if o.TargetGroupMax == 0 {
		o.TargetGroupMax = DefaultTargetGroupMax
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.StrategySampleSize == 0 {
		o.StrategySampleSize = DefaultStrategySampleSize
	}
	if o.MinGroupSize == 0 {
		o.MinGroupSize = DefaultMinGroupSize
	}
	if o.OutlierRatioCeiling == 0 {
		o.OutlierRatioCeiling = DefaultOutlierRatioCeiling
	}
	if o.SessionTimeout == 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = retry.DefaultConfig()
	}
	if o.FallbackEps == 0 {
		o.FallbackEps = DefaultFallbackEps
	}
	if o.FallbackMinPoints == 0 {
		o.FallbackMinPoints = DefaultFallbackMinPoints
	}
}
