package clusterer

// NoiseIndex is the reserved group index for phrases that could not be
// confidently assigned to any semantic group. All other group indices are
// non-negative and unique within a session.
const NoiseIndex = -1

// Provenance identifies which pipeline path produced a Result.
type Provenance string

const (
	// ProvenanceAI marks results produced by the memory-carrying AI batch pipeline.
	ProvenanceAI Provenance = "ai_with_memory"

	// ProvenanceFallback marks results produced by density clustering over embeddings.
	ProvenanceFallback Provenance = "fallback_density_clustering"
)

// Phrase is a single keyword/query string to be clustered. Identity is the
// case- and whitespace-normalized text, so the same phrase arriving from two
// collection sources is clustered once.
type Phrase struct {
	// Text is the raw phrase as collected.
	Text string

	// Source optionally names the collection the phrase originated from
	// (e.g. "autocomplete", "related_searches").
	Source string
}

// Texts wraps plain strings into Phrases with no source tag.
func Texts(ss []string) []Phrase {
	phrases := make([]Phrase, len(ss))
	for i, s := range ss {
		phrases[i] = Phrase{Text: s}
	}
	return phrases
}

// GroupSummary describes one semantic cluster in a Result.
type GroupSummary struct {
	// Index is the group's stable numeric index. NoiseIndex marks the
	// unclustered bucket.
	Index int

	// Name is the human-readable label assigned after content is known.
	Name string

	// Description explains how the group relates to the partition strategy.
	Description string

	// Phrases holds the member phrase texts.
	Phrases []string
}

// QualityMetrics summarizes a finalized clustering result.
type QualityMetrics struct {
	// GroupCount is the number of groups excluding the noise bucket.
	GroupCount int

	// AvgGroupSize is the mean member count over non-noise groups.
	AvgGroupSize float64

	// GroupSizes maps group index to member count, noise bucket included.
	GroupSizes map[int]int

	// OutlierCount is the number of phrases left in the noise bucket.
	OutlierCount int

	// OutlierRatio is OutlierCount divided by the total phrase count.
	OutlierRatio float64

	// TargetRangeMet reports whether GroupCount landed inside the
	// strategy's target group-count range.
	TargetRangeMet bool

	// QualityGoalAchieved reports whether OutlierRatio stayed at or under
	// the configured ceiling. Advisory only; a degraded result still
	// completes successfully.
	QualityGoalAchieved bool
}

// Result is the flat clustering output consumed by storage and reporting
// code. Labels[i] is the group index assigned to Phrases[i].
type Result struct {
	Phrases    []string
	Labels     []int
	Groups     []GroupSummary
	Metrics    QualityMetrics
	Provenance Provenance
}
