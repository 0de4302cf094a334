package clusterer

import (
	"sort"
	"strings"
)

const (
	// minRedistributeSimilarity is the confidence floor for pulling a noise
	// phrase into an existing group during the redistribution pass.
	minRedistributeSimilarity = 0.2

	// minMergeSimilarity is the floor for consolidating an undersized group
	// into its most related neighbor instead of dissolving it into noise.
	minMergeSimilarity = 0.1
)

// finalize repairs the systemic issues bottom-up batch assignment leaves
// behind: entrenched noise phrases and over-fragmented small groups. All
// passes are deterministic; no further AI calls happen here. This stage
// always produces a result.
func (c *Clusterer) finalize(sess *session) {
	sess.status = statusFinalizing

	redistributed := c.redistributeNoise(sess)
	merged := c.consolidateSmallGroups(sess)

	c.logger.Debug().
		Int("redistributed", redistributed).
		Int("merged_groups", merged).
		Int("groups", len(sess.groups)).
		Msg("finalization passes complete")
}

// redistributeNoise attempts to reassign each noise phrase to the group whose
// recorded theme and examples are the closest term-level match. Phrases with
// no confident match stay in the noise bucket. A failure while scoring one
// phrase must never abort the whole pass, so each phrase is processed behind
// a recover.
func (c *Clusterer) redistributeNoise(sess *session) int {
	moved := 0
	for _, text := range sess.noisePhrases() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Warn().
						Str("phrase", text).
						Interface("panic", r).
						Msg("redistribution failed for phrase, leaving unclustered")
				}
			}()

			idx, score := closestGroup(sess.groups, termSet(text))
			if idx != NoiseIndex && score >= minRedistributeSimilarity {
				sess.move(text, idx)
				moved++
			}
		}()
	}
	return moved
}

// consolidateSmallGroups merges every group below the minimum size into its
// most related neighbor, or dissolves it into noise when nothing is related.
// Smallest groups go first so two fragments of one theme can accumulate into
// a group that survives.
func (c *Clusterer) consolidateSmallGroups(sess *session) int {
	merged := 0
	for {
		victim := smallestUndersized(sess.groups, c.opts.MinGroupSize)
		if victim == nil {
			return merged
		}

		target, score := closestGroup(otherGroups(sess.groups, victim.index), groupTerms(victim))
		members := append([]string(nil), victim.members...)
		if target != NoiseIndex && score >= minMergeSimilarity {
			for _, m := range members {
				sess.move(m, target)
			}
		} else {
			for _, m := range members {
				sess.move(m, NoiseIndex)
			}
		}
		sess.removeGroup(victim.index)
		merged++
	}
}

func smallestUndersized(groups []*group, minSize int) *group {
	var candidates []*group
	for _, g := range groups {
		if len(g.members) < minSize {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].members) != len(candidates[j].members) {
			return len(candidates[i].members) < len(candidates[j].members)
		}
		return candidates[i].index < candidates[j].index
	})
	return candidates[0]
}

func otherGroups(groups []*group, exclude int) []*group {
	out := make([]*group, 0, len(groups))
	for _, g := range groups {
		if g.index != exclude {
			out = append(out, g)
		}
	}
	return out
}

// closestGroup returns the index and Jaccard score of the group most similar
// to the given term set, or (NoiseIndex, 0) when there are no groups.
func closestGroup(groups []*group, terms map[string]bool) (int, float64) {
	best := NoiseIndex
	bestScore := 0.0
	for _, g := range groups {
		score := jaccardSimilarity(terms, groupTerms(g))
		if score > bestScore || (score == bestScore && best == NoiseIndex && score > 0) {
			best = g.index
			bestScore = score
		}
	}
	return best, bestScore
}

// groupTerms builds a group's term set from its name, description, and a few
// example members.
func groupTerms(g *group) map[string]bool {
	terms := termSet(g.name, g.description)
	examples := g.members
	if len(examples) > 5 {
		examples = examples[:5]
	}
	for _, m := range examples {
		for t := range termSet(m) {
			terms[t] = true
		}
	}
	return terms
}

// termSet tokenizes texts into a set of lowercase terms, splitting on
// non-alphanumeric runes and dropping one- and two-rune tokens.
func termSet(texts ...string) map[string]bool {
	terms := make(map[string]bool)
	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !(r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127)
		})
		for _, w := range words {
			if len([]rune(w)) >= 3 {
				terms[w] = true
			}
		}
	}
	return terms
}

// jaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func jaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
