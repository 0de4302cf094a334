package clusterer

import (
	"github.com/google/uuid"
)

// sessionStatus tracks a clustering session's lifecycle. A session becomes
// immutable once it reaches a terminal status.
type sessionStatus string

const (
	statusPlanning   sessionStatus = "planning"
	statusClustering sessionStatus = "clustering"
	statusFinalizing sessionStatus = "finalizing"
	statusCompleted  sessionStatus = "completed"
	statusFailed     sessionStatus = "failed"
)

// group is one semantic cluster under construction. Members are normalized
// phrase texts; the members slice is the authoritative membership record.
type group struct {
	index       int
	name        string
	description string
	members     []string
}

// session owns all mutable state for one clustering run: the normalized input
// set, the chosen strategy, the group list, and the assignment bookkeeping
// that guarantees no phrase is double-assigned.
type session struct {
	id       string
	phrases  []Phrase
	strategy *strategy
	groups   []*group
	status   sessionStatus

	// assigned maps normalized text to group index (NoiseIndex included).
	// A phrase present here is never reassigned by the engine; moves happen
	// only through the finalizer's move operation.
	assigned map[string]int
}

func newSession(phrases []Phrase) *session {
	return &session{
		id:       uuid.New().String(),
		phrases:  phrases,
		status:   statusPlanning,
		assigned: make(map[string]int, len(phrases)),
	}
}

// groupByIndex returns the group with the given index, or nil.
func (s *session) groupByIndex(idx int) *group {
	for _, g := range s.groups {
		if g.index == idx {
			return g
		}
	}
	return nil
}

// groupByName returns the group with the given name, or nil. Group names are
// unique within a session.
func (s *session) groupByName(name string) *group {
	for _, g := range s.groups {
		if g.name == name {
			return g
		}
	}
	return nil
}

// createGroup appends a new group with the next free index.
func (s *session) createGroup(name, description string) *group {
	next := 0
	for _, g := range s.groups {
		if g.index >= next {
			next = g.index + 1
		}
	}
	g := &group{index: next, name: name, description: description}
	s.groups = append(s.groups, g)
	return g
}

// assign places a phrase into the group with the given index, or into the
// noise bucket for NoiseIndex. The first assignment wins; later attempts for
// the same phrase are ignored.
func (s *session) assign(text string, idx int) {
	if _, ok := s.assigned[text]; ok {
		return
	}
	s.assigned[text] = idx
	if idx == NoiseIndex {
		return
	}
	if g := s.groupByIndex(idx); g != nil {
		g.members = append(g.members, text)
	}
}

// move reassigns an already-assigned phrase to another group, updating both
// membership lists. Used by the finalizer only.
func (s *session) move(text string, to int) {
	from, ok := s.assigned[text]
	if !ok || from == to {
		return
	}
	if g := s.groupByIndex(from); g != nil {
		for i, m := range g.members {
			if m == text {
				g.members = append(g.members[:i], g.members[i+1:]...)
				break
			}
		}
	}
	s.assigned[text] = to
	if to == NoiseIndex {
		return
	}
	if g := s.groupByIndex(to); g != nil {
		g.members = append(g.members, text)
	}
}

// removeGroup deletes a group from the session. Its members must already have
// been moved elsewhere.
func (s *session) removeGroup(idx int) {
	for i, g := range s.groups {
		if g.index == idx {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return
		}
	}
}

// noisePhrases returns the normalized texts currently in the noise bucket.
func (s *session) noisePhrases() []string {
	var out []string
	for _, p := range s.phrases {
		if s.assigned[normalizeText(p.Text)] == NoiseIndex {
			out = append(out, normalizeText(p.Text))
		}
	}
	return out
}

// sweepUnassigned marks every phrase without an assignment as noise. Called
// once after the batch engine finishes so the coverage invariant holds.
func (s *session) sweepUnassigned() {
	for _, p := range s.phrases {
		text := normalizeText(p.Text)
		if _, ok := s.assigned[text]; !ok {
			s.assigned[text] = NoiseIndex
		}
	}
}

// computeMetrics derives quality metrics from the current group membership.
// Must be re-run whenever membership changes.
func (s *session) computeMetrics(targetMin, targetMax int, outlierCeiling float64) QualityMetrics {
	total := len(s.phrases)
	m := QualityMetrics{
		GroupSizes: make(map[int]int, len(s.groups)+1),
	}

	memberSum := 0
	for _, g := range s.groups {
		m.GroupSizes[g.index] = len(g.members)
		memberSum += len(g.members)
		m.GroupCount++
	}

	m.OutlierCount = total - memberSum
	m.GroupSizes[NoiseIndex] = m.OutlierCount
	if total > 0 {
		m.OutlierRatio = float64(m.OutlierCount) / float64(total)
	}
	if m.GroupCount > 0 {
		m.AvgGroupSize = float64(memberSum) / float64(m.GroupCount)
	}

	if s.strategy != nil {
		targetMin, targetMax = s.strategy.TargetMin, s.strategy.TargetMax
	}
	m.TargetRangeMet = m.GroupCount >= targetMin && m.GroupCount <= targetMax
	m.QualityGoalAchieved = m.OutlierRatio <= outlierCeiling

	return m
}
