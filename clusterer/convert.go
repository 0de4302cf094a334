package clusterer

import "sort"

// noiseGroupName labels the reserved unclustered bucket in flat output.
const noiseGroupName = "Outliers"

// convertSession flattens a finalized session into the legacy shape consumed
// by storage and reporting code: one label per input phrase plus group
// metadata. Pure transform; converting the same session twice yields
// identical results.
func convertSession(sess *session, prov Provenance, opts Options) *Result {
	// Group members are tracked by normalized text; surface the original
	// phrasing in the output.
	original := make(map[string]string, len(sess.phrases))
	for _, p := range sess.phrases {
		original[normalizeText(p.Text)] = p.Text
	}

	res := &Result{
		Phrases:    make([]string, len(sess.phrases)),
		Labels:     make([]int, len(sess.phrases)),
		Provenance: prov,
	}

	for i, p := range sess.phrases {
		text := normalizeText(p.Text)
		res.Phrases[i] = p.Text
		label, ok := sess.assigned[text]
		if !ok {
			label = NoiseIndex
		}
		res.Labels[i] = label
	}

	groups := append([]*group(nil), sess.groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].index < groups[j].index })

	for _, g := range groups {
		summary := GroupSummary{
			Index:       g.index,
			Name:        g.name,
			Description: g.description,
			Phrases:     make([]string, len(g.members)),
		}
		for i, m := range g.members {
			summary.Phrases[i] = original[m]
		}
		res.Groups = append(res.Groups, summary)
	}

	if noise := sess.noisePhrases(); len(noise) > 0 {
		summary := GroupSummary{
			Index:   NoiseIndex,
			Name:    noiseGroupName,
			Phrases: make([]string, len(noise)),
		}
		for i, m := range noise {
			summary.Phrases[i] = original[m]
		}
		res.Groups = append(res.Groups, summary)
	}

	res.Metrics = sess.computeMetrics(opts.TargetGroupMin, opts.TargetGroupMax, opts.OutlierRatioCeiling)
	return res
}
