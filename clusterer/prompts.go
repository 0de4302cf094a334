package clusterer

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const strategySystemPrompt = `You are a keyword research analyst planning how to partition a set of search phrases into semantically coherent content clusters.

Respond with a single JSON object and nothing else:
{
  "target_min": <int>,
  "target_max": <int>,
  "axes": ["<what distinguishes one group from another>", ...],
  "rationale": "<one or two sentences>"
}`

const batchSystemPrompt = `You are a keyword research analyst assigning search phrases to semantic clusters. Stay consistent with the groups already created in earlier batches.

Respond with a single JSON object and nothing else:
{
  "assignments": [
    {"phrase": "<exact phrase from the batch>", "group": <existing group index>},
    {"phrase": "...", "new_group": {"name": "<short label>", "description": "<defining characteristic>"}},
    {"phrase": "...", "unclustered": true}
  ]
}
Every phrase in the batch must appear exactly once. Reuse existing groups whenever a phrase fits; create a new group only for a genuinely new theme; mark a phrase unclustered only when it fits nowhere.`

func buildStrategyPrompt(sample []Phrase, total, defaultMin, defaultMax int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The full set contains %d phrases. A representative sample:\n\n", total)
	for _, p := range sample {
		fmt.Fprintf(&b, "- %s\n", p.Text)
	}
	fmt.Fprintf(&b, "\nPropose a target number of groups (a closed range, default guidance %d-%d) and the semantic axes that should separate the groups.", defaultMin, defaultMax)
	return b.String()
}

func buildBatchPrompt(strat *strategy, memory string, batch []Phrase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Strategy: target %d-%d groups. Partition axes: %s.\nRationale: %s\n\n",
		strat.TargetMin, strat.TargetMax, strings.Join(strat.Axes, ", "), strat.Rationale)
	b.WriteString(memory)
	b.WriteString("\nAssign each of the following phrases:\n\n")
	for _, p := range batch {
		fmt.Fprintf(&b, "- %s\n", p.Text)
	}
	return b.String()
}

// extractJSONObject locates the outermost JSON object in an LLM reply. Models
// routinely wrap the payload in markdown fences or prose; everything outside
// the braces is discarded and the remainder must be valid JSON. Malformed
// payloads are rejected here so the caller's retry path can ask again.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", invalidResponse("no JSON object found")
	}
	payload := raw[start : end+1]
	if !gjson.Valid(payload) {
		return "", invalidResponse("malformed JSON payload")
	}
	return payload, nil
}
