package clusterer

import (
	"fmt"
	"strings"
)

// memoryExampleCount bounds how many member phrases each group contributes to
// the cross-batch memory.
const memoryExampleCount = 3

// regenerateMemory rebuilds the cross-batch memory from the authoritative
// group list. The memory is never an accumulated transcript: it is derived
// fresh after every batch, so its size is bounded by the group count and stays
// consistent even when a batch is retried.
func regenerateMemory(groups []*group) string {
	if len(groups) == 0 {
		return "No groups created yet."
	}

	var b strings.Builder
	b.WriteString("Groups created so far:\n")
	for _, g := range groups {
		examples := g.members
		if len(examples) > memoryExampleCount {
			examples = examples[:memoryExampleCount]
		}
		fmt.Fprintf(&b, "- [%d] %q: %s (%d members, e.g. %s)\n",
			g.index, g.name, g.description, len(g.members), strings.Join(examples, "; "))
	}
	return b.String()
}
