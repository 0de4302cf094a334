package clusterer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grykalski/keyword-clusterer/internal/retry"
)

// engineState tracks the batch engine through its run. The engine moves
// strictly forward: idle, then awaiting/assigned for each batch in turn,
// ending in allBatchesProcessed or batchFailed.
type engineState string

const (
	engineIdle                engineState = "idle"
	engineAwaitingBatch       engineState = "awaiting_batch"
	engineAssignedBatch       engineState = "assigned_batch"
	engineAllBatchesProcessed engineState = "all_batches_processed"
	engineBatchFailed         engineState = "batch_failed"
)

// batchEngine assigns every phrase to a group in fixed-size batches within a
// single session. Batches run strictly sequentially: each request depends on
// the memory regenerated from the previous batch's group list.
type batchEngine struct {
	c     *Clusterer
	sess  *session
	state engineState
}

type newGroupSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type batchAssignment struct {
	Phrase      string        `json:"phrase"`
	Group       *int          `json:"group,omitempty"`
	NewGroup    *newGroupSpec `json:"new_group,omitempty"`
	Unclustered bool          `json:"unclustered,omitempty"`
}

type batchResponse struct {
	Assignments []batchAssignment `json:"assignments"`
}

func newBatchEngine(c *Clusterer, sess *session) *batchEngine {
	return &batchEngine{c: c, sess: sess, state: engineIdle}
}

func (e *batchEngine) transition(to engineState, batch, total int) {
	e.state = to
	e.c.logger.Debug().
		Str("state", string(to)).
		Int("batch", batch).
		Int("batches", total).
		Int("groups", len(e.sess.groups)).
		Msg("engine transition")
}

// run processes all batches. Each request carries the strategy and a memory
// summary regenerated from the group list, so decisions stay consistent
// across batches without the request size growing with phrase count. A batch
// that fails validation is retried with the same phrases and fresh memory;
// exhausting the budget fails the whole session.
func (e *batchEngine) run(ctx context.Context) error {
	sess := e.sess
	batchSize := e.c.opts.BatchSize
	total := (len(sess.phrases) + batchSize - 1) / batchSize

	for n := 0; n*batchSize < len(sess.phrases); n++ {
		start := n * batchSize
		end := start + batchSize
		if end > len(sess.phrases) {
			end = len(sess.phrases)
		}
		batch := sess.phrases[start:end]

		e.transition(engineAwaitingBatch, n+1, total)

		err := retry.Do(ctx, retry.Options{
			Config: e.c.opts.Retry,
			Name:   fmt.Sprintf("batch %d/%d", n+1, total),
			Logger: e.c.retryLogger(),
		}, func(attempt int) error {
			memory := regenerateMemory(sess.groups)
			prompt := buildBatchPrompt(sess.strategy, memory, batch)

			raw, err := e.c.llm.Complete(ctx, batchSystemPrompt, prompt)
			if err != nil {
				return fmt.Errorf("batch call failed: %w", err)
			}

			resp, err := parseBatchResponse(raw)
			if err != nil {
				return err
			}
			if err := validateBatchResponse(resp, sess, batch); err != nil {
				return err
			}
			applyBatchResponse(resp, sess, batch)
			return nil
		})
		if err != nil {
			e.transition(engineBatchFailed, n+1, total)
			sess.status = statusFailed
			return fmt.Errorf("batch %d/%d failed: %w", n+1, total, err)
		}

		e.transition(engineAssignedBatch, n+1, total)
	}

	e.transition(engineAllBatchesProcessed, total, total)

	// Coverage invariant: anything the AI never mentioned lands in noise.
	sess.sweepUnassigned()
	return nil
}

func parseBatchResponse(raw string) (*batchResponse, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var resp batchResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, invalidResponse("batch decode: " + err.Error())
	}
	if len(resp.Assignments) == 0 {
		return nil, invalidResponse("batch response carries no assignments")
	}
	return &resp, nil
}

// validateBatchResponse rejects responses that reference a nonexistent group
// index, reuse an existing group name for a new group, or assign phrases that
// are not part of the batch. Validation never mutates the session, so a
// rejected response leaves the batch cleanly retryable.
func validateBatchResponse(resp *batchResponse, sess *session, batch []Phrase) error {
	inBatch := make(map[string]struct{}, len(batch))
	for _, p := range batch {
		inBatch[normalizeText(p.Text)] = struct{}{}
	}

	for _, a := range resp.Assignments {
		text := normalizeText(a.Phrase)
		if _, ok := inBatch[text]; !ok {
			return invalidResponse(fmt.Sprintf("phrase %q is not part of this batch", a.Phrase))
		}

		switch {
		case a.Group != nil:
			if sess.groupByIndex(*a.Group) == nil {
				return invalidResponse(fmt.Sprintf("unknown group index %d", *a.Group))
			}
		case a.NewGroup != nil:
			if a.NewGroup.Name == "" {
				return invalidResponse("new group without a name")
			}
			if sess.groupByName(a.NewGroup.Name) != nil {
				return invalidResponse(fmt.Sprintf("group name %q already exists", a.NewGroup.Name))
			}
		case a.Unclustered:
			// fine
		default:
			return invalidResponse(fmt.Sprintf("phrase %q has no assignment", a.Phrase))
		}
	}
	return nil
}

// applyBatchResponse commits a validated response: new groups are created
// once per distinct name, each phrase goes to the first group offered for it,
// and phrases the model omitted default to the noise bucket.
func applyBatchResponse(resp *batchResponse, sess *session, batch []Phrase) {
	created := make(map[string]*group)

	for _, a := range resp.Assignments {
		text := normalizeText(a.Phrase)

		switch {
		case a.Group != nil:
			sess.assign(text, *a.Group)
		case a.NewGroup != nil:
			g, ok := created[a.NewGroup.Name]
			if !ok {
				g = sess.createGroup(a.NewGroup.Name, a.NewGroup.Description)
				created[a.NewGroup.Name] = g
			}
			sess.assign(text, g.index)
		case a.Unclustered:
			sess.assign(text, NoiseIndex)
		}
	}

	for _, p := range batch {
		text := normalizeText(p.Text)
		if _, ok := sess.assigned[text]; !ok {
			sess.assign(text, NoiseIndex)
		}
	}
}
