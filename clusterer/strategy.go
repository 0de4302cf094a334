package clusterer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grykalski/keyword-clusterer/internal/retry"
)

// strategy is the partitioning plan proposed before any assignment happens:
// a closed target range for the group count plus the semantic axes that
// should separate the groups.
type strategy struct {
	TargetMin int
	TargetMax int
	Axes      []string
	Rationale string
}

type strategyResponse struct {
	TargetMin int      `json:"target_min"`
	TargetMax int      `json:"target_max"`
	Axes      []string `json:"axes"`
	Rationale string   `json:"rationale"`
}

// planStrategy asks the LLM for a clustering strategy based on a stratified
// sample of the input. Validation failures are retried like transient errors;
// exhausting the budget fails the whole AI path, never a partial strategy.
func (c *Clusterer) planStrategy(ctx context.Context, phrases []Phrase) (*strategy, error) {
	sample := stratifiedSample(phrases, c.opts.StrategySampleSize)
	prompt := buildStrategyPrompt(sample, len(phrases), c.opts.TargetGroupMin, c.opts.TargetGroupMax)

	var strat *strategy
	err := retry.Do(ctx, retry.Options{
		Config: c.opts.Retry,
		Name:   "strategy planner",
		Logger: c.retryLogger(),
	}, func(attempt int) error {
		raw, err := c.llm.Complete(ctx, strategySystemPrompt, prompt)
		if err != nil {
			return fmt.Errorf("strategy call failed: %w", err)
		}

		parsed, err := parseStrategy(raw, len(phrases))
		if err != nil {
			return err
		}
		strat = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return strat, nil
}

// parseStrategy strictly decodes and validates a planner response, clamping
// the target range to [2, total].
func parseStrategy(raw string, total int) (*strategy, error) {
	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var resp strategyResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, invalidResponse("strategy decode: " + err.Error())
	}

	if resp.TargetMin <= 0 || resp.TargetMax <= 0 {
		return nil, invalidResponse("missing or non-positive target group count")
	}
	if resp.TargetMin > resp.TargetMax {
		return nil, invalidResponse("target range inverted")
	}
	if resp.TargetMin > total {
		return nil, invalidResponse("target group count larger than phrase count")
	}
	if len(resp.Axes) == 0 {
		return nil, invalidResponse("no partition axes proposed")
	}

	strat := &strategy{
		TargetMin: resp.TargetMin,
		TargetMax: resp.TargetMax,
		Axes:      resp.Axes,
		Rationale: resp.Rationale,
	}
	if strat.TargetMin < 2 {
		strat.TargetMin = 2
	}
	if strat.TargetMax > total {
		strat.TargetMax = total
	}
	if strat.TargetMin > strat.TargetMax {
		strat.TargetMin = strat.TargetMax
	}
	return strat, nil
}

// stratifiedSample picks up to n phrases spread evenly across the input so
// the planner sees the full breadth of the set, deterministically.
func stratifiedSample(phrases []Phrase, n int) []Phrase {
	if len(phrases) <= n {
		return phrases
	}
	sample := make([]Phrase, 0, n)
	step := float64(len(phrases)) / float64(n)
	for i := 0; i < n; i++ {
		sample = append(sample, phrases[int(float64(i)*step)])
	}
	return sample
}
