package clusterer

import (
	"reflect"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	raw := "Here is my plan:\n```json\n" +
		`{"target_min":8,"target_max":12,"axes":["intent","product type"],"rationale":"broad set"}` +
		"\n```"

	strat, err := parseStrategy(raw, 200)
	if err != nil {
		t.Fatalf("parseStrategy failed: %v", err)
	}
	if strat.TargetMin != 8 || strat.TargetMax != 12 {
		t.Errorf("range = [%d,%d], want [8,12]", strat.TargetMin, strat.TargetMax)
	}
	if !reflect.DeepEqual(strat.Axes, []string{"intent", "product type"}) {
		t.Errorf("axes = %v", strat.Axes)
	}
}

func TestParseStrategyRejects(t *testing.T) {
	cases := map[string]string{
		"no json":          "I cannot answer that.",
		"malformed":        `{"target_min": 8,`,
		"zero targets":     `{"target_min":0,"target_max":0,"axes":["intent"]}`,
		"inverted range":   `{"target_min":12,"target_max":8,"axes":["intent"]}`,
		"min beyond total": `{"target_min":50,"target_max":60,"axes":["intent"]}`,
		"no axes":          `{"target_min":8,"target_max":12,"axes":[]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseStrategy(raw, 20); err == nil {
				t.Errorf("parseStrategy accepted %q", raw)
			}
		})
	}
}

func TestParseStrategyClamps(t *testing.T) {
	strat, err := parseStrategy(`{"target_min":1,"target_max":100,"axes":["intent"]}`, 10)
	if err != nil {
		t.Fatalf("parseStrategy failed: %v", err)
	}
	if strat.TargetMin != 2 {
		t.Errorf("TargetMin = %d, want clamped to 2", strat.TargetMin)
	}
	if strat.TargetMax != 10 {
		t.Errorf("TargetMax = %d, want clamped to the phrase count", strat.TargetMax)
	}
}

func TestStratifiedSample(t *testing.T) {
	phrases := make([]Phrase, 100)
	for i := range phrases {
		phrases[i] = Phrase{Text: string(rune('a'+i%26)) + "phrase"}
	}

	sample := stratifiedSample(phrases, 10)
	if len(sample) != 10 {
		t.Fatalf("sample size = %d, want 10", len(sample))
	}
	if sample[0] != phrases[0] {
		t.Error("sample does not start at the head of the input")
	}
	if !reflect.DeepEqual(sample, stratifiedSample(phrases, 10)) {
		t.Error("sampling is not deterministic")
	}

	// Small inputs pass through whole.
	small := phrases[:5]
	if got := stratifiedSample(small, 10); !reflect.DeepEqual(got, small) {
		t.Errorf("small input resampled: %v", got)
	}
}

func TestExtractJSONObject(t *testing.T) {
	payload, err := extractJSONObject("prose before {\"a\": 1} prose after")
	if err != nil {
		t.Fatalf("extractJSONObject failed: %v", err)
	}
	if payload != `{"a": 1}` {
		t.Errorf("payload = %q", payload)
	}

	for _, raw := range []string{"no braces here", "{broken", "{]}"} {
		if _, err := extractJSONObject(raw); err == nil {
			t.Errorf("extractJSONObject accepted %q", raw)
		}
	}
}
