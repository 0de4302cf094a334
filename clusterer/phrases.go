package clusterer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPhraseLen = 3
	maxPhraseLen = 200
)

// normalizeText collapses whitespace and lowercases a phrase. Normalized text
// is the identity used for deduplication and assignment bookkeeping.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizePhrases dedupes phrases by normalized text, keeping the first
// occurrence, and drops entries that are blank, purely numeric, shorter than
// 3 runes, or longer than 200 runes. Order of first occurrence is preserved.
func NormalizePhrases(raw []Phrase) []Phrase {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Phrase, 0, len(raw))

	for _, p := range raw {
		text := normalizeText(p.Text)
		if text == "" || allDigits(text) {
			continue
		}
		if n := utf8.RuneCountInString(text); n < minPhraseLen || n > maxPhraseLen {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, Phrase{Text: strings.TrimSpace(p.Text), Source: p.Source})
	}

	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
