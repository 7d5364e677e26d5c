// Package moderation censors blacklisted words in message content before it
// reaches the room log. Matching runs on a normalized view of the text so
// spacing, punctuation and leet speak cannot defeat the filter.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/abadojack/whatlanggo"
)

// leet maps common substitution characters back to the letters they imitate.
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

type Moderator struct {
	matcher         *goahocorasick.Machine
	replacementChar rune
}

// mapping ties each rune of the normalized text back to its position in the
// original, so censoring can star out the exact original spans.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton from a normalized version
// of the blacklist.
func NewModerator(words []string, replacementChar rune) (Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, replacementChar: replacementChar}, nil
}

// Censor replaces every blacklisted span with the replacement character,
// preserving the surrounding spacing. Returns the sanitized text and the
// number of spans hit.
func (m *Moderator) Censor(original string) (string, int) {
	view := project(original)
	if len(view.normalized) == 0 {
		return original, 0
	}

	spans := m.matcher.MultiPatternSearch(view.normalized, false)
	if len(spans) == 0 {
		return original, 0
	}

	runes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(view.origIdx) {
			continue
		}
		for i := view.origIdx[start]; i <= view.origIdx[end-1]; i++ {
			runes[i] = m.replacementChar
		}
	}
	return string(runes), len(spans)
}

// DetectLang returns the ISO 639-1 code of the text's likely language,
// empty when detection has nothing to work with.
func DetectLang(text string) string {
	info := whatlanggo.Detect(text)
	return info.Lang.Iso6391()
}

// project builds the normalized searchable view with back-references to the
// original rune positions.
func project(input string) mapping {
	origRunes := []rune(input)
	view := mapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := foldLeet(r)
		if isNoise(clean) {
			continue
		}
		view.normalized = append(view.normalized, unicode.ToLower(clean))
		view.origIdx = append(view.origIdx, i)
	}
	return view
}

func normalize(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := foldLeet(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func foldLeet(r rune) rune {
	if folded, ok := leet[r]; ok {
		return folded
	}
	return r
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
