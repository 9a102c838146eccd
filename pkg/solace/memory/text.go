package memory

import (
	"strings"
	"unicode"
)

// SplitSentences splits text on sentence-ending punctuation and line breaks.
// Terminal punctuation stays with its sentence. Blank pieces are dropped.
func SplitSentences(text string) []string {
	var (
		out []string
		b   strings.Builder
	)
	flush := func() {
		s := strings.Join(strings.Fields(b.String()), " ")
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '\n', '\r':
			flush()
		case '.', '!', '?':
			b.WriteRune(r)
			// "3.5" and "..." are not boundaries
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}

// tokenize lowercases text and splits it into word tokens. Apostrophes inside
// words are kept so "I'm" stays one token.
func tokenize(text string) []string {
	text = strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// normalizeText is the canonical form used for record IDs.
func normalizeText(text string) string {
	return strings.Join(tokenize(text), " ")
}
