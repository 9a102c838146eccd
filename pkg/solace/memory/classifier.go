package memory

import (
	"context"
	"strings"
)

// DefaultMinWords is the shortest sentence HeuristicClassifier keeps.
const DefaultMinWords = 4

var firstPerson = map[string]bool{
	"i": true, "i'm": true, "im": true, "i've": true, "i'd": true, "i'll": true,
	"my": true, "me": true, "mine": true, "myself": true,
	"we": true, "we're": true, "our": true, "us": true,
}

// Words that carry no fact on their own.
var smallTalk = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true, "you": true,
	"ok": true, "okay": true, "bye": true, "goodbye": true, "good": true, "fine": true,
	"morning": true, "evening": true, "night": true, "yes": true, "no": true, "yeah": true,
	"sure": true, "great": true, "cool": true, "nice": true, "well": true, "alright": true,
	"am": true, "is": true, "are": true, "so": true, "very": true, "really": true,
	"just": true, "too": true, "a": true, "the": true, "and": true, "all": true,
	"doing": true, "how": true, "much": true, "lot": true, "again": true, "there": true,
}

// HeuristicClassifier keeps first-person statements of at least MinWords
// words that are neither questions nor pleasantries.
type HeuristicClassifier struct {
	MinWords int
}

// Substantive implements Classifier. It never returns an error.
func (c HeuristicClassifier) Substantive(_ context.Context, sentence string) (bool, error) {
	minWords := c.MinWords
	if minWords <= 0 {
		minWords = DefaultMinWords
	}

	sentence = strings.TrimSpace(sentence)
	if strings.HasSuffix(sentence, "?") {
		return false, nil
	}

	tokens := tokenize(sentence)
	if len(tokens) < minWords {
		return false, nil
	}

	personal, content := false, false
	for _, tok := range tokens {
		switch {
		case firstPerson[tok]:
			personal = true
		case !smallTalk[tok]:
			content = true
		}
	}
	return personal && content, nil
}
