package solace

import (
	"context"
	"strings"
	"unicode"
)

// Router picks the reply branch for a text message.
type Router interface {
	Route(ctx context.Context, text string) (Kind, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, text string) (Kind, error)

// Route implements Router.
func (f RouterFunc) Route(ctx context.Context, text string) (Kind, error) {
	return f(ctx, text)
}

// DefaultImageKeywords are the words and phrases that send a message to the
// image branch.
var DefaultImageKeywords = []string{
	"draw",
	"drawing",
	"picture",
	"image",
	"illustrate",
	"illustration",
	"paint",
	"painting",
	"sketch",
	"show me",
	"visualize",
}

// DefaultAudioKeywords are the phrases that ask for a spoken reply.
var DefaultAudioKeywords = []string{
	"voice message",
	"voice note",
	"voice memo",
	"say it out loud",
	"read it aloud",
	"read it to me",
	"speak to me",
	"hear your voice",
}

// KeywordRouter routes by matching whole words. Image keywords win over audio
// keywords. It never fails and never calls out of process.
type KeywordRouter struct {
	// ImageKeywords defaults to DefaultImageKeywords.
	ImageKeywords []string
	// AudioKeywords defaults to DefaultAudioKeywords.
	AudioKeywords []string
}

// Route implements Router.
func (r KeywordRouter) Route(_ context.Context, text string) (Kind, error) {
	padded := " " + strings.Join(words(text), " ") + " "
	switch {
	case matchAny(padded, orDefault(r.ImageKeywords, DefaultImageKeywords)):
		return KindImage, nil
	case matchAny(padded, orDefault(r.AudioKeywords, DefaultAudioKeywords)):
		return KindAudio, nil
	}
	return KindConversation, nil
}

func orDefault(keywords, def []string) []string {
	if keywords == nil {
		return def
	}
	return keywords
}

// matchAny reports whether a keyword occurs as whole words in padded, the
// normalized text surrounded by single spaces.
func matchAny(padded string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.Join(words(kw), " ")
		if kw != "" && strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
