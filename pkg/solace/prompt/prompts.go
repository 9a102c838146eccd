package prompt

import (
	"fmt"
	"strings"
)

// Placeholder names available to every template.
const (
	VarSummary = "summary"
	VarContext = "context"
)

// Set holds one template per prompt. Empty fields fall back to Defaults.
type Set struct {
	// Conversation is the system prompt for ordinary turns.
	Conversation string
	// Image asks for a short message to accompany a generated image.
	Image string
	// ImagePrompt turns the user's request into an image prompt.
	ImagePrompt string
	// Audio is the system prompt when the reply will be spoken.
	Audio string
	// Summarize condenses older conversation into a running summary.
	Summarize string
}

const conversationPrompt = `You are Solace, a warm and steady companion for people working through difficult feelings.
Listen closely, reflect what you hear, and respond with empathy in plain language.
Do not diagnose. If the person may be in danger, encourage them to contact local emergency services or a crisis line.

Conversation so far, summarized:
${summary}

Things the person shared in earlier conversations:
${context}`

const imagePrompt = `You are Solace, a warm companion. The person asked for an image and one is being created for them.
Write one or two gentle sentences to accompany it.

Things the person shared in earlier conversations:
${context}`

const imagePromptPrompt = `Rewrite the person's request as a single vivid, calming image description of at most 60 words.
Reply with the description only.`

const audioPrompt = `You are Solace, a warm and steady companion. Your reply will be read aloud.
Keep it under four short sentences, avoid lists and symbols, and speak naturally.

Conversation so far, summarized:
${summary}

Things the person shared in earlier conversations:
${context}`

const summarizePrompt = `Summarize the conversation below for your own future reference.
Keep names, events, feelings and anything the person asked you to remember. Write at most 150 words in the third person.

Earlier summary:
${summary}`

// Defaults returns the built-in prompts.
func Defaults() Set {
	return Set{
		Conversation: conversationPrompt,
		Image:        imagePrompt,
		ImagePrompt:  imagePromptPrompt,
		Audio:        audioPrompt,
		Summarize:    summarizePrompt,
	}
}

func (s Set) withDefaults() Set {
	d := Defaults()
	if s.Conversation == "" {
		s.Conversation = d.Conversation
	}
	if s.Image == "" {
		s.Image = d.Image
	}
	if s.ImagePrompt == "" {
		s.ImagePrompt = d.ImagePrompt
	}
	if s.Audio == "" {
		s.Audio = d.Audio
	}
	if s.Summarize == "" {
		s.Summarize = d.Summarize
	}
	return s
}

// Builder renders a Set.
type Builder struct {
	set Set
	exp *Expander
}

// NewBuilder validates set and returns a Builder. Templates may only use
// VarSummary and VarContext.
func NewBuilder(set Set) (*Builder, error) {
	set = set.withDefaults()
	for name, tmpl := range map[string]string{
		"conversation": set.Conversation,
		"image":        set.Image,
		"image_prompt": set.ImagePrompt,
		"audio":        set.Audio,
		"summarize":    set.Summarize,
	} {
		for _, v := range Placeholders(tmpl) {
			if v != VarSummary && v != VarContext {
				return nil, fmt.Errorf("prompt %s: unknown placeholder ${%s}", name, v)
			}
		}
	}
	return &Builder{set: set, exp: NewExpander(MissingError)}, nil
}

// Vars are the values substituted into a template.
type Vars struct {
	Summary string
	Context string
}

func (v Vars) toMap() map[string]string {
	summary := strings.TrimSpace(v.Summary)
	if summary == "" {
		summary = "(none yet)"
	}
	context := strings.TrimSpace(v.Context)
	if context == "" {
		context = "(nothing relevant)"
	}
	return map[string]string{VarSummary: summary, VarContext: context}
}

func (b *Builder) render(tmpl string, v Vars) string {
	// placeholders were checked in NewBuilder and both vars are always set
	out, _ := b.exp.Expand(tmpl, v.toMap())
	return out
}

// Conversation renders the conversation system prompt.
func (b *Builder) Conversation(v Vars) string { return b.render(b.set.Conversation, v) }

// Image renders the image caption system prompt.
func (b *Builder) Image(v Vars) string { return b.render(b.set.Image, v) }

// ImagePrompt renders the image description system prompt.
func (b *Builder) ImagePrompt(v Vars) string { return b.render(b.set.ImagePrompt, v) }

// Audio renders the spoken reply system prompt.
func (b *Builder) Audio(v Vars) string { return b.render(b.set.Audio, v) }

// Summarize renders the summarization system prompt.
func (b *Builder) Summarize(v Vars) string { return b.render(b.set.Summarize, v) }
