// Package prompt renders the system prompts a turn sends to the generation
// capability.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${name}.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle an unknown placeholder.
type MissingAction int

const (
	// MissingKeep leaves the placeholder in place.
	MissingKeep MissingAction = iota
	// MissingEmpty removes it.
	MissingEmpty
	// MissingError fails the expansion.
	MissingError
)

// Expander substitutes ${name} placeholders. Safe for concurrent use.
type Expander struct {
	missing MissingAction
}

// NewExpander returns an Expander with the given missing-variable behavior.
func NewExpander(missing MissingAction) *Expander {
	return &Expander{missing: missing}
}

// Expand replaces placeholders in s with values from vars.
func (e *Expander) Expand(s string, vars map[string]string) (string, error) {
	if s == "" {
		return "", nil
	}

	var undefined []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		switch e.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			undefined = append(undefined, name)
		}
		return match
	})
	if len(undefined) > 0 {
		return out, &UndefinedVariableError{Names: undefined}
	}
	return out, nil
}

// Placeholders returns the distinct placeholder names in s, in order.
func Placeholders(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// UndefinedVariableError lists placeholders without a value.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}
