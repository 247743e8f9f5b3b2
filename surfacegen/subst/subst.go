// Package subst performs literal placeholder replacement over template text.
//
// There are no conditionals, loops or escaping. Replacement is single-pass:
// a substituted value that itself contains a placeholder token is left as is.
package subst

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingPlaceholder is returned when a required placeholder does not occur
// in the template.
var ErrMissingPlaceholder = errors.New("missing placeholder")

// Require checks that every token occurs in tmpl at least once.
func Require(tmpl string, tokens ...string) error {
	var missing []string
	for _, tok := range tokens {
		if !strings.Contains(tmpl, tok) {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingPlaceholder, strings.Join(missing, ", "))
	}
	return nil
}

// Replace substitutes every occurrence of each key of values in tmpl.
// Longer tokens are matched first so that a token that is a prefix of
// another does not shadow it.
func Replace(tmpl string, values map[string]string) string {
	tokens := make([]string, 0, len(values))
	for tok := range values {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	pairs := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		pairs = append(pairs, tok, values[tok])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Render is Require followed by Replace, using the keys of values as the
// required tokens.
func Render(tmpl string, values map[string]string) (string, error) {
	tokens := make([]string, 0, len(values))
	for tok := range values {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	if err := Require(tmpl, tokens...); err != nil {
		return "", err
	}
	return Replace(tmpl, values), nil
}
