package extract

import (
	"fmt"
	"go/ast"
	"strings"
)

const directivePrefix = "//surface:"

// Directive kinds.
const (
	DirectiveIgnore = "ignore"
)

// parseDirectives reads //surface: directives from a function's doc comment.
// It reports whether the function is excluded, and errors on unknown
// directives.
func parseDirectives(doc *ast.CommentGroup) (ignore bool, err error) {
	if doc == nil {
		return false, nil
	}
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, directivePrefix) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(c.Text, directivePrefix))
		if len(parts) == 0 {
			return false, fmt.Errorf("empty %s directive", directivePrefix)
		}
		switch parts[0] {
		case DirectiveIgnore:
			if len(parts) > 1 {
				return false, fmt.Errorf("%s%s takes no arguments", directivePrefix, DirectiveIgnore)
			}
			ignore = true
		default:
			return false, fmt.Errorf("unknown directive %s%s", directivePrefix, parts[0])
		}
	}
	return ignore, nil
}
