package binding

import (
	"strconv"
	"strings"
	"unicode"
)

// TypeScript reserved words, including the strict mode ones.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true,
	"interface": true, "let": true, "new": true, "null": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true,
	"static": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true, "await": true,
}

func identRune(r rune, first bool) bool {
	if r == '_' || r == '$' || unicode.IsLetter(r) {
		return true
	}
	return !first && unicode.IsDigit(r)
}

// identifier turns a route into a TypeScript function name. Characters that
// cannot appear in an identifier become underscores, and reserved words get
// a trailing underscore.
func identifier(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range name {
		switch {
		case identRune(r, i == 0):
			b.WriteRune(r)
		case i == 0 && unicode.IsDigit(r):
			b.WriteByte('_')
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if reservedWords[s] {
		s += "_"
	}
	return s
}

// headerNames returns the names an import header line binds, such as callApi
// in "import callApi from './callApi';" or a and b in
// "import { a, b as c } from 'x';" (c, not b, in the latter case).
func headerNames(header string) map[string]bool {
	names := make(map[string]bool)
	rest, ok := strings.CutPrefix(strings.TrimSpace(header), "import ")
	if !ok {
		return names
	}
	clause, _, ok := strings.Cut(rest, " from ")
	if !ok {
		return names
	}
	clause = strings.NewReplacer("{", ",", "}", ",", "* as ", "").Replace(clause)
	for _, part := range strings.Split(clause, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 && fields[0] == "type" {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		names[fields[len(fields)-1]] = true
	}
	return names
}

// propertyName renders a JSON object key as an interface member name,
// quoting it when it is not a valid identifier. Reserved words are valid
// property names.
func propertyName(key string) string {
	if key == "" {
		return `""`
	}
	for i, r := range key {
		if !identRune(r, i == 0) {
			return strconv.Quote(key)
		}
	}
	return key
}
