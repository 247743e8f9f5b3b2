package typemap

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"strings"
)

// ErrMalformed is returned for expressions that are not valid Go types,
// including unbalanced brackets.
var ErrMalformed = errors.New("malformed type expression")

var primitives = map[string]string{
	"bool":    Boolean,
	"string":  String,
	"int":     Number,
	"int8":    Number,
	"int16":   Number,
	"int32":   Number,
	"int64":   Number,
	"uint":    Number,
	"uint8":   Number,
	"uint16":  Number,
	"uint32":  Number,
	"uint64":  Number,
	"uintptr": Number,
	"float32": Number,
	"float64": Number,
	"byte":    Number,
	"rune":    Number,
	"any":     Opaque,
}

// qualified maps well-known package types to their JSON shape.
var qualified = map[string]string{
	"time.Time":       String,
	"time.Duration":   Number,
	"json.RawMessage": Opaque,
	"json.Number":     Number,
}

// Parse parses a Go type expression into a Type.
//
// The empty string and "struct{}" are Absent. A parenthesized, comma separated
// list such as "(int32, bool)" is a Tuple; "()" is Absent.
func Parse(expr string) (Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Absent{}, nil
	}
	if err := checkBalanced(expr); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, expr, err)
	}

	if elems, ok := tupleElems(expr); ok {
		switch len(elems) {
		case 0:
			return Absent{}, nil
		case 1:
			return Parse(elems[0])
		}
		t := Tuple{Elems: make([]Type, len(elems))}
		for i, e := range elems {
			if strings.TrimSpace(e) == "" {
				return nil, fmt.Errorf("%w: %q: empty tuple element", ErrMalformed, expr)
			}
			et, err := Parse(e)
			if err != nil {
				return nil, err
			}
			t.Elems[i] = et
		}
		return t, nil
	}

	x, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformed, expr, err)
	}
	if !isTypeExpr(x) {
		return nil, fmt.Errorf("%w: %q is not a type", ErrMalformed, expr)
	}
	return fromExpr(x), nil
}

// MustParse is like Parse but panics on error. For tests and tables.
func MustParse(expr string) Type {
	t, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return t
}

func fromExpr(x ast.Expr) Type {
	switch x := x.(type) {
	case *ast.Ident:
		if name, ok := primitives[x.Name]; ok {
			return Primitive{Name: name}
		}
	case *ast.SelectorExpr:
		if name, ok := qualified[types.ExprString(x)]; ok {
			return Primitive{Name: name}
		}
	case *ast.ParenExpr:
		return fromExpr(x.X)
	case *ast.StarExpr:
		return Nullable{Elem: fromExpr(x.X)}
	case *ast.ArrayType:
		// []byte is base64 in JSON; [N]byte is an array of numbers.
		if x.Len == nil && isByte(x.Elt) {
			return Primitive{Name: String}
		}
		return Array{Elem: fromExpr(x.Elt)}
	case *ast.MapType:
		return Dict{Key: fromExpr(x.Key), Value: fromExpr(x.Value)}
	case *ast.StructType:
		if x.Fields == nil || len(x.Fields.List) == 0 {
			return Absent{}
		}
	case *ast.InterfaceType:
		if x.Methods == nil || len(x.Methods.List) == 0 {
			return Primitive{Name: Opaque}
		}
	}
	return Unknown{Raw: types.ExprString(x)}
}

func isByte(x ast.Expr) bool {
	id, ok := x.(*ast.Ident)
	return ok && (id.Name == "byte" || id.Name == "uint8")
}

// isTypeExpr rejects expressions that parse but cannot denote a type, such as
// literals and calls.
func isTypeExpr(x ast.Expr) bool {
	switch x := x.(type) {
	case *ast.Ident, *ast.ArrayType, *ast.MapType, *ast.StructType,
		*ast.InterfaceType, *ast.FuncType, *ast.ChanType:
		return true
	case *ast.SelectorExpr:
		_, ok := x.X.(*ast.Ident)
		return ok
	case *ast.StarExpr:
		return isTypeExpr(x.X)
	case *ast.ParenExpr:
		return isTypeExpr(x.X)
	case *ast.IndexExpr:
		return isTypeExpr(x.X)
	case *ast.IndexListExpr:
		return isTypeExpr(x.X)
	default:
		return false
	}
}

// tupleElems splits "(A, B)" into its top-level elements. It reports false
// when expr is not a single parenthesized list.
func tupleElems(expr string) ([]string, bool) {
	if !strings.HasPrefix(expr, "(") || !strings.HasSuffix(expr, ")") {
		return nil, false
	}
	// The opening paren must close at the very end, otherwise this is
	// something like "(A)(B)".
	if closing := matching(expr, 0); closing != len(expr)-1 {
		return nil, false
	}
	inner := strings.TrimSpace(expr[1 : len(expr)-1])
	if inner == "" {
		return []string{}, true
	}
	return splitTop(inner, ','), true
}

// matching returns the index of the bracket closing the one at open, or -1.
func matching(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTop splits s on sep at bracket depth zero.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func checkBalanced(s string) error {
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	var stack []byte
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '`':
			quote = c
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return fmt.Errorf("unexpected %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if quote != 0 {
		return fmt.Errorf("unterminated %q", quote)
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

// Map parses expr and returns the Type with its unmapped leaves, in the
// order Unknowns reports them.
func Map(expr string) (Type, []string, error) {
	t, err := Parse(expr)
	if err != nil {
		return nil, nil, err
	}
	return t, Unknowns(t), nil
}
