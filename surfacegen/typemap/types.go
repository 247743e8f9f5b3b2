// Package typemap converts Go type expressions into TypeScript types.
//
// A type expression is parsed once into a small tagged tree (Primitive, Array,
// Tuple, Dict, Nullable, Unknown, Absent) which is then rendered recursively.
// Anything the mapper does not recognize is kept verbatim as Unknown so the
// caller can decide whether to report it.
package typemap

import (
	"strings"
)

// Kind identifies the variant of a Type.
type Kind int

const (
	KindAbsent Kind = iota
	KindPrimitive
	KindArray
	KindTuple
	KindMap
	KindNullable
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "Absent"
	case KindPrimitive:
		return "Primitive"
	case KindArray:
		return "Array"
	case KindTuple:
		return "Tuple"
	case KindMap:
		return "Map"
	case KindNullable:
		return "Nullable"
	case KindUnknown:
		return "Unknown"
	default:
		return "Invalid"
	}
}

// Type is a node of the mapped type tree.
type Type interface {
	Kind() Kind

	// TypeScript renders the node as a TypeScript type expression.
	TypeScript() string
}

// TypeScript primitive names.
const (
	Number  = "number"
	Boolean = "boolean"
	String  = "string"
	Opaque  = "unknown"
)

// Primitive is a TypeScript primitive.
type Primitive struct {
	Name string
}

func (p Primitive) Kind() Kind         { return KindPrimitive }
func (p Primitive) TypeScript() string { return p.Name }

// Array is an ordered collection (Go slices and fixed arrays).
type Array struct {
	Elem Type
}

func (a Array) Kind() Kind         { return KindArray }
func (a Array) TypeScript() string { return "Array<" + nested(a.Elem) + ">" }

// Tuple is a fixed sequence of heterogeneous values (Go multiple results).
// It renders as a TypeScript tuple, [A, B], matching the JSON array the
// server replies with; the parenthesized Go form is not valid TypeScript.
type Tuple struct {
	Elems []Type
}

func (t Tuple) Kind() Kind { return KindTuple }

func (t Tuple) TypeScript() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = nested(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Dict is a string-keyed mapping. JSON object keys are always strings, so the
// Go key type only needs to be string-representable.
type Dict struct {
	Key   Type
	Value Type
}

func (m Dict) Kind() Kind         { return KindMap }
func (m Dict) TypeScript() string { return "{ [key: string]: " + nested(m.Value) + " }" }

// Nullable is a Go pointer: the value or JSON null.
type Nullable struct {
	Elem Type
}

func (n Nullable) Kind() Kind         { return KindNullable }
func (n Nullable) TypeScript() string { return nested(n.Elem) + " | null" }

// Unknown is an expression the mapper does not translate. It renders as the
// original Go text.
type Unknown struct {
	Raw string
}

func (u Unknown) Kind() Kind         { return KindUnknown }
func (u Unknown) TypeScript() string { return u.Raw }

// Absent is the empty type: no payload, or no result.
type Absent struct{}

func (Absent) Kind() Kind         { return KindAbsent }
func (Absent) TypeScript() string { return "void" }

// nested renders t in element position, where void is not meaningful and an
// empty struct is an empty JSON object.
func nested(t Type) string {
	if _, ok := t.(Absent); ok {
		return "Record<string, never>"
	}
	return t.TypeScript()
}

// Unknowns returns the raw text of every Unknown leaf of t, in first-seen
// order and without duplicates.
func Unknowns(t Type) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(Type)
	visit = func(t Type) {
		switch t := t.(type) {
		case Unknown:
			if !seen[t.Raw] {
				seen[t.Raw] = true
				out = append(out, t.Raw)
			}
		case Array:
			visit(t.Elem)
		case Tuple:
			for _, e := range t.Elems {
				visit(e)
			}
		case Dict:
			// The key always renders as string.
			visit(t.Value)
		case Nullable:
			visit(t.Elem)
		}
	}
	visit(t)
	return out
}
