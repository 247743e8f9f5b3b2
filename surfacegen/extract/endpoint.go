// Package extract finds handler functions in Go source files and describes
// their routing identity and signature.
//
// A handler is an exported, non-generic, package-level function:
//
//	func Sum(token string, params QueryParams) int32
//
// The first parameter, when present, receives the caller's credential and
// must be a string (the raw bearer token) or a surface.Credential. The
// second parameter, when present, is the request payload. Results are
// either nothing, a value, several values, or any of those followed by an
// error.
//
// A function can be excluded with a directive in its doc comment:
//
//	//surface:ignore
package extract

import (
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RuntimeImportPath is the import path of the runtime package whose
// Credential type handlers may take as their first parameter.
const RuntimeImportPath = "github.com/broady/surface"

// NoValue is the return type of handlers that declare no results.
const NoValue = "struct{}"

// CredentialKind describes what a handler receives in its first parameter.
type CredentialKind int

const (
	CredentialNone   CredentialKind = iota // no parameters
	CredentialToken                        // string: the raw bearer token
	CredentialClaims                       // surface.Credential
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialNone:
		return "none"
	case CredentialToken:
		return "token"
	case CredentialClaims:
		return "claims"
	default:
		return "unknown"
	}
}

// Endpoint describes one handler function.
type Endpoint struct {
	// PathSegments are the directories between the scan root and the file,
	// outer to inner.
	PathSegments []string

	// FuncName is the Go name of the handler.
	FuncName string

	// Credential is the shape of the first parameter.
	Credential CredentialKind

	// Payload is the literal type of the second parameter, or "" if the
	// handler takes no payload.
	Payload string

	// Results are the literal result types, without a trailing error.
	Results []string

	// ReturnsError reports whether the last result is an error.
	ReturnsError bool

	// Package is the Go package name of the source file.
	Package string

	// ImportPath and Alias locate the handler's package from the routing
	// file. They are assigned by the generator, not by extraction.
	ImportPath string
	Alias      string

	// Imports maps the names under which the source file imports packages
	// to their import paths.
	Imports map[string]string

	// File is the slash-separated path of the source file relative to the
	// scan root.
	File string

	// Pos is the position of the function declaration.
	Pos token.Position
}

// HasPayload reports whether the handler takes a request body.
func (e *Endpoint) HasPayload() bool { return e.Payload != "" }

// ReturnType renders the declared results as one type expression: NoValue
// for none, the type itself for one, and a parenthesized list for several.
func (e *Endpoint) ReturnType() string {
	switch len(e.Results) {
	case 0:
		return NoValue
	case 1:
		return e.Results[0]
	default:
		return "(" + strings.Join(e.Results, ", ") + ")"
	}
}

// RouteName is the URL segment for the function: its name with the first
// letter lower-cased.
func (e *Endpoint) RouteName() string {
	r, size := utf8.DecodeRuneInString(e.FuncName)
	if r == utf8.RuneError {
		return e.FuncName
	}
	return string(unicode.ToLower(r)) + e.FuncName[size:]
}

// Segments returns the full route: directories followed by the route name.
func (e *Endpoint) Segments() []string {
	segs := make([]string, 0, len(e.PathSegments)+1)
	segs = append(segs, e.PathSegments...)
	return append(segs, e.RouteName())
}

// Route is the slash-joined route path, without a leading slash.
func (e *Endpoint) Route() string {
	return strings.Join(e.Segments(), "/")
}
