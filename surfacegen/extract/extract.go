package extract

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"log/slog"
	"path"
	"reflect"
	"strconv"
	"strings"

	"github.com/broady/surface/surfacegen/walk"
)

// ErrConvention is matched by every Violation.
var ErrConvention = errors.New("handler convention violated")

// Violation is a function that looks like a handler but does not follow the
// handler convention.
type Violation struct {
	Pos  token.Position
	Func string
	Msg  string
}

func (v *Violation) Error() string {
	if v.Func == "" {
		return fmt.Sprintf("%s: %s", v.Pos, v.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", v.Pos, v.Func, v.Msg)
}

func (v *Violation) Unwrap() error { return ErrConvention }

// FileResult is everything extracted from one source file.
type FileResult struct {
	Source  walk.Source
	Package string

	// Endpoints are the handlers of the file in declaration order.
	Endpoints []Endpoint

	// Types are the exported, non-generic type declarations of the file,
	// by name.
	Types map[string]*TypeDecl

	// Violations are convention errors found in the file. They are fatal,
	// but are collected so that every problem is reported at once.
	Violations []*Violation
}

// TypeDecl is an exported type declared in a source file.
type TypeDecl struct {
	Name string

	// Fields are set for struct types.
	Fields []Field

	// Underlying is the literal underlying type of non-struct types.
	Underlying string

	Pos token.Position
}

// IsStruct reports whether the declaration is a struct type.
func (d *TypeDecl) IsStruct() bool { return d.Underlying == "" }

// Field is an exported struct field as it appears in JSON.
type Field struct {
	Name     string // Go name
	JSONName string
	Type     string
	Optional bool // omitempty or omitzero
	AsString bool // the ",string" option
	Embedded bool
}

// File parses content and extracts its handlers. A parse error is returned
// as an error; convention problems are reported in FileResult.Violations.
func File(fset *token.FileSet, src walk.Source, content []byte, logger *slog.Logger) (*FileResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := parser.ParseFile(fset, src.Path, content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Path, err)
	}

	res := &FileResult{
		Source:  src,
		Package: f.Name.Name,
		Types:   make(map[string]*TypeDecl),
	}
	imports := fileImports(f)

	for _, decl := range f.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			if decl.Tok == token.TYPE {
				res.addTypes(fset, decl)
			}
		case *ast.FuncDecl:
			ep, v := funcEndpoint(fset, decl, imports, logger)
			if v != nil {
				res.Violations = append(res.Violations, v)
				continue
			}
			if ep == nil {
				continue
			}
			ep.PathSegments = src.Segments
			ep.Package = f.Name.Name
			ep.Imports = imports
			ep.File = src.Rel
			res.Endpoints = append(res.Endpoints, *ep)
		}
	}

	if f.Name.Name == "main" && len(res.Endpoints) > 0 {
		res.Violations = append(res.Violations, &Violation{
			Pos: fset.Position(f.Name.Pos()),
			Msg: "handlers cannot live in package main, which cannot be imported",
		})
	}

	logger.Debug("extracted file",
		slog.String("file", src.Path),
		slog.String("package", res.Package),
		slog.Int("endpoints", len(res.Endpoints)),
		slog.Int("types", len(res.Types)))

	return res, nil
}

// funcEndpoint returns the endpoint for fn, nil if fn is not a handler, or a
// violation.
func funcEndpoint(fset *token.FileSet, fn *ast.FuncDecl, imports map[string]string, logger *slog.Logger) (*Endpoint, *Violation) {
	pos := fset.Position(fn.Pos())
	name := fn.Name.Name
	violation := func(format string, args ...any) *Violation {
		return &Violation{Pos: pos, Func: name, Msg: fmt.Sprintf(format, args...)}
	}

	if fn.Recv != nil {
		return nil, nil
	}
	if !ast.IsExported(name) {
		logger.Debug("skipping unexported function", slog.String("func", name), slog.String("pos", pos.String()))
		return nil, nil
	}

	ignore, err := parseDirectives(fn.Doc)
	if err != nil {
		return nil, violation("%v", err)
	}
	if ignore {
		logger.Debug("skipping ignored function", slog.String("func", name), slog.String("pos", pos.String()))
		return nil, nil
	}

	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return nil, violation("generic functions cannot be handlers")
	}

	params := flatten(fn.Type.Params)
	if len(params) > 2 {
		return nil, violation("handlers take at most two parameters (credential, payload), got %d", len(params))
	}
	for _, p := range params {
		if _, ok := p.(*ast.Ellipsis); ok {
			return nil, violation("variadic parameters are not supported")
		}
	}

	ep := &Endpoint{
		FuncName: name,
		Pos:      pos,
	}

	if len(params) > 0 {
		ep.Credential = credentialKind(params[0], imports)
		if ep.Credential == CredentialNone {
			return nil, violation("first parameter must be the credential (string or surface.Credential), got %s",
				types.ExprString(params[0]))
		}
	}
	if len(params) > 1 {
		ep.Payload = types.ExprString(params[1])
		if unexported := unexportedIdents(params[1]); len(unexported) > 0 {
			return nil, violation("payload type %s refers to unexported %s", ep.Payload, strings.Join(unexported, ", "))
		}
		if pkg := unknownQualifier(params[1], imports); pkg != "" {
			return nil, violation("payload type %s uses package %s, which the file does not import", ep.Payload, pkg)
		}
	}

	results := flatten(fn.Type.Results)
	if n := len(results); n > 0 && types.ExprString(results[n-1]) == "error" {
		ep.ReturnsError = true
		results = results[:n-1]
	}
	for _, r := range results {
		text := types.ExprString(r)
		if text == "error" {
			return nil, violation("only the last result may be an error")
		}
		ep.Results = append(ep.Results, text)
	}

	return ep, nil
}

// credentialKind classifies the first parameter.
func credentialKind(x ast.Expr, imports map[string]string) CredentialKind {
	switch x := x.(type) {
	case *ast.Ident:
		if x.Name == "string" {
			return CredentialToken
		}
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		if ok && x.Sel.Name == "Credential" && imports[pkg.Name] == RuntimeImportPath {
			return CredentialClaims
		}
	}
	return CredentialNone
}

// unknownQualifier returns the first package qualifier in x that is not
// imported by the file, or "".
func unknownQualifier(x ast.Expr, imports map[string]string) string {
	var missing string
	ast.Inspect(x, func(n ast.Node) bool {
		if missing != "" {
			return false
		}
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok {
			if _, ok := imports[id.Name]; !ok {
				missing = id.Name
			}
		}
		return false
	})
	return missing
}

// flatten expands a field list so that "a, b int" yields two entries.
func flatten(fl *ast.FieldList) []ast.Expr {
	if fl == nil {
		return nil
	}
	var out []ast.Expr
	for _, f := range fl.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, f.Type)
		}
	}
	return out
}

// unexportedIdents returns the unqualified, non-predeclared identifiers of
// a type expression that are not exported. Those cannot be named from the
// generated routing file.
func unexportedIdents(x ast.Expr) []string {
	var out []string
	var visit func(ast.Node) bool
	visit = func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			return false
		case *ast.Field:
			// Field names of inline structs are not type names.
			ast.Inspect(n.Type, visit)
			return false
		case *ast.Ident:
			if !ast.IsExported(n.Name) && types.Universe.Lookup(n.Name) == nil {
				out = append(out, n.Name)
			}
		}
		return true
	}
	ast.Inspect(x, visit)
	return out
}

// fileImports maps import names to paths. Blank and dot imports are
// omitted.
func fileImports(f *ast.File) map[string]string {
	imports := make(map[string]string, len(f.Imports))
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := ImportName(p)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		imports[name] = p
	}
	return imports
}

// ImportName guesses the package name of an import path: the last element,
// skipping a major version suffix, without a "go-" prefix and cut at the
// first character that cannot appear in an identifier.
func ImportName(importPath string) string {
	base := path.Base(importPath)
	if isMajorVersion(base) {
		base = path.Base(path.Dir(importPath))
	}
	base = strings.TrimPrefix(base, "go-")
	if i := strings.IndexFunc(base, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}); i >= 0 {
		base = base[:i]
	}
	return base
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func (res *FileResult) addTypes(fset *token.FileSet, decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok || !ast.IsExported(ts.Name.Name) {
			continue
		}
		if ts.TypeParams != nil && len(ts.TypeParams.List) > 0 {
			continue
		}
		td := &TypeDecl{
			Name: ts.Name.Name,
			Pos:  fset.Position(ts.Pos()),
		}
		if st, ok := ts.Type.(*ast.StructType); ok {
			td.Fields = structFields(st)
		} else {
			td.Underlying = types.ExprString(ts.Type)
		}
		res.Types[td.Name] = td
	}
}

func structFields(st *ast.StructType) []Field {
	var fields []Field
	for _, f := range st.Fields.List {
		typ := types.ExprString(f.Type)
		tag := ""
		if f.Tag != nil {
			if s, err := strconv.Unquote(f.Tag.Value); err == nil {
				tag = reflect.StructTag(s).Get("json")
			}
		}

		if len(f.Names) == 0 {
			// A tagged embedded struct is a named member, not promoted.
			name, _, _ := strings.Cut(tag, ",")
			switch {
			case tag == "-":
			case name != "":
				if field, ok := jsonField(embeddedName(f.Type), typ, tag); ok {
					fields = append(fields, field)
				}
			default:
				fields = append(fields, Field{Name: typ, Type: typ, Embedded: true})
			}
			continue
		}
		for _, n := range f.Names {
			if !ast.IsExported(n.Name) {
				continue
			}
			field, ok := jsonField(n.Name, typ, tag)
			if ok {
				fields = append(fields, field)
			}
		}
	}
	return fields
}

// embeddedName returns the field name of an embedded type: T for T, *T,
// pkg.T and *pkg.T.
func embeddedName(x ast.Expr) string {
	if star, ok := x.(*ast.StarExpr); ok {
		x = star.X
	}
	switch x := x.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		return x.Sel.Name
	}
	return types.ExprString(x)
}

// jsonField applies encoding/json tag rules. It reports false for fields
// tagged "-".
func jsonField(name, typ, tag string) (Field, bool) {
	field := Field{Name: name, JSONName: name, Type: typ}
	if tag == "" {
		return field, true
	}
	if tag == "-" {
		return Field{}, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		field.JSONName = parts[0]
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "omitempty", "omitzero":
			field.Optional = true
		case "string":
			field.AsString = true
		}
	}
	return field, true
}
