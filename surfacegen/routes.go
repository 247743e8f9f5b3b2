package surfacegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/imports"

	"github.com/broady/surface/surfacegen/extract"
	"github.com/broady/surface/surfacegen/route"
	"github.com/broady/surface/surfacegen/subst"
	"github.com/broady/surface/surfacegen/templates"
)

// importSet maps import names of the routing file to import paths.
type importSet map[string]string

// add records name for importPath. A name already bound to another path is
// an error: the routing file could not refer to both.
func (s importSet) add(name, importPath string) error {
	if p, ok := s[name]; ok && p != importPath {
		return fmt.Errorf("import name %s refers to both %q and %q", name, p, importPath)
	}
	s[name] = importPath
	return nil
}

// templateImports returns the imports declared by the routing template.
func templateImports(name, tmpl string) (importSet, error) {
	f, err := parser.ParseFile(token.NewFileSet(), name, tmpl, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("routes template: %w", err)
	}
	set := make(importSet)
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return nil, fmt.Errorf("routes template: %w", err)
		}
		if err := set.add(specName(spec, p), p); err != nil {
			return nil, fmt.Errorf("routes template: %w", err)
		}
	}
	return set, nil
}

func specName(spec *ast.ImportSpec, importPath string) string {
	if spec.Name != nil {
		return spec.Name.Name
	}
	return extract.ImportName(importPath)
}

// assignAliases names the package of every endpoint in the routing file and
// sets its import path. Endpoints of one directory share an alias: the
// directory segments joined by underscores, or the package name for the root
// directory. Names in taken are avoided; a numeric suffix resolves clashes.
func assignAliases(results []*extract.FileResult, apiImport string, taken importSet) {
	byDir := make(map[string]string)
	for _, res := range results {
		if len(res.Endpoints) == 0 {
			continue
		}
		dir := strings.Join(res.Source.Segments, "/")
		importPath := apiImport
		if dir != "" {
			importPath += "/" + dir
		}

		alias, ok := byDir[dir]
		if !ok {
			base := res.Package
			if dir != "" {
				base = goIdent(strings.Join(res.Source.Segments, "_"))
			}
			alias = base
			for n := 2; !aliasFree(alias, importPath, taken); n++ {
				alias = base + strconv.Itoa(n)
			}
			taken[alias] = importPath
			byDir[dir] = alias
		}

		for i := range res.Endpoints {
			res.Endpoints[i].Alias = alias
			res.Endpoints[i].ImportPath = importPath
		}
	}
}

func aliasFree(alias, importPath string, taken importSet) bool {
	if route.Reserved(alias) || token.IsKeyword(alias) {
		return false
	}
	p, ok := taken[alias]
	return !ok || p == importPath
}

// goIdent maps s to a Go identifier. Directory names may hold characters
// such as '-' and '.' that identifiers cannot.
func goIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// payloadImports returns the names and paths of the packages payload types
// refer to through the imports of their source file.
func payloadImports(ep *extract.Endpoint) (importSet, error) {
	set := make(importSet)
	if !ep.HasPayload() {
		return set, nil
	}
	// The placeholder alias marks package-local names, which are not imports.
	const local = "_"
	_, names, err := route.Qualify(ep.Payload, local)
	if err != nil {
		return nil, fmt.Errorf("%s: payload: %w", ep.FuncName, err)
	}
	for _, name := range names {
		if p, ok := ep.Imports[name]; ok && name != local {
			set[name] = p
		}
	}
	return set, nil
}

// assembleRoutes renders the routing file: the statements replace the
// placeholder of tmpl, the imports they need are added and imports left
// unused are removed. pkgNames maps the import paths of handler packages to
// their package names.
func assembleRoutes(name, tmpl string, stmts []*route.Statement, pkgNames map[string]string) ([]byte, error) {
	code := make([]string, len(stmts))
	needed := make(importSet)
	for i, st := range stmts {
		code[i] = st.Code
		for _, imp := range st.Imports {
			if err := needed.add(imp.Name, imp.Path); err != nil {
				return nil, fmt.Errorf("route %s: %w", st.Path, err)
			}
		}
	}

	src := subst.Replace(tmpl, map[string]string{templates.RoutesPlaceholder: strings.Join(code, "\n")})
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse generated routes: %w", err)
	}

	for _, n := range sortedKeys(needed) {
		p := needed[n]
		if needsName(n, p, pkgNames) {
			astutil.AddNamedImport(fset, f, n, p)
		} else {
			astutil.AddImport(fset, f, p)
		}
	}
	pruneImports(fset, f)

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("format generated routes: %w", err)
	}
	out, err := imports.Process(name, buf.Bytes(), &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("format generated routes: %w", err)
	}
	return out, nil
}

// needsName reports whether importing path under name requires an explicit
// import name. Unnamed imports are only emitted when the name is the one an
// unnamed import is read as.
func needsName(name, importPath string, pkgNames map[string]string) bool {
	if pkg, ok := pkgNames[importPath]; ok && pkg != name {
		return true
	}
	return name != extract.ImportName(importPath)
}

// pruneImports deletes imports no selector expression refers to.
func pruneImports(fset *token.FileSet, f *ast.File) {
	used := make(map[string]bool)
	ast.Inspect(f, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok {
				used[id.Name] = true
			}
		}
		return true
	})

	type unused struct{ name, path string }
	var drop []unused
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := specName(spec, p)
		if name == "_" || name == "." || used[name] {
			continue
		}
		explicit := ""
		if spec.Name != nil {
			explicit = spec.Name.Name
		}
		drop = append(drop, unused{explicit, p})
	}
	for _, d := range drop {
		astutil.DeleteNamedImport(fset, f, d.name, d.path)
	}
}
