// Package route synthesizes the Go statements that mount handlers on the
// router of the generated routing file.
package route

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/broady/surface/surfacegen/extract"
)

// ErrSegment is returned for a route segment that cannot appear in a URL
// path unescaped.
var ErrSegment = errors.New("invalid route segment")

var segmentRE = regexp.MustCompile(`^[A-Za-z0-9_.~-]+$`)

// Path returns the URL path of ep: a leading slash followed by its route.
func Path(ep *extract.Endpoint) (string, error) {
	segs := ep.Segments()
	for _, s := range segs {
		if !segmentRE.MatchString(s) {
			return "", fmt.Errorf("%w %q in %s (%s)", ErrSegment, s, ep.FuncName, ep.File)
		}
	}
	return "/" + strings.Join(segs, "/"), nil
}

// Qualify rewrites a type expression written inside a handler's package so
// that it can be named from another package: every exported, unqualified
// identifier is prefixed with alias. It also returns the package names the
// expression refers to, sorted, including alias when it was used.
//
//	Qualify("map[string][]Item", "api") == "map[string][]api.Item", ["api"]
func Qualify(expr, alias string) (string, []string, error) {
	x, err := parser.ParseExpr(expr)
	if err != nil {
		return "", nil, fmt.Errorf("qualify %q: %w", expr, err)
	}

	pkgs := make(map[string]bool)
	out := astutil.Apply(x, func(c *astutil.Cursor) bool {
		switch n := c.Node().(type) {
		case *ast.SelectorExpr:
			if id, ok := n.X.(*ast.Ident); ok {
				pkgs[id.Name] = true
			}
			return false
		case *ast.Ident:
			// Struct field names are not types.
			if _, ok := c.Parent().(*ast.Field); ok && c.Name() == "Names" {
				return false
			}
			if !ast.IsExported(n.Name) || types.Universe.Lookup(n.Name) != nil {
				return false
			}
			c.Replace(&ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(n.Name)})
			pkgs[alias] = true
			return false
		}
		return true
	}, nil)

	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return types.ExprString(out.(ast.Expr)), names, nil
}
