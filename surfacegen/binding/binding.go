// Package binding renders the TypeScript client stubs of handler functions.
//
// Every source file with handlers gets one binding file holding a stub per
// handler, rendered from the function template, followed by interface and
// alias declarations for the package types the stubs refer to.
package binding

import (
	"fmt"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/broady/surface/surfacegen/extract"
	"github.com/broady/surface/surfacegen/route"
	"github.com/broady/surface/surfacegen/subst"
	"github.com/broady/surface/surfacegen/typemap"
)

// Template placeholders.
const (
	TokenFunctionName = "$function_name$"
	TokenArgType      = "$arg_type$"
	TokenReturnType   = "$return_type$"
	TokenRoute        = "$route$"
	TokenBaseURL      = "$base_url$"
)

// Input is one source file to render.
type Input struct {
	// Rel is the slash-separated path of the source file relative to the
	// scan root.
	Rel string

	// Endpoints are the handlers of the file, in declaration order.
	Endpoints []extract.Endpoint

	// Types are the exported types of the file's package by name. Handler
	// signatures may refer to them unqualified.
	Types map[string]*extract.TypeDecl
}

// Unmapped is a Go type expression with no TypeScript translation. It is
// emitted verbatim.
type Unmapped struct {
	Type string
	Ref  string // the handler or type field using it
	Pos  token.Position
}

// Result is a rendered binding file.
type Result struct {
	Name     string
	Content  []byte
	Unmapped []Unmapped
}

// OutputName returns the binding file name of a source file: its relative
// path with the extension replaced by ".ts" and directory separators by
// dots, so "users/profile.go" becomes "users.profile.ts".
func OutputName(rel string) string {
	stem := strings.TrimSuffix(rel, path.Ext(rel))
	return strings.ReplaceAll(stem, "/", ".") + ".ts"
}

// File renders the binding file of in using the function template tmpl.
//
// The template is rendered once per handler. Its first line is a header
// such as an import statement: it is kept for the first stub only.
func File(tmpl string, in Input) (*Result, error) {
	if err := subst.Require(tmpl, TokenFunctionName, TokenArgType, TokenReturnType, TokenRoute); err != nil {
		return nil, fmt.Errorf("function template: %w", err)
	}

	header, _, _ := strings.Cut(tmpl, "\n")
	taken := headerNames(header)

	r := &renderer{types: in.Types, queued: make(map[string]bool)}
	var b strings.Builder
	for i := range in.Endpoints {
		ep := &in.Endpoints[i]
		p, err := route.Path(ep)
		if err != nil {
			return nil, err
		}
		arg, err := r.mapType(ep.Payload, ep.FuncName, ep.Pos)
		if err != nil {
			return nil, fmt.Errorf("%s: payload: %w", ep.FuncName, err)
		}
		ret, err := r.mapType(ep.ReturnType(), ep.FuncName, ep.Pos)
		if err != nil {
			return nil, fmt.Errorf("%s: result: %w", ep.FuncName, err)
		}

		name := identifier(strings.ReplaceAll(ep.Route(), "/", "_"))
		for taken[name] {
			name += "_"
		}
		taken[name] = true

		stub := subst.Replace(tmpl, map[string]string{
			TokenFunctionName: name,
			TokenArgType:      arg,
			TokenReturnType:   ret,
			TokenRoute:        strconv.Quote(strings.TrimPrefix(p, "/")),
		})
		if i > 0 {
			_, stub, _ = strings.Cut(stub, "\n")
		}
		b.WriteString(stub)
	}

	decls, err := r.declarations()
	if err != nil {
		return nil, err
	}
	if len(decls) > 0 {
		if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
		for _, d := range decls {
			b.WriteByte('\n')
			b.WriteString(d)
		}
	}

	return &Result{
		Name:     OutputName(in.Rel),
		Content:  []byte(b.String()),
		Unmapped: r.unmapped,
	}, nil
}

// CallAPI renders the shared request helper from tmpl.
func CallAPI(tmpl, baseURL string) ([]byte, error) {
	out, err := subst.Render(tmpl, map[string]string{TokenBaseURL: baseURL})
	if err != nil {
		return nil, fmt.Errorf("callApi template: %w", err)
	}
	return []byte(out), nil
}

// renderer maps types and tracks the package types to declare.
type renderer struct {
	types    map[string]*extract.TypeDecl
	queue    []string
	queued   map[string]bool
	unmapped []Unmapped
}

// mapType renders a Go type expression. Unknown leaves naming a type of the
// package are queued for declaration; any other unknown leaf is recorded as
// unmapped.
func (r *renderer) mapType(expr, ref string, pos token.Position) (string, error) {
	t, unknown, err := typemap.Map(expr)
	if err != nil {
		return "", err
	}
	for _, u := range unknown {
		if !r.local(u) {
			r.unmapped = append(r.unmapped, Unmapped{Type: u, Ref: ref, Pos: pos})
		}
	}
	return t.TypeScript(), nil
}

// local queues name if it is a type of the package.
func (r *renderer) local(name string) bool {
	if _, ok := r.types[name]; !ok {
		return false
	}
	if !r.queued[name] {
		r.queued[name] = true
		r.queue = append(r.queue, name)
	}
	return true
}

// declarations renders every queued type, including those only reachable
// through other declarations, in first-use order.
func (r *renderer) declarations() ([]string, error) {
	var out []string
	for i := 0; i < len(r.queue); i++ {
		td := r.types[r.queue[i]]
		var (
			d   string
			err error
		)
		if td.IsStruct() {
			d, err = r.iface(td)
		} else {
			var typ string
			typ, err = r.mapType(td.Underlying, td.Name, td.Pos)
			d = fmt.Sprintf("export type %s = %s;\n", td.Name, typ)
		}
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", td.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *renderer) iface(td *extract.TypeDecl) (string, error) {
	var extends, members []string
	for _, f := range td.Fields {
		ref := td.Name + "." + f.Name
		if f.Embedded {
			base := strings.TrimPrefix(f.Type, "*")
			if r.local(base) && r.types[base].IsStruct() {
				extends = append(extends, base)
			} else {
				r.unmapped = append(r.unmapped, Unmapped{Type: f.Type, Ref: ref, Pos: td.Pos})
			}
			continue
		}

		typ, err := r.mapType(f.Type, ref, td.Pos)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		if f.AsString {
			typ = typemap.String
		}
		opt := ""
		if f.Optional {
			opt = "?"
		}
		members = append(members, fmt.Sprintf("  %s%s: %s;\n", propertyName(f.JSONName), opt, typ))
	}

	var b strings.Builder
	b.WriteString("export interface " + td.Name)
	if len(extends) > 0 {
		b.WriteString(" extends " + strings.Join(extends, ", "))
	}
	if len(members) == 0 {
		b.WriteString(" {}\n")
		return b.String(), nil
	}
	b.WriteString(" {\n")
	for _, m := range members {
		b.WriteString(m)
	}
	b.WriteString("}\n")
	return b.String(), nil
}
