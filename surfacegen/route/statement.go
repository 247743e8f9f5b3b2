package route

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/broady/surface/surfacegen/extract"
)

// Identifiers used by generated statements. A package alias in the routing
// file must not shadow any of them.
var reserved = map[string]bool{
	"r": true, "g": true, "w": true, "req": true, "cred": true, "ok": true,
	"payload": true, "res": true, "err": true, "http": true, "surface": true,
}

// Reserved reports whether name is used by generated statements and so cannot
// be used as an import name in the routing file.
func Reserved(name string) bool {
	if reserved[name] {
		return true
	}
	// res0, res1, ... hold multiple results.
	n := strings.TrimPrefix(name, "res")
	return n != name && n != "" && strings.Trim(n, "0123456789") == ""
}

// Import is a package the routing file must import for a statement.
type Import struct {
	Name string
	Path string
}

// Statement is the router registration of one endpoint.
type Statement struct {
	Path    string
	Code    string
	Imports []Import
}

var stmtTmpl = template.Must(template.New("route").Parse(`r.Post({{printf "%q" .Path}}, func(w http.ResponseWriter, req *http.Request) {
	{{if .Cred}}cred{{else}}_{{end}}, ok := g.Authorize(w, req)
	if !ok {
		return
	}
{{- if .Payload}}
	var payload {{.Payload}}
	if !g.Decode(w, req, &payload) {
		return
	}
{{- end}}
{{- if .ErrOnly}}
	if err := {{.Call}}; err != nil {
		g.Fail(w, req, err)
		return
	}
{{- else if .Error}}
	{{.Results}} := {{.Call}}
	if err != nil {
		g.Fail(w, req, err)
		return
	}
{{- else if .Results}}
	{{.Results}} := {{.Call}}
{{- else}}
	{{.Call}}
{{- end}}
	g.Reply(w, req, {{.Reply}})
})`))

// Build renders the registration statement of ep. ep.Alias must name the
// handler's package in the routing file.
//
// The statement authorizes the request, decodes the payload when the handler
// takes one, calls the handler and replies with its result as JSON. Several
// results are replied as a JSON array; no result as an empty object.
func Build(ep *extract.Endpoint) (*Statement, error) {
	if ep.Alias == "" {
		return nil, fmt.Errorf("%s: no package alias assigned", ep.FuncName)
	}
	path, err := Path(ep)
	if err != nil {
		return nil, err
	}

	data := struct {
		Path, Payload, Call, Results, Reply string
		Cred, Error, ErrOnly                bool
	}{
		Path:    path,
		Cred:    ep.Credential != extract.CredentialNone,
		Error:   ep.ReturnsError,
		ErrOnly: ep.ReturnsError && len(ep.Results) == 0,
	}

	pkgs := []string{ep.Alias}
	if ep.HasPayload() {
		q, used, err := Qualify(ep.Payload, ep.Alias)
		if err != nil {
			return nil, fmt.Errorf("%s: payload: %w", ep.FuncName, err)
		}
		data.Payload = q
		pkgs = append(pkgs, used...)
	}

	var args []string
	switch ep.Credential {
	case extract.CredentialToken:
		args = append(args, "cred.Token")
	case extract.CredentialClaims:
		args = append(args, "cred")
	}
	if ep.HasPayload() {
		args = append(args, "payload")
	}
	data.Call = fmt.Sprintf("%s.%s(%s)", ep.Alias, ep.FuncName, strings.Join(args, ", "))

	var results []string
	switch n := len(ep.Results); n {
	case 0:
		data.Reply = "struct{}{}"
	case 1:
		results = []string{"res"}
		data.Reply = "res"
	default:
		for i := range n {
			results = append(results, fmt.Sprintf("res%d", i))
		}
		data.Reply = "[]any{" + strings.Join(results, ", ") + "}"
	}
	if ep.ReturnsError && len(results) > 0 {
		results = append(results, "err")
	}
	data.Results = strings.Join(results, ", ")

	var buf bytes.Buffer
	if err := stmtTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%s: %w", ep.FuncName, err)
	}

	imports, err := resolveImports(ep, pkgs)
	if err != nil {
		return nil, err
	}
	return &Statement{Path: path, Code: buf.String(), Imports: imports}, nil
}

// resolveImports maps the package names a statement uses to import paths:
// the alias to the handler package, anything else through the imports of the
// handler's source file.
func resolveImports(ep *extract.Endpoint, names []string) ([]Import, error) {
	seen := make(map[string]bool)
	var out []Import
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == ep.Alias {
			out = append(out, Import{Name: name, Path: ep.ImportPath})
			continue
		}
		p, ok := ep.Imports[name]
		if !ok {
			return nil, fmt.Errorf("%s: package %s is not imported by %s", ep.FuncName, name, ep.File)
		}
		out = append(out, Import{Name: name, Path: p})
	}
	return out, nil
}
