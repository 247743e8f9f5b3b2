package extract

import (
	"errors"
	"go/token"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/broady/surface/surfacegen/walk"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const sumSource = `package api

import "github.com/broady/surface"

type QueryParams struct {
	A int32 ` + "`json:\"a\"`" + `
	B int32 ` + "`json:\"b\"`" + `
}

func Sum(_token string, params QueryParams) int32 {
	return params.A + params.B
}

func Sub(_token string, params QueryParams) int32 {
	return params.A - params.B
}

func Secure(cred surface.Credential) string {
	return "Access granted to secured resource."
}

func Ping() {}

func helper() int { return 1 }

type Server struct{}

func (s *Server) Method(token string, p QueryParams) int32 { return 0 }
`

func extractSource(t *testing.T, src walk.Source, content string) *FileResult {
	t.Helper()
	res, err := File(token.NewFileSet(), src, []byte(content), discard)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	return res
}

func TestFile(t *testing.T) {
	src := walk.Source{Path: "api/sum.go", Rel: "sum.go"}
	res := extractSource(t, src, sumSource)

	if len(res.Violations) > 0 {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}

	imports := map[string]string{"surface": "github.com/broady/surface"}
	want := []Endpoint{
		{FuncName: "Sum", Credential: CredentialToken, Payload: "QueryParams", Results: []string{"int32"}},
		{FuncName: "Sub", Credential: CredentialToken, Payload: "QueryParams", Results: []string{"int32"}},
		{FuncName: "Secure", Credential: CredentialClaims, Results: []string{"string"}},
		{FuncName: "Ping", Credential: CredentialNone},
	}
	for i := range want {
		want[i].Package = "api"
		want[i].Imports = imports
		want[i].File = "sum.go"
	}

	opts := []cmp.Option{
		cmpopts.IgnoreFields(Endpoint{}, "Pos"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(want, res.Endpoints, opts...); diff != "" {
		t.Errorf("endpoints mismatch (-want +got):\n%s", diff)
	}

	qp, ok := res.Types["QueryParams"]
	if !ok {
		t.Fatal("QueryParams not collected")
	}
	wantFields := []Field{
		{Name: "A", JSONName: "a", Type: "int32"},
		{Name: "B", JSONName: "b", Type: "int32"},
	}
	if diff := cmp.Diff(wantFields, qp.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if _, ok := res.Types["Server"]; !ok {
		t.Error("Server type not collected")
	}
}

func TestFileRoute(t *testing.T) {
	src := walk.Source{Path: "api/users/admin/ban.go", Rel: "users/admin/ban.go", Segments: []string{"users", "admin"}}
	res := extractSource(t, src, `package admin

func BanUser(token string, id string) error { return nil }
`)
	if len(res.Endpoints) != 1 {
		t.Fatalf("got %d endpoints, want 1", len(res.Endpoints))
	}
	ep := res.Endpoints[0]
	if got, want := ep.Route(), "users/admin/banUser"; got != want {
		t.Errorf("Route() = %q, want %q", got, want)
	}
	if got := len(ep.Segments()); got != len(src.Segments)+1 {
		t.Errorf("len(Segments()) = %d, want %d", got, len(src.Segments)+1)
	}
	if !ep.ReturnsError || len(ep.Results) != 0 {
		t.Errorf("ReturnsError = %v, Results = %v", ep.ReturnsError, ep.Results)
	}
	if got := ep.ReturnType(); got != NoValue {
		t.Errorf("ReturnType() = %q, want %q", got, NoValue)
	}
}

func TestFileSignatures(t *testing.T) {
	tests := []struct {
		name        string
		decl        string
		wantPayload string
		wantReturn  string
		wantErrRet  bool
	}{
		{name: "value", decl: "func F(t string, p []int32) int32", wantPayload: "[]int32", wantReturn: "int32"},
		{name: "value and error", decl: "func F(t string, p map[string]float64) (*Item, error)", wantPayload: "map[string]float64", wantReturn: "*Item", wantErrRet: true},
		{name: "tuple", decl: "func F(t string) (int32, bool)", wantReturn: "(int32, bool)"},
		{name: "named tuple", decl: "func F(t string) (n int32, ok bool, err error)", wantReturn: "(int32, bool)", wantErrRet: true},
		{name: "grouped params", decl: "func F(t, p string) string", wantPayload: "string", wantReturn: "string"},
		{name: "no results", decl: "func F(t string, p Item)", wantPayload: "Item", wantReturn: NoValue},
		{name: "qualified payload", decl: "func F(t string, p time.Time) string", wantPayload: "time.Time", wantReturn: "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "package api\n\nimport \"time\"\n\nvar _ time.Time\n\ntype Item struct{}\n\n" + tt.decl + " { panic(0) }\n"
			res := extractSource(t, walk.Source{Path: "f.go", Rel: "f.go"}, content)
			if len(res.Violations) > 0 {
				t.Fatalf("violations: %v", res.Violations)
			}
			if len(res.Endpoints) != 1 {
				t.Fatalf("got %d endpoints", len(res.Endpoints))
			}
			ep := res.Endpoints[0]
			if ep.Payload != tt.wantPayload {
				t.Errorf("Payload = %q, want %q", ep.Payload, tt.wantPayload)
			}
			if got := ep.ReturnType(); got != tt.wantReturn {
				t.Errorf("ReturnType() = %q, want %q", got, tt.wantReturn)
			}
			if ep.ReturnsError != tt.wantErrRet {
				t.Errorf("ReturnsError = %v, want %v", ep.ReturnsError, tt.wantErrRet)
			}
		})
	}
}

func TestFileViolations(t *testing.T) {
	tests := []struct {
		name    string
		decl    string
		wantMsg string
	}{
		{name: "non-credential first param", decl: "func F(n int) int", wantMsg: "first parameter must be the credential"},
		{name: "too many params", decl: "func F(t string, a, b int) int", wantMsg: "at most two parameters"},
		{name: "variadic", decl: "func F(t string, p ...int) int", wantMsg: "variadic"},
		{name: "generic", decl: "func F[T any](t string, p T) T", wantMsg: "generic"},
		{name: "unexported payload", decl: "func F(t string, p params) int", wantMsg: "unexported params"},
		{name: "error not last", decl: "func F(t string) (error, int)", wantMsg: "only the last result"},
		{name: "unknown directive", decl: "//surface:route foo\nfunc F(t string) int", wantMsg: "unknown directive //surface:route"},
		{name: "credential from other package", decl: "func F(c other.Credential) int", wantMsg: "first parameter must be the credential"},
		{name: "unimported payload package", decl: "func F(t string, p models.User) int", wantMsg: "does not import"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "package api\n\ntype params struct{}\n\n" + tt.decl + " { panic(0) }\n"
			res := extractSource(t, walk.Source{Path: "f.go", Rel: "f.go"}, content)
			if len(res.Endpoints) != 0 {
				t.Errorf("got endpoints %v, want none", res.Endpoints)
			}
			if len(res.Violations) != 1 {
				t.Fatalf("got %d violations, want 1: %v", len(res.Violations), res.Violations)
			}
			v := res.Violations[0]
			if !errors.Is(v, ErrConvention) {
				t.Errorf("violation does not match ErrConvention")
			}
			if !strings.Contains(v.Error(), tt.wantMsg) {
				t.Errorf("violation %q does not contain %q", v, tt.wantMsg)
			}
		})
	}
}

func TestFileIgnoreDirective(t *testing.T) {
	res := extractSource(t, walk.Source{Path: "f.go", Rel: "f.go"}, `package api

// Helper is exported for tests only.
//
//surface:ignore
func Helper(n int) int { return n }

func Real(t string) int { return 1 }
`)
	if len(res.Violations) > 0 {
		t.Fatalf("violations: %v", res.Violations)
	}
	if len(res.Endpoints) != 1 || res.Endpoints[0].FuncName != "Real" {
		t.Errorf("endpoints = %v, want only Real", res.Endpoints)
	}
}

func TestFilePackageMain(t *testing.T) {
	res := extractSource(t, walk.Source{Path: "main.go", Rel: "main.go"}, "package main\n\nfunc Sum(t string) int { return 0 }\n")
	if len(res.Violations) != 1 || !strings.Contains(res.Violations[0].Error(), "package main") {
		t.Errorf("violations = %v, want package main violation", res.Violations)
	}
}

func TestFileParseError(t *testing.T) {
	_, err := File(token.NewFileSet(), walk.Source{Path: "bad.go"}, []byte("package api\n\nfunc Broken( {"), discard)
	if err == nil || !strings.Contains(err.Error(), "parse bad.go") {
		t.Fatalf("File() error = %v, want parse error", err)
	}
}

func TestFileEmbeddedFields(t *testing.T) {
	res := extractSource(t, walk.Source{Path: "f.go", Rel: "f.go"}, `package api

import "example.com/models"

type Item struct {
	Base
	*models.Audit `+"`json:\"audit,omitempty\"`"+`
	Meta          `+"`json:\"-\"`"+`
	Extra         `+"`json:\",omitempty\"`"+`
	Name string
}
`)
	want := []Field{
		{Name: "Base", Type: "Base", Embedded: true},
		{Name: "Audit", JSONName: "audit", Type: "*models.Audit", Optional: true},
		{Name: "Extra", Type: "Extra", Embedded: true},
		{Name: "Name", JSONName: "Name", Type: "string"},
	}
	if diff := cmp.Diff(want, res.Types["Item"].Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONField(t *testing.T) {
	tests := []struct {
		tag    string
		want   Field
		wantOK bool
	}{
		{tag: "", want: Field{Name: "Count", JSONName: "Count", Type: "int"}, wantOK: true},
		{tag: "count", want: Field{Name: "Count", JSONName: "count", Type: "int"}, wantOK: true},
		{tag: "count,omitempty", want: Field{Name: "Count", JSONName: "count", Type: "int", Optional: true}, wantOK: true},
		{tag: ",omitzero", want: Field{Name: "Count", JSONName: "Count", Type: "int", Optional: true}, wantOK: true},
		{tag: "count,string", want: Field{Name: "Count", JSONName: "count", Type: "int", AsString: true}, wantOK: true},
		{tag: "-", wantOK: false},
		{tag: "-,", want: Field{Name: "Count", JSONName: "-", Type: "int"}, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, ok := jsonField("Count", "int", tt.tag)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImportName(t *testing.T) {
	tests := map[string]string{
		"time":                         "time",
		"encoding/json":                "json",
		"github.com/go-chi/chi/v5":     "chi",
		"github.com/broady/surface":    "surface",
		"gopkg.in/yaml.v3":             "yaml",
		"github.com/foo/go-multierror": "multierror",
	}
	for in, want := range tests {
		if got := ImportName(in); got != want {
			t.Errorf("ImportName(%q) = %q, want %q", in, got, want)
		}
	}
}
