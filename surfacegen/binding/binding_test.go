package binding

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/broady/surface/surfacegen/extract"
	"github.com/broady/surface/surfacegen/subst"
	"github.com/broady/surface/surfacegen/templates"
)

func queryParams() map[string]*extract.TypeDecl {
	return map[string]*extract.TypeDecl{
		"QueryParams": {
			Name: "QueryParams",
			Fields: []extract.Field{
				{Name: "A", JSONName: "a", Type: "int32"},
				{Name: "B", JSONName: "b", Type: "int32"},
			},
		},
	}
}

func sumEndpoints() []extract.Endpoint {
	return []extract.Endpoint{
		{FuncName: "Sum", Credential: extract.CredentialToken, Payload: "QueryParams", Results: []string{"int32"}, Package: "api"},
		{FuncName: "Sub", Credential: extract.CredentialToken, Payload: "QueryParams", Results: []string{"int32"}, Package: "api"},
	}
}

func TestFileSum(t *testing.T) {
	res, err := File(templates.Function, Input{Rel: "sum.go", Endpoints: sumEndpoints(), Types: queryParams()})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	want := `import callApi from './callApi';

export async function sum(params: QueryParams): Promise<number> {
  const response = await callApi("sum", params);
  return (await response.json()) as number;
}

export async function sub(params: QueryParams): Promise<number> {
  const response = await callApi("sub", params);
  return (await response.json()) as number;
}

export interface QueryParams {
  a: number;
  b: number;
}
`
	if diff := cmp.Diff(want, string(res.Content)); diff != "" {
		t.Errorf("File() content mismatch (-want +got):\n%s", diff)
	}
	if res.Name != "sum.ts" {
		t.Errorf("Name = %q, want sum.ts", res.Name)
	}
	if len(res.Unmapped) != 0 {
		t.Errorf("Unmapped = %v, want none", res.Unmapped)
	}
	if n := strings.Count(string(res.Content), "import callApi"); n != 1 {
		t.Errorf("import header appears %d times, want 1", n)
	}
}

func TestFileNested(t *testing.T) {
	eps := []extract.Endpoint{{
		PathSegments: []string{"users", "admin"},
		FuncName:     "Delete",
		Credential:   extract.CredentialClaims,
	}}
	res, err := File(templates.Function, Input{Rel: "users/admin/ops.go", Endpoints: eps})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	got := string(res.Content)
	for _, want := range []string{
		"export async function users_admin_delete(params: void): Promise<void> {",
		`await callApi("users/admin/delete", params);`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("content missing %q:\n%s", want, got)
		}
	}
	if res.Name != "users.admin.ops.ts" {
		t.Errorf("Name = %q", res.Name)
	}
}

func TestFileDeclarations(t *testing.T) {
	types := map[string]*extract.TypeDecl{
		"Base": {Name: "Base", Fields: []extract.Field{{Name: "ID", JSONName: "id", Type: "int64", AsString: true}}},
		"Item": {
			Name: "Item",
			Fields: []extract.Field{
				{Name: "Base", Type: "Base", Embedded: true},
				{Name: "Label", JSONName: "display-name", Type: "string"},
				{Name: "Tags", JSONName: "tags", Type: "[]Tag", Optional: true},
				{Name: "Owner", JSONName: "owner", Type: "*Owner"},
			},
		},
		"Tag":    {Name: "Tag", Underlying: "string"},
		"Owner":  {Name: "Owner"},
		"Unused": {Name: "Unused", Underlying: "int"},
	}
	eps := []extract.Endpoint{{FuncName: "Get", Payload: "Item", Results: []string{"map[string]Item"}}}

	res, err := File(templates.Function, Input{Rel: "items.go", Endpoints: eps, Types: types})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	got := string(res.Content)
	_, decls, ok := strings.Cut(got, "}\n\n")
	if !ok {
		t.Fatalf("no declarations in:\n%s", got)
	}
	want := `export interface Item extends Base {
  "display-name": string;
  tags?: Array<Tag>;
  owner: Owner | null;
}

export interface Base {
  id: string;
}

export type Tag = string;

export interface Owner {}
`
	if diff := cmp.Diff(want, decls); diff != "" {
		t.Errorf("declarations mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(got, "Unused") {
		t.Error("unreferenced type was declared")
	}
	if !strings.Contains(got, "Promise<{ [key: string]: Item }>") {
		t.Errorf("result type not mapped:\n%s", got)
	}
}

func TestFileUnmapped(t *testing.T) {
	eps := []extract.Endpoint{{
		FuncName: "Watch",
		Payload:  "models.Filter",
		Results:  []string{"chan int"},
	}}
	res, err := File(templates.Function, Input{Rel: "watch.go", Endpoints: eps})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}

	var got []string
	for _, u := range res.Unmapped {
		got = append(got, u.Ref+": "+u.Type)
	}
	want := []string{"Watch: models.Filter", "Watch: chan int"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmapped mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(string(res.Content), "(params: models.Filter): Promise<chan int>") {
		t.Errorf("unmapped types should be emitted verbatim:\n%s", res.Content)
	}
}

func TestFileMissingPlaceholder(t *testing.T) {
	tmpl := strings.ReplaceAll(templates.Function, TokenRoute, "'sum'")
	_, err := File(tmpl, Input{Rel: "sum.go", Endpoints: sumEndpoints(), Types: queryParams()})
	if !errors.Is(err, subst.ErrMissingPlaceholder) {
		t.Fatalf("File() error = %v, want ErrMissingPlaceholder", err)
	}
}

func TestFileBadSegment(t *testing.T) {
	eps := []extract.Endpoint{{PathSegments: []string{"my dir"}, FuncName: "Sum"}}
	if _, err := File(templates.Function, Input{Rel: "my dir/sum.go", Endpoints: eps}); err == nil {
		t.Fatal("File() succeeded for a segment with a space")
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"sum.go":           "sum.ts",
		"users/profile.go": "users.profile.ts",
		"a/b/c.go":         "a.b.c.ts",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCallAPI(t *testing.T) {
	got, err := CallAPI(templates.CallAPI, "http://localhost:3030/api")
	if err != nil {
		t.Fatalf("CallAPI() error = %v", err)
	}
	if !strings.Contains(string(got), "const BASE_URL = 'http://localhost:3030/api';") {
		t.Errorf("base URL not substituted:\n%s", got)
	}
	if strings.Contains(string(got), TokenBaseURL) {
		t.Error("placeholder left in output")
	}

	if _, err := CallAPI("no placeholder", "x"); !errors.Is(err, subst.ErrMissingPlaceholder) {
		t.Errorf("CallAPI() error = %v, want ErrMissingPlaceholder", err)
	}
}

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"sum":           "sum",
		"users_get":     "users_get",
		"v1.2_list":     "v1_2_list",
		"a-b~c":         "a_b_c",
		"2fa_verify":    "_2fa_verify",
		"delete":        "delete_",
		"":              "_",
		"$ok":           "$ok",
		"naïve_résumé":  "naïve_résumé",
		"with space_op": "with_space_op",
	}
	for in, want := range tests {
		if got := identifier(in); got != want {
			t.Errorf("identifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHeaderNames(t *testing.T) {
	tests := []struct {
		header string
		want   []string
	}{
		{header: "import callApi from './callApi';", want: []string{"callApi"}},
		{header: "import { get, post as send } from './http';", want: []string{"get", "send"}},
		{header: "import * as api from './api';", want: []string{"api"}},
		{header: "import type { Req } from './types';", want: []string{"Req"}},
		{header: "// generated", want: nil},
		{header: "", want: nil},
	}
	for _, tt := range tests {
		var got []string
		for name := range headerNames(tt.header) {
			got = append(got, name)
		}
		if diff := cmp.Diff(tt.want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
			t.Errorf("headerNames(%q) mismatch (-want +got):\n%s", tt.header, diff)
		}
	}
}

func TestFileHeaderNameCollision(t *testing.T) {
	eps := []extract.Endpoint{
		{FuncName: "CallApi", Credential: extract.CredentialToken, Results: []string{"int32"}},
		{FuncName: "CallApi_", Credential: extract.CredentialToken, Results: []string{"int32"}},
	}
	res, err := File(templates.Function, Input{Rel: "misc.go", Endpoints: eps})
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	got := string(res.Content)
	for _, want := range []string{
		"export async function callApi_(params: void): Promise<number>",
		`await callApi("callApi", params)`,
		"export async function callApi__(params: void): Promise<number>",
		`await callApi("callApi_", params)`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("File() content missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "function callApi(") {
		t.Errorf("stub shadows the imported callApi:\n%s", got)
	}
}

func TestPropertyName(t *testing.T) {
	tests := map[string]string{
		"a":       "a",
		"default": "default",
		"user_id": "user_id",
		"user-id": `"user-id"`,
		"1st":     `"1st"`,
		"":        `""`,
	}
	for in, want := range tests {
		if got := propertyName(in); got != want {
			t.Errorf("propertyName(%q) = %q, want %q", in, got, want)
		}
	}
}
