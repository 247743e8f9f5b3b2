// Package surfacegen generates the routing file and TypeScript bindings of
// a tree of Go handler functions.
//
// Every exported function below the API directory becomes a POST route whose
// path follows the directory layout:
//
//	api/sum.go          func Sum(token string, p QueryParams) int32  → /sum
//	api/users/admin.go  func Ban(token string, p BanRequest) error   → /users/ban
//
// The routing file registers the routes on a chi router through the surface
// runtime. Each source file with handlers gets a TypeScript module of client
// stubs, all sharing a generated callApi.ts.
//
// Generation is all or nothing: every artifact is rendered in memory first
// and written only when the whole run succeeds.
//
//	res, err := surfacegen.New(cfg).WithLogger(logger).Run(ctx)
package surfacegen

import (
	"cmp"
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/broady/surface/surfacegen/binding"
	"github.com/broady/surface/surfacegen/extract"
	"github.com/broady/surface/surfacegen/route"
	"github.com/broady/surface/surfacegen/sink"
	"github.com/broady/surface/surfacegen/subst"
	"github.com/broady/surface/surfacegen/templates"
)

// CallAPIFile is the name of the shared request helper in the bindings
// directory.
const CallAPIFile = "callApi.ts"

// Warning codes.
const (
	// WarnUnmappedType: a Go type has no TypeScript translation and was
	// emitted verbatim.
	WarnUnmappedType = "UNMAPPED_TYPE"

	// WarnNoEndpoints: the API directory holds no handler functions.
	WarnNoEndpoints = "NO_ENDPOINTS"
)

// Warning is a non-fatal problem found during generation.
type Warning struct {
	Code    string
	Message string
	Pos     token.Position
}

func (w Warning) String() string {
	if w.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", w.Pos, w.Code, w.Message)
	}
	return w.Code + ": " + w.Message
}

// Result describes a generation run.
type Result struct {
	// Endpoints are all handlers found, in route order.
	Endpoints []extract.Endpoint

	// Files are the generated files, relative to Config.Dir, sorted.
	Files []string

	Warnings []Warning

	// Stale lists the generated files whose content on disk is missing or
	// outdated, and binding files no source produces anymore. Only set by
	// Check.
	Stale []string

	// Removed lists the binding files Run deleted because no source
	// produces them anymore.
	Removed []string
}

// Generator generates the artifacts of one project.
type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Generator for cfg. Unset fields take their defaults.
func New(cfg Config) *Generator {
	return &Generator{cfg: *applyConfigDefaults(&cfg)}
}

// WithLogger sets the logger. Defaults to slog.Default().
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

func (g *Generator) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}

// Run generates every artifact and writes them below Config.Dir. Nothing is
// written if any step fails. Binding files left over from deleted or renamed
// sources are removed from Config.BindingsDir.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	res, staged, err := g.stage(ctx)
	if err != nil {
		return nil, err
	}
	orphans, err := sink.Orphans(staged, os.DirFS(g.cfg.Dir), g.cfg.BindingsDir, ".ts")
	if err != nil {
		return nil, err
	}
	out := sink.NewFilesystemSink(g.cfg.Dir)
	if err := sink.Commit(ctx, staged, out); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	for _, p := range res.Files {
		g.log().InfoContext(ctx, "wrote file",
			slog.String("path", p),
			slog.Int("bytes", len(staged.Get(p))))
	}
	for _, p := range orphans {
		if err := out.Remove(ctx, p); err != nil {
			return nil, fmt.Errorf("remove stale binding: %w", err)
		}
		g.log().InfoContext(ctx, "removed file", slog.String("path", p))
	}
	res.Removed = orphans
	return res, nil
}

// Check generates every artifact without writing and reports in
// Result.Stale the files that differ from what is on disk.
func (g *Generator) Check(ctx context.Context) (*Result, error) {
	res, staged, err := g.stage(ctx)
	if err != nil {
		return nil, err
	}
	fsys := os.DirFS(g.cfg.Dir)
	stale, err := sink.Stale(staged, fsys)
	if err != nil {
		return nil, err
	}
	orphans, err := sink.Orphans(staged, fsys, g.cfg.BindingsDir, ".ts")
	if err != nil {
		return nil, err
	}
	res.Stale = slices.Sorted(slices.Values(append(stale, orphans...)))
	return res, nil
}

// templateSet holds the template texts of a run.
type templateSet struct {
	routes, function, callAPI string
}

func (g *Generator) loadTemplates() (templateSet, error) {
	var (
		ts  templateSet
		err error
	)
	if ts.routes, err = g.readTemplate(g.cfg.RoutesTemplate, templates.Routes); err != nil {
		return ts, err
	}
	if ts.function, err = g.readTemplate(g.cfg.FunctionTemplate, templates.Function); err != nil {
		return ts, err
	}
	if ts.callAPI, err = g.readTemplate(g.cfg.CallAPITemplate, templates.CallAPI); err != nil {
		return ts, err
	}
	if err := subst.Require(ts.routes, templates.RoutesPlaceholder); err != nil {
		return ts, fmt.Errorf("routes template: %w", err)
	}
	return ts, nil
}

func (g *Generator) readTemplate(name, fallback string) (string, error) {
	if name == "" {
		return fallback, nil
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(g.cfg.Dir, name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(b), nil
}

// stage renders every artifact into a memory sink.
func (g *Generator) stage(ctx context.Context) (*Result, *sink.MemorySink, error) {
	cfg := g.cfg
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	tmpls, err := g.loadTemplates()
	if err != nil {
		return nil, nil, err
	}
	taken, err := templateImports(cfg.RoutesOut, tmpls.routes)
	if err != nil {
		return nil, nil, err
	}

	apiImport := cfg.ImportPath
	if apiImport == "" {
		apiImport, err = findImportPath(filepath.Join(cfg.Dir, filepath.FromSlash(cfg.APIDir)))
		if err != nil {
			return nil, nil, err
		}
	}

	results, err := extract.Tree(ctx, os.DirFS(cfg.Dir), cfg.APIDir, extract.Options{
		Logger:      g.log(),
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, r := range results {
		for i := range r.Endpoints {
			imps, err := payloadImports(&r.Endpoints[i])
			if err != nil {
				return nil, nil, err
			}
			for _, name := range sortedKeys(imps) {
				if route.Reserved(name) {
					return nil, nil, fmt.Errorf("%s: %s: package name %s clashes with a generated identifier", r.Source.Path, r.Endpoints[i].FuncName, name)
				}
				if err := taken.add(name, imps[name]); err != nil {
					return nil, nil, fmt.Errorf("%s: %w", r.Source.Path, err)
				}
			}
		}
	}
	assignAliases(results, apiImport, taken)

	res := &Result{Endpoints: extract.Endpoints(results)}
	staged := sink.NewMemorySink()

	if err := g.stageRoutes(ctx, staged, tmpls.routes, results); err != nil {
		return nil, nil, err
	}
	if err := g.stageBindings(ctx, staged, tmpls, results, res); err != nil {
		return nil, nil, err
	}

	if len(res.Endpoints) == 0 {
		g.warn(ctx, res, Warning{
			Code:    WarnNoEndpoints,
			Message: fmt.Sprintf("no handler functions below %s", cfg.APIDir),
		})
	}
	res.Files = staged.Paths()
	return res, staged, nil
}

func (g *Generator) stageRoutes(ctx context.Context, staged *sink.MemorySink, tmpl string, results []*extract.FileResult) error {
	pkgNames := make(map[string]string)
	var stmts []*route.Statement
	for _, r := range results {
		for i := range r.Endpoints {
			ep := &r.Endpoints[i]
			pkgNames[ep.ImportPath] = ep.Package
			st, err := route.Build(ep)
			if err != nil {
				return err
			}
			stmts = append(stmts, st)
		}
	}

	src, err := assembleRoutes(g.cfg.RoutesOut, tmpl, stmts, pkgNames)
	if err != nil {
		return err
	}
	g.log().DebugContext(ctx, "rendered routes", slog.Int("routes", len(stmts)))
	return staged.WriteFile(ctx, g.cfg.RoutesOut, src)
}

func (g *Generator) stageBindings(ctx context.Context, staged *sink.MemorySink, tmpls templateSet, results []*extract.FileResult, res *Result) error {
	// Handlers may refer to any type of their package unqualified.
	typesByDir := make(map[string]map[string]*extract.TypeDecl)
	for _, r := range results {
		dir := strings.Join(r.Source.Segments, "/")
		if typesByDir[dir] == nil {
			typesByDir[dir] = make(map[string]*extract.TypeDecl)
		}
		for name, td := range r.Types {
			typesByDir[dir][name] = td
		}
	}

	callAPI, err := binding.CallAPI(tmpls.callAPI, g.cfg.BaseURL)
	if err != nil {
		return err
	}
	owners := map[string]string{CallAPIFile: "the request helper"}
	if err := staged.WriteFile(ctx, path.Join(g.cfg.BindingsDir, CallAPIFile), callAPI); err != nil {
		return err
	}

	for _, r := range results {
		if len(r.Endpoints) == 0 {
			continue
		}
		out, err := binding.File(tmpls.function, binding.Input{
			Rel:       r.Source.Rel,
			Endpoints: r.Endpoints,
			Types:     typesByDir[strings.Join(r.Source.Segments, "/")],
		})
		if err != nil {
			return fmt.Errorf("%s: %w", r.Source.Path, err)
		}
		if prev, ok := owners[out.Name]; ok {
			return fmt.Errorf("%s: binding %s is also generated for %s", r.Source.Path, out.Name, prev)
		}
		owners[out.Name] = r.Source.Path

		for _, u := range out.Unmapped {
			g.warn(ctx, res, Warning{
				Code:    WarnUnmappedType,
				Message: fmt.Sprintf("%s: no TypeScript type for %s, emitted verbatim", u.Ref, u.Type),
				Pos:     u.Pos,
			})
		}
		if err := staged.WriteFile(ctx, path.Join(g.cfg.BindingsDir, out.Name), out.Content); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) warn(ctx context.Context, res *Result, w Warning) {
	attrs := []slog.Attr{
		slog.String("code", w.Code),
		slog.String("message", w.Message),
	}
	if w.Pos.IsValid() {
		attrs = append(attrs, slog.String("pos", w.Pos.String()))
	}
	g.log().LogAttrs(ctx, slog.LevelWarn, "generation warning", attrs...)
	res.Warnings = append(res.Warnings, w)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}
