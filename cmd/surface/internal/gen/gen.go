package gen

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/broady/surface/surfacegen"
)

// Options are the generator settings shared by gen and check. Flags that are
// set override the values of surface.toml.
type Options struct {
	Dir              string `help:"Project directory." short:"C" default:"." type:"existingdir"`
	APIDir           string `help:"Handler tree, relative to the project directory (default: api)." name:"api-dir"`
	RoutesOut        string `help:"Routing file to generate (default: routes_gen.go)." name:"routes-out"`
	BindingsDir      string `help:"Directory of the TypeScript bindings (default: bindings)." name:"bindings-dir"`
	BaseURL          string `help:"API base URL the bindings call." name:"base-url"`
	RoutesTemplate   string `help:"Template of the routing file." name:"routes-template" type:"path"`
	FunctionTemplate string `help:"Template of one TypeScript stub." name:"function-template" type:"path"`
	CallAPITemplate  string `help:"Template of callApi.ts." name:"callapi-template" type:"path"`
	ImportPath       string `help:"Import path of the handler tree (default: from go.mod)." name:"import-path"`
	Concurrency      int    `help:"Files parsed at once (default: GOMAXPROCS)." short:"j"`
}

// Config loads surface.toml from the project directory and applies the
// flags on top of it.
func (o *Options) Config() (surfacegen.Config, error) {
	cfg, err := surfacegen.LoadConfig(o.Dir)
	if err != nil {
		return surfacegen.Config{}, err
	}
	for _, f := range []struct {
		dst *string
		val string
	}{
		{&cfg.APIDir, o.APIDir},
		{&cfg.RoutesOut, o.RoutesOut},
		{&cfg.BindingsDir, o.BindingsDir},
		{&cfg.BaseURL, o.BaseURL},
		{&cfg.RoutesTemplate, o.RoutesTemplate},
		{&cfg.FunctionTemplate, o.FunctionTemplate},
		{&cfg.CallAPITemplate, o.CallAPITemplate},
		{&cfg.ImportPath, o.ImportPath},
	} {
		if f.val != "" {
			*f.dst = f.val
		}
	}
	if o.Concurrency > 0 {
		cfg.Concurrency = o.Concurrency
	}
	return cfg, nil
}

type Cmd struct {
	Options `embed:""`
}

func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := c.Config()
	if err != nil {
		return err
	}
	res, err := surfacegen.New(cfg).WithLogger(logger).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Generated %d routes in %d files\n", len(res.Endpoints), len(res.Files))
	if n := len(res.Removed); n > 0 {
		fmt.Printf("✓ Removed %d stale bindings\n", n)
	}
	if n := len(res.Warnings); n > 0 {
		fmt.Printf("! %d warnings\n", n)
	}
	return nil
}
