package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/broady/surface/cmd/surface/internal/gen"
	"github.com/broady/surface/surfacegen"
)

type Cmd struct {
	gen.Options `embed:""`
}

// Run fails when any generated file is missing or out of date.
func (c *Cmd) Run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := c.Config()
	if err != nil {
		return err
	}
	res, err := surfacegen.New(cfg).WithLogger(logger).Check(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Found %d routes\n", len(res.Endpoints))
	for _, w := range res.Warnings {
		fmt.Printf("! %s\n", w)
	}
	if len(res.Stale) == 0 {
		fmt.Println("✓ Generated files are up to date")
		return nil
	}
	for _, p := range res.Stale {
		fmt.Printf("✗ %s is out of date\n", p)
	}
	return fmt.Errorf("%d generated files are out of date; run surface gen", len(res.Stale))
}
