package extract

import (
	"context"
	"fmt"
	"go/token"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/broady/surface/surfacegen/walk"
)

// Options configures Tree.
type Options struct {
	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger

	// Concurrency bounds the number of files parsed at once.
	// Defaults to GOMAXPROCS.
	Concurrency int
}

// Tree extracts every source file below root.
//
// Files are parsed concurrently, but the results are in walk order, so the
// output is the same on every run. The first read or parse error aborts the
// whole extraction. Convention violations of all files are returned together
// as one error.
func Tree(ctx context.Context, fsys fs.FS, root string, opts Options) ([]*FileResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sources []walk.Source
	for src, err := range walk.Sources(fsys, root) {
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	fset := token.NewFileSet()
	results := make([]*FileResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := fs.ReadFile(fsys, src.Path)
			if err != nil {
				return fmt.Errorf("read %s: %w", src.Path, err)
			}
			res, err := File(fset, src, content, logger)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merr *multierror.Error
	for _, res := range results {
		for _, v := range res.Violations {
			merr = multierror.Append(merr, v)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}

// Endpoints flattens the endpoints of results, preserving order.
func Endpoints(results []*FileResult) []Endpoint {
	var eps []Endpoint
	for _, res := range results {
		eps = append(eps, res.Endpoints...)
	}
	return eps
}
