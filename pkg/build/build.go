// Package build orchestrates one complete build of a design tree: cache
// scan, configuration convergence, the produce phase walk, garbage
// collection of stale artifacts, and the final summary.
package build

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/chazu/tenon/pkg/cache"
	"github.com/chazu/tenon/pkg/ctxlog"
	"github.com/chazu/tenon/pkg/kernel"
	"github.com/chazu/tenon/pkg/shop"
	"github.com/chazu/tenon/pkg/tree"
)

// Options configures one build run.
type Options struct {
	CacheDir string
	Catalog  *shop.Catalog
	Tables   *shop.Tables // nil = built-in defaults
	Kernel   kernel.Kernel

	// MaxIterations bounds the convergence loop; 0 = default.
	MaxIterations int
}

// Build runs every phase over the tree and returns the summary. The summary
// is produced even when the build accumulated errors; callers inspect
// Summary.Errors to decide whether the artifacts are trustworthy. A
// non-converging configuration aborts before any artifact work.
func Build(ctx context.Context, t *tree.Tree, opts Options) (*Summary, error) {
	log := ctxlog.FromContext(ctx)

	c, err := cache.New(opts.CacheDir, "stl")
	if err != nil {
		return nil, err
	}
	if err := c.Scan(ctx); err != nil {
		return nil, err
	}

	if nc := t.Converge(ctx, opts.MaxIterations); len(nc) > 0 {
		// Artifacts derived from unstable values would be garbage; stop
		// before touching the cache.
		return summarize(t, nil), nil
	}

	ps := tree.NewProduceState(c, opts.Catalog, opts.Tables, opts.Kernel)
	t.Run(ctx, ps)

	active := c.ActiveCount()
	removed, err := c.FlushInactive(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("build finished",
		"artifacts", active, "removed", removed, "errors", len(t.Errors()))

	return summarize(t, ps), nil
}

// WriteSummary serializes the summary as indented JSON to path.
func WriteSummary(s *Summary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "build: marshal summary")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "build: write summary")
}
