package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/chazu/tenon/pkg/build"
	"github.com/chazu/tenon/pkg/ctxlog"
	"github.com/chazu/tenon/pkg/engine"
	"github.com/chazu/tenon/pkg/kernel"
	"github.com/chazu/tenon/pkg/kernel/sdfx"
	"github.com/chazu/tenon/pkg/shop"
	"github.com/chazu/tenon/pkg/tree"
)

var (
	flagCacheDir      string
	flagShops         string
	flagTables        string
	flagSummary       string
	flagMaxIterations int

	buildCmd = &cobra.Command{
		Use:   "build <design.zy>",
		Short: "Evaluate a design file and build its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}

	checkCmd = &cobra.Command{
		Use:   "check <design.zy>",
		Short: "Evaluate a design file and verify it converges, without building",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
)

func init() {
	buildCmd.Flags().StringVar(&flagCacheDir, "cache-dir", ".tenon-cache",
		"artifact cache directory")
	buildCmd.Flags().StringVar(&flagShops, "shops", "",
		"shop catalog JSON file (required)")
	buildCmd.Flags().StringVar(&flagTables, "tables", "",
		"material and fastener tables JSON file (built-in defaults if omitted)")
	buildCmd.Flags().StringVar(&flagSummary, "summary", "",
		"write the build summary JSON to this path instead of stdout")
	buildCmd.Flags().IntVar(&flagMaxIterations, "max-iterations", 0,
		"configuration convergence iteration cap (0 = default)")
	_ = buildCmd.MarkFlagRequired("shops")
}

// buildContext installs the logger used by every phase.
func buildContext() context.Context {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return ctxlog.WithLogger(context.Background(), log)
}

// evaluateDesign runs the Lisp front-end over the design file.
func evaluateDesign(path string, tables *shop.Tables) (*tree.Tree, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read design")
	}

	eng := engine.NewEngineWithTables(tables)
	t, evalErrs, err := eng.Evaluate(string(source))
	if err != nil {
		return nil, err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, e.Error())
		}
		return nil, errors.Errorf("%d evaluation error(s)", len(evalErrs))
	}
	return t, nil
}

func loadTables() (*shop.Tables, error) {
	if flagTables == "" {
		return shop.DefaultTables(), nil
	}
	return shop.LoadTables(flagTables)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := buildContext()

	catalog, err := shop.LoadCatalog(flagShops)
	if err != nil {
		return err
	}
	tables, err := loadTables()
	if err != nil {
		return err
	}
	t, err := evaluateDesign(args[0], tables)
	if err != nil {
		return err
	}

	var k kernel.Kernel = sdfx.New()
	summary, err := build.Build(ctx, t, build.Options{
		CacheDir:      flagCacheDir,
		Catalog:       catalog,
		Tables:        tables,
		Kernel:        k,
		MaxIterations: flagMaxIterations,
	})
	if err != nil {
		return err
	}

	if flagSummary != "" {
		if err := build.WriteSummary(summary, flagSummary); err != nil {
			return err
		}
	} else if err := printSummary(summary); err != nil {
		return err
	}

	if n := len(summary.Errors); n > 0 {
		for _, e := range summary.Errors {
			fmt.Fprintln(os.Stderr, "error:", e)
		}
		return errors.Errorf("build finished with %d error(s)", n)
	}
	return nil
}

func printSummary(s *build.Summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s), "write summary")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := buildContext()

	tables := shop.DefaultTables()
	t, err := evaluateDesign(args[0], tables)
	if err != nil {
		return err
	}

	if nc := t.Converge(ctx, flagMaxIterations); len(nc) > 0 {
		for _, e := range t.Errors() {
			fmt.Fprintln(os.Stderr, "error:", e)
		}
		return errors.Errorf("configuration did not converge (%d attribute(s))", len(nc))
	}

	fmt.Printf("%s: ok (%d nodes)\n", args[0], t.Len())
	return nil
}
