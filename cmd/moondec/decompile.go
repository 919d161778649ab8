package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xirelogy/go-moondec"
	"github.com/xirelogy/go-moondec/internal/log"
)

type decompileOptions struct {
	noEnv        bool
	maxDepth     int
	tree         bool
	listing      bool
	asJSON       bool
	renameMap    string
	renameScript string
	logLevel     string
	debugModules string
	otlpEndpoint string
	header       []string
}

func newDecompileCmd() *cobra.Command {
	var o decompileOptions
	cmd := &cobra.Command{
		Use:   "decompile <fixture.json>...",
		Short: "Decompile one or more JSON bytecode fixtures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompile(cmd.Context(), cmd.OutOrStdout(), &o, args)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&o.noEnv, "no-env", false, "disable the environment simulator")
	f.IntVar(&o.maxDepth, "max-depth", 64, "maximum closure nesting depth")
	f.BoolVar(&o.tree, "tree", false, "print the recovered syntax tree after the source")
	f.BoolVar(&o.listing, "listing", false, "print a disassembly listing before the source")
	f.BoolVar(&o.asJSON, "json", false, "print results as JSON")
	f.StringVar(&o.renameMap, "rename-map", "", "JSON object of identifier renames")
	f.StringVar(&o.renameScript, "rename-script", "", "JavaScript file defining rename(text, idents)")
	f.StringVar(&o.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error, crit)")
	f.StringVar(&o.debugModules, "debug-modules", "", "comma-separated modules with debug logging (decompile, env, rename, cli)")
	f.StringVar(&o.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for decompilation spans")
	f.StringArrayVar(&o.header, "header", nil, "comment line written at the top of the output (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("rename-map", "rename-script")
	cmd.MarkFlagsMutuallyExclusive("json", "tree")
	cmd.MarkFlagsMutuallyExclusive("json", "listing")
	return cmd
}

func runDecompile(ctx context.Context, out io.Writer, o *decompileOptions, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := log.InitLogger(o.logLevel); err != nil {
		return err
	}
	log.EnableModules(o.debugModules)

	if o.otlpEndpoint != "" {
		shutdown, err := setupTracing(ctx, o.otlpEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn(log.CLI, "trace exporter shutdown failed", "err", err)
			}
		}()
	}

	d, err := newDecompiler(o)
	if err != nil {
		return err
	}

	fns := make([]*moondec.Function, len(paths))
	for i, path := range paths {
		fn, err := moondec.LoadFunction(path)
		if err != nil {
			return err
		}
		fns[i] = fn
	}

	futures := make([]moondec.DecompileFuture, len(fns))
	for i, fn := range fns {
		futures[i] = d.DecompileAsync(ctx, fn)
	}

	var failed error
	for i, fut := range futures {
		res, err := fut.Await(ctx)
		if res == nil {
			return fmt.Errorf("%s: %w", paths[i], err)
		}
		log.Info(log.CLI, "decompiled", "file", paths[i], "fingerprint", res.Fingerprint, "partial", res.Partial)
		if werr := writeResult(out, o, paths, i, fns[i], res); werr != nil {
			return werr
		}
		if err != nil && failed == nil {
			failed = fmt.Errorf("%s: %w", paths[i], err)
		}
	}
	return failed
}

func newDecompiler(o *decompileOptions) (*moondec.Decompiler, error) {
	d := moondec.New()
	d.SetEnvironment(!o.noEnv)
	d.SetMaxDepth(o.maxDepth)
	d.SetHeader(o.header...)

	switch {
	case o.renameMap != "":
		data, err := os.ReadFile(o.renameMap)
		if err != nil {
			return nil, err
		}
		var m moondec.MapRenamer
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", o.renameMap, err)
		}
		d.SetRenamer(m)
	case o.renameScript != "":
		src, err := os.ReadFile(o.renameScript)
		if err != nil {
			return nil, err
		}
		r, err := moondec.NewScriptRenamer(o.renameScript, string(src))
		if err != nil {
			return nil, err
		}
		d.SetRenamer(r)
	}
	return d, nil
}

func writeResult(out io.Writer, o *decompileOptions, paths []string, i int, fn *moondec.Function, res *moondec.Result) error {
	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(paths) > 1 {
		if _, err := fmt.Fprintf(out, "-- file: %s\n", paths[i]); err != nil {
			return err
		}
	}
	if o.listing {
		if err := moondec.Listing(out, fn); err != nil {
			return err
		}
		if _, err := io.WriteString(out, "\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(out, res.Text); err != nil {
		return err
	}
	if o.tree {
		if _, err := fmt.Fprintf(out, "\n%s\n", res.Tree()); err != nil {
			return err
		}
	}
	return nil
}
