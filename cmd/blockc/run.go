package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/engine"
	"github.com/chazu/blockjit/jsrt"
	"github.com/chazu/blockjit/manifest"
	"github.com/chazu/blockjit/vm"
)

// runCommand handles `blockc run`: every green-flag script runs against a
// recording host and the recorded calls are printed.
func runCommand(m *manifest.Manifest, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eng := fs.String("engine", engine.JS, "Engine: js (compiled) or vm (interpreter)")
	warp := fs.Bool("warp", m.Compile.Warp, "Run loops without yield points")
	seed := fs.Int64("seed", 0, "Seed for pick random")
	maxSteps := fs.Int("max-steps", vm.DefaultMaxSteps, "Bound on loop iterations per script")
	timeout := fs.Duration("timeout", jsrt.DefaultTimeout, "Bound on one script's run time (js engine)")
	exts := fs.String("ext", "", "Comma-separated extensions (default from manifest)")
	profile := fs.Bool("profile", false, "Print the most executed blocks (vm engine)")
	backend := fs.String("cache", "", "Cache backend: memory, sqlite or none (default from manifest)")
	if err := parseInterspersed(fs, args); err != nil {
		return 2
	}

	extensions, err := extensionFlag(m, *exts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	p, err := block.LoadProject(projectPath(m, fs))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := engine.Options{
		Engine:     *eng,
		Warp:       *warp,
		Extensions: extensions,
		MaxSteps:   *maxSteps,
		Seed:       *seed,
		Timeout:    *timeout,
	}
	if *eng == engine.JS {
		c, err := openCache(m, *backend)
		if err != nil {
			fmt.Fprintf(stderr, "Error opening cache: %v\n", err)
			return 1
		}
		if c != nil {
			defer c.Close()
			opts.Cache = c
		}
	}
	var prof *vm.Profiler
	if *profile {
		prof = vm.NewProfiler()
		opts.Profiler = prof
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := engine.Run(ctx, p, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, line := range rep.Log {
		fmt.Fprintln(stdout, line)
	}
	for _, s := range rep.Failed() {
		fmt.Fprintf(stderr, "%s/%s: %v\n", s.Target, s.ScriptID, s.Err)
	}

	if prof != nil {
		st := prof.Stats()
		fmt.Fprintf(stdout, "\nProfile: %d scripts, %d blocks tracked\n", st.TotalScripts, st.TotalBlocks)
		for _, ref := range prof.TopBlocks(10) {
			bp := prof.GetBlockProfile(ref)
			fmt.Fprintf(stdout, "  %8d  %s/%s\n", bp.ExecCount, ref.Target, ref.ID)
		}
	}
	if len(rep.Failed()) > 0 {
		return 1
	}
	return 0
}
