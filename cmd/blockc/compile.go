package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/manifest"
)

// compileCommand handles `blockc compile`.
// Usage:
//
//	blockc compile                   # project and output from blockjit.toml
//	blockc compile game.sb3 -o out   # explicit project and output dir
func compileCommand(m *manifest.Manifest, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", m.OutputDir(), "Output directory")
	warp := fs.Bool("warp", m.Compile.Warp, "Compile loops without yield points")
	jobs := fs.Int("j", m.Compile.Parallelism, "Scripts compiled at once (0: unbounded)")
	exts := fs.String("ext", "", "Comma-separated extensions (default from manifest)")
	backend := fs.String("cache", "", "Cache backend: memory, sqlite or none (default from manifest)")
	if err := parseInterspersed(fs, args); err != nil {
		return 2
	}

	extensions, err := extensionFlag(m, *exts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	hooks, err := ext.Hooks(extensions)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	c, err := openCache(m, *backend)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening cache: %v\n", err)
		return 1
	}
	opts := compiler.Options{Warp: *warp, Parallelism: *jobs, Hooks: hooks}
	if c != nil {
		defer c.Close()
		opts.Cache = c
	}

	path := projectPath(m, fs)
	p, err := block.LoadProject(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	start := time.Now()
	res, err := compiler.CompileProject(context.Background(), p, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	bf := &manifest.BuildFile{Project: path, Warp: *warp}
	failed := 0
	for _, r := range res.Scripts {
		entry := manifest.BuiltScript{Target: r.Target, ScriptID: r.ScriptID}
		if r.Err != nil {
			failed++
			entry.Error = r.Err.Error()
			fmt.Fprintf(stderr, "%s: %v\n", r.Target, r.Err)
			bf.Scripts = append(bf.Scripts, entry)
			continue
		}
		rel := filepath.Join(fileName(r.Target), fileName(r.ScriptID)+".js")
		if err := writeScript(filepath.Join(*out, rel), r.Script.Source); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		entry.Hat = r.Script.Hat
		entry.File = filepath.ToSlash(rel)
		entry.UnitID = r.Script.UnitID
		bf.Scripts = append(bf.Scripts, entry)
	}
	if err := manifest.WriteBuild(filepath.Join(*out, "build.toml"), bf); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Compiled %d scripts (%d failed) in %s to %s\n",
		len(res.Scripts)-failed, failed, time.Since(start).Round(time.Millisecond), *out)
	if c != nil {
		st := c.Stats()
		fmt.Fprintf(stdout, "Cache: %d hits, %d misses\n", st.Hits, st.Misses)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func writeScript(path, source string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(source), 0644)
}

// fileName maps a target name or block id to a safe path element.
func fileName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "~%x", r)
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
