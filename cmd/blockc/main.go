// blockc compiles block projects to JavaScript, runs them, and serves the
// compiler over the network.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/blockjit/cache"
	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/manifest"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: blockc [-C dir] [-v] <command> [options] [project]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  compile   compile every script to JavaScript files\n")
	fmt.Fprintf(w, "  run       run the green-flag scripts and print their effects\n")
	fmt.Fprintf(w, "  serve     serve the compiler over Connect and gRPC\n")
	fmt.Fprintf(w, "  exts      list the bundled extensions\n")
	fmt.Fprintf(w, "\nSettings come from the nearest %s; flags override them.\n", manifest.FileName)
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  blockc compile game.sb3 -o build\n")
	fmt.Fprintf(w, "  blockc run -engine vm -profile project.json\n")
	fmt.Fprintf(w, "  blockc serve -addr :8421 -grpc :8422\n")
}

// run is main without the exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("blockc", flag.ContinueOnError)
	global.SetOutput(stderr)
	dir := global.String("C", ".", "Directory to search for "+manifest.FileName)
	verbose := global.Int("v", 0, "Verbosity: 1 info, 2 debug")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr)
		return 2
	}

	m, err := loadManifest(*dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	verbosity := m.Verbosity()
	if *verbose > 0 {
		verbosity = *verbose
	}
	commonlog.Configure(verbosity, nil)

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "compile":
		return compileCommand(m, rest, stdout, stderr)
	case "run":
		return runCommand(m, rest, stdout, stderr)
	case "serve":
		return serveCommand(m, rest, stdout, stderr)
	case "exts":
		for _, id := range ext.IDs() {
			fmt.Fprintln(stdout, id)
		}
		return 0
	case "help":
		usage(stdout)
		return 0
	}
	fmt.Fprintf(stderr, "Unknown command %q\n\n", cmd)
	usage(stderr)
	return 2
}

// loadManifest finds the manifest above dir, falling back to defaults
// rooted at dir.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return manifest.Default(abs), nil
}

// openCache opens the configured cache. A nil cache with a nil error
// means caching is off.
func openCache(m *manifest.Manifest, backend string) (*cache.Cache, error) {
	if backend == "" {
		backend = m.Cache.Backend
	}
	switch backend {
	case manifest.BackendNone:
		return nil, nil
	case manifest.BackendMemory:
		return cache.New(cache.NewMemoryStore()), nil
	case manifest.BackendSQLite:
		store, err := cache.OpenSQLite(m.CachePath())
		if err != nil {
			return nil, err
		}
		return cache.New(store), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", backend)
}

// projectPath returns the positional project argument, or the manifest's.
func projectPath(m *manifest.Manifest, fs *flag.FlagSet) string {
	if fs.NArg() > 0 {
		p, _ := filepath.Abs(fs.Arg(0))
		return p
	}
	return m.ProjectPath()
}

// extensionFlag resolves a comma-separated list, or the manifest's list
// when the flag was not given.
func extensionFlag(m *manifest.Manifest, value string) ([]ext.Extension, error) {
	ids := m.Compile.Extensions
	if value != "" {
		ids = strings.Split(value, ",")
	}
	return ext.Resolve(ids)
}

// parseInterspersed parses flags that may follow the positional project
// argument.
func parseInterspersed(fs *flag.FlagSet, args []string) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	return fs.Parse(positional)
}
