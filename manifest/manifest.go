// Package manifest handles blockjit.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "blockjit.toml"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Manifest represents a blockjit.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Compile Compile `toml:"compile"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the blockjit.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project names the project and where its blocks live.
type Project struct {
	Name string `toml:"name"`
	// Path is a project.json or .sb3 file, relative to Dir.
	Path string `toml:"path"`
}

// Compile configures code generation.
type Compile struct {
	Warp        bool     `toml:"warp"`
	Parallelism int      `toml:"parallelism"`
	Extensions  []string `toml:"extensions"`
	Output      string   `toml:"output"`
}

// Cache configures the compiled-script cache.
type Cache struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Server configures blockc serve.
type Server struct {
	// Addr serves Connect.
	Addr string `toml:"addr"`
	// GRPC serves gRPC; "off" disables it.
	GRPC string `toml:"grpc"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the manifest used when no blockjit.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Project.Path == "" {
		m.Project.Path = "project.json"
	}
	if m.Compile.Output == "" {
		m.Compile.Output = "build"
	}
	if m.Cache.Backend == "" {
		m.Cache.Backend = BackendMemory
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".blockjit", "cache.db")
	}
	if m.Server.Addr == "" {
		m.Server.Addr = "localhost:8421"
	}
	if m.Server.GRPC == "" {
		m.Server.GRPC = "localhost:8422"
	}
	if m.Log.Level == "" {
		m.Log.Level = "notice"
	}
}

// Load parses a blockjit.toml file from the given directory and checks it
// against the manifest schema.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a blockjit.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ProjectPath returns the absolute path of the project file.
func (m *Manifest) ProjectPath() string { return m.abs(m.Project.Path) }

// OutputDir returns the absolute path of the compile output directory.
func (m *Manifest) OutputDir() string { return m.abs(m.Compile.Output) }

// CachePath returns the absolute path of the SQLite cache.
func (m *Manifest) CachePath() string { return m.abs(m.Cache.Path) }

// Verbosity maps the log level to a commonlog verbosity.
func (m *Manifest) Verbosity() int {
	switch m.Log.Level {
	case "error":
		return -2
	case "warning":
		return -1
	case "info":
		return 1
	case "debug":
		return 2
	}
	return 0
}
