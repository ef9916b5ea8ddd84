package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// BuildFile records what the last compile wrote, one entry per script.
type BuildFile struct {
	Project string        `toml:"project"`
	Warp    bool          `toml:"warp"`
	Scripts []BuiltScript `toml:"scripts"`
}

// BuiltScript is one compiled script on disk.
type BuiltScript struct {
	Target   string `toml:"target"`
	ScriptID string `toml:"script"`
	Hat      string `toml:"hat"`
	File     string `toml:"file"`
	UnitID   string `toml:"unit"`
	Error    string `toml:"error,omitempty"`
}

// ReadBuild reads a build record. A missing file returns nil, nil.
func ReadBuild(path string) (*BuildFile, error) {
	var bf BuildFile
	if _, err := toml.DecodeFile(path, &bf); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &bf, nil
}

// WriteBuild writes a build record, sorting scripts by target and id.
func WriteBuild(path string, bf *BuildFile) error {
	sort.Slice(bf.Scripts, func(i, j int) bool {
		a, b := bf.Scripts[i], bf.Scripts[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.ScriptID < b.ScriptID
	})
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(bf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Find returns the entry for a script, or nil.
func (bf *BuildFile) Find(target, scriptID string) *BuiltScript {
	for i := range bf.Scripts {
		if bf.Scripts[i].Target == target && bf.Scripts[i].ScriptID == scriptID {
			return &bf.Scripts[i]
		}
	}
	return nil
}
