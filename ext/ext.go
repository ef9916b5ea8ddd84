// Package ext lists the bundled extensions. Each one patches the compiler
// hooks and supplies the matching interpreter primitives.
package ext

import (
	"fmt"
	"sort"

	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/ext/controlx"
	"github.com/chazu/blockjit/ext/mathx"
	"github.com/chazu/blockjit/vm"
)

// Extension is a compiler extension with interpreter support.
type Extension interface {
	compiler.Extension
	vm.Extension
}

var builtin = map[string]Extension{
	mathx.ID:    mathx.Extension{},
	controlx.ID: controlx.Extension{},
}

// IDs returns the sorted ids of the bundled extensions.
func IDs() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns a bundled extension by id.
func Lookup(id string) (Extension, bool) {
	e, ok := builtin[id]
	return e, ok
}

// Resolve looks up every id, failing on the first unknown one.
func Resolve(ids []string) ([]Extension, error) {
	out := make([]Extension, 0, len(ids))
	for _, id := range ids {
		e, ok := Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown extension %q (have %v)", id, IDs())
		}
		out = append(out, e)
	}
	return out, nil
}

// Hooks returns fresh hook tables with exts installed.
func Hooks(exts []Extension) (*compiler.Hooks, error) {
	h := compiler.NewHooks()
	for _, e := range exts {
		if _, err := h.Install(e); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Primitives converts exts for vm.Options.
func Primitives(exts []Extension) []vm.Extension {
	out := make([]vm.Extension, len(exts))
	for i, e := range exts {
		out[i] = e
	}
	return out
}
