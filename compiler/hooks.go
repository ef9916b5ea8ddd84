package compiler

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/hook"
)

// Dispatch points patched by extensions.
const (
	MethodDescendInput        = "descendInput"
	MethodDescendStackedBlock = "descendStackedBlock"
	MethodLowerExtension      = "lowerExtension"
)

// STGFunc is the script tree dispatch signature for both descendInput and
// descendStackedBlock.
type STGFunc func(g *ScriptTreeGenerator, b *block.Block) (Node, error)

// LowerFunc lowers an extension node to IR.
type LowerFunc func(g *IRGenerator, n *ExtensionNode) (*IRNode, error)

// JSInputFunc emits an expression for an IR node.
type JSInputFunc func(u *Unit, n *IRNode) (TypedInput, error)

// JSStackFunc emits a statement for an IR node.
type JSStackFunc func(u *Unit, n *IRNode) error

// Hooks holds the three patchable method tables, one per phase.
type Hooks struct {
	ScriptTree *hook.Table
	IR         *hook.Table
	JS         *hook.Table

	mu     sync.Mutex
	scopes map[string]*hook.Scope
}

// NewHooks returns tables holding only the built-in implementations.
func NewHooks() *Hooks {
	h := &Hooks{
		ScriptTree: hook.NewTable("ScriptTreeGenerator"),
		IR:         hook.NewTable("IRGenerator"),
		JS:         hook.NewTable("JSGenerator"),
		scopes:     make(map[string]*hook.Scope),
	}
	mustDefine(hook.Define[STGFunc](h.ScriptTree, MethodDescendInput, stgDescendInput))
	mustDefine(hook.Define[STGFunc](h.ScriptTree, MethodDescendStackedBlock, stgDescendStackedBlock))
	mustDefine(hook.Define[LowerFunc](h.IR, MethodLowerExtension, irLowerExtension))
	mustDefine(hook.Define[JSInputFunc](h.JS, MethodDescendInput, jsDescendInput))
	mustDefine(hook.Define[JSStackFunc](h.JS, MethodDescendStackedBlock, jsDescendStackedBlock))
	return h
}

func mustDefine(err error) {
	if err != nil {
		panic(err)
	}
}

// DefaultHooks is the process-wide registry used when Options.Hooks is nil.
var DefaultHooks = NewHooks()

// Fingerprint describes every layer installed in the tables. Compiled
// output depends on it, so it is part of cache keys.
func (h *Hooks) Fingerprint() string {
	var parts []string
	for _, t := range []*hook.Table{h.ScriptTree, h.IR, h.JS} {
		for _, m := range t.Methods() {
			if layers := t.Layers(m); len(layers) > 0 {
				parts = append(parts, fmt.Sprintf("%s.%s=%s", t.Name(), m, strings.Join(layers, ",")))
			}
		}
	}
	return strings.Join(parts, ";")
}

// ---------------------------------------------------------------------------
// Extensions
// ---------------------------------------------------------------------------

// Extension installs patches for the opcodes it owns. Install is called
// once per Hooks; it should claim only its own opcodes and IR kinds and
// call through to next for everything else.
type Extension interface {
	ID() string
	Install(h *Hooks, scope *hook.Scope) error
}

// Install adds ext under a scope named by its id. Installing the same id
// twice is a no-op and returns false.
func (h *Hooks) Install(ext Extension) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := ext.ID()
	if _, ok := h.scopes[id]; ok {
		return false, nil
	}
	scope := hook.NewScope(id)
	if err := ext.Install(h, scope); err != nil {
		h.unpatchLocked(scope)
		return false, fmt.Errorf("install extension %s: %w", id, err)
	}
	h.scopes[id] = scope
	log.Debugf("installed extension %s", id)
	return true, nil
}

// Uninstall removes every patch an extension installed. It reports
// whether the extension was installed.
func (h *Hooks) Uninstall(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	scope, ok := h.scopes[id]
	if !ok {
		return false
	}
	h.unpatchLocked(scope)
	delete(h.scopes, id)
	return true
}

func (h *Hooks) unpatchLocked(scope *hook.Scope) {
	hook.Unpatch(h.ScriptTree, scope)
	hook.Unpatch(h.IR, scope)
	hook.Unpatch(h.JS, scope)
}

// Installed returns the sorted ids of installed extensions.
func (h *Hooks) Installed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.scopes))
	for id := range h.scopes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Register installs ext into DefaultHooks.
func Register(ext Extension) (bool, error) {
	return DefaultHooks.Install(ext)
}

// Unregister removes an extension from DefaultHooks.
func Unregister(id string) bool {
	return DefaultHooks.Uninstall(id)
}
