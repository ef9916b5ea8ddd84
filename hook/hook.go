// Package hook implements the patch registry the compiler phases dispatch
// through. A Table plays the role of a generator's method set: each named
// method has an optional base implementation and an ordered list of layers,
// each installed under a Scope. Resolving a method composes the layers
// outermost-last, so every layer receives the next-inner implementation and
// may call through to it.
//
// Patching is idempotent per (scope, method). Unpatch removes everything a
// scope installed and leaves other scopes' layers in place.
package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotFunc is returned when a method type is not a function type.
	ErrNotFunc = errors.New("hook: method type is not a func")
	// ErrTypeMismatch is returned when a method is used with a type other
	// than the one it was first registered with.
	ErrTypeMismatch = errors.New("hook: method type mismatch")
)

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

var scopeSeq atomic.Uint64

// Scope marks the layers installed by one party. Two scopes with the same
// name are still distinct markers.
type Scope struct {
	name string
	id   uint64
}

// NewScope creates a fresh marker.
func NewScope(name string) *Scope {
	return &Scope{name: name, id: scopeSeq.Add(1)}
}

// Name returns the scope's display name.
func (s *Scope) Name() string { return s.name }

func (s *Scope) String() string {
	return fmt.Sprintf("%s#%d", s.name, s.id)
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

type layer struct {
	scope *Scope
	wrap  any // func(F) F
}

type method struct {
	typ    reflect.Type
	base   any // F, or nil when only layers exist
	layers []layer
}

// Table is a set of patchable methods. It is safe for concurrent use;
// resolution takes a read lock and patching a write lock.
type Table struct {
	name string

	mu      sync.RWMutex
	methods map[string]*method
	gen     uint64
}

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{name: name, methods: make(map[string]*method)}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Generation increases every time a layer is added or removed or a base is
// redefined. Callers that cache resolved methods compare generations.
func (t *Table) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gen
}

// Layers returns the scope names layered on a method, innermost first.
func (t *Table) Layers(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.methods[name]
	if m == nil {
		return nil
	}
	out := make([]string, len(m.layers))
	for i, l := range m.layers {
		out[i] = l.scope.Name()
	}
	return out
}

// Methods returns the sorted names of every method with a base or a layer.
func (t *Table) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.methods))
	for name := range t.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Patched reports whether scope has any layer in the table.
func (t *Table) Patched(scope *Scope) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.methods {
		for _, l := range m.layers {
			if l.scope == scope {
				return true
			}
		}
	}
	return false
}

// lookup returns the method record for name, creating it with type typ.
// The caller holds the write lock.
func (t *Table) lookup(name string, typ reflect.Type) (*method, error) {
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s.%s has type %s", ErrNotFunc, t.name, name, typ)
	}
	m := t.methods[name]
	if m == nil {
		m = &method{typ: typ}
		t.methods[name] = m
		return m, nil
	}
	if m.typ != typ {
		return nil, fmt.Errorf("%w: %s.%s is %s, not %s", ErrTypeMismatch, t.name, name, m.typ, typ)
	}
	return m, nil
}

func typeOf[F any]() reflect.Type {
	return reflect.TypeOf((*F)(nil)).Elem()
}

// ---------------------------------------------------------------------------
// Define / Patch / Unpatch / Resolve
// ---------------------------------------------------------------------------

// Define sets the base implementation of a method, replacing any previous
// base. Layers already installed stay on top of the new base.
func Define[F any](t *Table, name string, impl F) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, err := t.lookup(name, typeOf[F]())
	if err != nil {
		return err
	}
	m.base = impl
	t.gen++
	return nil
}

// Patch layers wrap over a method under scope. wrap receives the next-inner
// implementation and returns the replacement. If scope already patched the
// method, Patch does nothing and returns false.
func Patch[F any](t *Table, scope *Scope, name string, wrap func(next F) F) (bool, error) {
	if scope == nil {
		return false, fmt.Errorf("hook: patch %s.%s: nil scope", t.name, name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, err := t.lookup(name, typeOf[F]())
	if err != nil {
		return false, err
	}
	for _, l := range m.layers {
		if l.scope == scope {
			return false, nil
		}
	}
	m.layers = append(m.layers, layer{scope: scope, wrap: wrap})
	t.gen++
	return true, nil
}

// Unpatch removes every layer scope installed in t and returns how many were
// removed. It is a no-op for a scope that never patched t.
func Unpatch(t *Table, scope *Scope) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for name, m := range t.methods {
		kept := m.layers[:0]
		for _, l := range m.layers {
			if l.scope == scope {
				removed++
				continue
			}
			kept = append(kept, l)
		}
		for i := len(kept); i < len(m.layers); i++ {
			m.layers[i] = layer{}
		}
		m.layers = kept
		if m.base == nil && len(m.layers) == 0 {
			delete(t.methods, name)
		}
	}
	if removed > 0 {
		t.gen++
	}
	return removed
}

// Resolve composes a method: the base (or a stand-in returning zero values
// when there is none) wrapped by every layer in installation order.
func Resolve[F any](t *Table, name string) (F, error) {
	var zero F
	typ := typeOf[F]()
	if typ.Kind() != reflect.Func {
		return zero, fmt.Errorf("%w: %s.%s has type %s", ErrNotFunc, t.name, name, typ)
	}

	t.mu.RLock()
	m := t.methods[name]
	var base any
	var layers []layer
	if m != nil {
		if m.typ != typ {
			t.mu.RUnlock()
			return zero, fmt.Errorf("%w: %s.%s is %s, not %s", ErrTypeMismatch, t.name, name, m.typ, typ)
		}
		base = m.base
		layers = append(layers, m.layers...)
	}
	t.mu.RUnlock()

	var impl F
	if base != nil {
		impl = base.(F)
	} else {
		impl = standIn[F](typ)
	}
	for _, l := range layers {
		impl = l.wrap.(func(F) F)(impl)
	}
	return impl, nil
}

// standIn builds a function of type typ that returns zero values.
func standIn[F any](typ reflect.Type) F {
	fn := reflect.MakeFunc(typ, func([]reflect.Value) []reflect.Value {
		out := make([]reflect.Value, typ.NumOut())
		for i := range out {
			out[i] = reflect.Zero(typ.Out(i))
		}
		return out
	})
	return fn.Interface().(F)
}
