package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/blockjit/hook"
)

// ---------------------------------------------------------------------------
// JavaScript Generator
// ---------------------------------------------------------------------------

type unitState int

const (
	unitIdle unitState = iota
	unitGenerating
	unitFinalized
)

func (s unitState) String() string {
	switch s {
	case unitIdle:
		return "idle"
	case unitGenerating:
		return "generating"
	default:
		return "finalized"
	}
}

// Unit is the compilation unit of one script. It owns the source buffer,
// the helper set, hoisted lookups, temporaries and the frame stack. A Unit
// is not safe for concurrent use.
type Unit struct {
	scriptID string
	warp     bool

	descendInput   JSInputFunc
	descendStacked JSStackFunc

	state  unitState
	sb     strings.Builder
	indent int

	helpers   []string
	helperSet map[string]bool

	lookups   []string
	varIdent  map[string]string
	listIdent map[string]string

	temps  int
	labels int
	frames []*Frame

	// sticky error for calls that cannot return one, such as UseHelper
	err error
}

// NewUnit creates an idle unit for scriptID, resolving the JS dispatch
// methods from hooks.
func NewUnit(scriptID string, warp bool, hooks *Hooks) (*Unit, error) {
	input, err := hook.Resolve[JSInputFunc](hooks.JS, MethodDescendInput)
	if err != nil {
		return nil, err
	}
	stacked, err := hook.Resolve[JSStackFunc](hooks.JS, MethodDescendStackedBlock)
	if err != nil {
		return nil, err
	}
	return &Unit{
		scriptID:       scriptID,
		warp:           warp,
		descendInput:   input,
		descendStacked: stacked,
		helperSet:      make(map[string]bool),
		varIdent:       make(map[string]string),
		listIdent:      make(map[string]string),
	}, nil
}

// ScriptID returns the id of the script being compiled.
func (u *Unit) ScriptID() string { return u.scriptID }

// Warp reports whether loops run without yielding.
func (u *Unit) Warp() bool { return u.warp }

// Finalized reports whether Finalize has been called.
func (u *Unit) Finalized() bool { return u.state == unitFinalized }

func (u *Unit) begin() error {
	switch u.state {
	case unitFinalized:
		return &CompileError{Kind: ErrFinalized, ScriptID: u.scriptID}
	case unitIdle:
		u.state = unitGenerating
	}
	return u.err
}

// Generate emits a whole lowered script and finalizes the unit.
func (u *Unit) Generate(s *IRScript) (string, error) {
	if err := u.DescendStack(s.Body); err != nil {
		return "", err
	}
	return u.Finalize()
}

// DescendInput emits an expression through the descendInput chain.
func (u *Unit) DescendInput(n *IRNode) (TypedInput, error) {
	if err := u.begin(); err != nil {
		return nil, err
	}
	if n == nil {
		return ConstantOf(""), nil
	}
	in, err := u.descendInput(u, n)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, unknownOpcode(n.BlockID, n.Kind)
	}
	return in, nil
}

// DescendStackedBlock emits a statement through the descendStackedBlock
// chain.
func (u *Unit) DescendStackedBlock(n *IRNode) error {
	if err := u.begin(); err != nil {
		return err
	}
	return u.descendStacked(u, n)
}

// DescendStack emits statements in order.
func (u *Unit) DescendStack(s IRStack) error {
	if err := u.begin(); err != nil {
		return err
	}
	f := u.Frame()
	for i, n := range s {
		if f != nil {
			f.IsLastBlock = i == len(s)-1
		}
		if err := u.DescendStackedBlock(n); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Source buffer
// ---------------------------------------------------------------------------

// Writef writes one indented line.
func (u *Unit) Writef(format string, args ...interface{}) error {
	if err := u.begin(); err != nil {
		return err
	}
	for i := 0; i < u.indent; i++ {
		u.sb.WriteString("  ")
	}
	fmt.Fprintf(&u.sb, format, args...)
	u.sb.WriteByte('\n')
	return nil
}

// WriteBlock writes "header {", runs body one level deeper and closes the
// block.
func (u *Unit) WriteBlock(header string, body func() error) error {
	if err := u.Writef("%s {", header); err != nil {
		return err
	}
	u.indent++
	err := body()
	u.indent--
	if err != nil {
		return err
	}
	return u.Writef("}")
}

// Yield ends a loop iteration or a wait. Generator scripts yield; warp
// scripts count the step with runtime.step(), which aborts the script
// once the step limit is passed.
func (u *Unit) Yield() error {
	if u.warp {
		return u.Writef("runtime.step();")
	}
	return u.Writef("yield;")
}

// UseHelper marks a helper (and its dependencies) as used and returns the
// name to call.
func (u *Unit) UseHelper(name string) string {
	if u.state == unitFinalized {
		u.err = &CompileError{Kind: ErrFinalized, ScriptID: u.scriptID}
		return name
	}
	if u.helperSet[name] {
		return name
	}
	h, ok := helpers[name]
	if !ok {
		u.err = fmt.Errorf("unknown helper %q", name)
		return name
	}
	u.helperSet[name] = true
	for _, dep := range h.deps {
		u.UseHelper(dep)
	}
	u.helpers = append(u.helpers, name)
	return name
}

// Helpers returns the helpers used so far in declaration order.
func (u *Unit) Helpers() []string {
	return append([]string(nil), u.helpers...)
}

// VariableRef returns the hoisted identifier for a variable. The lookup
// is declared once per unit.
func (u *Unit) VariableRef(r *Ref) string {
	if id, ok := u.varIdent[r.ID]; ok {
		return id
	}
	ident := fmt.Sprintf("v%d", len(u.varIdent))
	u.varIdent[r.ID] = ident
	u.lookups = append(u.lookups, fmt.Sprintf("const %s = %s(%s, %s);",
		ident, u.UseHelper("lookupVariable"), jsString(r.ID), jsString(r.Name)))
	return ident
}

// ListRef returns the hoisted identifier for a list.
func (u *Unit) ListRef(r *Ref) string {
	if id, ok := u.listIdent[r.ID]; ok {
		return id
	}
	ident := fmt.Sprintf("l%d", len(u.listIdent))
	u.listIdent[r.ID] = ident
	u.lookups = append(u.lookups, fmt.Sprintf("const %s = %s(%s, %s);",
		ident, u.UseHelper("lookupList"), jsString(r.ID), jsString(r.Name)))
	return ident
}

// NewTemp allocates a temporary declared at the top of the script body.
func (u *Unit) NewTemp() string {
	t := fmt.Sprintf("t%d", u.temps)
	u.temps++
	return t
}

// NewLabel allocates a statement label.
func (u *Unit) NewLabel(prefix string) string {
	l := fmt.Sprintf("%s%d", prefix, u.labels)
	u.labels++
	return l
}

// Hoist stores a dynamic input in a fresh temporary so it can be read
// more than once. With kind other than ValueUnknown the value is coerced
// on the way in. It returns the assignment to emit before any read, and
// the input that reads the temporary. Constants need no assignment.
func (u *Unit) Hoist(in TypedInput, kind ValueKind) (string, TypedInput) {
	if c, ok := in.(*ConstantInput); ok {
		return "", c
	}
	t := u.NewTemp()
	var src string
	switch kind {
	case ValueNumber:
		src = in.AsNumber()
	case ValueString:
		src = in.AsString()
	case ValueBoolean:
		src = in.AsBoolean()
	default:
		kind = in.Kind()
		src = in.AsUnknown()
		if d, ok := in.(*DynamicInput); ok && d.MaybeNaN {
			return t + " = " + src, u.DynamicNaN(t)
		}
	}
	return t + " = " + src, u.Dynamic(t, kind)
}

// Sequence evaluates assigns in order and yields expr, as a comma
// expression. Empty assignments are skipped.
func Sequence(assigns []string, expr string) string {
	var parts []string
	for _, a := range assigns {
		if a != "" {
			parts = append(parts, a)
		}
	}
	if len(parts) == 0 {
		return expr
	}
	return "(" + strings.Join(parts, ", ") + ", " + expr + ")"
}

// Finalize assembles the unit. The returned text is the body of a
// factory function taking (target, runtime) and returning the script
// function. No further generation is possible afterwards.
func (u *Unit) Finalize() (string, error) {
	if u.state == unitFinalized {
		return "", &CompileError{Kind: ErrFinalized, ScriptID: u.scriptID}
	}
	if u.err != nil {
		return "", u.err
	}
	if len(u.frames) != 0 {
		return "", fmt.Errorf("finalize with %d open frames", len(u.frames))
	}
	u.state = unitFinalized

	var out strings.Builder
	out.WriteString("\"use strict\";\n")
	for _, name := range u.helpers {
		out.WriteString(helpers[name].source)
		out.WriteByte('\n')
	}
	for _, l := range u.lookups {
		out.WriteString(l)
		out.WriteByte('\n')
	}
	star := "*"
	if u.warp {
		star = ""
	}
	fmt.Fprintf(&out, "return function%s script_%s() {\n", star, sanitizeIdent(u.scriptID))
	if u.temps > 0 {
		names := make([]string, u.temps)
		for i := range names {
			names[i] = fmt.Sprintf("t%d", i)
		}
		fmt.Fprintf(&out, "  let %s;\n", strings.Join(names, ", "))
	}
	body := u.sb.String()
	for _, line := range strings.SplitAfter(body, "\n") {
		if line != "" {
			out.WriteString("  ")
			out.WriteString(line)
		}
	}
	out.WriteString("};\n")
	return out.String(), nil
}

// sanitizeIdent maps a block id to a JavaScript identifier fragment.
func sanitizeIdent(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
