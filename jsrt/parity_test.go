package jsrt

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/ext"
	"github.com/chazu/blockjit/vm"
)

// values are the literals the properties draw operands from.
var values = []interface{}{
	0.0, 1.0, -3.0, 7.0, 10.0, 0.5, -1.5, 2.25, -0.2, math.Copysign(0, -1),
	"", "abc", "3.14abc", " 7 ", "10", "9", "a", "A", "0", "true", "false",
	"\uFF61", "\U0001F600", "x\U0001F600y",
	true, false,
}

type opDef struct {
	opcode string
	inputs []string
	field  string
}

var binaryOps = []opDef{
	{opcode: "operator_add", inputs: []string{"NUM1", "NUM2"}},
	{opcode: "operator_subtract", inputs: []string{"NUM1", "NUM2"}},
	{opcode: "operator_multiply", inputs: []string{"NUM1", "NUM2"}},
	{opcode: "operator_divide", inputs: []string{"NUM1", "NUM2"}},
	{opcode: "operator_mod", inputs: []string{"NUM1", "NUM2"}},
	{opcode: "operator_lt", inputs: []string{"OPERAND1", "OPERAND2"}},
	{opcode: "operator_gt", inputs: []string{"OPERAND1", "OPERAND2"}},
	{opcode: "operator_equals", inputs: []string{"OPERAND1", "OPERAND2"}},
	{opcode: "operator_and", inputs: []string{"OPERAND1", "OPERAND2"}},
	{opcode: "operator_or", inputs: []string{"OPERAND1", "OPERAND2"}},
	{opcode: "operator_join", inputs: []string{"STRING1", "STRING2"}},
	{opcode: "operator_contains", inputs: []string{"STRING1", "STRING2"}},
	{opcode: "operator_letter_of", inputs: []string{"LETTER", "STRING"}},
	{opcode: "operator_random", inputs: []string{"FROM", "TO"}},
	{opcode: "mathx_lerp", inputs: []string{"A", "B"}},
}

var unaryOps = []opDef{
	{opcode: "operator_round", inputs: []string{"NUM"}},
	{opcode: "operator_length", inputs: []string{"STRING"}},
	{opcode: "operator_not", inputs: []string{"OPERAND"}},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "abs"},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "floor"},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "ceiling"},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "sqrt"},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "sin"},
	{opcode: "operator_mathop", inputs: []string{"NUM"}, field: "cos"},
	{opcode: "mathx_clamp", inputs: []string{"VALUE"}},
}

// operand is a literal, or the same literal read from a variable so the
// generator cannot fold it.
func operand(v interface{}, dynamic bool, name string) *block.Input {
	if dynamic {
		return block.VarRef(name, "v"+name)
	}
	return block.Lit(v)
}

// exprScript stores a and b in variables, then says op applied to them.
func exprScript(op opDef, a, b interface{}, dynA, dynB bool) *block.Target {
	set := func(id, next, name string, v interface{}) *block.Block {
		return varField(stmt(id, "data_setvariableto", next, map[string]*block.Input{"VALUE": block.Lit(v)}), name, "v"+name)
	}
	e := &block.Block{ID: "e", Opcode: op.opcode, Inputs: map[string]*block.Input{}}
	args := []*block.Input{operand(a, dynA, "a"), operand(b, dynB, "b")}
	for i, name := range op.inputs {
		e.Inputs[name] = args[i]
	}
	switch op.opcode {
	case "operator_mathop":
		e.Fields = map[string]*block.Field{"OPERATOR": {Name: "OPERATOR", Value: op.field}}
	case "mathx_lerp":
		e.Inputs["T"] = block.Lit(0.25)
	case "mathx_clamp":
		e.Inputs["MIN"] = block.Lit(-2.0)
		e.Inputs["MAX"] = operand(b, dynB, "b")
	}

	target := sprite(
		hat("sa"),
		set("sa", "sb", "a", a),
		set("sb", "say", "b", b),
		sayBlock("say", "", block.Ref("e")),
		e,
	)
	target.Variables["va"] = &block.Variable{ID: "va", Name: "a", Value: 0.0}
	target.Variables["vb"] = &block.Variable{ID: "vb", Name: "b", Value: 0.0}
	return target
}

// bothPaths runs the script under "hat" in the interpreter and in goja
// with identically seeded hosts and returns both call logs.
func bothPaths(r *Runner, hooks *compiler.Hooks, exts []ext.Extension, build func() *block.Target, warp bool, seed int64) (string, string, error) {
	vt := build()
	vrec := vm.NewRecorder(seed)
	m := vm.New(vt, nil, vrec, vm.Options{Warp: warp, Extensions: ext.Primitives(exts)})
	vres, err := m.RunScript(context.Background(), "hat", hooks)
	if err != nil {
		return "", "", fmt.Errorf("vm: %w", err)
	}

	jt := build()
	s, err := compiler.CompileScript(jt, nil, "hat", compiler.Options{Warp: warp, Hooks: hooks})
	if err != nil {
		return "", "", fmt.Errorf("compile: %w", err)
	}
	jrec := vm.NewRecorder(seed)
	jres, err := r.Run(context.Background(), s, jt, nil, jrec)
	if err != nil {
		return "", "", fmt.Errorf("jsrt: %w\n%s", err, s.Source)
	}

	got := fmt.Sprintf("%s\nyields=%d\n%s", jrec, jres.Yields, dumpState(jt))
	want := fmt.Sprintf("%s\nyields=%d\n%s", vrec, vres.Yields, dumpState(vt))
	return got, want, nil
}

func dumpState(t *block.Target) string {
	var sb strings.Builder
	for _, id := range sortedIDs(t.Variables) {
		fmt.Fprintf(&sb, "var %s=%#v\n", id, t.Variables[id].Value)
	}
	for _, id := range sortedIDs(t.Lists) {
		fmt.Fprintf(&sb, "list %s=%#v\n", id, t.Lists[id].Value)
	}
	return sb.String()
}

func parityHooks(t *testing.T) (*compiler.Hooks, []ext.Extension) {
	t.Helper()
	exts, err := ext.Resolve(ext.IDs())
	if err != nil {
		t.Fatal(err)
	}
	h, err := ext.Hooks(exts)
	if err != nil {
		t.Fatal(err)
	}
	return h, exts
}

func TestProperty_ExpressionParity(t *testing.T) {
	hooks, exts := parityHooks(t)
	r := newRunner(t, Options{})
	ops := append(append([]opDef(nil), binaryOps...), unaryOps...)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("generated code says what the interpreter says", prop.ForAll(
		func(op, a, b int, dynA, dynB bool, seed int64) bool {
			build := func() *block.Target { return exprScript(ops[op], values[a], values[b], dynA, dynB) }
			got, want, err := bothPaths(r, hooks, exts, build, false, seed)
			if err != nil {
				t.Logf("%s(%#v, %#v): %v", ops[op].opcode, values[a], values[b], err)
				return false
			}
			if got != want {
				t.Logf("%s %s(%#v dyn=%t, %#v dyn=%t):\njs:\n%s\nvm:\n%s",
					ops[op].opcode, ops[op].field, values[a], dynA, values[b], dynB, got, want)
				return false
			}
			return true
		},
		gen.IntRange(0, len(ops)-1),
		gen.IntRange(0, len(values)-1),
		gen.IntRange(0, len(values)-1),
		gen.Bool(),
		gen.Bool(),
		gen.Int64Range(0, 1<<20),
	))

	properties.TestingRun(t)
}

// Folding must not change a result: the constant form of an expression
// says the same as the form reading its operands from variables.
func TestProperty_FoldingSound(t *testing.T) {
	hooks, _ := parityHooks(t)
	r := newRunner(t, Options{})
	ops := append(append([]opDef(nil), binaryOps...), unaryOps...)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("folded and dynamic forms agree", prop.ForAll(
		func(op, a, b int) bool {
			run := func(dyn bool) (string, bool) {
				target := exprScript(ops[op], values[a], values[b], dyn, dyn)
				s, err := compiler.CompileScript(target, nil, "hat", compiler.Options{Warp: true, Hooks: hooks})
				if err != nil {
					t.Log(err)
					return "", false
				}
				rec := vm.NewRecorder(1)
				if _, err := r.Run(context.Background(), s, target, nil, rec); err != nil {
					t.Log(err)
					return "", false
				}
				return rec.String(), true
			}
			folded, ok1 := run(false)
			dynamic, ok2 := run(true)
			if folded != dynamic {
				t.Logf("%s(%#v, %#v): folded %s, dynamic %s", ops[op].opcode, values[a], values[b], folded, dynamic)
			}
			return ok1 && ok2 && folded == dynamic
		},
		gen.IntRange(0, len(ops)-1),
		gen.IntRange(0, len(values)-1),
		gen.IntRange(0, len(values)-1),
	))

	properties.TestingRun(t)
}

// Rounding a small negative number gives -0, which only shows once it
// is divided by.
func TestParity_RoundNegativeZero(t *testing.T) {
	hooks, exts := parityHooks(t)
	r := newRunner(t, Options{})
	tests := []struct {
		in   float64
		want string
	}{
		{-0.2, `say "-Infinity"`},
		{-0.4, `say "-Infinity"`},
		{-0.5, `say "-Infinity"`},
		{math.Copysign(0, -1), `say "-Infinity"`},
		{0.3, `say "Infinity"`},
	}
	for _, tt := range tests {
		for _, dyn := range []bool{false, true} {
			build := func() *block.Target {
				target := sprite(
					hat("set"),
					varField(stmt("set", "data_setvariableto", "say", map[string]*block.Input{"VALUE": block.Lit(tt.in)}), "a", "va"),
					sayBlock("say", "", block.Ref("div")),
					&block.Block{ID: "div", Opcode: "operator_divide", Inputs: map[string]*block.Input{
						"NUM1": block.Lit(1.0), "NUM2": block.Ref("rnd"),
					}},
					&block.Block{ID: "rnd", Opcode: "operator_round", Inputs: map[string]*block.Input{"NUM": operand(tt.in, dyn, "a")}},
				)
				target.Variables["va"] = &block.Variable{ID: "va", Name: "a", Value: 0.0}
				return target
			}
			got, want, err := bothPaths(r, hooks, exts, build, false, 1)
			if err != nil {
				t.Fatalf("%v dyn=%t: %v", tt.in, dyn, err)
			}
			if got != want {
				t.Errorf("%v dyn=%t:\njs:\n%s\nvm:\n%s", tt.in, dyn, got, want)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("%v dyn=%t: got\n%s\nwant %s", tt.in, dyn, got, tt.want)
			}
		}
	}
}

// Strings order by UTF-16 code unit on both paths, so a character above
// the basic plane sorts before U+FF61.
func TestParity_CompareAstralStrings(t *testing.T) {
	hooks, exts := parityHooks(t)
	r := newRunner(t, Options{})
	pairs := [][2]string{
		{"\uFF61", "\U0001F600"},
		{"\U00010000", "\uE000"},
		{"a\U0001F600", "a\uFFFF"},
	}
	for _, p := range pairs {
		for _, op := range []opDef{binaryOps[5], binaryOps[6]} {
			for _, dyn := range []bool{false, true} {
				build := func() *block.Target { return exprScript(op, p[0], p[1], dyn, dyn) }
				got, want, err := bothPaths(r, hooks, exts, build, false, 1)
				if err != nil {
					t.Fatalf("%s(%q, %q): %v", op.opcode, p[0], p[1], err)
				}
				if got != want {
					t.Errorf("%s(%q, %q) dyn=%t:\njs:\n%s\nvm:\n%s", op.opcode, p[0], p[1], dyn, got, want)
				}
			}
		}
	}
}

// controlScript exercises loops, lists, variables, random picks and both
// bundled control extensions in one script.
func controlScript() *block.Target {
	lst := func(b *block.Block) *block.Block { return listField(b, "xs", "lx") }
	target := sprite(
		hat("for"),
		loop("for", "control_for_each", "sw", "add", map[string]*block.Input{"VALUE": block.Lit(4.0)}),
		lst(stmt("add", "data_addtolist", "ins", map[string]*block.Input{"ITEM": block.Ref("rnd")})),
		&block.Block{ID: "rnd", Opcode: "operator_random", Inputs: map[string]*block.Input{"FROM": block.Lit(1.0), "TO": block.VarRef("i", "vi")}},
		lst(stmt("ins", "data_insertatlist", "", map[string]*block.Input{"INDEX": block.Lit("random"), "ITEM": block.VarRef("i", "vi")})),

		&block.Block{
			ID: "sw", Opcode: "controlx_switch", Next: "pick",
			Inputs:   map[string]*block.Input{"VALUE": block.Ref("len")},
			Branches: map[string]string{"SUBSTACK": "c1"},
		},
		lst(&block.Block{ID: "len", Opcode: "data_lengthoflist"}),
		&block.Block{
			ID: "c1", Opcode: "controlx_case", Next: "dflt",
			Inputs:   map[string]*block.Input{"VALUE": block.Lit("8")},
			Branches: map[string]string{"SUBSTACK": "s8"},
		},
		sayBlock("s8", "", block.ListRef("xs", "lx")),
		sayBlock("dflt", "", block.Lit("odd length")),

		&block.Block{
			ID: "pick", Opcode: "controlx_pick", Next: "w",
			Inputs:   map[string]*block.Input{"INDEX": block.Ref("item")},
			Branches: map[string]string{"SUBSTACK": "p1", "SUBSTACK2": "p2", "SUBSTACK3": "p3"},
		},
		lst(&block.Block{ID: "item", Opcode: "data_itemoflist", Inputs: map[string]*block.Input{"INDEX": block.Lit("any")}}),
		sayBlock("p1", "", block.Lit("one")),
		sayBlock("p2", "", block.Lit("two")),
		sayBlock("p3", "", block.Lit("three")),

		loop("w", "control_repeat_until", "", "cx", map[string]*block.Input{"CONDITION": block.Ref("gt")}),
		&block.Block{ID: "gt", Opcode: "operator_gt", Inputs: map[string]*block.Input{"OPERAND1": block.Ref("x"), "OPERAND2": block.Lit(20.0)}},
		&block.Block{ID: "x", Opcode: "motion_xposition"},
		stmt("cx", "motion_changexby", "wt", map[string]*block.Input{"DX": block.Ref("clamp")}),
		&block.Block{ID: "clamp", Opcode: "mathx_clamp", Inputs: map[string]*block.Input{
			"VALUE": block.Ref("rnd2"), "MIN": block.Lit(3.0), "MAX": block.Lit(6.0),
		}},
		&block.Block{ID: "rnd2", Opcode: "operator_random", Inputs: map[string]*block.Input{"FROM": block.Lit(0.0), "TO": block.Lit(9.0)}},
		stmt("wt", "control_wait", "", map[string]*block.Input{"DURATION": block.Lit(0.5)}),
	)
	target.Variables["vi"] = &block.Variable{ID: "vi", Name: "i", Value: 0.0}
	target.Lists["lx"] = &block.List{ID: "lx", Name: "xs", Value: []interface{}{}}
	return target
}

func TestParity_ControlScript(t *testing.T) {
	hooks, exts := parityHooks(t)
	r := newRunner(t, Options{})
	for _, warp := range []bool{false, true} {
		for seed := int64(0); seed < 20; seed++ {
			got, want, err := bothPaths(r, hooks, exts, controlScript, warp, seed)
			if err != nil {
				t.Fatalf("warp=%t seed=%d: %v", warp, seed, err)
			}
			if got != want {
				t.Fatalf("warp=%t seed=%d:\njs:\n%s\nvm:\n%s", warp, seed, got, want)
			}
		}
	}
}
