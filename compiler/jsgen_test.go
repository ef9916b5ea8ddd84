package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/hook"
)

func TestGenerate_Layout(t *testing.T) {
	target := newTarget(flagHat("s"), say("s", "", block.Lit("hi")))

	src := compileHat(t, target, Options{})
	want := "\"use strict\";\n" +
		"return function* script_hat() {\n" +
		"  target.say(\"hi\");\n" +
		"};\n"
	if src != want {
		t.Errorf("got:\n%s\nwant:\n%s", src, want)
	}

	warp := compileHat(t, target, Options{Warp: true})
	if !strings.Contains(warp, "return function script_hat() {") {
		t.Errorf("warp script is not a plain function:\n%s", warp)
	}
}

func TestGenerate_ConstantFolding(t *testing.T) {
	tests := []struct {
		name   string
		opcode string
		inputs map[string]*block.Input
		want   string
	}{
		{"add", "operator_add", map[string]*block.Input{"NUM1": block.Lit(1.0), "NUM2": block.Lit(2.0)}, `"3"`},
		{"empty is zero", "operator_add", map[string]*block.Input{"NUM1": block.Lit(""), "NUM2": block.Lit(7.0)}, `"7"`},
		{"numeric prefix", "operator_add", map[string]*block.Input{"NUM1": block.Lit("3.14abc"), "NUM2": block.Lit(0.0)}, `"3.14"`},
		{"true is one", "operator_add", map[string]*block.Input{"NUM1": block.Lit(true), "NUM2": block.Lit(false)}, `"1"`},
		{"numeric compare", "operator_gt", map[string]*block.Input{"OPERAND1": block.Lit("10"), "OPERAND2": block.Lit("9")}, `"true"`},
		{"case-insensitive equals", "operator_equals", map[string]*block.Input{"OPERAND1": block.Lit("ABC"), "OPERAND2": block.Lit("abc")}, `"true"`},
		{"divide by zero", "operator_divide", map[string]*block.Input{"NUM1": block.Lit(1.0), "NUM2": block.Lit(0.0)}, `"Infinity"`},
		{"mod sign", "operator_mod", map[string]*block.Input{"NUM1": block.Lit(-1.0), "NUM2": block.Lit(3.0)}, `"2"`},
		{"join", "operator_join", map[string]*block.Input{"STRING1": block.Lit("a"), "STRING2": block.Lit(1.0)}, `"a1"`},
		{"letter", "operator_letter_of", map[string]*block.Input{"LETTER": block.Lit(2.0), "STRING": block.Lit("abc")}, `"b"`},
		{"length", "operator_length", map[string]*block.Input{"STRING": block.Lit("hello")}, `"5"`},
		{"contains", "operator_contains", map[string]*block.Input{"STRING1": block.Lit("Hello"), "STRING2": block.Lit("LL")}, `"true"`},
		{"not", "operator_not", map[string]*block.Input{"OPERAND": block.Lit("false")}, `"true"`},
	}
	for _, tc := range tests {
		target := newTarget(flagHat("s"), say("s", "", block.Ref("r")), op("r", tc.opcode, tc.inputs))
		src := compileHat(t, target, Options{})
		want := "target.say(" + tc.want + ");"
		if !strings.Contains(src, want) {
			t.Errorf("%s: want %s in:\n%s", tc.name, want, src)
		}
		if strings.Contains(src, "function cast") {
			t.Errorf("%s: folded expression still declares helpers:\n%s", tc.name, src)
		}
	}
}

func TestGenerate_HoistedLookups(t *testing.T) {
	set := &block.Block{
		ID:     "set",
		Opcode: "data_setvariableto",
		Next:   "s",
		Fields: varField("x", "vx"),
		Inputs: map[string]*block.Input{"VALUE": block.Lit(5.0)},
	}
	target := newTarget(flagHat("set"), set, say("s", "s2", block.VarRef("x", "vx")), say("s2", "", block.VarRef("x", "vx")))
	src := compileHat(t, target, Options{})

	if n := strings.Count(src, "function lookupVariable("); n != 1 {
		t.Errorf("lookupVariable declared %d times", n)
	}
	if n := strings.Count(src, `const v0 = lookupVariable("vx", "x");`); n != 1 {
		t.Errorf("variable lookup hoisted %d times:\n%s", n, src)
	}
	if !strings.Contains(src, "v0.value = 5;") || !strings.Contains(src, "target.say(castString(v0.value));") {
		t.Errorf("unexpected body:\n%s", src)
	}
	if strings.Index(src, "function castString(") > strings.Index(src, "const v0") {
		t.Error("helpers must precede hoisted lookups")
	}
}

func TestGenerate_HelperDependencies(t *testing.T) {
	lt := op("lt", "operator_lt", map[string]*block.Input{
		"OPERAND1": block.VarRef("a", "va"),
		"OPERAND2": block.VarRef("b", "vb"),
	})
	target := newTarget(flagHat("s"), say("s", "", block.Ref("lt")), lt)
	src := compileHat(t, target, Options{})

	ws := strings.Index(src, "function isWhiteSpace(")
	cmp := strings.Index(src, "function castCompare(")
	if ws < 0 || cmp < 0 || ws > cmp {
		t.Errorf("isWhiteSpace must be declared before castCompare:\n%s", src)
	}
	if strings.Count(src, "function castString(") != 1 {
		t.Errorf("castString declared more than once:\n%s", src)
	}
	if !strings.Contains(src, "(castCompare(v0.value, v1.value) < 0)") {
		t.Errorf("dynamic comparison does not go through castCompare:\n%s", src)
	}
}

func TestGenerate_NativeNumberCompare(t *testing.T) {
	lt := op("lt", "operator_lt", map[string]*block.Input{
		"OPERAND1": block.Ref("len"),
		"OPERAND2": block.Lit(3.0),
	})
	length := op("len", "data_lengthoflist", nil)
	length.Fields = listField("items", "l1")
	target := newTarget(flagHat("s"), say("s", "", block.Ref("lt")), lt, length)
	src := compileHat(t, target, Options{})
	if !strings.Contains(src, "(l0.value.length < 3)") {
		t.Errorf("numeric comparison should be native:\n%s", src)
	}
}

func TestGenerate_EmptyElse(t *testing.T) {
	target := newTarget(flagHat("c"), &block.Block{ID: "c", Opcode: "control_if_else"})
	src := compileHat(t, target, Options{})
	want := "  if (false) {\n  } else {\n  }\n"
	if !strings.Contains(src, want) {
		t.Errorf("got:\n%s", src)
	}
}

func TestGenerate_Loops(t *testing.T) {
	repeat := &block.Block{
		ID:       "r",
		Opcode:   "control_repeat",
		Inputs:   map[string]*block.Input{"TIMES": block.Lit(3.0)},
		Branches: map[string]string{"SUBSTACK": "s"},
	}
	target := newTarget(flagHat("r"), repeat, say("s", "", block.Lit("x")))

	src := compileHat(t, target, Options{})
	want := "  let t0;\n" +
		"  for (t0 = 3; t0 >= 1; t0--) {\n" +
		"    target.say(\"x\");\n" +
		"    yield;\n" +
		"  }\n"
	if !strings.Contains(src, want) {
		t.Errorf("got:\n%s", src)
	}

	warp := compileHat(t, target, Options{Warp: true})
	if strings.Contains(warp, "yield") {
		t.Errorf("warp loop yields:\n%s", warp)
	}
	wantWarp := "  for (t0 = 3; t0 >= 1; t0--) {\n" +
		"    target.say(\"x\");\n" +
		"    runtime.step();\n" +
		"  }\n"
	if !strings.Contains(warp, wantWarp) {
		t.Errorf("warp loop does not count steps:\n%s", warp)
	}
}

func TestGenerate_RepeatUntil(t *testing.T) {
	until := &block.Block{
		ID:     "u",
		Opcode: "control_repeat_until",
		Inputs: map[string]*block.Input{"CONDITION": block.VarRef("done", "vd")},
	}
	src := compileHat(t, newTarget(flagHat("u"), until), Options{})
	if !strings.Contains(src, "while (!castBoolean(v0.value)) {") {
		t.Errorf("got:\n%s", src)
	}
}

func TestGenerate_Stop(t *testing.T) {
	tests := []struct {
		option string
		want   string
	}{
		{"all", "runtime.stopAll();\n  return;"},
		{"this script", "return;"},
		{"other scripts in sprite", "runtime.stopOtherScripts();"},
	}
	for _, tc := range tests {
		stop := &block.Block{
			ID:     "stop",
			Opcode: "control_stop",
			Fields: map[string]*block.Field{"STOP_OPTION": {Name: "STOP_OPTION", Value: tc.option}},
		}
		src := compileHat(t, newTarget(flagHat("stop"), stop), Options{})
		if !strings.Contains(src, tc.want) {
			t.Errorf("%s: got:\n%s", tc.option, src)
		}
	}
}

func TestGenerate_UnknownIRKind(t *testing.T) {
	u, err := NewUnit("s", false, NewHooks())
	if err != nil {
		t.Fatal(err)
	}
	err = u.DescendStackedBlock(&IRNode{Kind: "nobody.owns", BlockID: "b7"})
	var ce *CompileError
	if !errors.As(err, &ce) || !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("got %v", err)
	}
	if ce.BlockID != "b7" {
		t.Errorf("block id: got %q", ce.BlockID)
	}
}

func TestUnit_Finalized(t *testing.T) {
	u, err := NewUnit("s", false, NewHooks())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := u.Finalize(); err != nil {
		t.Fatal(err)
	}
	if !u.Finalized() {
		t.Error("Finalized() = false after Finalize")
	}
	if _, err := u.Finalize(); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize: got %v", err)
	}
	if err := u.Writef("x;"); !errors.Is(err, ErrFinalized) {
		t.Errorf("Writef: got %v", err)
	}
	if err := u.DescendStack(IRStack{}); !errors.Is(err, ErrFinalized) {
		t.Errorf("DescendStack: got %v", err)
	}
}

func TestUnit_FramePopsOnError(t *testing.T) {
	u, err := NewUnit("s", false, NewHooks())
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err = u.WithFrame(&Frame{IsLoop: true}, func() error {
		if !u.InLoop() || u.FrameDepth() != 1 {
			t.Error("frame not active inside fn")
		}
		return boom
	})
	if err != boom {
		t.Errorf("got %v", err)
	}
	if u.FrameDepth() != 0 || u.Frame() != nil {
		t.Errorf("frame depth %d after error", u.FrameDepth())
	}

	func() {
		defer func() { recover() }()
		u.WithFrame(&Frame{}, func() error { panic("boom") })
	}()
	if u.FrameDepth() != 0 {
		t.Errorf("frame depth %d after panic", u.FrameDepth())
	}
}

func TestUnit_FindFrame(t *testing.T) {
	u, _ := NewUnit("s", false, NewHooks())
	outer := &Frame{Label: "outer", Data: map[string]interface{}{"k": 1}}
	u.WithFrame(outer, func() error {
		return u.WithFrame(&Frame{IsLoop: true}, func() error {
			f := u.FindFrame(func(f *Frame) bool { return f.Label != "" })
			if f != outer {
				t.Errorf("FindFrame returned %#v", f)
			}
			return nil
		})
	})
}

func TestUnit_Hoist(t *testing.T) {
	u, _ := NewUnit("s", false, NewHooks())

	assign, ref := u.Hoist(u.Dynamic("f()", ValueUnknown), ValueNumber)
	if assign != "t0 = castNumber(f())" {
		t.Errorf("assign: got %q", assign)
	}
	if ref.Kind() != ValueNumber || ref.AsNumber() != "t0" {
		t.Errorf("ref: kind %v source %q", ref.Kind(), ref.AsNumber())
	}

	assign, c := u.Hoist(ConstantOf(2.0), ValueNumber)
	if assign != "" || c.AsNumber() != "2" {
		t.Errorf("constants need no temporary: %q %q", assign, c.AsNumber())
	}

	if got := Sequence([]string{"t0 = 1", "", "t1 = 2"}, "t0 + t1"); got != "(t0 = 1, t1 = 2, t0 + t1)" {
		t.Errorf("Sequence: got %q", got)
	}
	if got := Sequence(nil, "x"); got != "x" {
		t.Errorf("Sequence without assignments: got %q", got)
	}
}

func TestTypedInput_Coercions(t *testing.T) {
	u, _ := NewUnit("s", false, NewHooks())
	tests := []struct {
		in   TypedInput
		num  string
		str  string
		bool string
	}{
		{ConstantOf(""), "0", `""`, "false"},
		{ConstantOf("0"), "0", `"0"`, "false"},
		{ConstantOf(-2.5), "(-2.5)", `"-2.5"`, "true"},
		{u.Dynamic("a", ValueNumber), "a", `("" + a)`, "castBoolean(a)"},
		{u.DynamicNaN("b"), "(b || 0)", `("" + b)`, "castBoolean(b)"},
		{u.Dynamic("c", ValueBoolean), "(+c)", `("" + c)`, "c"},
		{u.Dynamic("d", ValueUnknown), "castNumber(d)", "castString(d)", "castBoolean(d)"},
	}
	for i, tc := range tests {
		if got := tc.in.AsNumber(); got != tc.num {
			t.Errorf("%d AsNumber: got %q, want %q", i, got, tc.num)
		}
		if got := tc.in.AsString(); got != tc.str {
			t.Errorf("%d AsString: got %q, want %q", i, got, tc.str)
		}
		if got := tc.in.AsBoolean(); got != tc.bool {
			t.Errorf("%d AsBoolean: got %q, want %q", i, got, tc.bool)
		}
	}
}

// Operands from extensions are emitted as returned, so unary operators
// must group them.
func TestGenerate_UnaryOperandsGrouped(t *testing.T) {
	h := NewHooks()
	scope := hook.NewScope("test.bare")
	if _, err := hook.Patch(h.JS, scope, MethodDescendInput, func(next JSInputFunc) JSInputFunc {
		return func(u *Unit, n *IRNode) (TypedInput, error) {
			switch n.Kind {
			case "test.bool":
				return u.Dynamic("a || b", ValueBoolean), nil
			case "test.str":
				return u.Dynamic(`"x" + y`, ValueString), nil
			}
			return next(u, n)
		}
	}); err != nil {
		t.Fatal(err)
	}
	u, err := NewUnit("s", false, h)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		node *IRNode
		want string
	}{
		{&IRNode{Kind: KindNot, Inputs: map[string]*IRNode{"OPERAND": {Kind: "test.bool"}}}, "!(a || b)"},
		{&IRNode{Kind: KindLength, Inputs: map[string]*IRNode{"STRING": {Kind: "test.str"}}}, `("x" + y).length`},
	}
	for _, tc := range tests {
		in, err := u.DescendInput(tc.node)
		if err != nil {
			t.Fatalf("%s: %v", tc.node.Kind, err)
		}
		if got := in.AsUnknown(); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.node.Kind, got, tc.want)
		}
	}
}
