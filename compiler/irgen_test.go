package compiler

import (
	"testing"

	"github.com/chazu/blockjit/block"
)

// lowerScript runs the tree and IR phases over the script under "hat".
func lowerScript(t *testing.T, target *block.Target) *IRScript {
	t.Helper()
	hooks := NewHooks()
	g, err := NewScriptTreeGenerator(target, nil, hooks)
	if err != nil {
		t.Fatal(err)
	}
	hat, _ := target.Blocks.Get("hat")
	tree, err := g.DescendScript(hat)
	if err != nil {
		t.Fatalf("DescendScript: %v", err)
	}
	irg, err := NewIRGenerator(hooks)
	if err != nil {
		t.Fatal(err)
	}
	ir, err := irg.Generate(tree)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return ir
}

func TestLower_IfShapes(t *testing.T) {
	for _, opcode := range []string{"control_if", "control_if_else"} {
		target := newTarget(flagHat("c"), &block.Block{ID: "c", Opcode: opcode})
		ir := lowerScript(t, target)
		if len(ir.Body) != 1 {
			t.Fatalf("%s: body length %d", opcode, len(ir.Body))
		}
		n := ir.Body[0]
		if n.Kind != KindIf {
			t.Errorf("%s: kind %q, want %q", opcode, n.Kind, KindIf)
		}
		for _, br := range []string{BranchThen, BranchElse} {
			s, ok := n.Branches[br]
			if !ok || s == nil || len(s) != 0 {
				t.Errorf("%s: branch %s = %#v, want explicit empty stack", opcode, br, s)
			}
		}
		if n.ValueKind != ValueNone {
			t.Errorf("%s: statement has value kind %v", opcode, n.ValueKind)
		}
	}
}

func TestLower_LoopShapes(t *testing.T) {
	tests := []struct {
		opcode    string
		input     string
		wantTimes bool
		condKind  string
	}{
		{"control_repeat", "TIMES", true, KindConstant},
		{"control_repeat_until", "CONDITION", false, KindNot},
		{"control_while", "CONDITION", false, KindConstant},
		{"control_forever", "", false, KindConstant},
	}
	for _, tc := range tests {
		b := &block.Block{
			ID:       "loop",
			Opcode:   tc.opcode,
			Branches: map[string]string{"SUBSTACK": "body"},
		}
		if tc.input != "" {
			b.Inputs = map[string]*block.Input{tc.input: block.Lit(3.0)}
		}
		target := newTarget(flagHat("loop"), b, say("body", "", block.Lit("hi")))
		n := lowerScript(t, target).Body[0]

		if n.Kind != KindLoop {
			t.Errorf("%s: kind %q", tc.opcode, n.Kind)
			continue
		}
		if (n.Input("TIMES") != nil) != tc.wantTimes {
			t.Errorf("%s: TIMES present = %v", tc.opcode, !tc.wantTimes)
		}
		cond := n.Input("CONDITION")
		if cond == nil || cond.Kind != tc.condKind {
			t.Errorf("%s: CONDITION = %#v, want kind %q", tc.opcode, cond, tc.condKind)
		}
		if body := n.Branch(BranchBody); len(body) != 1 || body[0].Kind != KindSay {
			t.Errorf("%s: body %#v", tc.opcode, body)
		}
	}
}

func TestLower_ValueKinds(t *testing.T) {
	tests := []struct {
		opcode string
		want   ValueKind
	}{
		{"operator_add", ValueNumber},
		{"operator_join", ValueString},
		{"operator_lt", ValueBoolean},
		{"operator_not", ValueBoolean},
		{"operator_length", ValueNumber},
		{"data_itemoflist", ValueUnknown},
		{"sensing_timer", ValueNumber},
	}
	for _, tc := range tests {
		target := newTarget(flagHat("s"), say("s", "", block.Ref("r")), op("r", tc.opcode, nil))
		msg := lowerScript(t, target).Body[0].Input("MESSAGE")
		if msg.ValueKind != tc.want {
			t.Errorf("%s: got %v, want %v", tc.opcode, msg.ValueKind, tc.want)
		}
	}
}

func TestLower_MissingInputsAreEmptyStrings(t *testing.T) {
	target := newTarget(flagHat("s"), say("s", "", block.Ref("r")), op("r", "operator_add", nil))
	add := lowerScript(t, target).Body[0].Input("MESSAGE")
	for _, name := range []string{"NUM1", "NUM2"} {
		in := add.Input(name)
		if in == nil || in.Kind != KindConstant || in.Value != "" {
			t.Errorf("%s: got %#v", name, in)
		}
	}
}

func TestLower_ForEach(t *testing.T) {
	b := &block.Block{
		ID:     "for",
		Opcode: "control_for_each",
		Inputs: map[string]*block.Input{"VALUE": block.Lit(10.0)},
		Fields: varField("i", "vi"),
	}
	n := lowerScript(t, newTarget(flagHat("for"), b)).Body[0]
	if n.Kind != KindFor || n.Ref == nil || n.Ref.ID != "vi" || n.Ref.Name != "i" {
		t.Errorf("got %#v", n)
	}
}

func TestLowerExtension_Default(t *testing.T) {
	irg, err := NewIRGenerator(NewHooks())
	if err != nil {
		t.Fatal(err)
	}
	n := &ExtensionNode{
		BlockID:  "e",
		Kind:     "demo.op",
		Inputs:   map[string]Node{"A": &ConstantNode{BlockID: "e", Value: 1.0}},
		Branches: map[string][]Node{"B": {}, "A": {}},
		Payload:  "payload",
	}
	ir, err := irg.LowerInput(n)
	if err != nil {
		t.Fatal(err)
	}
	if ir.ValueKind != ValueUnknown || ir.Ext != "payload" {
		t.Errorf("got kind %v ext %v", ir.ValueKind, ir.Ext)
	}
	if len(ir.BranchOrder) != 2 || ir.BranchOrder[0] != "A" {
		t.Errorf("branch order %v", ir.BranchOrder)
	}

	n.Stacked = true
	st, err := irg.LowerStatement(n)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsStatement() {
		t.Errorf("stacked extension lowered with kind %v", st.ValueKind)
	}
}

func TestSelectBranch(t *testing.T) {
	sel := Constant("x", 2.0)
	n := SelectBranch("x", sel, map[string]IRStack{"A": {Constant("a", 1.0)}}, []string{"A", "B"})
	if n.Kind != KindSelect || !n.IsStatement() {
		t.Fatalf("got %#v", n)
	}
	if n.Branches["B"] == nil {
		t.Error("missing branch must be an explicit empty stack")
	}
	if n.Input("SELECTOR") != sel {
		t.Error("selector not kept")
	}
}
