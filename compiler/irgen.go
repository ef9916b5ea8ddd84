package compiler

import (
	"github.com/chazu/blockjit/hook"
)

// ---------------------------------------------------------------------------
// IR Generator
// ---------------------------------------------------------------------------

// IRGenerator lowers script trees to IR.
type IRGenerator struct {
	lowerExtension LowerFunc
}

// NewIRGenerator resolves the lowerExtension chain from hooks.
func NewIRGenerator(hooks *Hooks) (*IRGenerator, error) {
	lower, err := hook.Resolve[LowerFunc](hooks.IR, MethodLowerExtension)
	if err != nil {
		return nil, err
	}
	return &IRGenerator{lowerExtension: lower}, nil
}

// Generate lowers a whole script.
func (g *IRGenerator) Generate(s *Script) (*IRScript, error) {
	body, err := g.LowerStack(s.Body)
	if err != nil {
		return nil, err
	}
	return &IRScript{
		ID:        s.ID,
		Target:    s.Target,
		Hat:       s.Hat,
		HatFields: fieldValues(s.HatFields),
		Body:      body,
	}, nil
}

// LowerStack lowers statements in order. The result is never nil.
func (g *IRGenerator) LowerStack(nodes []Node) (IRStack, error) {
	out := make(IRStack, 0, len(nodes))
	for _, n := range nodes {
		ir, err := g.LowerStatement(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ir)
	}
	return out, nil
}

// LowerInput lowers a node in expression position. The result always has
// a value kind other than ValueNone.
func (g *IRGenerator) LowerInput(n Node) (*IRNode, error) {
	var ir *IRNode
	var err error
	switch n := n.(type) {
	case *ConstantNode:
		return Constant(n.BlockID, n.Value), nil
	case *KnownNode:
		ir, err = g.lowerKnownInput(n)
	case *ExtensionNode:
		ir, err = g.lowerExtension(g, n)
	default:
		return nil, NewError(ErrUnknownOpcode, n.ID(), "", "unexpected node %T", n)
	}
	if err != nil {
		return nil, err
	}
	if ir == nil {
		return nil, NewError(ErrUnknownOpcode, n.ID(), "", "no lowering produced")
	}
	if ir.ValueKind == ValueNone {
		ir.ValueKind = ValueUnknown
	}
	return ir, nil
}

// LowerStatement lowers a node in statement position. The result always
// has ValueNone.
func (g *IRGenerator) LowerStatement(n Node) (*IRNode, error) {
	var ir *IRNode
	var err error
	switch n := n.(type) {
	case *KnownNode:
		ir, err = g.lowerKnownStatement(n)
	case *ExtensionNode:
		ir, err = g.lowerExtension(g, n)
	default:
		return nil, NewError(ErrUnknownOpcode, n.ID(), "", "%T in statement position", n)
	}
	if err != nil {
		return nil, err
	}
	if ir == nil {
		return nil, NewError(ErrUnknownOpcode, n.ID(), "", "no lowering produced")
	}
	ir.ValueKind = ValueNone
	return ir, nil
}

// LowerBranches lowers every branch of an extension node, keyed by name.
func (g *IRGenerator) LowerBranches(n *ExtensionNode) (map[string]IRStack, error) {
	out := make(map[string]IRStack, len(n.Branches))
	for name, nodes := range n.Branches {
		s, err := g.LowerStack(nodes)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

func (g *IRGenerator) inputs(n *KnownNode, names ...string) (map[string]*IRNode, error) {
	out := make(map[string]*IRNode, len(names))
	for _, name := range names {
		child, ok := n.Inputs[name]
		if !ok {
			out[name] = Constant(n.BlockID, "")
			continue
		}
		ir, err := g.LowerInput(child)
		if err != nil {
			return nil, err
		}
		out[name] = ir
	}
	return out, nil
}

func refOf(n *KnownNode, field string) *Ref {
	f := n.Fields[field]
	if f == nil {
		return &Ref{}
	}
	return &Ref{ID: f.ID, Name: f.Value}
}

// reporterKinds maps built-in reporters to their IR kind and value kind.
var reporterKinds = map[string]struct {
	kind  string
	value ValueKind
}{
	"data_variable":         {KindVarGet, ValueUnknown},
	"data_listcontents":     {KindListContents, ValueString},
	"data_itemoflist":       {KindListItem, ValueUnknown},
	"data_lengthoflist":     {KindListLength, ValueNumber},
	"data_listcontainsitem": {KindListContains, ValueBoolean},
	"operator_add":          {KindAdd, ValueNumber},
	"operator_subtract":     {KindSubtract, ValueNumber},
	"operator_multiply":     {KindMultiply, ValueNumber},
	"operator_divide":       {KindDivide, ValueNumber},
	"operator_mod":          {KindMod, ValueNumber},
	"operator_round":        {KindRound, ValueNumber},
	"operator_mathop":       {KindMathop, ValueNumber},
	"operator_random":       {KindRandom, ValueNumber},
	"operator_lt":           {KindLess, ValueBoolean},
	"operator_gt":           {KindGreater, ValueBoolean},
	"operator_equals":       {KindEquals, ValueBoolean},
	"operator_and":          {KindAnd, ValueBoolean},
	"operator_or":           {KindOr, ValueBoolean},
	"operator_not":          {KindNot, ValueBoolean},
	"operator_join":         {KindJoin, ValueString},
	"operator_letter_of":    {KindLetterOf, ValueString},
	"operator_length":       {KindLength, ValueNumber},
	"operator_contains":     {KindContains, ValueBoolean},
	"motion_xposition":      {KindXPosition, ValueNumber},
	"motion_yposition":      {KindYPosition, ValueNumber},
	"motion_direction":      {KindDirection, ValueNumber},
	"sensing_timer":         {KindTimer, ValueNumber},
}

func (g *IRGenerator) lowerKnownInput(n *KnownNode) (*IRNode, error) {
	rk, ok := reporterKinds[n.Opcode]
	if !ok {
		return nil, unknownOpcode(n.BlockID, n.Opcode)
	}
	ins, err := g.inputs(n, builtinOps[n.Opcode].inputs...)
	if err != nil {
		return nil, err
	}
	ir := &IRNode{
		Kind:      rk.kind,
		BlockID:   n.BlockID,
		ValueKind: rk.value,
		Inputs:    ins,
		Fields:    fieldValues(n.Fields),
	}
	switch n.Opcode {
	case "data_variable":
		ir.Ref = refOf(n, "VARIABLE")
	case "data_listcontents", "data_itemoflist", "data_lengthoflist", "data_listcontainsitem":
		ir.Ref = refOf(n, "LIST")
	}
	return ir, nil
}

// statementKinds maps built-in statements that need no reshaping.
var statementKinds = map[string]string{
	"data_setvariableto":     KindVarSet,
	"data_changevariableby":  KindVarChange,
	"data_addtolist":         KindListAdd,
	"data_deleteoflist":      KindListDelete,
	"data_deletealloflist":   KindListDeleteAll,
	"data_insertatlist":      KindListInsert,
	"data_replaceitemoflist": KindListReplace,
	"control_stop":           KindStop,
	"control_wait":           KindWait,
	"looks_say":              KindSay,
	"looks_think":            KindThink,
	"motion_movesteps":       KindMoveSteps,
	"motion_gotoxy":          KindGoToXY,
	"motion_turnright":       KindTurnRight,
	"motion_turnleft":        KindTurnLeft,
	"motion_changexby":       KindChangeX,
	"motion_changeyby":       KindChangeY,
	"event_broadcast":        KindBroadcast,
}

func (g *IRGenerator) lowerKnownStatement(n *KnownNode) (*IRNode, error) {
	shape, ok := builtinOps[n.Opcode]
	if !ok || !shape.stacked {
		return nil, unknownOpcode(n.BlockID, n.Opcode)
	}
	ins, err := g.inputs(n, shape.inputs...)
	if err != nil {
		return nil, err
	}
	ir := &IRNode{
		BlockID: n.BlockID,
		Inputs:  ins,
		Fields:  fieldValues(n.Fields),
	}

	if kind, ok := statementKinds[n.Opcode]; ok {
		ir.Kind = kind
		switch kind {
		case KindVarSet, KindVarChange:
			ir.Ref = refOf(n, "VARIABLE")
		case KindListAdd, KindListDelete, KindListDeleteAll, KindListInsert, KindListReplace:
			ir.Ref = refOf(n, "LIST")
		}
		return ir, nil
	}

	branch := func(name string) (IRStack, error) {
		return g.LowerStack(n.Branches[name])
	}

	switch n.Opcode {
	case "control_if", "control_if_else":
		then, err := branch("SUBSTACK")
		if err != nil {
			return nil, err
		}
		els := IRStack{}
		if n.Opcode == "control_if_else" {
			if els, err = branch("SUBSTACK2"); err != nil {
				return nil, err
			}
		}
		ir.Kind = KindIf
		ir.Branches = map[string]IRStack{BranchThen: then, BranchElse: els}
		ir.BranchOrder = []string{BranchThen, BranchElse}

	case "control_repeat", "control_repeat_until", "control_while", "control_forever":
		body, err := branch("SUBSTACK")
		if err != nil {
			return nil, err
		}
		ir.Kind = KindLoop
		ir.Branches = map[string]IRStack{BranchBody: body}
		ir.BranchOrder = []string{BranchBody}
		ir.Inputs = map[string]*IRNode{}
		switch n.Opcode {
		case "control_repeat":
			ir.Inputs["TIMES"] = ins["TIMES"]
			ir.Inputs["CONDITION"] = Constant(n.BlockID, true)
		case "control_repeat_until":
			ir.Inputs["CONDITION"] = &IRNode{
				Kind:      KindNot,
				BlockID:   n.BlockID,
				ValueKind: ValueBoolean,
				Inputs:    map[string]*IRNode{"OPERAND": ins["CONDITION"]},
			}
		case "control_while":
			ir.Inputs["CONDITION"] = ins["CONDITION"]
		case "control_forever":
			ir.Inputs["CONDITION"] = Constant(n.BlockID, true)
		}

	case "control_for_each":
		body, err := branch("SUBSTACK")
		if err != nil {
			return nil, err
		}
		ir.Kind = KindFor
		ir.Ref = refOf(n, "VARIABLE")
		ir.Branches = map[string]IRStack{BranchBody: body}
		ir.BranchOrder = []string{BranchBody}

	default:
		return nil, unknownOpcode(n.BlockID, n.Opcode)
	}
	return ir, nil
}

// irLowerExtension is the built-in lowerExtension: a generic node of the
// extension's kind with inputs and branches lowered and the payload kept.
func irLowerExtension(g *IRGenerator, n *ExtensionNode) (*IRNode, error) {
	ir := &IRNode{
		Kind:      n.Kind,
		BlockID:   n.BlockID,
		ValueKind: ValueUnknown,
		Inputs:    make(map[string]*IRNode, len(n.Inputs)),
		Fields:    fieldValues(n.Fields),
		Ext:       n.Payload,
	}
	if n.Stacked {
		ir.ValueKind = ValueNone
	}
	for name, child := range n.Inputs {
		in, err := g.LowerInput(child)
		if err != nil {
			return nil, err
		}
		ir.Inputs[name] = in
	}
	if len(n.Branches) > 0 {
		branches, err := g.LowerBranches(n)
		if err != nil {
			return nil, err
		}
		ir.Branches = branches
		ir.BranchOrder = sortedNames(branches)
	}
	return ir, nil
}
