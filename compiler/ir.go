package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/blockjit/block"
)

// ---------------------------------------------------------------------------
// IR
// ---------------------------------------------------------------------------

// ValueKind is the type an IR expression yields. Statements are ValueNone.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueNumber
	ValueString
	ValueBoolean
	ValueUnknown
)

func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueBoolean:
		return "boolean"
	case ValueUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// IR node kinds. Extension kinds use "<extensionId>.<operation>".
const (
	KindConstant = "constant"

	KindVarGet    = "var.get"
	KindVarSet    = "var.set"
	KindVarChange = "var.change"

	KindListContents  = "list.contents"
	KindListAdd       = "list.add"
	KindListDelete    = "list.delete"
	KindListDeleteAll = "list.deleteAll"
	KindListInsert    = "list.insert"
	KindListReplace   = "list.replace"
	KindListItem      = "list.item"
	KindListLength    = "list.length"
	KindListContains  = "list.contains"

	KindAdd      = "op.add"
	KindSubtract = "op.subtract"
	KindMultiply = "op.multiply"
	KindDivide   = "op.divide"
	KindMod      = "op.mod"
	KindRound    = "op.round"
	KindMathop   = "op.mathop"
	KindRandom   = "op.random"
	KindLess     = "op.lt"
	KindGreater  = "op.gt"
	KindEquals   = "op.equals"
	KindAnd      = "op.and"
	KindOr       = "op.or"
	KindNot      = "op.not"
	KindJoin     = "op.join"
	KindLetterOf = "op.letterOf"
	KindLength   = "op.length"
	KindContains = "op.contains"

	KindIf     = "control.if"
	KindLoop   = "control.loop"
	KindFor    = "control.for"
	KindStop   = "control.stop"
	KindWait   = "control.wait"
	KindSelect = "control.select"

	KindSay       = "looks.say"
	KindThink     = "looks.think"
	KindMoveSteps = "motion.moveSteps"
	KindGoToXY    = "motion.goToXY"
	KindTurnRight = "motion.turnRight"
	KindTurnLeft  = "motion.turnLeft"
	KindChangeX   = "motion.changeX"
	KindChangeY   = "motion.changeY"
	KindXPosition = "motion.x"
	KindYPosition = "motion.y"
	KindDirection = "motion.direction"
	KindBroadcast = "event.broadcast"
	KindTimer     = "sensing.timer"
)

// Branch names used by the normalized control shapes.
const (
	BranchThen = "THEN"
	BranchElse = "ELSE"
	BranchBody = "BODY"
)

// Ref names a variable or list.
type Ref struct {
	ID   string
	Name string
}

// IRStack is an ordered statement list. Declared branches are never nil.
type IRStack []*IRNode

// IRNode is one IR operation.
type IRNode struct {
	Kind      string
	BlockID   string
	ValueKind ValueKind
	Inputs    map[string]*IRNode
	Fields    map[string]string
	Branches  map[string]IRStack
	// BranchOrder lists branch names in their meaningful order; for
	// control.select it is the 1-based selection order.
	BranchOrder []string
	Ref         *Ref
	Value       interface{} // KindConstant only
	Ext         interface{} // extension payload
}

// IsStatement reports whether n yields no value.
func (n *IRNode) IsStatement() bool { return n.ValueKind == ValueNone }

// Input returns a named input or nil.
func (n *IRNode) Input(name string) *IRNode {
	if n.Inputs == nil {
		return nil
	}
	return n.Inputs[name]
}

// Branch returns a named branch; a missing branch is empty.
func (n *IRNode) Branch(name string) IRStack {
	if s, ok := n.Branches[name]; ok {
		return s
	}
	return IRStack{}
}

// IRScript is a lowered script.
type IRScript struct {
	ID        string
	Target    string
	Hat       string
	HatFields map[string]string
	Body      IRStack
}

// Constant returns a constant IR node.
func Constant(blockID string, v interface{}) *IRNode {
	v = literalValue(v)
	return &IRNode{Kind: KindConstant, BlockID: blockID, ValueKind: literalKind(v), Value: v}
}

func literalKind(v interface{}) ValueKind {
	switch v.(type) {
	case float64:
		return ValueNumber
	case bool:
		return ValueBoolean
	case string:
		return ValueString
	default:
		return ValueUnknown
	}
}

// SelectBranch builds the canonical custom control shape: selector is
// evaluated once and, read as a number, picks the branch at that 1-based
// position of order. Any other value runs no branch. Extensions lower both
// "return a branch number" and "start branch N" blocks to this shape.
func SelectBranch(blockID string, selector *IRNode, branches map[string]IRStack, order []string) *IRNode {
	n := &IRNode{
		Kind:        KindSelect,
		BlockID:     blockID,
		ValueKind:   ValueNone,
		Inputs:      map[string]*IRNode{"SELECTOR": selector},
		Branches:    make(map[string]IRStack, len(order)),
		BranchOrder: append([]string(nil), order...),
	}
	for _, name := range order {
		s := branches[name]
		if s == nil {
			s = IRStack{}
		}
		n.Branches[name] = s
	}
	return n
}

func fieldValues(fields map[string]*block.Field) map[string]string {
	out := make(map[string]string, len(fields))
	for k, f := range fields {
		out[k] = f.Value
	}
	return out
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
