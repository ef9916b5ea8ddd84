package compiler

import (
	"fmt"
	"math"

	"github.com/chazu/blockjit/cast"
)

// ---------------------------------------------------------------------------
// Built-in expressions
// ---------------------------------------------------------------------------

// jsDescendInput is the built-in descendInput of the JS generator.
func jsDescendInput(u *Unit, n *IRNode) (TypedInput, error) {
	if n.Kind == KindConstant {
		return ConstantOf(n.Value), nil
	}

	args, err := u.descendInputs(n)
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case KindVarGet:
		return u.Dynamic(u.VariableRef(n.Ref)+".value", ValueUnknown), nil
	case KindListContents:
		return u.Dynamic(fmt.Sprintf("%s(%s.value)", u.UseHelper("listContents"), u.ListRef(n.Ref)), ValueString), nil
	case KindListItem:
		return u.Dynamic(fmt.Sprintf("%s(%s.value, %s)", u.UseHelper("listGet"), u.ListRef(n.Ref), args["INDEX"].AsUnknown()), ValueUnknown), nil
	case KindListLength:
		return u.Dynamic(u.ListRef(n.Ref)+".value.length", ValueNumber), nil
	case KindListContains:
		return u.Dynamic(fmt.Sprintf("%s(%s.value, %s)", u.UseHelper("listContains"), u.ListRef(n.Ref), args["ITEM"].AsUnknown()), ValueBoolean), nil

	case KindAdd, KindSubtract, KindMultiply, KindDivide:
		return u.arith(n.Kind, args["NUM1"], args["NUM2"]), nil
	case KindMod:
		a, b := args["NUM1"], args["NUM2"]
		if ca, cb, ok := constants(a, b); ok {
			return ConstantOf(cast.Mod(ca.Number(), cb.Number())), nil
		}
		return u.DynamicNaN(fmt.Sprintf("%s(%s, %s)", u.UseHelper("castMod"), a.AsNumber(), b.AsNumber())), nil
	case KindRound:
		a := args["NUM"]
		if c, ok := a.(*ConstantInput); ok {
			return ConstantOf(cast.Round(c.Number())), nil
		}
		return u.Dynamic("Math.round("+a.AsNumber()+")", ValueNumber), nil
	case KindMathop:
		return u.mathop(n.Fields["OPERATOR"], args["NUM"]), nil
	case KindRandom:
		return u.Dynamic(fmt.Sprintf("%s(%s, %s)", u.UseHelper("randomBetween"), args["FROM"].AsUnknown(), args["TO"].AsUnknown()), ValueNumber), nil

	case KindLess, KindGreater, KindEquals:
		return u.compare(n.Kind, args["OPERAND1"], args["OPERAND2"]), nil
	case KindAnd, KindOr:
		a, b := args["OPERAND1"], args["OPERAND2"]
		if ca, cb, ok := constants(a, b); ok {
			x, y := cast.ToBoolean(ca.Value), cast.ToBoolean(cb.Value)
			if n.Kind == KindAnd {
				return ConstantOf(x && y), nil
			}
			return ConstantOf(x || y), nil
		}
		op := "&&"
		if n.Kind == KindOr {
			op = "||"
		}
		return u.Dynamic(fmt.Sprintf("(%s %s %s)", a.AsBoolean(), op, b.AsBoolean()), ValueBoolean), nil
	case KindNot:
		a := args["OPERAND"]
		if c, ok := a.(*ConstantInput); ok {
			return ConstantOf(!cast.ToBoolean(c.Value)), nil
		}
		return u.Dynamic("!("+a.AsBoolean()+")", ValueBoolean), nil

	case KindJoin:
		a, b := args["STRING1"], args["STRING2"]
		if ca, cb, ok := constants(a, b); ok {
			return ConstantOf(cast.ToString(ca.Value) + cast.ToString(cb.Value)), nil
		}
		return u.Dynamic(fmt.Sprintf("(%s + %s)", a.AsString(), b.AsString()), ValueString), nil
	case KindLetterOf:
		idx, s := args["LETTER"], args["STRING"]
		if ci, cs, ok := constants(idx, s); ok {
			return ConstantOf(cast.LetterOf(cast.ToString(cs.Value), ci.Number())), nil
		}
		return u.Dynamic(fmt.Sprintf("%s(%s, %s)", u.UseHelper("letterOf"), s.AsString(), idx.AsNumber()), ValueString), nil
	case KindLength:
		s := args["STRING"]
		if c, ok := s.(*ConstantInput); ok {
			return ConstantOf(float64(cast.Length(cast.ToString(c.Value)))), nil
		}
		return u.Dynamic("("+s.AsString()+").length", ValueNumber), nil
	case KindContains:
		a, b := args["STRING1"], args["STRING2"]
		if ca, cb, ok := constants(a, b); ok {
			return ConstantOf(cast.Contains(cast.ToString(ca.Value), cast.ToString(cb.Value))), nil
		}
		return u.Dynamic(fmt.Sprintf("%s(%s, %s)", u.UseHelper("castContains"), a.AsString(), b.AsString()), ValueBoolean), nil

	case KindXPosition:
		return u.Dynamic("target.x", ValueNumber), nil
	case KindYPosition:
		return u.Dynamic("target.y", ValueNumber), nil
	case KindDirection:
		return u.Dynamic("target.direction", ValueNumber), nil
	case KindTimer:
		return u.Dynamic("runtime.timer()", ValueNumber), nil
	}
	return nil, unknownOpcode(n.BlockID, n.Kind)
}

// descendInputs descends every input of n.
func (u *Unit) descendInputs(n *IRNode) (map[string]TypedInput, error) {
	out := make(map[string]TypedInput, len(n.Inputs))
	for _, name := range sortedNames(n.Inputs) {
		in, err := u.DescendInput(n.Inputs[name])
		if err != nil {
			return nil, err
		}
		out[name] = in
	}
	return out, nil
}

// DescendInputs descends the named inputs of n in order. Missing inputs
// are the empty string.
func (u *Unit) DescendInputs(n *IRNode, names ...string) ([]TypedInput, error) {
	out := make([]TypedInput, len(names))
	for i, name := range names {
		in, err := u.DescendInput(n.Input(name))
		if err != nil {
			return nil, err
		}
		out[i] = in
	}
	return out, nil
}

func constants(a, b TypedInput) (*ConstantInput, *ConstantInput, bool) {
	ca, ok1 := a.(*ConstantInput)
	cb, ok2 := b.(*ConstantInput)
	return ca, cb, ok1 && ok2
}

func (u *Unit) arith(kind string, a, b TypedInput) TypedInput {
	if ca, cb, ok := constants(a, b); ok {
		x, y := ca.Number(), cb.Number()
		switch kind {
		case KindAdd:
			return ConstantOf(x + y)
		case KindSubtract:
			return ConstantOf(x - y)
		case KindMultiply:
			return ConstantOf(x * y)
		default:
			return ConstantOf(x / y)
		}
	}
	op := map[string]string{KindAdd: "+", KindSubtract: "-", KindMultiply: "*", KindDivide: "/"}[kind]
	return u.DynamicNaN(fmt.Sprintf("(%s %s %s)", a.AsNumber(), op, b.AsNumber()))
}

func (u *Unit) compare(kind string, a, b TypedInput) TypedInput {
	if ca, cb, ok := constants(a, b); ok {
		c := cast.Compare(ca.Value, cb.Value)
		switch kind {
		case KindLess:
			return ConstantOf(c < 0)
		case KindGreater:
			return ConstantOf(c > 0)
		default:
			return ConstantOf(c == 0)
		}
	}
	if safeNumber(a) && safeNumber(b) {
		op := map[string]string{KindLess: "<", KindGreater: ">", KindEquals: "==="}[kind]
		return u.Dynamic(fmt.Sprintf("(%s %s %s)", a.AsNumber(), op, b.AsNumber()), ValueBoolean)
	}
	op := map[string]string{KindLess: "< 0", KindGreater: "> 0", KindEquals: "=== 0"}[kind]
	return u.Dynamic(fmt.Sprintf("(%s(%s, %s) %s)", u.UseHelper("castCompare"), a.AsUnknown(), b.AsUnknown(), op), ValueBoolean)
}

func (u *Unit) mathop(op string, a TypedInput) TypedInput {
	if c, ok := a.(*ConstantInput); ok {
		return ConstantOf(cast.Mathop(op, c.Number()))
	}
	x := a.AsNumber()
	switch op {
	case "abs":
		return u.Dynamic("Math.abs("+x+")", ValueNumber)
	case "floor":
		return u.Dynamic("Math.floor("+x+")", ValueNumber)
	case "ceiling":
		return u.Dynamic("Math.ceil("+x+")", ValueNumber)
	case "sqrt":
		return u.DynamicNaN("Math.sqrt(" + x + ")")
	case "sin":
		return u.DynamicNaN(u.UseHelper("mathSin") + "(" + x + ")")
	case "cos":
		return u.DynamicNaN(u.UseHelper("mathCos") + "(" + x + ")")
	case "tan":
		return u.DynamicNaN(u.UseHelper("mathTan") + "(" + x + ")")
	case "asin":
		return u.DynamicNaN("(Math.asin(" + x + ") * 180 / Math.PI)")
	case "acos":
		return u.DynamicNaN("(Math.acos(" + x + ") * 180 / Math.PI)")
	case "atan":
		return u.Dynamic("(Math.atan("+x+") * 180 / Math.PI)", ValueNumber)
	case "ln":
		return u.DynamicNaN("Math.log(" + x + ")")
	case "log":
		return u.DynamicNaN("(Math.log(" + x + ") / Math.LN10)")
	case "e ^":
		return u.Dynamic("Math.exp("+x+")", ValueNumber)
	case "10 ^":
		return u.Dynamic("Math.pow(10, "+x+")", ValueNumber)
	}
	return ConstantOf(0.0)
}

// ---------------------------------------------------------------------------
// Built-in statements
// ---------------------------------------------------------------------------

// jsDescendStackedBlock is the built-in descendStackedBlock of the JS
// generator.
func jsDescendStackedBlock(u *Unit, n *IRNode) error {
	switch n.Kind {
	case KindIf:
		return u.emitIf(n)
	case KindLoop:
		return u.emitLoop(n)
	case KindFor:
		return u.emitFor(n)
	case KindSelect:
		return u.emitSelect(n)
	case KindStop:
		return u.emitStop(n)
	}

	args, err := u.descendInputs(n)
	if err != nil {
		return err
	}

	switch n.Kind {
	case KindWait:
		if err := u.Writef("runtime.wait(%s);", args["DURATION"].AsNumber()); err != nil {
			return err
		}
		return u.Yield()

	case KindVarSet:
		return u.Writef("%s.value = %s;", u.VariableRef(n.Ref), args["VALUE"].AsUnknown())
	case KindVarChange:
		v := u.VariableRef(n.Ref)
		return u.Writef("%s.value = (%s(%s.value) + %s);", v, u.UseHelper("castNumber"), v, args["VALUE"].AsNumber())

	case KindListAdd:
		return u.Writef("%s(%s.value, %s);", u.UseHelper("listAdd"), u.ListRef(n.Ref), args["ITEM"].AsUnknown())
	case KindListDelete:
		return u.Writef("%s(%s.value, %s);", u.UseHelper("listDelete"), u.ListRef(n.Ref), args["INDEX"].AsUnknown())
	case KindListDeleteAll:
		return u.Writef("%s.value.length = 0;", u.ListRef(n.Ref))
	case KindListInsert:
		return u.Writef("%s(%s.value, %s, %s);", u.UseHelper("listInsert"), u.ListRef(n.Ref), args["INDEX"].AsUnknown(), args["ITEM"].AsUnknown())
	case KindListReplace:
		return u.Writef("%s(%s.value, %s, %s);", u.UseHelper("listReplace"), u.ListRef(n.Ref), args["INDEX"].AsUnknown(), args["ITEM"].AsUnknown())

	case KindSay:
		return u.Writef("target.say(%s);", args["MESSAGE"].AsString())
	case KindThink:
		return u.Writef("target.think(%s);", args["MESSAGE"].AsString())
	case KindMoveSteps:
		return u.Writef("target.moveSteps(%s);", args["STEPS"].AsNumber())
	case KindGoToXY:
		return u.Writef("target.setXY(%s, %s);", args["X"].AsNumber(), args["Y"].AsNumber())
	case KindTurnRight:
		return u.Writef("target.turn(%s);", args["DEGREES"].AsNumber())
	case KindTurnLeft:
		return u.Writef("target.turn(%s);", negate(args["DEGREES"]))
	case KindChangeX:
		return u.Writef("target.changeX(%s);", args["DX"].AsNumber())
	case KindChangeY:
		return u.Writef("target.changeY(%s);", args["DY"].AsNumber())
	case KindBroadcast:
		return u.Writef("runtime.broadcast(%s);", args["BROADCAST_INPUT"].AsString())
	}
	return unknownOpcode(n.BlockID, n.Kind)
}

func negate(in TypedInput) string {
	if c, ok := in.(*ConstantInput); ok {
		return jsNumber(-c.Number())
	}
	return "-(" + in.AsNumber() + ")"
}

// indented runs fn one level deeper.
func (u *Unit) indented(fn func() error) error {
	u.indent++
	defer func() { u.indent-- }()
	return fn()
}

// branchBody emits a branch inside its own frame.
func (u *Unit) branchBody(n *IRNode, name string, f *Frame) func() error {
	return func() error {
		return u.indented(func() error {
			return u.WithFrame(f, func() error {
				return u.DescendStack(n.Branch(name))
			})
		})
	}
}

func (u *Unit) emitIf(n *IRNode) error {
	cond, err := u.DescendInput(n.Input("CONDITION"))
	if err != nil {
		return err
	}
	if err := u.Writef("if (%s) {", cond.AsBoolean()); err != nil {
		return err
	}
	if err := u.branchBody(n, BranchThen, &Frame{})(); err != nil {
		return err
	}
	if err := u.Writef("} else {"); err != nil {
		return err
	}
	if err := u.branchBody(n, BranchElse, &Frame{})(); err != nil {
		return err
	}
	return u.Writef("}")
}

func (u *Unit) emitLoop(n *IRNode) error {
	body := func() error {
		return u.WithFrame(&Frame{IsLoop: true}, func() error {
			if err := u.DescendStack(n.Branch(BranchBody)); err != nil {
				return err
			}
			return u.Yield()
		})
	}

	cond, err := u.DescendInput(n.Input("CONDITION"))
	if err != nil {
		return err
	}
	times := n.Input("TIMES")
	if times == nil {
		return u.WriteBlock("while ("+cond.AsBoolean()+")", body)
	}

	count, err := u.DescendInput(times)
	if err != nil {
		return err
	}
	var init string
	if c, ok := count.(*ConstantInput); ok {
		init = jsNumber(cast.Round(c.Number()))
	} else {
		init = "Math.round(" + count.AsNumber() + ")"
	}
	t := u.NewTemp()
	test := t + " >= 1"
	if c, ok := cond.(*ConstantInput); !ok || !cast.ToBoolean(c.Value) {
		test += " && " + cond.AsBoolean()
	}
	return u.WriteBlock(fmt.Sprintf("for (%s = %s; %s; %s--)", t, init, test, t), body)
}

func (u *Unit) emitFor(n *IRNode) error {
	limit, err := u.DescendInput(n.Input("VALUE"))
	if err != nil {
		return err
	}
	v := u.VariableRef(n.Ref)
	t := u.NewTemp()
	if err := u.Writef("%s = 0;", t); err != nil {
		return err
	}
	return u.WriteBlock(fmt.Sprintf("while (%s < %s)", t, limit.AsNumber()), func() error {
		if err := u.Writef("%s++;", t); err != nil {
			return err
		}
		if err := u.Writef("%s.value = %s;", v, t); err != nil {
			return err
		}
		return u.WithFrame(&Frame{IsLoop: true}, func() error {
			if err := u.DescendStack(n.Branch(BranchBody)); err != nil {
				return err
			}
			return u.Yield()
		})
	})
}

func (u *Unit) emitSelect(n *IRNode) error {
	sel, err := u.DescendInput(n.Input("SELECTOR"))
	if err != nil {
		return err
	}
	if c, ok := sel.(*ConstantInput); ok {
		i := c.Number()
		if i != math.Trunc(i) || i < 1 || i > float64(len(n.BranchOrder)) {
			return nil
		}
		if err := u.Writef("{"); err != nil {
			return err
		}
		if err := u.branchBody(n, n.BranchOrder[int(i)-1], &Frame{})(); err != nil {
			return err
		}
		return u.Writef("}")
	}
	if len(n.BranchOrder) == 0 {
		return u.Writef("%s;", sel.AsUnknown())
	}

	t := u.NewTemp()
	if err := u.Writef("%s = %s;", t, sel.AsNumber()); err != nil {
		return err
	}
	for i, name := range n.BranchOrder {
		header := fmt.Sprintf("if (%s === %d) {", t, i+1)
		if i > 0 {
			header = "} else " + header
		}
		if err := u.Writef("%s", header); err != nil {
			return err
		}
		if err := u.branchBody(n, name, &Frame{})(); err != nil {
			return err
		}
	}
	return u.Writef("}")
}

func (u *Unit) emitStop(n *IRNode) error {
	switch n.Fields["STOP_OPTION"] {
	case "all":
		if err := u.Writef("runtime.stopAll();"); err != nil {
			return err
		}
		return u.Writef("return;")
	case "other scripts in sprite", "other scripts in stage":
		return u.Writef("runtime.stopOtherScripts();")
	default:
		return u.Writef("return;")
	}
}
