package vm

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/blockjit/cast"
	"github.com/chazu/blockjit/compiler"
)

// Frame is an interpreter control frame. Extensions keep per-block state
// in Data, such as the value a switch compares its cases against.
type Frame struct {
	Data map[string]interface{}
}

// Break unwinds to Frame. The primitive that pushed Frame catches it.
type Break struct {
	Frame *Frame
}

func (*Break) Error() string { return "break outside its frame" }

// Thread is the state of one run. It is not safe for concurrent use.
type Thread struct {
	m        *Machine
	ctx      context.Context
	store    *store
	scriptID string
	frames   []*Frame
	yields   int
	steps    int
}

// Host returns the host the thread drives.
func (th *Thread) Host() Host { return th.m.host }

// WithFrame pushes f for the duration of fn.
func (th *Thread) WithFrame(f *Frame, fn func() error) error {
	th.frames = append(th.frames, f)
	defer func() {
		th.frames[len(th.frames)-1] = nil
		th.frames = th.frames[:len(th.frames)-1]
	}()
	return fn()
}

// FindFrame returns the innermost frame matching pred, or nil.
func (th *Thread) FindFrame(pred func(*Frame) bool) *Frame {
	for i := len(th.frames) - 1; i >= 0; i-- {
		if pred(th.frames[i]) {
			return th.frames[i]
		}
	}
	return nil
}

// Yield marks the end of a loop iteration or a wait. It counts toward
// the step limit and checks for cancellation.
func (th *Thread) Yield() error {
	th.steps++
	if !th.m.opts.Warp {
		th.yields++
	}
	if th.steps > th.m.opts.MaxSteps {
		return ErrStepLimit
	}
	if th.ctx != nil {
		return th.ctx.Err()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// EvalNumber evaluates n and reads it as a number.
func (th *Thread) EvalNumber(n *compiler.IRNode) (float64, error) {
	v, err := th.Eval(n)
	if err != nil {
		return 0, err
	}
	return cast.ToNumber(v), nil
}

// EvalString evaluates n and reads it as a string.
func (th *Thread) EvalString(n *compiler.IRNode) (string, error) {
	v, err := th.Eval(n)
	if err != nil {
		return "", err
	}
	return cast.ToString(v), nil
}

// EvalBoolean evaluates n and reads it as a boolean.
func (th *Thread) EvalBoolean(n *compiler.IRNode) (bool, error) {
	v, err := th.Eval(n)
	if err != nil {
		return false, err
	}
	return cast.ToBoolean(v), nil
}

// evalAll evaluates inputs in the order given, which is the order the
// generated expression evaluates them in.
func (th *Thread) evalAll(n *compiler.IRNode, names ...string) ([]interface{}, error) {
	out := make([]interface{}, len(names))
	for i, name := range names {
		v, err := th.Eval(n.Input(name))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Eval evaluates an expression node. A nil node is the empty string.
func (th *Thread) Eval(n *compiler.IRNode) (interface{}, error) {
	if n == nil {
		return "", nil
	}
	host := th.m.host

	switch n.Kind {
	case compiler.KindConstant:
		return n.Value, nil

	case compiler.KindVarGet:
		return th.store.variable(n.Ref).Value, nil
	case compiler.KindListContents:
		return cast.ListContents(th.store.list(n.Ref).Value), nil
	case compiler.KindListItem:
		l := th.store.list(n.Ref)
		idx, err := th.Eval(n.Input("INDEX"))
		if err != nil {
			return nil, err
		}
		i := cast.ResolveListIndex(idx, len(l.Value), false, host.Random)
		if i <= 0 {
			return "", nil
		}
		return l.Value[i-1], nil
	case compiler.KindListLength:
		return float64(len(th.store.list(n.Ref).Value)), nil
	case compiler.KindListContains:
		l := th.store.list(n.Ref)
		item, err := th.Eval(n.Input("ITEM"))
		if err != nil {
			return nil, err
		}
		return cast.ListContains(l.Value, item), nil

	case compiler.KindAdd, compiler.KindSubtract, compiler.KindMultiply, compiler.KindDivide, compiler.KindMod:
		args, err := th.evalAll(n, "NUM1", "NUM2")
		if err != nil {
			return nil, err
		}
		return arith(n.Kind, cast.ToNumber(args[0]), cast.ToNumber(args[1])), nil
	case compiler.KindRound:
		x, err := th.EvalNumber(n.Input("NUM"))
		if err != nil {
			return nil, err
		}
		return cast.Round(x), nil
	case compiler.KindMathop:
		x, err := th.EvalNumber(n.Input("NUM"))
		if err != nil {
			return nil, err
		}
		return cast.Mathop(n.Fields["OPERATOR"], x), nil
	case compiler.KindRandom:
		args, err := th.evalAll(n, "FROM", "TO")
		if err != nil {
			return nil, err
		}
		return random(args[0], args[1], host.Random), nil

	case compiler.KindLess, compiler.KindGreater, compiler.KindEquals:
		args, err := th.evalAll(n, "OPERAND1", "OPERAND2")
		if err != nil {
			return nil, err
		}
		c := cast.Compare(args[0], args[1])
		switch n.Kind {
		case compiler.KindLess:
			return c < 0, nil
		case compiler.KindGreater:
			return c > 0, nil
		}
		return c == 0, nil
	case compiler.KindAnd, compiler.KindOr:
		a, err := th.EvalBoolean(n.Input("OPERAND1"))
		if err != nil {
			return nil, err
		}
		// Short-circuit like the generated && and ||.
		if a == (n.Kind == compiler.KindOr) {
			return a, nil
		}
		return th.EvalBoolean(n.Input("OPERAND2"))
	case compiler.KindNot:
		a, err := th.EvalBoolean(n.Input("OPERAND"))
		if err != nil {
			return nil, err
		}
		return !a, nil

	case compiler.KindJoin:
		args, err := th.evalAll(n, "STRING1", "STRING2")
		if err != nil {
			return nil, err
		}
		return cast.ToString(args[0]) + cast.ToString(args[1]), nil
	case compiler.KindLetterOf:
		// letterOf(string, index): the string is evaluated first.
		args, err := th.evalAll(n, "STRING", "LETTER")
		if err != nil {
			return nil, err
		}
		return cast.LetterOf(cast.ToString(args[0]), cast.ToNumber(args[1])), nil
	case compiler.KindLength:
		s, err := th.EvalString(n.Input("STRING"))
		if err != nil {
			return nil, err
		}
		return float64(cast.Length(s)), nil
	case compiler.KindContains:
		args, err := th.evalAll(n, "STRING1", "STRING2")
		if err != nil {
			return nil, err
		}
		return cast.Contains(cast.ToString(args[0]), cast.ToString(args[1])), nil

	case compiler.KindXPosition:
		return host.X(), nil
	case compiler.KindYPosition:
		return host.Y(), nil
	case compiler.KindDirection:
		return host.Direction(), nil
	case compiler.KindTimer:
		return host.Timer(), nil
	}

	if p, ok := th.m.prims[n.Kind]; ok {
		return p(th, n)
	}
	return nil, fmt.Errorf("%w %q at block %s", ErrUnknownKind, n.Kind, n.BlockID)
}

func arith(kind string, x, y float64) float64 {
	switch kind {
	case compiler.KindAdd:
		return x + y
	case compiler.KindSubtract:
		return x - y
	case compiler.KindMultiply:
		return x * y
	case compiler.KindDivide:
		return x / y
	default:
		return cast.Mod(x, y)
	}
}

// random draws from rnd only when the bounds differ, matching the
// generated helper, so both paths stay on the same random stream.
func random(from, to interface{}, rnd func() float64) float64 {
	lo, hi := cast.ToNumber(from), cast.ToNumber(to)
	if lo == hi {
		return lo
	}
	return cast.Random(from, to, rnd())
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ExecStack runs statements in order.
func (th *Thread) ExecStack(s compiler.IRStack) error {
	for _, n := range s {
		if err := th.Exec(n); err != nil {
			return err
		}
	}
	return nil
}

// Exec runs one statement node.
func (th *Thread) Exec(n *compiler.IRNode) error {
	if p := th.m.opts.Profiler; p != nil {
		p.RecordBlockExec(CodeRef{Target: th.m.target.Name, ID: n.BlockID}, th.scriptID)
	}
	host := th.m.host

	switch n.Kind {
	case compiler.KindIf:
		c, err := th.EvalBoolean(n.Input("CONDITION"))
		if err != nil {
			return err
		}
		if c {
			return th.ExecStack(n.Branch(compiler.BranchThen))
		}
		return th.ExecStack(n.Branch(compiler.BranchElse))
	case compiler.KindLoop:
		return th.execLoop(n)
	case compiler.KindFor:
		return th.execFor(n)
	case compiler.KindSelect:
		return th.execSelect(n)
	case compiler.KindStop:
		switch n.Fields["STOP_OPTION"] {
		case "all":
			host.StopAll()
			return &stopSignal{}
		case "other scripts in sprite", "other scripts in stage":
			host.StopOtherScripts()
			return nil
		}
		return &stopSignal{}
	case compiler.KindWait:
		d, err := th.EvalNumber(n.Input("DURATION"))
		if err != nil {
			return err
		}
		host.Wait(d)
		return th.Yield()

	case compiler.KindVarSet:
		v := th.store.variable(n.Ref)
		val, err := th.Eval(n.Input("VALUE"))
		if err != nil {
			return err
		}
		v.Value = val
		return nil
	case compiler.KindVarChange:
		v := th.store.variable(n.Ref)
		old := cast.ToNumber(v.Value)
		d, err := th.EvalNumber(n.Input("VALUE"))
		if err != nil {
			return err
		}
		v.Value = old + d
		return nil

	case compiler.KindListAdd, compiler.KindListDelete, compiler.KindListDeleteAll, compiler.KindListInsert, compiler.KindListReplace:
		return th.execList(n)

	case compiler.KindSay, compiler.KindThink:
		s, err := th.EvalString(n.Input("MESSAGE"))
		if err != nil {
			return err
		}
		if n.Kind == compiler.KindSay {
			host.Say(s)
		} else {
			host.Think(s)
		}
		return nil
	case compiler.KindMoveSteps:
		return th.hostNumber(n, "STEPS", host.MoveSteps)
	case compiler.KindTurnRight:
		return th.hostNumber(n, "DEGREES", host.Turn)
	case compiler.KindTurnLeft:
		return th.hostNumber(n, "DEGREES", func(d float64) { host.Turn(-d) })
	case compiler.KindChangeX:
		return th.hostNumber(n, "DX", host.ChangeX)
	case compiler.KindChangeY:
		return th.hostNumber(n, "DY", host.ChangeY)
	case compiler.KindGoToXY:
		x, err := th.EvalNumber(n.Input("X"))
		if err != nil {
			return err
		}
		y, err := th.EvalNumber(n.Input("Y"))
		if err != nil {
			return err
		}
		host.SetXY(x, y)
		return nil
	case compiler.KindBroadcast:
		s, err := th.EvalString(n.Input("BROADCAST_INPUT"))
		if err != nil {
			return err
		}
		host.Broadcast(s)
		return nil
	}

	if p, ok := th.m.prims[n.Kind]; ok {
		_, err := p(th, n)
		return err
	}
	return fmt.Errorf("%w %q at block %s", ErrUnknownKind, n.Kind, n.BlockID)
}

func (th *Thread) hostNumber(n *compiler.IRNode, input string, fn func(float64)) error {
	x, err := th.EvalNumber(n.Input(input))
	if err != nil {
		return err
	}
	fn(x)
	return nil
}

// execLoop follows the generated loop: the condition is tested before
// each iteration, and a counted loop reads its count once and tests the
// counter before the condition.
func (th *Thread) execLoop(n *compiler.IRNode) error {
	body := n.Branch(compiler.BranchBody)
	cond := n.Input("CONDITION")
	iterate := func() error {
		if err := th.ExecStack(body); err != nil {
			return err
		}
		return th.Yield()
	}

	times := n.Input("TIMES")
	if times == nil {
		for {
			ok, err := th.EvalBoolean(cond)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := iterate(); err != nil {
				return err
			}
		}
	}

	count, err := th.EvalNumber(times)
	if err != nil {
		return err
	}
	for t := cast.Round(count); t >= 1; t-- {
		ok, err := th.EvalBoolean(cond)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := iterate(); err != nil {
			return err
		}
	}
	return nil
}

func (th *Thread) execFor(n *compiler.IRNode) error {
	v := th.store.variable(n.Ref)
	for t := 0.0; ; {
		limit, err := th.EvalNumber(n.Input("VALUE"))
		if err != nil {
			return err
		}
		if !(t < limit) {
			return nil
		}
		t++
		v.Value = t
		if err := th.ExecStack(n.Branch(compiler.BranchBody)); err != nil {
			return err
		}
		if err := th.Yield(); err != nil {
			return err
		}
	}
}

func (th *Thread) execSelect(n *compiler.IRNode) error {
	i, err := th.EvalNumber(n.Input("SELECTOR"))
	if err != nil {
		return err
	}
	if i != math.Trunc(i) || i < 1 || i > float64(len(n.BranchOrder)) {
		return nil
	}
	return th.ExecStack(n.Branch(n.BranchOrder[int(i)-1]))
}

func (th *Thread) execList(n *compiler.IRNode) error {
	l := th.store.list(n.Ref)
	rnd := th.m.host.Random

	switch n.Kind {
	case compiler.KindListDeleteAll:
		l.Value = l.Value[:0]
		return nil

	case compiler.KindListAdd:
		item, err := th.Eval(n.Input("ITEM"))
		if err != nil {
			return err
		}
		if len(l.Value) < cast.ListItemLimit {
			l.Value = append(l.Value, item)
		}
		return nil

	case compiler.KindListDelete:
		idx, err := th.Eval(n.Input("INDEX"))
		if err != nil {
			return err
		}
		i := cast.ResolveListIndex(idx, len(l.Value), true, rnd)
		switch {
		case i == cast.ListAll:
			l.Value = l.Value[:0]
		case i > 0:
			l.Value = append(l.Value[:i-1], l.Value[i:]...)
		}
		return nil

	case compiler.KindListInsert:
		args, err := th.evalAll(n, "INDEX", "ITEM")
		if err != nil {
			return err
		}
		i := cast.ResolveListIndex(args[0], len(l.Value)+1, false, rnd)
		if i <= 0 || i > cast.ListItemLimit {
			return nil
		}
		l.Value = append(l.Value, nil)
		copy(l.Value[i:], l.Value[i-1:])
		l.Value[i-1] = args[1]
		if len(l.Value) > cast.ListItemLimit {
			l.Value = l.Value[:cast.ListItemLimit]
		}
		return nil

	case compiler.KindListReplace:
		args, err := th.evalAll(n, "INDEX", "ITEM")
		if err != nil {
			return err
		}
		i := cast.ResolveListIndex(args[0], len(l.Value), false, rnd)
		if i > 0 {
			l.Value[i-1] = args[1]
		}
		return nil
	}
	return nil
}
