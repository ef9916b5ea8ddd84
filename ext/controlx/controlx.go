// Package controlx adds switch/case and pick control blocks.
//
// A switch evaluates its value once and runs its body; the first case
// whose value compares equal runs its own body and leaves the switch.
// Statements in the body outside any case always run, so a trailing
// statement acts as the default. A case outside a switch is an error.
//
// Pick runs one of three branches chosen by a 1-based index and lowers
// to the built-in select shape, so neither generator needs to know it.
package controlx

import (
	"errors"
	"fmt"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/cast"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/hook"
	"github.com/chazu/blockjit/vm"
)

// ID is the extension id and hook scope name.
const ID = "controlx"

// IR kinds.
const (
	KindSwitch = "controlx.switch"
	KindCase   = "controlx.case"
	KindPick   = "controlx.pick"
)

// switchKey is the frame data key holding the switch value.
const switchKey = KindSwitch

// PickBranches are the branch names of controlx_pick in selection order.
var PickBranches = []string{"SUBSTACK", "SUBSTACK2", "SUBSTACK3"}

var opcodes = map[string]string{
	"controlx_switch": KindSwitch,
	"controlx_case":   KindCase,
	"controlx_pick":   KindPick,
}

// Extension installs the controlx blocks.
type Extension struct{}

func (Extension) ID() string { return ID }

func (Extension) Install(h *compiler.Hooks, s *hook.Scope) error {
	if _, err := hook.Patch(h.ScriptTree, s, compiler.MethodDescendStackedBlock, func(next compiler.STGFunc) compiler.STGFunc {
		return func(g *compiler.ScriptTreeGenerator, b *block.Block) (compiler.Node, error) {
			kind, ok := opcodes[b.Opcode]
			if !ok {
				return next(g, b)
			}
			return g.DescendExtension(b, kind, true)
		}
	}); err != nil {
		return err
	}

	if _, err := hook.Patch(h.IR, s, compiler.MethodLowerExtension, func(next compiler.LowerFunc) compiler.LowerFunc {
		return func(g *compiler.IRGenerator, n *compiler.ExtensionNode) (*compiler.IRNode, error) {
			if n.Kind != KindPick {
				return next(g, n)
			}
			return lowerPick(g, n)
		}
	}); err != nil {
		return err
	}

	_, err := hook.Patch(h.JS, s, compiler.MethodDescendStackedBlock, func(next compiler.JSStackFunc) compiler.JSStackFunc {
		return func(u *compiler.Unit, n *compiler.IRNode) error {
			switch n.Kind {
			case KindSwitch:
				return emitSwitch(u, n)
			case KindCase:
				return emitCase(u, n)
			}
			return next(u, n)
		}
	})
	return err
}

func lowerPick(g *compiler.IRGenerator, n *compiler.ExtensionNode) (*compiler.IRNode, error) {
	sel := compiler.Constant(n.BlockID, "")
	if in, ok := n.Inputs["INDEX"]; ok {
		var err error
		if sel, err = g.LowerInput(in); err != nil {
			return nil, err
		}
	}
	branches, err := g.LowerBranches(n)
	if err != nil {
		return nil, err
	}
	return compiler.SelectBranch(n.BlockID, sel, branches, PickBranches), nil
}

// ---------------------------------------------------------------------------
// JavaScript
// ---------------------------------------------------------------------------

func emitSwitch(u *compiler.Unit, n *compiler.IRNode) error {
	v, err := u.DescendInput(n.Input("VALUE"))
	if err != nil {
		return err
	}
	assign, v := u.Hoist(v, compiler.ValueUnknown)
	if assign != "" {
		if err := u.Writef("%s;", assign); err != nil {
			return err
		}
	}

	f := &compiler.Frame{
		Label: u.NewLabel("sw"),
		Data:  map[string]interface{}{switchKey: v},
	}
	return u.WriteBlock(f.Label+":", func() error {
		return u.WithFrame(f, func() error {
			return u.DescendStack(n.Branch("SUBSTACK"))
		})
	})
}

func emitCase(u *compiler.Unit, n *compiler.IRNode) error {
	f := u.FindFrame(func(f *compiler.Frame) bool { return f.Data[switchKey] != nil })
	if f == nil {
		return compiler.NewError(compiler.ErrInvalidContext, n.BlockID, "controlx_case", "case outside a switch")
	}
	sw := f.Data[switchKey].(compiler.TypedInput)

	c, err := u.DescendInput(n.Input("VALUE"))
	if err != nil {
		return err
	}
	var cond string
	if a, b, ok := constants(sw, c); ok {
		if cast.Compare(a.Value, b.Value) != 0 {
			return nil
		}
		cond = "true"
	} else {
		cond = fmt.Sprintf("%s(%s, %s) === 0", u.UseHelper("castCompare"), sw.AsUnknown(), c.AsUnknown())
	}

	return u.WriteBlock("if ("+cond+")", func() error {
		if err := u.WithFrame(&compiler.Frame{}, func() error {
			return u.DescendStack(n.Branch("SUBSTACK"))
		}); err != nil {
			return err
		}
		return u.Writef("break %s;", f.Label)
	})
}

func constants(a, b compiler.TypedInput) (*compiler.ConstantInput, *compiler.ConstantInput, bool) {
	ca, ok1 := a.(*compiler.ConstantInput)
	cb, ok2 := b.(*compiler.ConstantInput)
	return ca, cb, ok1 && ok2
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// switchValue boxes the switch value so a nil value still marks the frame.
type switchValue struct{ v interface{} }

// Primitives implements switch and case for the interpreter. Pick needs
// none: it lowers to the built-in select.
func (Extension) Primitives() map[string]vm.Primitive {
	return map[string]vm.Primitive{
		KindSwitch: func(th *vm.Thread, n *compiler.IRNode) (interface{}, error) {
			v, err := th.Eval(n.Input("VALUE"))
			if err != nil {
				return nil, err
			}
			f := &vm.Frame{Data: map[string]interface{}{switchKey: switchValue{v}}}
			err = th.WithFrame(f, func() error {
				return th.ExecStack(n.Branch("SUBSTACK"))
			})
			var br *vm.Break
			if errors.As(err, &br) && br.Frame == f {
				return nil, nil
			}
			return nil, err
		},
		KindCase: func(th *vm.Thread, n *compiler.IRNode) (interface{}, error) {
			f := th.FindFrame(func(f *vm.Frame) bool { return f.Data[switchKey] != nil })
			if f == nil {
				return nil, compiler.NewError(compiler.ErrInvalidContext, n.BlockID, "controlx_case", "case outside a switch")
			}
			c, err := th.Eval(n.Input("VALUE"))
			if err != nil {
				return nil, err
			}
			if cast.Compare(f.Data[switchKey].(switchValue).v, c) != 0 {
				return nil, nil
			}
			if err := th.ExecStack(n.Branch("SUBSTACK")); err != nil {
				return nil, err
			}
			return nil, &vm.Break{Frame: f}
		},
	}
}
