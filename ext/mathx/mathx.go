// Package mathx adds clamp and lerp reporters. Both read some operands
// more than once, so dynamic operands are stored in temporaries first.
package mathx

import (
	"fmt"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/cast"
	"github.com/chazu/blockjit/compiler"
	"github.com/chazu/blockjit/hook"
	"github.com/chazu/blockjit/vm"
)

// ID is the extension id and hook scope name.
const ID = "mathx"

// IR kinds.
const (
	KindClamp = "mathx.clamp"
	KindLerp  = "mathx.lerp"
)

var opcodes = map[string]string{
	"mathx_clamp": KindClamp,
	"mathx_lerp":  KindLerp,
}

// Extension installs the mathx reporters.
type Extension struct{}

func (Extension) ID() string { return ID }

func (Extension) Install(h *compiler.Hooks, s *hook.Scope) error {
	if _, err := hook.Patch(h.ScriptTree, s, compiler.MethodDescendInput, func(next compiler.STGFunc) compiler.STGFunc {
		return func(g *compiler.ScriptTreeGenerator, b *block.Block) (compiler.Node, error) {
			kind, ok := opcodes[b.Opcode]
			if !ok {
				return next(g, b)
			}
			return g.DescendExtension(b, kind, false)
		}
	}); err != nil {
		return err
	}

	if _, err := hook.Patch(h.IR, s, compiler.MethodLowerExtension, func(next compiler.LowerFunc) compiler.LowerFunc {
		return func(g *compiler.IRGenerator, n *compiler.ExtensionNode) (*compiler.IRNode, error) {
			ir, err := next(g, n)
			if err != nil || (n.Kind != KindClamp && n.Kind != KindLerp) {
				return ir, err
			}
			ir.ValueKind = compiler.ValueNumber
			return ir, nil
		}
	}); err != nil {
		return err
	}

	_, err := hook.Patch(h.JS, s, compiler.MethodDescendInput, func(next compiler.JSInputFunc) compiler.JSInputFunc {
		return func(u *compiler.Unit, n *compiler.IRNode) (compiler.TypedInput, error) {
			switch n.Kind {
			case KindClamp:
				return emitClamp(u, n)
			case KindLerp:
				return emitLerp(u, n)
			}
			return next(u, n)
		}
	})
	return err
}

// Clamp limits v to [lo, hi]. Bounds are not reordered: with lo > hi the
// result is lo whenever v < lo.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp interpolates from a to b. The product is rounded before the add
// so the result matches JavaScript.
func Lerp(a, b, t float64) float64 {
	return a + float64((b-a)*t)
}

func numbers(ins []compiler.TypedInput) ([]float64, bool) {
	out := make([]float64, len(ins))
	for i, in := range ins {
		c, ok := in.(*compiler.ConstantInput)
		if !ok {
			return nil, false
		}
		out[i] = c.Number()
	}
	return out, true
}

func emitClamp(u *compiler.Unit, n *compiler.IRNode) (compiler.TypedInput, error) {
	ins, err := u.DescendInputs(n, "VALUE", "MIN", "MAX")
	if err != nil {
		return nil, err
	}
	if c, ok := numbers(ins); ok {
		return compiler.ConstantOf(Clamp(c[0], c[1], c[2])), nil
	}

	assigns := make([]string, len(ins))
	for i, in := range ins {
		assigns[i], ins[i] = u.Hoist(in, compiler.ValueNumber)
	}
	v, lo, hi := ins[0].AsNumber(), ins[1].AsNumber(), ins[2].AsNumber()
	expr := fmt.Sprintf("(%s < %s ? %s : (%s > %s ? %s : %s))", v, lo, lo, v, hi, hi, v)
	return u.Dynamic(compiler.Sequence(assigns, expr), compiler.ValueNumber), nil
}

func emitLerp(u *compiler.Unit, n *compiler.IRNode) (compiler.TypedInput, error) {
	ins, err := u.DescendInputs(n, "A", "B", "T")
	if err != nil {
		return nil, err
	}
	if c, ok := numbers(ins); ok {
		return compiler.ConstantOf(Lerp(c[0], c[1], c[2])), nil
	}

	assign, a := u.Hoist(ins[0], compiler.ValueNumber)
	expr := fmt.Sprintf("(%s + ((%s - %s) * %s))", a.AsNumber(), ins[1].AsNumber(), a.AsNumber(), ins[2].AsNumber())
	return u.DynamicNaN(compiler.Sequence([]string{assign}, expr)), nil
}

// Primitives implements the reporters for the interpreter.
func (Extension) Primitives() map[string]vm.Primitive {
	return map[string]vm.Primitive{
		KindClamp: func(th *vm.Thread, n *compiler.IRNode) (interface{}, error) {
			x, err := evalNumbers(th, n, "VALUE", "MIN", "MAX")
			if err != nil {
				return nil, err
			}
			return Clamp(x[0], x[1], x[2]), nil
		},
		KindLerp: func(th *vm.Thread, n *compiler.IRNode) (interface{}, error) {
			x, err := evalNumbers(th, n, "A", "B", "T")
			if err != nil {
				return nil, err
			}
			return Lerp(x[0], x[1], x[2]), nil
		},
	}
}

func evalNumbers(th *vm.Thread, n *compiler.IRNode, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := th.Eval(n.Input(name))
		if err != nil {
			return nil, err
		}
		out[i] = cast.ToNumber(v)
	}
	return out, nil
}
