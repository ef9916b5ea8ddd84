package compiler

import (
	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/hook"
)

// ---------------------------------------------------------------------------
// Script Tree Generator
// ---------------------------------------------------------------------------

// ScriptTreeGenerator turns the block graph of one target into script
// trees. It never mutates blocks.
type ScriptTreeGenerator struct {
	target *block.Target
	stage  *block.Target

	descendInput   STGFunc
	descendStacked STGFunc

	// blocks on the current descent path, for cycle detection
	active map[string]bool
}

// NewScriptTreeGenerator resolves the script tree dispatch methods from
// hooks. Patches installed after this call are not seen by the generator.
func NewScriptTreeGenerator(target, stage *block.Target, hooks *Hooks) (*ScriptTreeGenerator, error) {
	input, err := hook.Resolve[STGFunc](hooks.ScriptTree, MethodDescendInput)
	if err != nil {
		return nil, err
	}
	stacked, err := hook.Resolve[STGFunc](hooks.ScriptTree, MethodDescendStackedBlock)
	if err != nil {
		return nil, err
	}
	return &ScriptTreeGenerator{
		target:         target,
		stage:          stage,
		descendInput:   input,
		descendStacked: stacked,
		active:         make(map[string]bool),
	}, nil
}

// Target returns the target whose blocks are being descended.
func (g *ScriptTreeGenerator) Target() *block.Target { return g.target }

// Stage returns the stage target, which may be nil.
func (g *ScriptTreeGenerator) Stage() *block.Target { return g.stage }

// Block looks up a block of the current target.
func (g *ScriptTreeGenerator) Block(id string) (*block.Block, bool) {
	return g.target.Blocks.Get(id)
}

// DescendScript builds the tree for the script starting at hat.
func (g *ScriptTreeGenerator) DescendScript(hat *block.Block) (*Script, error) {
	if !IsHat(hat.Opcode) {
		return nil, unknownOpcode(hat.ID, hat.Opcode)
	}
	body, err := g.DescendStack(hat.Next)
	if err != nil {
		return nil, err
	}
	return &Script{
		ID:        hat.ID,
		Target:    g.target.Name,
		Hat:       hat.Opcode,
		HatFields: copyFields(hat.Fields),
		Body:      body,
	}, nil
}

// DescendInput descends a block in reporter position through the
// descendInput dispatch chain.
func (g *ScriptTreeGenerator) DescendInput(b *block.Block) (Node, error) {
	if g.active[b.ID] {
		return nil, NewError(ErrMalformedBranch, b.ID, b.Opcode, "block is its own ancestor")
	}
	g.active[b.ID] = true
	defer delete(g.active, b.ID)
	return g.descendInput(g, b)
}

// DescendStackedBlock descends a block in statement position through the
// descendStackedBlock dispatch chain.
func (g *ScriptTreeGenerator) DescendStackedBlock(b *block.Block) (Node, error) {
	return g.descendStacked(g, b)
}

// DescendStack walks a statement list starting at first. An empty id
// yields an empty, non-nil slice.
func (g *ScriptTreeGenerator) DescendStack(first string) ([]Node, error) {
	nodes := []Node{}
	var walked []string
	defer func() {
		for _, id := range walked {
			delete(g.active, id)
		}
	}()

	for id := first; id != ""; {
		b, ok := g.target.Blocks.Get(id)
		if !ok {
			return nil, NewError(ErrMalformedBranch, id, "", "statement block does not exist")
		}
		if g.active[id] {
			return nil, NewError(ErrMalformedBranch, id, b.Opcode, "statement list loops back on itself")
		}
		g.active[id] = true
		walked = append(walked, id)

		n, err := g.DescendStackedBlock(b)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		id = b.Next
	}
	return nodes, nil
}

// DescendSubstack descends the statements of a named branch of b. An
// absent branch yields an empty, non-nil slice.
func (g *ScriptTreeGenerator) DescendSubstack(b *block.Block, branch string) ([]Node, error) {
	first, ok := b.Branches[branch]
	if !ok || first == "" {
		return []Node{}, nil
	}
	if _, exists := g.target.Blocks.Get(first); !exists {
		return nil, NewError(ErrMalformedBranch, b.ID, b.Opcode, "branch %s starts at missing block %s", branch, first)
	}
	return g.DescendStack(first)
}

// DescendInputOf descends the named input slot of b. Empty slots become
// the constant "", literal slots and shadow literal blocks become
// constants, and inline variable and list reporters become data_variable
// and data_listcontents nodes.
func (g *ScriptTreeGenerator) DescendInputOf(b *block.Block, name string) (Node, error) {
	in := b.Input(name)
	if in == nil {
		return &ConstantNode{BlockID: b.ID, Value: ""}, nil
	}
	switch in.Kind {
	case block.InputLiteral:
		return &ConstantNode{BlockID: b.ID, Value: literalValue(in.Literal)}, nil
	case block.InputVariable:
		return &KnownNode{
			BlockID: b.ID,
			Opcode:  "data_variable",
			Fields: map[string]*block.Field{
				"VARIABLE": {Name: "VARIABLE", Value: in.RefName, ID: in.RefID},
			},
		}, nil
	case block.InputList:
		return &KnownNode{
			BlockID: b.ID,
			Opcode:  "data_listcontents",
			Fields: map[string]*block.Field{
				"LIST": {Name: "LIST", Value: in.RefName, ID: in.RefID},
			},
		}, nil
	}

	child, ok := g.target.Blocks.Get(in.BlockID)
	if !ok {
		return nil, NewError(ErrMissingBlock, b.ID, b.Opcode, "input %s refers to missing block %s", name, in.BlockID)
	}
	if field, ok := literalOpcodes[child.Opcode]; ok {
		return &ConstantNode{BlockID: child.ID, Value: child.FieldValue(field)}, nil
	}
	return g.DescendInput(child)
}

// DescendExtension descends every input and branch of b into an
// ExtensionNode of the given kind, in name order, so the first failing
// child is the one reported. Extensions call it from their descendInput
// or descendStackedBlock patches.
func (g *ScriptTreeGenerator) DescendExtension(b *block.Block, kind string, stacked bool) (*ExtensionNode, error) {
	n := &ExtensionNode{
		BlockID:  b.ID,
		Kind:     kind,
		Inputs:   make(map[string]Node, len(b.Inputs)),
		Fields:   copyFields(b.Fields),
		Branches: make(map[string][]Node, len(b.Branches)),
		Stacked:  stacked,
	}
	for _, name := range sortedNames(b.Inputs) {
		child, err := g.DescendInputOf(b, name)
		if err != nil {
			return nil, err
		}
		n.Inputs[name] = child
	}
	for _, name := range sortedNames(b.Branches) {
		stack, err := g.DescendSubstack(b, name)
		if err != nil {
			return nil, err
		}
		n.Branches[name] = stack
	}
	return n, nil
}

// descendKnown builds a KnownNode from a built-in shape.
func (g *ScriptTreeGenerator) descendKnown(b *block.Block, shape opShape) (Node, error) {
	n := &KnownNode{
		BlockID: b.ID,
		Opcode:  b.Opcode,
		Inputs:  make(map[string]Node, len(shape.inputs)),
		Fields:  copyFields(b.Fields),
	}
	for _, name := range shape.inputs {
		child, err := g.DescendInputOf(b, name)
		if err != nil {
			return nil, err
		}
		n.Inputs[name] = child
	}
	if len(shape.branches) > 0 {
		n.Branches = make(map[string][]Node, len(shape.branches))
		for _, name := range shape.branches {
			stack, err := g.DescendSubstack(b, name)
			if err != nil {
				return nil, err
			}
			n.Branches[name] = stack
		}
	}
	return n, nil
}

// stgDescendInput is the built-in descendInput.
func stgDescendInput(g *ScriptTreeGenerator, b *block.Block) (Node, error) {
	if field, ok := literalOpcodes[b.Opcode]; ok {
		return &ConstantNode{BlockID: b.ID, Value: b.FieldValue(field)}, nil
	}
	shape, ok := builtinOps[b.Opcode]
	if !ok || shape.stacked {
		return nil, unknownOpcode(b.ID, b.Opcode)
	}
	return g.descendKnown(b, shape)
}

// stgDescendStackedBlock is the built-in descendStackedBlock.
func stgDescendStackedBlock(g *ScriptTreeGenerator, b *block.Block) (Node, error) {
	shape, ok := builtinOps[b.Opcode]
	if !ok || !shape.stacked {
		return nil, unknownOpcode(b.ID, b.Opcode)
	}
	return g.descendKnown(b, shape)
}

func copyFields(fields map[string]*block.Field) map[string]*block.Field {
	out := make(map[string]*block.Field, len(fields))
	for k, f := range fields {
		cp := *f
		out[k] = &cp
	}
	return out
}

// literalValue keeps literals to the three runtime value types.
func literalValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64, string, bool:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case nil:
		return ""
	default:
		return ""
	}
}
