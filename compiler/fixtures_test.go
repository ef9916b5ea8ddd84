package compiler

import (
	"testing"

	"github.com/chazu/blockjit/block"
)

// newTarget builds a sprite holding blocks.
func newTarget(blocks ...*block.Block) *block.Target {
	t := block.NewTarget("Sprite1", false)
	for _, b := range blocks {
		t.Blocks.Add(b)
	}
	return t
}

// flagHat is a green-flag hat with id "hat".
func flagHat(next string) *block.Block {
	return &block.Block{ID: "hat", Opcode: "event_whenflagclicked", TopLevel: true, Next: next}
}

func say(id, next string, msg *block.Input) *block.Block {
	return &block.Block{
		ID:     id,
		Opcode: "looks_say",
		Next:   next,
		Inputs: map[string]*block.Input{"MESSAGE": msg},
	}
}

func op(id, opcode string, inputs map[string]*block.Input) *block.Block {
	return &block.Block{ID: id, Opcode: opcode, Inputs: inputs}
}

func varField(name, id string) map[string]*block.Field {
	return map[string]*block.Field{"VARIABLE": {Name: "VARIABLE", Value: name, ID: id}}
}

func listField(name, id string) map[string]*block.Field {
	return map[string]*block.Field{"LIST": {Name: "LIST", Value: name, ID: id}}
}

// compileHat compiles the script under "hat" with fresh hooks unless
// opts names some.
func compileHat(t *testing.T, target *block.Target, opts Options) string {
	t.Helper()
	if opts.Hooks == nil {
		opts.Hooks = NewHooks()
	}
	s, err := CompileScript(target, nil, "hat", opts)
	if err != nil {
		t.Fatalf("CompileScript: %v", err)
	}
	return s.Source
}
