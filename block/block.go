// Package block models the block graph authored by the visual editor.
//
// Blocks are read-only input to the compiler. A Graph holds the blocks of one
// target; statements are linked through Next, and control blocks name their
// nested statement lists through Branches.
package block

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Inputs and fields
// ---------------------------------------------------------------------------

// InputKind distinguishes what an input slot holds.
type InputKind int

const (
	InputLiteral  InputKind = iota // a literal value typed into the slot
	InputBlock                     // a nested reporter block
	InputVariable                  // a variable reporter stored inline
	InputList                      // a list reporter stored inline
)

func (k InputKind) String() string {
	switch k {
	case InputLiteral:
		return "literal"
	case InputBlock:
		return "block"
	case InputVariable:
		return "variable"
	case InputList:
		return "list"
	default:
		return "unknown"
	}
}

// Input is the content of one named input slot.
type Input struct {
	Name    string
	Kind    InputKind
	Literal interface{} // float64, string or bool when Kind == InputLiteral
	BlockID string      // nested block when Kind == InputBlock
	RefName string      // variable or list name
	RefID   string      // variable or list id
}

// Field is a named dropdown or text field value.
type Field struct {
	Name  string
	Value string
	ID    string // variable, list or broadcast id for reference fields
}

// Lit returns a literal input.
func Lit(v interface{}) *Input {
	return &Input{Kind: InputLiteral, Literal: v}
}

// Ref returns an input holding a nested reporter block.
func Ref(blockID string) *Input {
	return &Input{Kind: InputBlock, BlockID: blockID}
}

// VarRef returns an input holding an inline variable reporter.
func VarRef(name, id string) *Input {
	return &Input{Kind: InputVariable, RefName: name, RefID: id}
}

// ListRef returns an input holding an inline list reporter.
func ListRef(name, id string) *Input {
	return &Input{Kind: InputList, RefName: name, RefID: id}
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// Block is one block record.
type Block struct {
	ID       string
	Opcode   string
	Next     string
	Parent   string
	TopLevel bool
	Shadow   bool
	Inputs   map[string]*Input
	Fields   map[string]*Field
	Branches map[string]string // branch name -> first statement block id
	Mutation map[string]string
}

// Input returns the named input, or nil.
func (b *Block) Input(name string) *Input {
	if b.Inputs == nil {
		return nil
	}
	return b.Inputs[name]
}

// Field returns the named field, or nil.
func (b *Block) Field(name string) *Field {
	if b.Fields == nil {
		return nil
	}
	return b.Fields[name]
}

// FieldValue returns the value of the named field, or "" if absent.
func (b *Block) FieldValue(name string) string {
	if f := b.Field(name); f != nil {
		return f.Value
	}
	return ""
}

// IsBranchName reports whether an input name designates a statement branch.
// The editor stores branches as inputs named SUBSTACK, SUBSTACK2, ...
func IsBranchName(name string) bool {
	return strings.HasPrefix(name, "SUBSTACK")
}

// ---------------------------------------------------------------------------
// Graph
// ---------------------------------------------------------------------------

// Graph holds the blocks of one target, keyed by id.
type Graph struct {
	blocks map[string]*Block
	order  []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{blocks: make(map[string]*Block)}
}

// Add inserts or replaces a block.
func (g *Graph) Add(b *Block) {
	if _, exists := g.blocks[b.ID]; !exists {
		g.order = append(g.order, b.ID)
	}
	g.blocks[b.ID] = b
}

// Get returns the block with the given id.
func (g *Graph) Get(id string) (*Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// Len returns the number of blocks.
func (g *Graph) Len() int {
	return len(g.blocks)
}

// Blocks returns all blocks in insertion order.
func (g *Graph) Blocks() []*Block {
	out := make([]*Block, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.blocks[id])
	}
	return out
}

// TopLevel returns the top-level blocks in insertion order.
func (g *Graph) TopLevel() []*Block {
	var out []*Block
	for _, id := range g.order {
		if b := g.blocks[id]; b.TopLevel {
			out = append(out, b)
		}
	}
	return out
}

// Reachable returns every block reachable from root through Next, nested
// inputs and branches, sorted by id. Dangling references are skipped.
func (g *Graph) Reachable(root string) []*Block {
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		for id != "" && !seen[id] {
			b, ok := g.blocks[id]
			if !ok {
				return
			}
			seen[id] = true
			for _, in := range b.Inputs {
				if in.Kind == InputBlock {
					walk(in.BlockID)
				}
			}
			for _, first := range b.Branches {
				walk(first)
			}
			id = b.Next
		}
	}
	walk(root)

	out := make([]*Block, 0, len(seen))
	for id := range seen {
		out = append(out, g.blocks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// Project
// ---------------------------------------------------------------------------

// Variable is a target-owned scalar variable.
type Variable struct {
	ID    string
	Name  string
	Value interface{}
}

// List is a target-owned list.
type List struct {
	ID    string
	Name  string
	Value []interface{}
}

// Target is the stage or a sprite.
type Target struct {
	Name       string
	IsStage    bool
	Variables  map[string]*Variable
	Lists      map[string]*List
	Broadcasts map[string]string // id -> name
	Blocks     *Graph
	X          float64
	Y          float64
	Direction  float64
}

// NewTarget creates an empty target.
func NewTarget(name string, isStage bool) *Target {
	return &Target{
		Name:       name,
		IsStage:    isStage,
		Variables:  make(map[string]*Variable),
		Lists:      make(map[string]*List),
		Broadcasts: make(map[string]string),
		Blocks:     NewGraph(),
		Direction:  90,
	}
}

// Project is a loaded project: a stage and its sprites.
type Project struct {
	Targets []*Target
}

// Stage returns the stage target, or nil.
func (p *Project) Stage() *Target {
	for _, t := range p.Targets {
		if t.IsStage {
			return t
		}
	}
	return nil
}

// Target returns the target with the given name, or nil.
func (p *Project) Target(name string) *Target {
	for _, t := range p.Targets {
		if t.Name == name {
			return t
		}
	}
	return nil
}
