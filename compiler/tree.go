package compiler

import "github.com/chazu/blockjit/block"

// ---------------------------------------------------------------------------
// Script tree nodes
// ---------------------------------------------------------------------------

// Node is a script tree node: *KnownNode, *ExtensionNode or *ConstantNode.
// Nodes own their children; nothing is shared between parents.
type Node interface {
	ID() string
	node()
}

// KnownNode is a built-in block with its inputs and branches descended.
type KnownNode struct {
	BlockID  string
	Opcode   string
	Inputs   map[string]Node
	Fields   map[string]*block.Field
	Branches map[string][]Node
}

// ExtensionNode is a block claimed by an extension. Kind is conventionally
// "<extensionId>.<operation>".
type ExtensionNode struct {
	BlockID  string
	Kind     string
	Inputs   map[string]Node
	Fields   map[string]*block.Field
	Branches map[string][]Node
	Payload  interface{}
	Stacked  bool
}

// ConstantNode is a literal known when the tree is built.
type ConstantNode struct {
	BlockID string
	Value   interface{}
}

func (n *KnownNode) ID() string     { return n.BlockID }
func (n *ExtensionNode) ID() string { return n.BlockID }
func (n *ConstantNode) ID() string  { return n.BlockID }

func (*KnownNode) node()     {}
func (*ExtensionNode) node() {}
func (*ConstantNode) node()  {}

// FieldValue returns the value of a field, or "".
func (n *KnownNode) FieldValue(name string) string {
	if f := n.Fields[name]; f != nil {
		return f.Value
	}
	return ""
}

// FieldValue returns the value of a field, or "".
func (n *ExtensionNode) FieldValue(name string) string {
	if f := n.Fields[name]; f != nil {
		return f.Value
	}
	return ""
}

// Script is one hat block and the statements under it.
type Script struct {
	ID        string
	Target    string
	Hat       string
	HatFields map[string]*block.Field
	Body      []Node
}
