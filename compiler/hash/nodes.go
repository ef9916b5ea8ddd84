package hash

// ---------------------------------------------------------------------------
// Frozen hashing tree types.
//
// These are stripped-down parallels of block.Block with no block ids or
// parent links. Blocks are identified by their visit index instead, so two
// scripts that differ only in the ids the editor generated produce the
// same hashing tree.
// ---------------------------------------------------------------------------

// HNode is the interface implemented by all hashing tree nodes.
type HNode interface {
	hnode() // marker method
}

// ---------------------------------------------------------------------------
// Literal nodes
// ---------------------------------------------------------------------------

type HNumberLiteral struct{ Value float64 }
type HStringLiteral struct{ Value string }
type HBoolLiteral struct{ Value bool }
type HNilLiteral struct{}

func (*HNumberLiteral) hnode() {}
func (*HStringLiteral) hnode() {}
func (*HBoolLiteral) hnode()   {}
func (*HNilLiteral) hnode()    {}

// ---------------------------------------------------------------------------
// Reference nodes
// ---------------------------------------------------------------------------

// HVariableRef is an inline variable reporter. The id is kept because
// generated code looks variables up by id.
type HVariableRef struct {
	Name string
	ID   string
}

// HListRef is an inline list reporter.
type HListRef struct {
	Name string
	ID   string
}

// HBackRef points at a block emitted earlier in the walk. Index is the
// block's position in visit order.
type HBackRef struct {
	Index uint32
}

// HMissing stands for a block id that does not resolve.
type HMissing struct{}

func (*HVariableRef) hnode() {}
func (*HListRef) hnode()     {}
func (*HBackRef) hnode()     {}
func (*HMissing) hnode()     {}

// ---------------------------------------------------------------------------
// Structure nodes
// ---------------------------------------------------------------------------

// HInput is one named input slot.
type HInput struct {
	Name  string
	Value HNode
}

// HField is one named field. ID is kept for variable and list fields.
type HField struct {
	Name  string
	Value string
	ID    string
}

// HBranch is a named statement list.
type HBranch struct {
	Name  string
	Stack []HNode
}

// HBlock is one block. Members are sorted by name.
type HBlock struct {
	Opcode   string
	Shadow   bool
	Inputs   []HInput
	Fields   []HField
	Branches []HBranch
	Mutation [][2]string
}

func (*HBlock) hnode() {}

// HScript is the top-level hashing node: the hat block and the stack
// below it.
type HScript struct {
	Hat  HNode
	Body []HNode
}

func (*HScript) hnode() {}
