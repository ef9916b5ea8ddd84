package hash

import (
	"sort"

	"github.com/chazu/blockjit/block"
)

// ---------------------------------------------------------------------------
// Normalization: block graph → frozen hashing tree
//
// Walks the blocks reachable from a hat in a fixed order (inputs, fields
// and branches by name, statements by Next) and replaces block ids with
// visit indices. Blocks reached a second time become back references, so
// malformed graphs with cycles still normalize.
// ---------------------------------------------------------------------------

// normalizer holds state for the normalization walk.
type normalizer struct {
	graph *block.Graph
	index map[string]uint32 // block id → visit index
}

// NormalizeScript transforms the script under hatID into an HScript. A hat
// id that does not resolve yields a script whose hat is HMissing.
func NormalizeScript(g *block.Graph, hatID string) *HScript {
	n := &normalizer{graph: g, index: make(map[string]uint32)}
	hat, ok := g.Get(hatID)
	if !ok {
		return &HScript{Hat: &HMissing{}}
	}
	h := n.normalizeBlock(hat)
	return &HScript{Hat: h, Body: n.normalizeStack(hat.Next)}
}

func (n *normalizer) normalizeStack(first string) []HNode {
	var out []HNode
	for id := first; id != ""; {
		if idx, seen := n.index[id]; seen {
			return append(out, &HBackRef{Index: idx})
		}
		b, ok := n.graph.Get(id)
		if !ok {
			return append(out, &HMissing{})
		}
		out = append(out, n.normalizeBlock(b))
		id = b.Next
	}
	return out
}

// normalizeRef resolves a nested reporter id.
func (n *normalizer) normalizeRef(id string) HNode {
	if idx, seen := n.index[id]; seen {
		return &HBackRef{Index: idx}
	}
	b, ok := n.graph.Get(id)
	if !ok {
		return &HMissing{}
	}
	return n.normalizeBlock(b)
}

func (n *normalizer) normalizeBlock(b *block.Block) *HBlock {
	n.index[b.ID] = uint32(len(n.index))
	h := &HBlock{Opcode: b.Opcode, Shadow: b.Shadow}

	for _, name := range sortedKeys(b.Inputs) {
		in := b.Inputs[name]
		h.Inputs = append(h.Inputs, HInput{Name: name, Value: n.normalizeInput(in)})
	}
	for _, name := range sortedKeys(b.Fields) {
		f := b.Fields[name]
		h.Fields = append(h.Fields, HField{Name: name, Value: f.Value, ID: f.ID})
	}
	for _, name := range sortedKeys(b.Branches) {
		h.Branches = append(h.Branches, HBranch{Name: name, Stack: n.normalizeStack(b.Branches[name])})
	}
	for _, k := range sortedKeys(b.Mutation) {
		h.Mutation = append(h.Mutation, [2]string{k, b.Mutation[k]})
	}
	return h
}

func (n *normalizer) normalizeInput(in *block.Input) HNode {
	switch in.Kind {
	case block.InputBlock:
		return n.normalizeRef(in.BlockID)
	case block.InputVariable:
		return &HVariableRef{Name: in.RefName, ID: in.RefID}
	case block.InputList:
		return &HListRef{Name: in.RefName, ID: in.RefID}
	}
	return normalizeLiteral(in.Literal)
}

func normalizeLiteral(v interface{}) HNode {
	switch x := v.(type) {
	case float64:
		return &HNumberLiteral{Value: x}
	case string:
		return &HStringLiteral{Value: x}
	case bool:
		return &HBoolLiteral{Value: x}
	default:
		return &HNilLiteral{}
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
