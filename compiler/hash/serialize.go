package hash

import (
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing tree.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (uint32=4B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Lists: uint32 count, then elements inline
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) serializeStack(stack []HNode) {
	s.writeUint32(uint32(len(stack)))
	for _, n := range stack {
		s.serializeNode(n)
	}
	s.writeByte(TagEndStack)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HNumberLiteral:
		s.writeByte(TagNumberLiteral)
		s.writeFloat64(n.Value)

	case *HStringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *HBoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *HNilLiteral:
		s.writeByte(TagNilLiteral)

	case *HVariableRef:
		s.writeByte(TagVariableRef)
		s.writeString(n.Name)
		s.writeString(n.ID)

	case *HListRef:
		s.writeByte(TagListRef)
		s.writeString(n.Name)
		s.writeString(n.ID)

	case *HBackRef:
		s.writeByte(TagBackRef)
		s.writeUint32(n.Index)

	case *HMissing:
		s.writeByte(TagMissing)

	case *HBlock:
		s.writeByte(TagBlock)
		s.writeString(n.Opcode)
		s.writeBool(n.Shadow)
		s.writeUint32(uint32(len(n.Inputs)))
		for _, in := range n.Inputs {
			s.writeByte(TagInput)
			s.writeString(in.Name)
			s.serializeNode(in.Value)
		}
		s.writeUint32(uint32(len(n.Fields)))
		for _, f := range n.Fields {
			s.writeByte(TagField)
			s.writeString(f.Name)
			s.writeString(f.Value)
			s.writeString(f.ID)
		}
		s.writeUint32(uint32(len(n.Branches)))
		for _, br := range n.Branches {
			s.writeByte(TagBranch)
			s.writeString(br.Name)
			s.serializeStack(br.Stack)
		}
		s.writeUint32(uint32(len(n.Mutation)))
		for _, kv := range n.Mutation {
			s.writeByte(TagMutation)
			s.writeString(kv[0])
			s.writeString(kv[1])
		}

	case *HScript:
		s.writeByte(TagScript)
		s.serializeNode(n.Hat)
		s.serializeStack(n.Body)
	}
}
