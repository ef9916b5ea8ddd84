package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the script hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every cache entry keyed by a previously computed hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Node type tags.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagNumberLiteral byte = 0x01
	TagStringLiteral byte = 0x02
	TagBoolLiteral   byte = 0x03
	TagNilLiteral    byte = 0x04

	// Inline references
	TagVariableRef byte = 0x05
	TagListRef     byte = 0x06

	// Reserved 0x07-0x0F

	// Graph structure
	TagBlock    byte = 0x10
	TagBackRef  byte = 0x11 // block already emitted, by visit index
	TagMissing  byte = 0x12 // dangling block id
	TagEndStack byte = 0x13
	TagScript   byte = 0x14

	// Block members
	TagInput    byte = 0x20
	TagField    byte = 0x21
	TagBranch   byte = 0x22
	TagMutation byte = 0x23

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumberLiteral, TagStringLiteral, TagBoolLiteral, TagNilLiteral,
	TagVariableRef, TagListRef,
	TagBlock, TagBackRef, TagMissing, TagEndStack, TagScript,
	TagInput, TagField, TagBranch, TagMutation,
}
