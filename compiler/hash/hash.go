// Package hash computes content hashes of scripts in a block graph.
package hash

import (
	"crypto/sha256"

	"github.com/chazu/blockjit/block"
)

// HashScript computes the SHA-256 content hash of the script starting at
// hatID.
//
// The hash is computed over a deterministic serialization of the blocks
// reachable from the hat, with block ids replaced by visit order. Two
// scripts with the same blocks, fields and variable references produce
// the same hash even when the editor assigned them different block ids.
func HashScript(g *block.Graph, hatID string) [32]byte {
	data := Serialize(NormalizeScript(g, hatID))
	return sha256.Sum256(data)
}
