package block

import (
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// ComputeMerkleRoot calculates the Merkle root over a list of leaf byte
// strings (the canonical serialization of each transaction, in block
// order) per §4.1:
//
//   - 0 leaves: h("")
//   - 1 leaf:   h(leaf)
//   - otherwise: split at len/2 (left half rounded down), recurse on
//     each half, hash the concatenation of the two roots.
//
// Unbalanced trees are permitted. The last leaf is never duplicated,
// unlike the usual Bitcoin-style Merkle tree.
func ComputeMerkleRoot(leaves [][]byte) types.Hash {
	n := len(leaves)
	if n == 0 {
		return crypto.EmptyHash
	}
	if n == 1 {
		return crypto.Hash(leaves[0])
	}

	mid := n / 2
	left := ComputeMerkleRoot(leaves[:mid])
	right := ComputeMerkleRoot(leaves[mid:])
	return crypto.HashConcat(left, right)
}
