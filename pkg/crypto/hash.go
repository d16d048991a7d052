// Package crypto provides the cryptographic primitives consumed by the
// block, transaction, and UTXO packages: the consensus hash function
// (with HashConcat, the interior-node step of block.ComputeMerkleRoot),
// and Ed25519 signing.
package crypto

import (
	"crypto/sha256"

	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes the consensus hash h(b) = SHA-256(SHA-256(b)) used for
// block hashes, transaction IDs, and the Merkle tree.
func Hash(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// HashConcat hashes the concatenation of two hashes under the consensus
// hash function. Used when building Merkle tree interior nodes.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// EmptyHash is h(""), the Merkle root of a block with no transactions.
var EmptyHash = Hash(nil)

// FastHash computes a non-consensus BLAKE3-256 digest. It is never used
// for anything that must agree across nodes (block hashes, txids,
// signatures) — only for local, single-process purposes where
// collision-resistance matters but the double SHA-256 pass does not:
// the per-entry digests of the snapshot store's Commitment.
func FastHash(data []byte) types.Hash {
	return blake3.Sum256(data)
}
