package validator

import (
	"math/big"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Target returns 2^(256-diff) as a big.Int: a block hash, read as a
// big-endian 256-bit unsigned integer, meets the proof-of-work
// requirement at difficulty diff iff it is strictly less than Target(diff)
// — equivalently, iff its top diff bits are all zero (§4.3 step 4).
// Grounded on the teacher's pow.go target() use of big.Int for
// 256-bit comparison; the formula itself differs, since this spec's
// diff is a leading-zero-bit count rather than a Bitcoin-style
// difficulty multiplier.
func Target(diff uint8) *big.Int {
	exp := 256 - int(diff)
	if exp < 0 {
		exp = 0
	}
	return new(big.Int).Lsh(big.NewInt(1), uint(exp))
}

// MeetsTarget reports whether hash satisfies the proof-of-work
// requirement at the given difficulty.
func MeetsTarget(hash types.Hash, diff uint8) bool {
	t := Target(diff)
	h := new(big.Int).SetBytes(hash[:])
	return h.Cmp(t) < 0
}
