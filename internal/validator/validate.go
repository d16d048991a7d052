package validator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/pkg/block"
)

// Sentinel errors for each ordered rule in §4.3. ValidateBlock returns
// the first one that fails, matching the short-circuit order spec.md
// specifies.
var (
	ErrUnknownParent    = errors.New("block's parent is not known/validated")
	ErrBadLinkage       = errors.New("prev_hash or height does not match parent")
	ErrTimestampFuture  = errors.New("timestamp more than 7200s into the future")
	ErrTimestampTooOld  = errors.New("timestamp older than median of parent and its 9 predecessors")
	ErrBadDifficulty    = errors.New("difficulty does not match get_next_diff(parent)")
	ErrInsufficientWork = errors.New("block hash does not meet the difficulty target")
	ErrBadMerkleRoot    = errors.New("merkle root does not match transaction serializations")
	ErrRewardExceedsCap = errors.New("block creates more money than the reward schedule allows")
)

// MaxFutureDrift is how far into the future (seconds) a block's
// timestamp may be, relative to wall-clock time (§4.3 step 2).
const MaxFutureDrift = 7200

// MedianWindow is the number of predecessor timestamps (in addition to
// the parent's own) considered for the median-timestamp floor.
const MedianWindow = 9

// ValidateBlock checks blk against every rule in §4.3, in order. utxoCopy
// must be a working copy of the authoritative UTXO set already rewound
// to blk's parent (§4.4 "copy()" + move_on_chain) — ValidateBlock applies
// blk's transactions to it as rule 6, mutating utxoCopy on success.
// wallClock is the current time in unix seconds.
func ValidateBlock(blk *block.Block, utxoCopy *utxo.Set, wallClock uint64, p Params) error {
	// 1. Linkage.
	if blk.Parent == nil {
		return ErrUnknownParent
	}
	if blk.Header.PrevHash != blk.Parent.Hash() || blk.Height != blk.Parent.Height+1 {
		return ErrBadLinkage
	}

	// 2. Timestamp bounds.
	if blk.Header.Timestamp > wallClock+MaxFutureDrift {
		return ErrTimestampFuture
	}
	if blk.Header.Timestamp < medianOfPredecessors(blk.Parent) {
		return ErrTimestampTooOld
	}

	// 3. Difficulty.
	wantDiff := GetNextDiff(blk.Parent, p)
	if blk.Header.Diff != wantDiff {
		return fmt.Errorf("%w: have %d, want %d", ErrBadDifficulty, blk.Header.Diff, wantDiff)
	}

	// 4. Proof-of-work.
	if !MeetsTarget(blk.Hash(), blk.Header.Diff) {
		return ErrInsufficientWork
	}

	// 5. Merkle root.
	if blk.Header.MerkleRoot != blk.MerkleRoot() {
		return ErrBadMerkleRoot
	}

	// 6. Transactions.
	moneyCreated, _, err := utxoCopy.ApplyBlock(blk, true)
	if err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	// 7. Reward.
	if rewardCap := p.RewardAt(blk.Height); moneyCreated > rewardCap {
		return fmt.Errorf("%w: created %d, cap %d", ErrRewardExceedsCap, moneyCreated, rewardCap)
	}

	return nil
}

// medianOfPredecessors returns the median timestamp of parent and up
// to its 9 preceding ancestors (§4.3 step 2). The walk stops early at
// genesis, which is its own parent, so fewer than 10 timestamps are
// considered near the start of the chain.
func medianOfPredecessors(parent *block.Block) uint64 {
	timestamps := make([]uint64, 0, MedianWindow+1)
	cur := parent
	timestamps = append(timestamps, cur.Header.Timestamp)
	for i := 0; i < MedianWindow && cur.Parent != cur; i++ {
		cur = cur.Parent
		timestamps = append(timestamps, cur.Header.Timestamp)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	n := len(timestamps)
	if n%2 == 1 {
		return timestamps[n/2]
	}
	// Even count: the original implementation's median() of an even-length
	// list averages the two middle values.
	return (timestamps[n/2-1] + timestamps[n/2]) / 2
}
