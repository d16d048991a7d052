// Package validator implements the consensus rules a block must satisfy
// to be accepted onto the chain: linkage, timestamp bounds, difficulty,
// proof-of-work, the Merkle root, transaction application, and the
// reward schedule (§4.3). It is grounded on the teacher's
// internal/consensus package (the big.Int target-comparison idiom of
// pow.go, the two-stage structural-then-consensus shape of
// validator.go) but replaces the teacher's pluggable PoA/PoW/stake
// Engine interface with the single fixed rule set this chain has no
// need to swap out at runtime.
package validator

// Params holds the network constants referenced throughout the
// validation rules. Overridable so a test network can run with a
// shorter retarget period or faster target block time.
type Params struct {
	BlockTime        uint64 // target seconds between blocks
	DiffPeriodLen    uint64 // blocks per difficulty retarget period
	RewardHalvingLen uint64 // blocks between reward halvings
	InitialReward    uint64 // coinbase reward at height 0
}

// DefaultParams returns the production network constants.
func DefaultParams() Params {
	return Params{
		BlockTime:        5,
		DiffPeriodLen:    10,
		RewardHalvingLen: 1000,
		InitialReward:    1000,
	}
}

// RewardAt returns the coinbase reward for a block at the given height:
// INITIAL_REWARD >> (height / REWARD_HALVING_LEN).
func (p Params) RewardAt(height uint64) uint64 {
	shift := height / p.RewardHalvingLen
	if shift >= 64 {
		return 0
	}
	return p.InitialReward >> shift
}
