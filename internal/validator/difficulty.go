package validator

import (
	"math"

	"github.com/pebblechain/pebblechain/pkg/block"
)

// GetNextDiff computes the difficulty the block following parent must
// carry (§4.3). During a retarget period the difficulty is held
// constant; at a period boundary it is recomputed from how long the
// last DIFF_PERIOD_LEN-1 intervals actually took, walking DIFF_PERIOD_LEN-2
// parents back from parent (not DIFF_PERIOD_LEN-1): this is the
// specified window, not widened to match the period length.
func GetNextDiff(parent *block.Block, p Params) uint8 {
	if (parent.Height+1)%p.DiffPeriodLen != 0 {
		return parent.Header.Diff
	}

	first := parent
	for i := uint64(0); i < p.DiffPeriodLen-2; i++ {
		first = first.Parent
	}

	dt := int64(parent.Header.Timestamp) - int64(first.Header.Timestamp)
	if dt <= 0 {
		dt = 1
	}

	next := math.Log2(math.Pow(2, float64(parent.Header.Diff)) * float64(p.BlockTime) * float64(p.DiffPeriodLen) / float64(dt))
	nd := int64(math.Floor(next))
	if nd <= 0 {
		nd = 1
	}
	if nd > 255 {
		nd = 255
	}
	return uint8(nd)
}
