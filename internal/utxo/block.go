package utxo

import (
	"errors"
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// ErrNoCoinbase mirrors block.ErrNoCoinbase at the UTXO-application
// layer: apply_block requires the first transaction to be the single
// coinbase (§4.4).
var ErrNoCoinbase = errors.New("block's first transaction is not a coinbase")

// BlockUndo is the undo information for an entire block: the
// concatenation of each transaction's Undo plus the block's money
// created. BlockHash lets RewindTip check that it is reverting the
// current tip before calling RevertBlock.
type BlockUndo struct {
	BlockHash    types.Hash
	TxUndos      []*Undo
	MoneyCreated uint64
}

// The caller (the block tree) is responsible for only ever reverting
// the block most recently applied (§4.4); BlockUndo.BlockHash lets it
// assert that invariant before calling RevertBlock.

// ApplyBlock validates and applies every transaction in blk to s, in
// block order, and returns the total money created: the coinbase
// output sum plus all non-coinbase fees (§4.4). verify controls
// whether signatures are checked (false only for replaying
// already-verified blocks).
func (s *Set) ApplyBlock(blk *block.Block, verify bool) (moneyCreated uint64, undo *BlockUndo, err error) {
	if len(blk.Transactions) == 0 {
		h := blk.Hash()
		return 0, &BlockUndo{BlockHash: h}, nil
	}
	if !blk.Transactions[0].IsCoinbase() {
		return 0, nil, ErrNoCoinbase
	}

	undo = &BlockUndo{BlockHash: blk.Hash()}

	for i, t := range blk.Transactions {
		if i > 0 && t.IsCoinbase() {
			for j := i - 1; j >= 0; j-- {
				s.revertUndo(undo.TxUndos[j])
			}
			return 0, nil, fmt.Errorf("tx %d (%s): %w", i, t.TxID(), block.ErrMultipleCoinbase)
		}
		fee, txUndo, err := s.ApplyTransaction(t, verify)
		if err != nil {
			// Roll back everything applied so far in this block before
			// surfacing the error, so a rejected block leaves s untouched.
			for j := i - 1; j >= 0; j-- {
				s.revertUndo(undo.TxUndos[j])
			}
			return 0, nil, fmt.Errorf("tx %d (%s): %w", i, t.TxID(), err)
		}
		s.stampHeight(txUndo, blk.Height)
		undo.TxUndos = append(undo.TxUndos, txUndo)
		if i == 0 {
			moneyCreated = fee // coinbase: ApplyTransaction returned its output sum as "fee"
		} else {
			if moneyCreated > ^uint64(0)-fee {
				for j := len(undo.TxUndos) - 1; j >= 0; j-- {
					s.revertUndo(undo.TxUndos[j])
				}
				return 0, nil, fmt.Errorf("money created overflow")
			}
			moneyCreated += fee
		}
	}

	undo.MoneyCreated = moneyCreated
	return moneyCreated, undo, nil
}

// RevertBlock reverses the effect of the most recently applied
// ApplyBlock call (§4.4). Transactions are reverted in reverse block
// order, each transaction's inputs/outputs in reverse application
// order, matching the teacher's reorg.go revertBlock idiom.
func (s *Set) RevertBlock(undo *BlockUndo) {
	for i := len(undo.TxUndos) - 1; i >= 0; i-- {
		s.revertUndo(undo.TxUndos[i])
	}
}

// ExtendTip applies blk as the new chain tip, recording its undo on
// the set's undo stack so a later RevertBlock/rewind can undo it in
// turn.
func (s *Set) ExtendTip(blk *block.Block, verify bool) (uint64, error) {
	moneyCreated, undo, err := s.ApplyBlock(blk, verify)
	if err != nil {
		return 0, err
	}
	s.undoLog = append(s.undoLog, undo)
	s.tip = blk
	return moneyCreated, nil
}

// RewindTip reverts the current tip and moves the tip pointer to its
// parent. Returns ErrNoSuchBlockToUndo if the set has no applied chain.
func (s *Set) RewindTip() error {
	if len(s.undoLog) == 0 || s.tip == nil {
		return ErrNoSuchBlockToUndo
	}
	last := s.undoLog[len(s.undoLog)-1]
	if last.BlockHash != s.tip.Hash() {
		return ErrNoSuchBlockToUndo
	}
	s.RevertBlock(last)
	s.undoLog = s.undoLog[:len(s.undoLog)-1]
	s.tip = s.tip.Parent
	return nil
}

// MoveOnChain rewinds the authoritative chain from its current tip to
// the common ancestor with target, then applies forward along
// target's chain (§4.4). Heights are first equalised, then both
// chains are walked in lockstep via Parent pointers until the same
// block is reached — mirroring the teacher's collectBranch/Reorg
// common-ancestor search, adapted to operate over in-memory Parent
// links instead of a height-indexed block store.
func (s *Set) MoveOnChain(target *block.Block, verify bool) error {
	if s.tip == nil {
		s.tip = target.Parent // allow bootstrapping directly onto genesis below
	}

	a := s.tip
	b := target

	var forward []*block.Block
	for a.Height > b.Height {
		a = a.Parent
	}
	for b.Height > a.Height {
		forward = append(forward, b)
		b = b.Parent
	}
	for a.Hash() != b.Hash() {
		if a.Height == 0 || b.Height == 0 {
			return fmt.Errorf("move_on_chain: no common ancestor found")
		}
		a = a.Parent
		forward = append(forward, b)
		b = b.Parent
	}

	for s.tip != nil && s.tip.Hash() != a.Hash() {
		if err := s.RewindTip(); err != nil {
			return fmt.Errorf("move_on_chain: rewind: %w", err)
		}
	}
	if s.tip == nil {
		s.tip = a
	}

	for i := len(forward) - 1; i >= 0; i-- {
		if _, err := s.ExtendTip(forward[i], verify); err != nil {
			return fmt.Errorf("move_on_chain: apply %s: %w", forward[i].Hash(), err)
		}
	}

	return nil
}
