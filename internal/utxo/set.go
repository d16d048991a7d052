// Package utxo maintains the authoritative unspent-output set: a
// partial function (txid, index) -> Output, mutated only by the block
// tree's single logical writer (§3, §4.4).
package utxo

import (
	"errors"
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// Entry is a UTXO set entry: a copy of the Output plus the height of
// the block that confirmed it. The confirming height is carried here
// (rather than a back-pointer to the owning *block.Block) so that
// pkg/tx has no import-time dependency on pkg/block (§9's "weak
// back-reference" is realized as this height field, not a pointer).
type Entry struct {
	Output tx.Output
	Height uint64
}

// Sentinel errors matching §7's InvalidTransaction family.
var (
	ErrUTXONotFound      = errors.New("utxo not found")
	ErrBadSignature      = errors.New("bad signature")
	ErrAmountUnderflow   = errors.New("input sum less than output sum")
	ErrInvalidCoinbase   = errors.New("coinbase transaction with non-coinbase input")
	ErrNoSuchBlockToUndo = errors.New("revert_block called on a block that was not the most recently applied")
)

// Set is the authoritative UTXO set: an in-memory map guarded by the
// caller's single-writer discipline (§5). Persistence beyond process
// lifetime is an explicit non-goal (§1); durability, if wanted, is
// served by the optional, non-authoritative internal/snapshot store.
type Set struct {
	entries map[types.Outpoint]Entry

	tip      *block.Block
	undoLog  []*BlockUndo // undo stack for the chain currently applied, genesis to tip
}

// New creates an empty UTXO set with no chain applied.
func New() *Set {
	return &Set{entries: make(map[types.Outpoint]Entry)}
}

// Tip returns the block the set currently has applied, or nil if none.
func (s *Set) Tip() *block.Block {
	return s.tip
}

// Get returns the entry for an outpoint, if present.
func (s *Set) Get(op types.Outpoint) (Entry, bool) {
	e, ok := s.entries[op]
	return e, ok
}

// ForEach calls fn once per tracked entry, in unspecified order. Used
// by internal/snapshot to checkpoint the set; fn must not mutate s.
func (s *Set) ForEach(fn func(types.Outpoint, Entry) error) error {
	for op, e := range s.entries {
		if err := fn(op, e); err != nil {
			return err
		}
	}
	return nil
}

// Restore inserts an entry without going through ApplyTransaction's
// validation or undo bookkeeping. Used only by internal/snapshot to
// rebuild a set from a checkpoint; the restored set carries no tip or
// undo log, so it is not usable until the caller re-establishes a tip
// (e.g. via ExtendTip on the known-good block it was checkpointed at).
func (s *Set) Restore(op types.Outpoint, e Entry) error {
	if _, exists := s.entries[op]; exists {
		return fmt.Errorf("restore: outpoint %s already present", op)
	}
	s.entries[op] = e
	return nil
}

// Len returns the number of unspent outputs currently tracked.
func (s *Set) Len() int {
	return len(s.entries)
}

// Copy returns a snapshot of the set sufficient for speculative
// validation without disturbing s (§4.4 "copy()").
func (s *Set) Copy() *Set {
	cp := make(map[types.Outpoint]Entry, len(s.entries))
	for k, v := range s.entries {
		cp[k] = v
	}
	undoLog := make([]*BlockUndo, len(s.undoLog))
	copy(undoLog, s.undoLog)
	return &Set{entries: cp, tip: s.tip, undoLog: undoLog}
}

// Undo records what ApplyTransaction / ApplyBlock did, in the order
// needed to reverse it: spent outputs in the order they were removed
// (reinsert in reverse), and the outpoints created (delete in reverse).
// Grounded on the teacher's internal/chain/reorg.go UndoData, reshaped
// as an ephemeral in-memory structure rather than a JSON-persisted one
// since this set has no backing store to recover from (§9).
type Undo struct {
	Spent   []spentEntry
	Created []types.Outpoint
}

type spentEntry struct {
	Outpoint types.Outpoint
	Entry    Entry
}

// ApplyTransaction validates and applies a single transaction to s,
// returning its fee (§4.4). When verify is false, signature checks are
// skipped — used for a coinbase, or by callers that have already
// verified signatures elsewhere.
func (s *Set) ApplyTransaction(t *tx.Transaction, verify bool) (fee uint64, undo *Undo, err error) {
	undo = &Undo{}

	if t.IsCoinbase() {
		total, err := t.TotalOutputValue()
		if err != nil {
			return 0, nil, fmt.Errorf("coinbase output sum: %w", err)
		}
		s.createOutputs(t, undo)
		return total, undo, nil
	}

	for _, in := range t.Inputs {
		if in.IsCoinbase() {
			return 0, nil, ErrInvalidCoinbase
		}
	}

	txid := t.TxID()

	var inputSum uint64
	for _, in := range t.Inputs {
		e, ok := s.entries[in.PrevOut]
		if !ok {
			return 0, nil, fmt.Errorf("%w: %s", ErrUTXONotFound, in.PrevOut)
		}
		if verify && !crypto.Verify(e.Output.PubKey, txid[:], in.Signature) {
			return 0, nil, fmt.Errorf("%w: input spending %s", ErrBadSignature, in.PrevOut)
		}
		if inputSum > ^uint64(0)-e.Output.Amount {
			return 0, nil, fmt.Errorf("%w: input sum overflow", ErrAmountUnderflow)
		}
		inputSum += e.Output.Amount

		undo.Spent = append(undo.Spent, spentEntry{Outpoint: in.PrevOut, Entry: e})
		delete(s.entries, in.PrevOut)
	}

	outputSum, err := t.TotalOutputValue()
	if err != nil {
		return 0, nil, fmt.Errorf("output sum: %w", err)
	}
	if inputSum < outputSum {
		return 0, nil, fmt.Errorf("%w: inputs=%d outputs=%d", ErrAmountUnderflow, inputSum, outputSum)
	}

	s.createOutputs(t, undo)

	return inputSum - outputSum, undo, nil
}

func (s *Set) createOutputs(t *tx.Transaction, undo *Undo) {
	txid := t.TxID()
	for i, out := range t.Outputs {
		op := types.Outpoint{TxID: txid, Index: uint32(i)}
		s.entries[op] = Entry{Output: out}
		undo.Created = append(undo.Created, op)
	}
}

// stampHeight stamps the confirming height onto every entry created by
// a just-applied transaction. ApplyBlock calls it after each
// transaction it applies, since the height is known only at the block
// level.
func (s *Set) stampHeight(undo *Undo, height uint64) {
	for _, op := range undo.Created {
		if e, ok := s.entries[op]; ok {
			e.Height = height
			s.entries[op] = e
		}
	}
}

// revertUndo reverses a single transaction's or block's effect on s:
// delete created outputs (reverse order), then restore spent entries
// (reverse order).
func (s *Set) revertUndo(undo *Undo) {
	for i := len(undo.Created) - 1; i >= 0; i-- {
		delete(s.entries, undo.Created[i])
	}
	for i := len(undo.Spent) - 1; i >= 0; i-- {
		se := undo.Spent[i]
		s.entries[se.Outpoint] = se.Entry
	}
}
