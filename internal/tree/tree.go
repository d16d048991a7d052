// Package tree maintains the in-memory block tree: every validated
// block, the blocks still waiting on an unseen parent, and the
// current head (§4.5). It is grounded on the teacher's
// internal/chain package — the mutex-guarded single-writer shape of
// chain.go's Chain, the Set*Handler callback-field idiom used there
// for cross-component notification, and processor.go's
// fork-detection-then-reorg flow in ProcessBlock — adapted from a
// persistent, badger-backed chain store into a pure in-memory tree,
// since block-tree persistence beyond process lifetime is an
// explicit non-goal.
package tree

import (
	"fmt"
	"sync"
	"time"

	"github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/internal/validator"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// HeadChangeFunc is notified whenever the head advances to a new block.
type HeadChangeFunc func(head *block.Block)

// Tree is the authoritative in-memory block tree plus the UTXO set it
// keeps applied to the current head. A single mutex serializes
// AddBlock calls (§5's single logical writer).
type Tree struct {
	mu sync.Mutex

	validated map[types.Hash]*block.Block
	pending   map[types.Hash][]*block.Block // keyed by the missing parent's hash
	head      *block.Block

	utxos  *utxo.Set
	params validator.Params
	now    func() uint64 // injectable wall clock, defaults to time.Now

	onHeadChange []HeadChangeFunc
}

// New creates a block tree rooted at genesis, with the authoritative
// UTXO set initialized to genesis's state.
func New(genesis *block.Block, params validator.Params) (*Tree, error) {
	u := utxo.New()
	if _, err := u.ExtendTip(genesis, false); err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	t := &Tree{
		validated: map[types.Hash]*block.Block{genesis.Hash(): genesis},
		pending:   make(map[types.Hash][]*block.Block),
		head:      genesis,
		utxos:     u,
		params:    params,
		now:       func() uint64 { return uint64(time.Now().Unix()) },
	}
	return t, nil
}

// Head returns the current chain tip.
func (t *Tree) Head() *block.Block {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.head
}

// UTXOSet returns the authoritative UTXO set, applied to the current head.
func (t *Tree) UTXOSet() *utxo.Set {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.utxos
}

// Get looks up a validated block by hash.
func (t *Tree) Get(hash types.Hash) (*block.Block, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.validated[hash]
	return b, ok
}

// OnHeadChange registers fn to be called, synchronously, whenever
// AddBlock moves the head to a new block.
func (t *Tree) OnHeadChange(fn HeadChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onHeadChange = append(t.onHeadChange, fn)
}

// AddBlock implements §4.5's add_block: park b if its parent is
// unknown, otherwise link and validate it, update the head if b
// extends the chain to a strictly greater height, and drain any
// blocks that had been waiting on b.
func (t *Tree) AddBlock(b *block.Block) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addBlockLocked(b)
}

func (t *Tree) addBlockLocked(b *block.Block) error {
	hash := b.Hash()

	// 1. Already known, validated or pending.
	if _, ok := t.validated[hash]; ok {
		return nil
	}
	for _, parked := range t.pending[b.Header.PrevHash] {
		if parked.Hash() == hash {
			return nil
		}
	}

	// 2. Parent unknown: park and wait.
	parent, ok := t.validated[b.Header.PrevHash]
	if !ok {
		t.pending[b.Header.PrevHash] = append(t.pending[b.Header.PrevHash], b)
		return nil
	}

	// 3. Link and validate against a working copy of the authoritative
	// set rewound to b's parent.
	b.Parent = parent
	b.Height = parent.Height + 1

	cp := t.utxos.Copy()
	if err := cp.MoveOnChain(parent, true); err != nil {
		log.Chain.Info().Err(err).Str("block", hash.String()).Msg("drop block: cannot rewind utxo copy to parent")
		return fmt.Errorf("rewind to parent: %w", err)
	}
	if err := validator.ValidateBlock(b, cp, t.now(), t.params); err != nil {
		log.Chain.Info().Err(err).Str("block", hash.String()).Msg("drop block: failed validation")
		return fmt.Errorf("validate block %s: %w", hash, err)
	}

	// 4. Accept.
	t.validated[hash] = b
	if b.Height > t.head.Height {
		previousHead := t.head
		if err := t.utxos.MoveOnChain(b, true); err != nil {
			// The tree's working copy already proved this chain applies
			// cleanly, so this should never fail; surface it loudly if it does.
			return fmt.Errorf("move authoritative utxo set to %s: %w", hash, err)
		}
		t.head = b
		if b.Parent != previousHead {
			depth := reorgDepth(previousHead, b)
			log.Chain.Info().
				Str("from", previousHead.Hash().String()).
				Str("to", hash.String()).
				Int("depth", depth).
				Msg("chain reorg")
		}
		for _, fn := range t.onHeadChange {
			fn(b)
		}
	}

	// 5. Drain anything waiting on b.
	drained := t.pending[hash]
	delete(t.pending, hash)
	for _, child := range drained {
		_ = t.addBlockLocked(child)
	}

	return nil
}

// reorgDepth returns how many blocks were reverted from oldHead to
// reach the common ancestor with newHead — purely descriptive,
// computed the same way utxo.Set.MoveOnChain finds the ancestor.
func reorgDepth(oldHead, newHead *block.Block) int {
	a, b := oldHead, newHead
	depth := 0
	for a.Height > b.Height {
		a = a.Parent
		depth++
	}
	for b.Height > a.Height {
		b = b.Parent
	}
	for a.Hash() != b.Hash() {
		if a.Height == 0 || b.Height == 0 {
			break
		}
		a = a.Parent
		b = b.Parent
		depth++
	}
	return depth
}
