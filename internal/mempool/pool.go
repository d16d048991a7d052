// Package mempool holds unconfirmed transactions awaiting block
// inclusion, alongside a shadow UTXO copy kept in sync with whatever is
// currently admitted (§4.6).
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// MinFee is the flat per-transaction fee floor admitted transactions
// must clear (§4.6). Unlike the teacher's per-byte fee-rate policy,
// spec.md fixes a single constant threshold rather than a configurable
// rate.
const MinFee = 10

var (
	ErrInvalidTransaction = errors.New("transaction failed UTXO validation")
	ErrFeeTooLow          = errors.New("transaction fee below the minimum")
)

// Pool holds unconfirmed transactions plus the shadow UTXO set that
// already reflects everything currently admitted. authoritative is the
// live UTXO set the block tree maintains; Pool only ever reads it via
// Copy, never mutates it directly.
type Pool struct {
	mu sync.Mutex

	authoritative *utxo.Set
	shadow        *utxo.Set

	txs       map[types.Hash]*tx.Transaction
	order     []types.Hash // insertion order, preserved across re-admission
	fees      map[types.Hash]uint64
	totalFees uint64

	onUpdate []func()
}

// New creates a mempool whose shadow UTXO set starts as a copy of
// authoritative. authoritative must be the same *utxo.Set object the
// block tree mutates in place, since re-admission after a head change
// reads straight from it.
func New(authoritative *utxo.Set) *Pool {
	return &Pool{
		authoritative: authoritative,
		shadow:        authoritative.Copy(),
		txs:           make(map[types.Hash]*tx.Transaction),
		fees:          make(map[types.Hash]uint64),
	}
}

// OnUpdate registers fn to be called, synchronously, whenever the
// admitted transaction set changes (an addition or a head-change
// re-admission). The miner uses this to retarget its candidate.
func (p *Pool) OnUpdate(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = append(p.onUpdate, fn)
}

// AddTransaction validates t against the shadow UTXO set and, on
// success, admits it (§4.6). A transaction already present is a silent
// no-op, matching add_transaction's idempotent re-submission.
func (p *Pool) AddTransaction(t *tx.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(t)
}

func (p *Pool) addLocked(t *tx.Transaction) error {
	txid := t.TxID()
	if _, ok := p.txs[txid]; ok {
		return nil
	}
	if t.IsCoinbase() {
		return fmt.Errorf("%w: coinbase transaction", ErrInvalidTransaction)
	}

	cp := p.shadow.Copy()
	fee, _, err := cp.ApplyTransaction(t, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if fee < MinFee {
		return fmt.Errorf("%w: got %d, need %d", ErrFeeTooLow, fee, MinFee)
	}

	p.shadow = cp
	p.txs[txid] = t
	p.order = append(p.order, txid)
	p.fees[txid] = fee
	p.totalFees += fee

	p.notifyLocked()
	return nil
}

// HandleHeadChange implements §4.6's "on head change" behaviour: drop
// whatever the new head confirmed, rebuild the shadow set from the
// (now current) authoritative set, and re-admit every surviving
// transaction in its original insertion order, silently dropping any
// that no longer apply. Register this directly with the block tree's
// OnHeadChange — it must not call back into the tree, since the tree
// invokes head-change subscribers while still holding its own lock.
func (p *Pool) HandleHeadChange(head *block.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	confirmed := make(map[types.Hash]bool, len(head.Transactions))
	for _, t := range head.Transactions {
		confirmed[t.TxID()] = true
	}

	survivors := make([]types.Hash, 0, len(p.order))
	for _, txid := range p.order {
		if !confirmed[txid] {
			survivors = append(survivors, txid)
		}
	}

	shadow := p.authoritative.Copy()
	txs := make(map[types.Hash]*tx.Transaction, len(survivors))
	fees := make(map[types.Hash]uint64, len(survivors))
	order := make([]types.Hash, 0, len(survivors))
	var totalFees uint64

	for _, txid := range survivors {
		t := p.txs[txid]
		fee, _, err := shadow.ApplyTransaction(t, true)
		if err != nil {
			log.Mempool.Info().Err(err).Str("tx", txid.String()).Msg("drop mempool transaction: invalidated by reorg")
			continue
		}
		txs[txid] = t
		fees[txid] = fee
		order = append(order, txid)
		totalFees += fee
	}

	p.shadow = shadow
	p.txs = txs
	p.fees = fees
	p.order = order
	p.totalFees = totalFees

	p.notifyLocked()
}

func (p *Pool) notifyLocked() {
	for _, fn := range p.onUpdate {
		fn()
	}
}

// Has reports whether txid is currently admitted.
func (p *Pool) Has(txid types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.txs[txid]
	return ok
}

// Get returns the admitted transaction for txid, if any.
func (p *Pool) Get(txid types.Hash) (*tx.Transaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.txs[txid]
	return t, ok
}

// Len returns the number of currently admitted transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// TotalFees returns the sum of fees across every admitted transaction.
func (p *Pool) TotalFees() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFees
}

// Transactions returns every admitted transaction in insertion order,
// the order the miner includes them in a candidate block.
func (p *Pool) Transactions() []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*tx.Transaction, len(p.order))
	for i, txid := range p.order {
		out[i] = p.txs[txid]
	}
	return out
}
