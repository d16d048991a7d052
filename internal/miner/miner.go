// Package miner runs the continuous proof-of-work loop that turns the
// current head and mempool into candidate blocks and, eventually,
// solved ones (§4.7).
package miner

import (
	"encoding/binary"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/mempool"
	"github.com/pebblechain/pebblechain/internal/tree"
	"github.com/pebblechain/pebblechain/internal/validator"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// batchSize is how many nonces the mining loop tries between checks of
// the stop/retarget flags, matching the original miner's 100k-hash
// inner loop (§4.7).
const batchSize = 100_000

// Miner builds candidate blocks against the current head and mempool,
// and mines them in a background goroutine. It never blocks on the
// block tree directly: the outer driver polls TakeSolvedBlock and
// submits whatever it finds to the tree and the network.
type Miner struct {
	tree   *tree.Tree
	pool   *mempool.Pool
	params validator.Params
	reward types.PublicKey

	mu        sync.Mutex
	candidate *block.Block // nullable: the block currently being mined
	solved    *block.Block // nullable: a found solution awaiting pickup
	hashrate  float64
	running   bool

	retargetCh chan struct{} // signals the mining loop to pick up a new candidate
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New creates a miner that pays block rewards to reward and builds
// candidates from t's head and pool's admitted transactions.
func New(t *tree.Tree, pool *mempool.Pool, params validator.Params, reward types.PublicKey) *Miner {
	return &Miner{
		tree:       t,
		pool:       pool,
		params:     params,
		reward:     reward,
		retargetCh: make(chan struct{}, 1),
	}
}

// Start subscribes the miner to head and mempool changes, builds an
// initial candidate, and launches the mining goroutine. Calling Start
// twice without an intervening Stop is a no-op.
func (m *Miner) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	m.tree.OnHeadChange(func(*block.Block) { m.Retarget() })
	m.pool.OnUpdate(func() { m.Retarget() })

	m.Retarget()

	go m.mine()
}

// Stop signals the mining goroutine to exit and waits for it to do so.
func (m *Miner) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
}

// Hashrate returns the most recently measured hashes-per-second rate.
func (m *Miner) Hashrate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashrate
}

// TakeSolvedBlock returns and clears the most recently solved block,
// or nil if none is waiting (§4.7's get_mined_block).
func (m *Miner) TakeSolvedBlock() *block.Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.solved
	m.solved = nil
	return b
}

// Retarget builds a new candidate block against the current head and
// mempool contents, and signals the mining loop to switch to it
// (§4.7). Called on construction, on every head change, and on every
// mempool change.
func (m *Miner) Retarget() {
	head := m.tree.Head()

	mempoolTxs := m.pool.Transactions()
	txs := make([]*tx.Transaction, 0, 1+len(mempoolTxs))
	txs = append(txs, m.buildCoinbase(head, m.pool.TotalFees()))
	txs = append(txs, mempoolTxs...)

	leaves := make([][]byte, len(txs))
	for i, t := range txs {
		leaves[i] = t.Encode()
	}

	candidate := block.NewBlock(block.Header{
		PrevHash:   head.Hash(),
		MerkleRoot: block.ComputeMerkleRoot(leaves),
		Timestamp:  uint64(time.Now().Unix()),
		Diff:       validator.GetNextDiff(head, m.params),
	}, txs)
	candidate.Parent = head
	candidate.Height = head.Height + 1

	m.mu.Lock()
	m.candidate = candidate
	m.mu.Unlock()

	select {
	case m.retargetCh <- struct{}{}:
	default:
	}
}

// buildCoinbase constructs the reward transaction: a single output
// paying reward+fees to the configured address, with a randomly drawn
// input index so the coinbase's txid is unique across candidates.
func (m *Miner) buildCoinbase(head *block.Block, fees uint64) *tx.Transaction {
	reward := m.params.RewardAt(head.Height+1) + fees
	return &tx.Transaction{
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{Index: rand.Uint32()}}},
		Outputs: []tx.Output{{Amount: reward, PubKey: m.reward}},
	}
}

// mine runs the proof-of-work loop: pick up the current candidate,
// hash nonces in batches, measure hashrate, and publish any solution
// found. It exits once Stop closes m.stopCh.
func (m *Miner) mine() {
	defer close(m.doneCh)

	nonce := uint64(rand.Uint32())

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		m.mu.Lock()
		candidate := m.candidate
		m.mu.Unlock()
		if candidate == nil {
			select {
			case <-m.stopCh:
				return
			case <-m.retargetCh:
			}
			continue
		}

		select {
		case <-m.retargetCh:
		default:
		}

		start := time.Now()
		startNonce := nonce
		var stopped bool
		nonce, stopped = m.mineBatch(candidate, nonce)

		elapsed := time.Since(start).Seconds()
		if elapsed > 0 {
			m.mu.Lock()
			m.hashrate = float64(nonce-startNonce) / elapsed
			m.mu.Unlock()
		}
		if stopped {
			return
		}
	}
}

// mineBatch hashes up to batchSize nonces starting from nonce against
// candidate, stopping early if a solution is found, a retarget is
// requested, or the miner is told to stop. Returns the next nonce to
// try and whether the caller should stop entirely.
func (m *Miner) mineBatch(candidate *block.Block, nonce uint64) (next uint64, stop bool) {
	prefix := candidate.Header.NoncePrefix()
	target := validator.Target(candidate.Header.Diff)
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)

	for i := 0; i < batchSize; i++ {
		select {
		case <-m.stopCh:
			return nonce, true
		case <-m.retargetCh:
			// A newer candidate is already in place (Retarget sets it
			// before signaling); abort this batch and pick it up.
			return nonce, false
		default:
		}

		binary.BigEndian.PutUint64(buf[len(prefix):], nonce)
		h := crypto.Hash(buf)

		if meetsTarget(h, target) {
			candidate.Header.Nonce = nonce
			log.Miner.Info().Str("block", candidate.Hash().String()).Msg("found a block")
			m.mu.Lock()
			m.solved = candidate
			m.candidate = nil
			m.mu.Unlock()
			return nonce + 1, false
		}
		nonce++
	}
	return nonce, false
}

func meetsTarget(hash types.Hash, target *big.Int) bool {
	h := new(big.Int).SetBytes(hash[:])
	return h.Cmp(target) < 0
}
