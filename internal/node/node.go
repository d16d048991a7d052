// Package node wires together the block tree, mempool, miner, key
// directory, and peer transport into one runnable process (§6's
// programmatic methods the operator interface proxies).
package node

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pebblechain/pebblechain/config"
	klog "github.com/pebblechain/pebblechain/internal/keydir"
	"github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/mempool"
	"github.com/pebblechain/pebblechain/internal/miner"
	"github.com/pebblechain/pebblechain/internal/p2p"
	"github.com/pebblechain/pebblechain/internal/snapshot"
	"github.com/pebblechain/pebblechain/internal/tree"
	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/rs/zerolog"
)

// ErrMinerAlreadyRunning and ErrMinerNotRunning are §7's MinerState
// error kind: starting an already-running miner or stopping an idle
// one.
var (
	ErrMinerAlreadyRunning = fmt.Errorf("miner is already running")
	ErrMinerNotRunning     = fmt.Errorf("miner is not running")
)

// Node is a fully wired blockchain node: the block tree, mempool,
// key directory, optional snapshot store, and peer transport. Mining
// is started and stopped explicitly via StartMining/StopMining rather
// than being always-on, matching the operator interface's
// start_mining(addr)/stop_mining() pair.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	tree *tree.Tree
	pool *mempool.Pool
	keys *klog.Dir
	snap *snapshot.Store // nil when snapshotting is disabled

	transport *p2p.Server

	mu     sync.Mutex
	m      *miner.Miner // nil when not mining
	peers  []string     // configured peer addresses to dial
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a Node from cfg: loads or creates the key directory and
// builds the block tree from genesis. snap, if non-nil, receives a
// checkpoint after every locally mined block; it is never consulted
// for validation.
func New(cfg *config.Config, snap *snapshot.Store, peers []string) (*Node, error) {
	keys, err := klog.Load(cfg.KeyDirFile())
	if err != nil {
		return nil, fmt.Errorf("loading key directory: %w", err)
	}

	genesis := block.Genesis()
	t, err := tree.New(genesis, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("building block tree: %w", err)
	}

	pool := mempool.New(t.UTXOSet())
	t.OnHeadChange(pool.HandleHeadChange)

	n := &Node{
		cfg:    cfg,
		logger: log.WithComponent("node"),
		tree:   t,
		pool:   pool,
		keys:   keys,
		snap:   snap,
		peers:  peers,
	}
	return n, nil
}

// Start launches the peer transport listener and dials configured
// peers. It does not start mining; call StartMining for that.
func (n *Node) Start(ctx context.Context, listenAddr string) error {
	n.mu.Lock()
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.mu.Unlock()

	handlers := p2p.Handlers{
		OnBlock: n.handlePeerBlock,
		OnTx:    n.handlePeerTx,
		OnRequest: func(h types.Hash) (*block.Block, bool) {
			return n.tree.Get(h)
		},
	}
	n.transport = p2p.NewServer(handlers)
	if listenAddr != "" {
		if err := n.transport.Listen(listenAddr); err != nil {
			return fmt.Errorf("starting peer transport: %w", err)
		}
	}

	for _, addr := range n.peers {
		addr := addr
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.dialPeer(addr, handlers)
		}()
	}

	return nil
}

func (n *Node) dialPeer(addr string, handlers p2p.Handlers) {
	peer, err := p2p.Dial(n.ctx, addr, handlers)
	if err != nil {
		n.logger.Warn().Err(err).Str("peer", addr).Msg("dial failed")
		return
	}
	n.transport.Track(peer)
	defer n.transport.Untrack(peer)
	if err := peer.Serve(n.ctx); err != nil {
		n.logger.Debug().Err(err).Str("peer", addr).Msg("peer connection closed")
	}
}

func (n *Node) handlePeerBlock(b *block.Block) {
	if err := n.tree.AddBlock(b); err != nil {
		n.logger.Debug().Err(err).Str("block", b.Hash().String()).Msg("rejected peer block")
	}
}

func (n *Node) handlePeerTx(t *tx.Transaction) {
	if err := n.pool.AddTransaction(t); err != nil {
		n.logger.Debug().Err(err).Str("tx", t.TxID().String()).Msg("rejected peer transaction")
	}
}

// Stop stops mining (if running), closes the transport, and waits for
// background goroutines to exit.
func (n *Node) Stop() {
	_ = n.StopMining()

	n.mu.Lock()
	cancel := n.cancel
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if n.transport != nil {
		_ = n.transport.Close()
	}
	n.wg.Wait()
}

// StartMining begins mining blocks that pay rewards to addr. Returns
// ErrMinerAlreadyRunning if mining is already in progress.
func (n *Node) StartMining(addr types.PublicKey) error {
	n.mu.Lock()
	if n.m != nil {
		n.mu.Unlock()
		return ErrMinerAlreadyRunning
	}
	m := miner.New(n.tree, n.pool, n.cfg.Params, addr)
	n.m = m
	n.mu.Unlock()

	m.Start()
	n.wg.Add(1)
	go n.pumpSolvedBlocks(m)
	return nil
}

// StopMining halts the running miner. Returns ErrMinerNotRunning if
// mining is not currently in progress.
func (n *Node) StopMining() error {
	n.mu.Lock()
	m := n.m
	n.m = nil
	n.mu.Unlock()

	if m == nil {
		return ErrMinerNotRunning
	}
	m.Stop()
	return nil
}

// pumpSolvedBlocks polls the miner for solved blocks and submits each
// to the block tree, broadcasting accepted blocks to connected peers
// and checkpointing the UTXO set if a snapshot store is configured.
// It exits once n.m no longer points at the miner it was launched
// for (StopMining clears n.m before calling m.Stop).
func (n *Node) pumpSolvedBlocks(m *miner.Miner) {
	defer n.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		n.mu.Lock()
		current := n.m
		n.mu.Unlock()
		if current != m {
			return
		}

		b := m.TakeSolvedBlock()
		if b == nil {
			continue
		}
		if err := n.tree.AddBlock(b); err != nil {
			n.logger.Warn().Err(err).Str("block", b.Hash().String()).Msg("solved block rejected by tree")
			continue
		}
		n.logger.Info().Str("block", b.Hash().String()).Uint64("height", b.Height).Msg("mined block accepted")
		if n.transport != nil {
			n.transport.Broadcast(p2p.BlockFrame(b.Encode()))
		}
		if n.snap != nil {
			if err := n.snap.Save(n.tree.UTXOSet()); err != nil {
				n.logger.Warn().Err(err).Msg("checkpoint save failed")
			}
		}
	}
}

// Hashrate reports the running miner's most recent measured hashrate,
// or 0 if mining is not in progress.
func (n *Node) Hashrate() float64 {
	n.mu.Lock()
	m := n.m
	n.mu.Unlock()
	if m == nil {
		return 0
	}
	return m.Hashrate()
}

// NewAddress derives a fresh mnemonic-backed keypair, records it in
// the key directory, and returns the recovery mnemonic and the new
// public key.
func (n *Node) NewAddress() (mnemonic string, pub types.PublicKey, err error) {
	return klog.NewAddress(n.keys)
}

// Balance sums the value of every unspent output owned by addr. If
// addr is nil, it sums across every address the key directory holds.
func (n *Node) Balance(addr *types.PublicKey) (uint64, error) {
	owners := map[types.PublicKey]bool{}
	if addr != nil {
		owners[*addr] = true
	} else {
		for _, pub := range n.keys.PublicKeys() {
			owners[pub] = true
		}
	}

	var total uint64
	err := n.tree.UTXOSet().ForEach(func(_ types.Outpoint, e utxo.Entry) error {
		if owners[e.Output.PubKey] {
			total += e.Output.Amount
		}
		return nil
	})
	return total, err
}

// spendableOutput is one candidate input for coin selection: an
// outpoint and its value.
type spendableOutput struct {
	Outpoint types.Outpoint
	Value    uint64
}

// Send builds, signs, and admits to the mempool a transaction paying
// amount to dest from addresses the key directory controls. Coin
// selection is largest-first: accumulate outputs until amount plus
// the flat minimum fee is covered, returning any excess as change to
// the first selected input's owning address.
func (n *Node) Send(dest types.PublicKey, amount uint64) (types.Hash, error) {
	if amount == 0 {
		return types.Hash{}, fmt.Errorf("amount must be positive")
	}

	owned := map[types.PublicKey]bool{}
	for _, pub := range n.keys.PublicKeys() {
		owned[pub] = true
	}

	var candidates []spendableOutput
	ownerOf := map[types.Outpoint]types.PublicKey{}
	err := n.tree.UTXOSet().ForEach(func(op types.Outpoint, e utxo.Entry) error {
		if owned[e.Output.PubKey] {
			candidates = append(candidates, spendableOutput{Outpoint: op, Value: e.Output.Amount})
			ownerOf[op] = e.Output.PubKey
		}
		return nil
	})
	if err != nil {
		return types.Hash{}, err
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Value > candidates[j].Value })

	target := amount + mempool.MinFee
	var selected []spendableOutput
	var total uint64
	for _, c := range candidates {
		selected = append(selected, c)
		total += c.Value
		if total >= target {
			break
		}
	}
	if total < target {
		return types.Hash{}, fmt.Errorf("insufficient funds: have %d, need %d", total, target)
	}

	t := &tx.Transaction{
		Outputs: []tx.Output{{Amount: amount, PubKey: dest}},
	}
	change := total - target
	if change > 0 {
		t.Outputs = append(t.Outputs, tx.Output{Amount: change, PubKey: ownerOf[selected[0].Outpoint]})
	}
	for _, c := range selected {
		t.Inputs = append(t.Inputs, tx.Input{PrevOut: c.Outpoint})
	}

	txid := t.TxID()
	for i, c := range selected {
		priv, ok := n.keys.Lookup(ownerOf[c.Outpoint])
		if !ok {
			return types.Hash{}, fmt.Errorf("no private key for input %s", c.Outpoint)
		}
		t.Inputs[i].Signature = crypto.Sign(priv, txid[:])
	}

	if err := n.pool.AddTransaction(t); err != nil {
		return types.Hash{}, fmt.Errorf("admitting transaction: %w", err)
	}
	if n.transport != nil {
		n.transport.Broadcast(p2p.TxFrame(t.Encode()))
	}
	return txid, nil
}

// TipEntry summarizes one block for tip_summary.
type TipEntry struct {
	Hash      types.Hash
	Height    uint64
	Timestamp uint64
	TxCount   int
}

// TipSummary walks back from the current head, returning up to limit
// entries, most recent first.
func (n *Node) TipSummary(limit int) []TipEntry {
	entries := make([]TipEntry, 0, limit)
	b := n.tree.Head()
	for i := 0; i < limit && b != nil; i++ {
		entries = append(entries, TipEntry{
			Hash:      b.Hash(),
			Height:    b.Height,
			Timestamp: b.Header.Timestamp,
			TxCount:   len(b.Transactions),
		})
		if b.Height == 0 {
			break
		}
		b = b.Parent
	}
	return entries
}

// Tree returns the node's block tree, for callers (e.g. the operator
// interface) that need lower-level access than the methods above.
func (n *Node) Tree() *tree.Tree { return n.tree }

// Pool returns the node's mempool.
func (n *Node) Pool() *mempool.Pool { return n.pool }
