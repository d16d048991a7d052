package node

import (
	"context"
	"testing"
	"time"

	"github.com/pebblechain/pebblechain/config"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	require.NoError(t, config.EnsureDataDirs(cfg))

	n, err := New(cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(n.Stop)
	return n
}

func TestNewAddress_PersistsToKeyDirFile(t *testing.T) {
	n := newTestNode(t)
	mnemonic, pub, err := n.NewAddress()
	require.NoError(t, err)
	require.NotEmpty(t, mnemonic)

	bal, err := n.Balance(&pub)
	require.NoError(t, err)
	require.Zero(t, bal)

	require.Equal(t, 1, n.keys.Len())
	require.FileExists(t, n.cfg.KeyDirFile())
}

func TestStartStopMining_RejectsDoubleStartAndStop(t *testing.T) {
	n := newTestNode(t)
	_, pub, err := n.NewAddress()
	require.NoError(t, err)

	require.NoError(t, n.StartMining(pub))
	require.ErrorIs(t, n.StartMining(pub), ErrMinerAlreadyRunning)

	require.NoError(t, n.StopMining())
	require.ErrorIs(t, n.StopMining(), ErrMinerNotRunning)
}

func TestMiningFundsBalanceAndSend(t *testing.T) {
	n := newTestNode(t)
	_, miner, err := n.NewAddress()
	require.NoError(t, err)
	_, receiver, err := n.NewAddress()
	require.NoError(t, err)

	require.NoError(t, n.StartMining(miner))
	defer n.StopMining()

	require.Eventually(t, func() bool {
		return n.Tree().Head().Height >= 1
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, n.StopMining())

	bal, err := n.Balance(&miner)
	require.NoError(t, err)
	require.NotZero(t, bal)

	txid, err := n.Send(receiver, 1)
	require.NoError(t, err)
	require.NotZero(t, txid)
	require.True(t, n.Pool().Has(txid))

	recvBal, err := n.Balance(&receiver)
	require.NoError(t, err)
	require.Zero(t, recvBal, "receiver's output is only in the mempool shadow set, not yet confirmed")
}

func TestSend_RejectsInsufficientFunds(t *testing.T) {
	n := newTestNode(t)
	_, pub, err := n.NewAddress()
	require.NoError(t, err)

	_, err = n.Send(pub, 1)
	require.Error(t, err)
}

func TestTipSummary_WalksBackFromHead(t *testing.T) {
	n := newTestNode(t)
	_, pub, err := n.NewAddress()
	require.NoError(t, err)

	require.NoError(t, n.StartMining(pub))
	require.Eventually(t, func() bool {
		return n.Tree().Head().Height >= 1
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, n.StopMining())

	entries := n.TipSummary(10)
	require.Len(t, entries, int(n.Tree().Head().Height)+1)
	require.Equal(t, n.Tree().Head().Hash(), entries[0].Hash)
	require.Equal(t, uint64(0), entries[len(entries)-1].Height)
}

func TestBalance_NoAddressSumsAllKnownKeys(t *testing.T) {
	n := newTestNode(t)
	_, pubA, err := n.NewAddress()
	require.NoError(t, err)

	require.NoError(t, n.StartMining(pubA))
	require.Eventually(t, func() bool {
		return n.Tree().Head().Height >= 1
	}, 10*time.Second, 10*time.Millisecond)
	require.NoError(t, n.StopMining())

	total, err := n.Balance(nil)
	require.NoError(t, err)

	aOnly, err := n.Balance(&pubA)
	require.NoError(t, err)
	require.Equal(t, aOnly, total)
}

func TestSend_ZeroAmountRejected(t *testing.T) {
	n := newTestNode(t)
	_, pub, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = n.Send(pub, 0)
	require.Error(t, err)
}
