package snapshot

import (
	"testing"

	"github.com/pebblechain/pebblechain/internal/storage"
	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/stretchr/testify/require"
)

func seededSet(t *testing.T) (*utxo.Set, types.PublicKey) {
	set, _, pub := seededSetWithKey(t)
	return set, pub
}

func seededSetWithKey(t *testing.T) (*utxo.Set, types.PrivateKey, types.PublicKey) {
	t.Helper()
	priv, pub, err := crypto.GenerateKey()
	require.NoError(t, err)

	g := block.Genesis()
	set := utxo.New()

	coinbase := &tx.Transaction{
		Inputs:  []tx.Input{{PrevOut: types.Outpoint{Index: 7}}},
		Outputs: []tx.Output{{Amount: 1000, PubKey: pub}},
	}
	next := block.NewBlock(block.Header{
		PrevHash:   g.Hash(),
		MerkleRoot: block.ComputeMerkleRoot([][]byte{coinbase.Encode()}),
		Timestamp:  g.Header.Timestamp + 1,
		Diff:       0,
	}, []*tx.Transaction{coinbase})
	next.Parent = g
	next.Height = 1

	_, err = set.ExtendTip(next, false)
	require.NoError(t, err)
	return set, priv, pub
}

func TestSaveAndLoad_RoundTripsEntries(t *testing.T) {
	set, pub := seededSet(t)
	store := Open(storage.NewMemory())

	require.NoError(t, store.Save(set))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, set.Len(), loaded.Len())

	var found bool
	require.NoError(t, set.ForEach(func(op types.Outpoint, e utxo.Entry) error {
		got, ok := loaded.Get(op)
		require.True(t, ok)
		require.Equal(t, e, got)
		if e.Output.PubKey == pub {
			found = true
		}
		return nil
	}))
	require.True(t, found)
}

func TestSave_RecordsTip(t *testing.T) {
	set, _ := seededSet(t)
	store := Open(storage.NewMemory())
	require.NoError(t, store.Save(set))

	hash, height, ok, err := store.Tip()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, set.Tip().Hash(), hash)
	require.Equal(t, set.Tip().Height, height)
}

func TestTip_NoCheckpointYet(t *testing.T) {
	store := Open(storage.NewMemory())
	_, _, ok, err := store.Tip()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSave_OverwritesPreviousCheckpoint(t *testing.T) {
	set, priv, _ := seededSetWithKey(t)
	store := Open(storage.NewMemory())
	require.NoError(t, store.Save(set))
	require.Equal(t, 1, set.Len())

	// Spend the seeded output so the set shrinks, then save again: the
	// stale entry must not survive in the checkpoint.
	var spent types.Outpoint
	require.NoError(t, set.ForEach(func(op types.Outpoint, _ utxo.Entry) error {
		spent = op
		return nil
	}))
	e, _ := set.Get(spent)

	spendTx := &tx.Transaction{Inputs: []tx.Input{{PrevOut: spent}}, Outputs: []tx.Output{{Amount: e.Output.Amount, PubKey: e.Output.PubKey}}}
	txid := spendTx.TxID()
	spendTx.Inputs[0].Signature = crypto.Sign(priv, txid[:])

	_, _, err := set.ApplyTransaction(spendTx, true)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len(), "spend consumed the seeded output and created one new one")

	require.NoError(t, store.Save(set))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, set.Len(), loaded.Len())
	_, stillThere := loaded.Get(spent)
	require.False(t, stillThere, "spent outpoint must not survive a re-save")
}

func TestCommitment_EmptySetIsZero(t *testing.T) {
	store := Open(storage.NewMemory())
	c, err := store.Commitment()
	require.NoError(t, err)
	require.True(t, c.IsZero())
}

func TestCommitment_DeterministicAcrossSaves(t *testing.T) {
	set, _ := seededSet(t)

	s1 := Open(storage.NewMemory())
	require.NoError(t, s1.Save(set))
	c1, err := s1.Commitment()
	require.NoError(t, err)

	s2 := Open(storage.NewMemory())
	require.NoError(t, s2.Save(set))
	c2, err := s2.Commitment()
	require.NoError(t, err)

	require.Equal(t, c1, c2)
	require.False(t, c1.IsZero())
}

func TestRestore_RejectsDuplicateOutpoint(t *testing.T) {
	set := utxo.New()
	op := types.Outpoint{Index: 1}
	require.NoError(t, set.Restore(op, utxo.Entry{}))
	require.Error(t, set.Restore(op, utxo.Entry{}))
}
