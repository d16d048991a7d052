// Package block defines the block type and its canonical
// (de)serialization, including the genesis block and Merkle root
// computation.
package block

import (
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/codec"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// Block is a header plus an ordered list of transactions. Parent and
// Height are derived, non-persistent fields (§3): they are populated by
// the block tree once a block is linked to a known parent, not by
// Decode, and are never part of the wire encoding or the block hash.
type Block struct {
	Header       Header            `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`

	Parent *Block `json:"-"`
	Height uint64 `json:"-"`
}

// NewBlock constructs a block from a header and transaction list. Parent
// and Height are left zero-valued; the block tree sets them on link.
func NewBlock(header Header, txs []*tx.Transaction) *Block {
	return &Block{Header: header, Transactions: txs}
}

// Hash returns the block hash (the consensus hash of the serialized header).
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// Encode serializes the full block per §6:
// header ‖ u32 tx_count ‖ tx[0..n].
func (b *Block) Encode() []byte {
	w := codec.NewWriter(HeaderSize + 4 + 256*len(b.Transactions))
	b.Header.encodeTo(w)
	w.WriteU32(uint32(len(b.Transactions)))
	for _, t := range b.Transactions {
		w.WriteBytes(t.Encode())
	}
	return w.Bytes()
}

// Decode parses a Block from its canonical encoding. Parent and Height
// are left unset; the caller (the block tree) links the block to its
// parent and derives Height = parent.Height + 1.
func Decode(data []byte) (*Block, error) {
	r := codec.NewReader(data)
	header, err := DecodeHeader(r)
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	count, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("decode tx count: %w", err)
	}

	txs := make([]*tx.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		t, err := tx.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode tx %d: %w", i, err)
		}
		txs = append(txs, t)
	}

	return &Block{Header: header, Transactions: txs}, nil
}

// MerkleRoot computes the Merkle root over this block's transactions,
// serialized in block order (§4.3 step 5).
func (b *Block) MerkleRoot() types.Hash {
	leaves := make([][]byte, len(b.Transactions))
	for i, t := range b.Transactions {
		leaves[i] = t.Encode()
	}
	return ComputeMerkleRoot(leaves)
}

// GenesisPrevHash is the fixed, non-existent parent hash used by
// genesis: 0xDEADBEEF repeated to fill 32 bytes (§6).
var GenesisPrevHash = func() types.Hash {
	var h types.Hash
	for i := 0; i < types.HashSize; i += 4 {
		h[i] = 0xDE
		h[i+1] = 0xAD
		h[i+2] = 0xBE
		h[i+3] = 0xEF
	}
	return h
}()

// Genesis constructs the deterministic genesis block (§6): no
// transactions, diff 1, nonce 0, timestamp 0, and a Merkle root of
// h(""). Genesis is its own parent and has height 0.
func Genesis() *Block {
	g := &Block{
		Header: Header{
			PrevHash:   GenesisPrevHash,
			MerkleRoot: ComputeMerkleRoot(nil),
			Timestamp:  0,
			Diff:       1,
			Nonce:      0,
		},
		Height: 0,
	}
	g.Parent = g
	return g
}
