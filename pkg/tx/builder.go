package tx

import (
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// Builder constructs transactions incrementally, in the style of a
// wallet assembling a spend: add inputs and outputs, then sign each
// input with the key that owns the output it spends.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// AddInput adds an input referencing a previous output.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddOutput adds an output paying amount to pub.
func (b *Builder) AddOutput(amount uint64, pub types.PublicKey) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Amount: amount, PubKey: pub})
	return b
}

// Sign signs every non-coinbase input with the given private key. Used
// when all spent outputs belong to the same key.
func (b *Builder) Sign(priv types.PrivateKey) {
	txid := b.tx.TxID()
	sig := crypto.Sign(priv, txid[:])
	for i := range b.tx.Inputs {
		if b.tx.Inputs[i].IsCoinbase() {
			continue
		}
		b.tx.Inputs[i].Signature = sig
	}
}

// SignMulti signs each input with the key that owns the output it
// spends. keyFor maps an outpoint to the private key able to spend it;
// a missing mapping for a non-coinbase input is an error.
func (b *Builder) SignMulti(keyFor func(types.Outpoint) (types.PrivateKey, bool)) error {
	txid := b.tx.TxID()
	for i := range b.tx.Inputs {
		in := &b.tx.Inputs[i]
		if in.IsCoinbase() {
			continue
		}
		priv, ok := keyFor(in.PrevOut)
		if !ok {
			return fmt.Errorf("input %d (%s): no signing key available", i, in.PrevOut)
		}
		in.Signature = crypto.Sign(priv, txid[:])
	}
	return nil
}

// Build returns the constructed transaction. Does not validate — call
// tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
