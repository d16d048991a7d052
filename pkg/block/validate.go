package block

import (
	"errors"
	"fmt"
)

// Structural validation errors. Consensus-level rules (linkage,
// timestamp bounds, difficulty, proof-of-work, Merkle root, UTXO
// application, reward cap — §4.3) live in the validator package, not
// here; Validate checks only what is true of a block in isolation.
var (
	ErrNoCoinbase       = errors.New("first transaction must be the single coinbase")
	ErrMultipleCoinbase = errors.New("multiple coinbase transactions in block")
)

// Validate checks block-local structural invariants: every transaction
// is individually well-formed (§3), and if the block carries any
// transactions the first is the single coinbase and no other
// transaction is a coinbase (§9: coinbase detection requires exactly
// one coinbase transaction, and it must be first).
func (b *Block) Validate() error {
	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if len(b.Transactions) == 0 {
		return nil
	}

	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	return nil
}
