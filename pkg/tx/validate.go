package tx

import (
	"errors"
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Structural validation errors. These check the invariants of §3 that do
// not require the UTXO set; UTXO-dependent checks (existence, signature,
// amount conservation) live in the UTXO package's apply_transaction.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrMixedCoinbaseInput = errors.New("coinbase input mixed with non-coinbase inputs")
)

// Validate checks the structural invariants of §3: at least one input,
// at least one output, no input referenced twice, output sum does not
// overflow, and a coinbase input never appears alongside a non-coinbase
// input in the same transaction.
func (t *Transaction) Validate() error {
	if len(t.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}

	seen := make(map[types.Outpoint]bool, len(t.Inputs))
	coinbaseCount := 0
	for i, in := range t.Inputs {
		if in.IsCoinbase() {
			coinbaseCount++
			continue
		}
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true
	}
	if coinbaseCount > 0 && coinbaseCount != len(t.Inputs) {
		return ErrMixedCoinbaseInput
	}

	if _, err := t.TotalOutputValue(); err != nil {
		return fmt.Errorf("%w", ErrOutputOverflow)
	}

	return nil
}
