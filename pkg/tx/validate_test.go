package tx

import (
	"errors"
	"math"
	"testing"

	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// validTx creates a minimal valid signed transaction for testing.
func validTx(t *testing.T) *Transaction {
	t.Helper()
	priv, pub, _ := crypto.GenerateKey()
	b := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0x01}, Index: 0}).
		AddOutput(1000, pub)
	b.Sign(priv)
	return b.Build()
}

func TestValidate_Valid(t *testing.T) {
	transaction := validTx(t)
	if err := transaction.Validate(); err != nil {
		t.Errorf("valid tx should pass: %v", err)
	}
}

func TestValidate_NoInputs(t *testing.T) {
	transaction := &Transaction{
		Outputs: []Output{{Amount: 1000}},
	}
	err := transaction.Validate()
	if !errors.Is(err, ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got: %v", err)
	}
}

func TestValidate_NoOutputs(t *testing.T) {
	transaction := &Transaction{
		Inputs: []Input{{PrevOut: types.Outpoint{TxID: types.Hash{0x01}}}},
	}
	err := transaction.Validate()
	if !errors.Is(err, ErrNoOutputs) {
		t.Errorf("expected ErrNoOutputs, got: %v", err)
	}
}

func TestValidate_DuplicateInput(t *testing.T) {
	same := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	transaction := &Transaction{
		Inputs: []Input{
			{PrevOut: same},
			{PrevOut: same},
		},
		Outputs: []Output{{Amount: 1000}},
	}
	err := transaction.Validate()
	if !errors.Is(err, ErrDuplicateInput) {
		t.Errorf("expected ErrDuplicateInput, got: %v", err)
	}
}

func TestValidate_OutputOverflow(t *testing.T) {
	transaction := &Transaction{
		Inputs: []Input{{PrevOut: types.Outpoint{TxID: types.Hash{0x01}}}},
		Outputs: []Output{
			{Amount: math.MaxUint64},
			{Amount: 1},
		},
	}
	err := transaction.Validate()
	if !errors.Is(err, ErrOutputOverflow) {
		t.Errorf("expected ErrOutputOverflow, got: %v", err)
	}
}

func TestValidate_Coinbase(t *testing.T) {
	coinbase := &Transaction{
		Inputs:  []Input{{PrevOut: types.Outpoint{}}},
		Outputs: []Output{{Amount: 50000, PubKey: types.PublicKey{0x01}}},
	}
	if err := coinbase.Validate(); err != nil {
		t.Errorf("coinbase tx should pass Validate: %v", err)
	}
}

func TestValidate_MixedCoinbaseInput(t *testing.T) {
	transaction := &Transaction{
		Inputs: []Input{
			{PrevOut: types.Outpoint{}},
			{PrevOut: types.Outpoint{TxID: types.Hash{0x01}, Index: 0}},
		},
		Outputs: []Output{{Amount: 1000}},
	}
	err := transaction.Validate()
	if !errors.Is(err, ErrMixedCoinbaseInput) {
		t.Errorf("expected ErrMixedCoinbaseInput, got: %v", err)
	}
}

func TestValidate_MultipleCoinbaseInputsOnly(t *testing.T) {
	// Two coinbase inputs and nothing else: not mixed, passes structural
	// validation (the one-coinbase-input rule lives in IsCoinbase/block
	// validation, not here).
	transaction := &Transaction{
		Inputs:  []Input{{PrevOut: types.Outpoint{}}, {PrevOut: types.Outpoint{}}},
		Outputs: []Output{{Amount: 1000}},
	}
	if err := transaction.Validate(); err != nil {
		t.Errorf("two coinbase-only inputs should pass structural Validate: %v", err)
	}
}
