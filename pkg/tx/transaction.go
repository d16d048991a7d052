// Package tx defines the transaction model and its canonical
// (de)serialization.
package tx

import (
	"encoding/json"
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/codec"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// Output is a single unspent output: an amount payable to a public key.
// Identity is (txid, index); the owning txid/index live in the UTXO
// set's key, not on the Output itself. Output carries no back-reference
// to its containing block — the UTXO set tracks the confirming height
// separately (§9) so that an Output value has no cyclic dependency on
// block.Block.
type Output struct {
	Amount uint64          `json:"amount"`
	PubKey types.PublicKey `json:"pubkey"`
}

// Encode appends the wire encoding of an output: varint(amount) ‖ pubkey.
func (o Output) Encode(w *codec.Writer) {
	w.WriteVarUint(o.Amount)
	w.WriteBytes(o.PubKey[:])
}

// DecodeOutput parses a single Output from r.
func DecodeOutput(r *codec.Reader) (Output, error) {
	var o Output
	amount, err := r.ReadVarUint()
	if err != nil {
		return o, fmt.Errorf("decode output amount: %w", err)
	}
	o.Amount = amount

	pub, err := r.ReadBytes(types.PublicKeySize)
	if err != nil {
		return o, fmt.Errorf("decode output pubkey: %w", err)
	}
	copy(o.PubKey[:], pub)
	return o, nil
}

// Input references a spent output. A coinbase input has an all-zero
// PrevOut.TxID; PrevOut.Index is then an arbitrary disambiguator (a
// freshly drawn random value, see §4.7) rather than a real output
// index, and Signature is unused and encoded as all zeros.
type Input struct {
	PrevOut   types.Outpoint  `json:"prevout"`
	Signature types.Signature `json:"signature"`
}

// IsCoinbase reports whether this input is the null coinbase reference.
func (in Input) IsCoinbase() bool {
	return in.PrevOut.TxID.IsZero()
}

// Encode appends the full wire encoding of an input: txid ‖ index(u32) ‖ signature.
func (in Input) Encode(w *codec.Writer) {
	w.WriteBytes(in.PrevOut.TxID[:])
	w.WriteU32(in.PrevOut.Index)
	w.WriteBytes(in.Signature[:])
}

// EncodeNoSig appends the signatures-stripped wire encoding of an input,
// omitting only the Signature field: txid ‖ index(u32). Used to build
// the txid (§4.2).
func (in Input) EncodeNoSig(w *codec.Writer) {
	w.WriteBytes(in.PrevOut.TxID[:])
	w.WriteU32(in.PrevOut.Index)
}

// DecodeInput parses a single Input from r.
func DecodeInput(r *codec.Reader) (Input, error) {
	var in Input
	txid, err := r.ReadBytes(types.HashSize)
	if err != nil {
		return in, fmt.Errorf("decode input txid: %w", err)
	}
	copy(in.PrevOut.TxID[:], txid)

	index, err := r.ReadU32()
	if err != nil {
		return in, fmt.Errorf("decode input index: %w", err)
	}
	in.PrevOut.Index = index

	sig, err := r.ReadBytes(types.SignatureSize)
	if err != nil {
		return in, fmt.Errorf("decode input signature: %w", err)
	}
	copy(in.Signature[:], sig)
	return in, nil
}

// Transaction is an ordered list of inputs and an ordered list of
// outputs. Validate (not the type itself) enforces at least one input
// and at least one output. A coinbase transaction is one with exactly
// one input, the null coinbase reference (see IsCoinbase).
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly one
// input, and that input is the null coinbase reference.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].IsCoinbase()
}

// Encode serializes the full transaction (§4.2/§6):
// varint(n_in) ‖ inputs ‖ varint(n_out) ‖ outputs.
func (t *Transaction) Encode() []byte {
	w := codec.NewWriter(64 + 96*len(t.Inputs) + 40*len(t.Outputs))
	w.WriteVarUint(uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		in.Encode(w)
	}
	w.WriteVarUint(uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		out.Encode(w)
	}
	return w.Bytes()
}

// encodeNoSig serializes the signatures-stripped form used for the
// txid: identical to Encode except each input omits its Signature.
func (t *Transaction) encodeNoSig() []byte {
	w := codec.NewWriter(64 + 36*len(t.Inputs) + 40*len(t.Outputs))
	w.WriteVarUint(uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		in.EncodeNoSig(w)
	}
	w.WriteVarUint(uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		out.Encode(w)
	}
	return w.Bytes()
}

// TxID computes the transaction ID: the consensus hash of the
// signatures-stripped serialization. It is independent of every
// Signature byte (Testable Property 3).
func (t *Transaction) TxID() types.Hash {
	return crypto.Hash(t.encodeNoSig())
}

// Decode parses a Transaction from its canonical encoding.
func Decode(r *codec.Reader) (*Transaction, error) {
	nIn, err := r.ReadVarUint()
	if err != nil {
		return nil, fmt.Errorf("decode input count: %w", err)
	}
	t := &Transaction{
		Inputs:  make([]Input, 0, nIn),
		Outputs: nil,
	}
	for i := uint64(0); i < nIn; i++ {
		in, err := DecodeInput(r)
		if err != nil {
			return nil, fmt.Errorf("decode input %d: %w", i, err)
		}
		t.Inputs = append(t.Inputs, in)
	}

	nOut, err := r.ReadVarUint()
	if err != nil {
		return nil, fmt.Errorf("decode output count: %w", err)
	}
	t.Outputs = make([]Output, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		out, err := DecodeOutput(r)
		if err != nil {
			return nil, fmt.Errorf("decode output %d: %w", i, err)
		}
		t.Outputs = append(t.Outputs, out)
	}
	return t, nil
}

// TotalOutputValue returns the sum of all output amounts. Returns an
// error if the sum overflows uint64.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > ^uint64(0)-out.Amount {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Amount
	}
	return total, nil
}

// MarshalJSON provides a diagnostic JSON form; it is not the wire
// format (Encode/Decode).
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal((*alias)(t))
}
