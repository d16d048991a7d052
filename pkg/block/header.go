package block

import (
	"encoding/json"

	"github.com/pebblechain/pebblechain/pkg/codec"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// HeaderSize is the fixed encoded size of a Header in bytes:
// prev_hash(32) + merkle_root(32) + timestamp(8) + diff(1) + nonce(8).
const HeaderSize = 32 + 32 + 8 + 1 + 8

// Header contains block metadata. Field order is fixed by §4.2 and must
// not change: prev_hash ‖ merkle_root ‖ timestamp(u64) ‖ diff(u8) ‖
// nonce(u64). There is no version, height, or validator-signature field
// on the wire; height is a derived, non-serialized property (§3).
type Header struct {
	PrevHash   types.Hash `json:"prev_hash"`
	MerkleRoot types.Hash `json:"merkle_root"`
	Timestamp  uint64     `json:"timestamp"`
	Diff       uint8      `json:"diff"`
	Nonce      uint64     `json:"nonce"`
}

// Hash computes the block hash: the consensus hash of the serialized
// header.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.Encode())
}

// Encode serializes the header per §4.2/§6's fixed field order.
func (h *Header) Encode() []byte {
	w := codec.NewWriter(HeaderSize)
	h.encodeTo(w)
	return w.Bytes()
}

func (h *Header) encodeTo(w *codec.Writer) {
	w.WriteBytes(h.PrevHash[:])
	w.WriteBytes(h.MerkleRoot[:])
	w.WriteU64(h.Timestamp)
	w.WriteU8(h.Diff)
	w.WriteU64(h.Nonce)
}

// NoncePrefix returns the serialized header with the trailing 8-byte
// nonce field omitted. The miner hashes NoncePrefix ‖ u64_be(nonce)
// directly per batch, rather than re-serializing the whole header for
// every candidate nonce (§4.7).
func (h *Header) NoncePrefix() []byte {
	w := codec.NewWriter(HeaderSize - 8)
	w.WriteBytes(h.PrevHash[:])
	w.WriteBytes(h.MerkleRoot[:])
	w.WriteU64(h.Timestamp)
	w.WriteU8(h.Diff)
	return w.Bytes()
}

// DecodeHeader parses a Header from its canonical encoding.
func DecodeHeader(r *codec.Reader) (Header, error) {
	var h Header
	prevHash, err := r.ReadBytes(types.HashSize)
	if err != nil {
		return h, err
	}
	copy(h.PrevHash[:], prevHash)

	merkleRoot, err := r.ReadBytes(types.HashSize)
	if err != nil {
		return h, err
	}
	copy(h.MerkleRoot[:], merkleRoot)

	if h.Timestamp, err = r.ReadU64(); err != nil {
		return h, err
	}
	if h.Diff, err = r.ReadU8(); err != nil {
		return h, err
	}
	if h.Nonce, err = r.ReadU64(); err != nil {
		return h, err
	}
	return h, nil
}

// MarshalJSON encodes the header for diagnostics and the operator
// interface. The wire/consensus format is Encode/DecodeHeader, not JSON.
func (h Header) MarshalJSON() ([]byte, error) {
	type alias Header
	return json.Marshal(alias(h))
}
