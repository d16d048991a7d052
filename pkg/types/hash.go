// Package types defines the core primitive wire types shared by the block,
// transaction, and UTXO packages.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value, produced by the double SHA-256
// consensus hash function.
type Hash [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

const (
	// PublicKeySize is the length of an Ed25519 public key in bytes.
	PublicKeySize = 32
	// PrivateKeySize is the length of an Ed25519 private key (seed||pub) in bytes.
	PrivateKeySize = 64
	// SignatureSize is the length of an Ed25519 signature in bytes.
	SignatureSize = 64
)

// PublicKey is a 32-byte Ed25519 public key, also used as a payment address.
type PublicKey [PublicKeySize]byte

// String returns the hex-encoded public key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of the public key as a byte slice.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, p[:])
	return b
}

// IsZero reports whether the key is the all-zero placeholder.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// HexToPublicKey parses a hex-encoded public key.
func HexToPublicKey(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	var p PublicKey
	copy(p[:], b)
	return p, nil
}

// PrivateKey is a 64-byte Ed25519 private key (32-byte seed || 32-byte public key).
type PrivateKey [PrivateKeySize]byte

// Bytes returns a copy of the private key as a byte slice.
func (p PrivateKey) Bytes() []byte {
	b := make([]byte, PrivateKeySize)
	copy(b, p[:])
	return b
}

// Public returns the public key embedded in the private key's second half.
func (p PrivateKey) Public() PublicKey {
	var pub PublicKey
	copy(pub[:], p[32:])
	return pub
}

// String returns the hex-encoded private key, as stored in the key
// directory's wallet file format (§6).
func (p PrivateKey) String() string {
	return hex.EncodeToString(p[:])
}

// HexToPrivateKey parses a hex-encoded private key.
func HexToPrivateKey(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(b) != PrivateKeySize {
		return PrivateKey{}, fmt.Errorf("private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	var p PrivateKey
	copy(p[:], b)
	return p, nil
}

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// String returns the hex-encoded signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns a copy of the signature as a byte slice.
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureSize)
	copy(b, s[:])
	return b
}

// IsZero reports whether the signature is the all-zero placeholder used by
// coinbase inputs, which carry no signature.
func (s Signature) IsZero() bool {
	return s == Signature{}
}
