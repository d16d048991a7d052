package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Signer signs a message with a private key.
type Signer interface {
	// Sign produces a signature over an arbitrary-length message. Per
	// §4.1, no domain separation is applied: the signed message for a
	// transaction is exactly its txid.
	Sign(message []byte) types.Signature
	// PublicKey returns the signer's public key.
	PublicKey() types.PublicKey
}

// Verifier verifies signatures against a public key.
type Verifier interface {
	Verify(message []byte, sig types.Signature, pub types.PublicKey) bool
}

// GenerateKey creates a new random Ed25519 keypair.
func GenerateKey() (types.PrivateKey, types.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("generate key: %w", err)
	}
	var pk types.PrivateKey
	var pbk types.PublicKey
	copy(pk[:], priv)
	copy(pbk[:], pub)
	return pk, pbk, nil
}

// PrivateKeyFromSeed deterministically expands a 32-byte seed into an
// Ed25519 private key (seed || derived public key), mirroring
// ed25519.NewKeyFromSeed. Used by the key directory's mnemonic-derived
// address generation (§11).
func PrivateKeyFromSeed(seed []byte) (types.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return types.PrivateKey{}, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	full := ed25519.NewKeyFromSeed(seed)
	var pk types.PrivateKey
	copy(pk[:], full)
	return pk, nil
}

// Sign signs a message with an Ed25519 private key. Per §4.1, no domain
// separation or hashing is applied beyond what the caller already did:
// for a transaction, message is exactly the txid.
func Sign(priv types.PrivateKey, message []byte) types.Signature {
	sig := ed25519.Sign(ed25519.PrivateKey(priv[:]), message)
	var s types.Signature
	copy(s[:], sig)
	return s
}

// Verify checks an Ed25519 signature against a message and public key.
// Returns false on any malformed input rather than erroring, since the
// validator treats a bad signature identically to any other
// InvalidTransaction cause.
func Verify(pub types.PublicKey, message []byte, sig types.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig[:])
}

// ed25519Signer adapts a types.PrivateKey to the Signer interface.
type ed25519Signer struct {
	priv types.PrivateKey
}

// NewSigner wraps a private key as a Signer.
func NewSigner(priv types.PrivateKey) Signer {
	return ed25519Signer{priv: priv}
}

func (s ed25519Signer) Sign(message []byte) types.Signature {
	return Sign(s.priv, message)
}

func (s ed25519Signer) PublicKey() types.PublicKey {
	return s.priv.Public()
}

// ed25519Verifier implements Verifier.
type ed25519Verifier struct{}

// DefaultVerifier is the stock Ed25519 Verifier.
var DefaultVerifier Verifier = ed25519Verifier{}

func (ed25519Verifier) Verify(message []byte, sig types.Signature, pub types.PublicKey) bool {
	return Verify(pub, message, sig)
}
