package crypto

import (
	"crypto/ed25519"
	"testing"

	"github.com/pebblechain/pebblechain/pkg/types"
)

func TestGenerateKey(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if priv.Public() != pub {
		t.Error("private key's embedded public key should match the returned public key")
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	_, pub1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	_, pub2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if pub1 == pub2 {
		t.Error("two generated keys should not be identical")
	}
}

func TestPrivateKeyFromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}

	priv1, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed() error: %v", err)
	}
	priv2, err := PrivateKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed() error: %v", err)
	}
	if priv1 != priv2 {
		t.Error("PrivateKeyFromSeed should be deterministic for the same seed")
	}
}

func TestPrivateKeyFromSeed_InvalidLength(t *testing.T) {
	if _, err := PrivateKeyFromSeed([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short seed")
	}
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	var txid types.Hash
	txid[0] = 0xab

	sig := Sign(priv, txid[:])
	if !Verify(pub, txid[:], sig) {
		t.Error("Verify should accept a valid signature")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	priv, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	_, otherPub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	message := []byte("some txid")
	sig := Sign(priv, message)
	if Verify(otherPub, message, sig) {
		t.Error("Verify should reject a signature checked against the wrong public key")
	}
}

func TestVerify_TamperedMessage(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	sig := Sign(priv, []byte("original message"))
	if Verify(pub, []byte("tampered message"), sig) {
		t.Error("Verify should reject a signature over a different message")
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	message := []byte("payload")
	sig := Sign(priv, message)
	sig[0] ^= 0xFF

	if Verify(pub, message, sig) {
		t.Error("Verify should reject a tampered signature")
	}
}

func TestNewSigner(t *testing.T) {
	priv, pub, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	signer := NewSigner(priv)
	if signer.PublicKey() != pub {
		t.Error("Signer.PublicKey() should match the wrapped key's public key")
	}

	message := []byte("message to sign")
	sig := signer.Sign(message)
	if !DefaultVerifier.Verify(message, sig, signer.PublicKey()) {
		t.Error("signature produced by Signer should verify")
	}
}
