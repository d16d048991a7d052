package keydir

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

// MnemonicEntropyBits is the entropy size for the 24-word recovery
// phrase generated alongside every new address (§11), matching the
// teacher's wallet.MnemonicEntropyBits.
const MnemonicEntropyBits = 256

// hkdfInfo distinguishes this derivation from any other use of the
// same BIP-39 seed, the way a derivation path's purpose field would.
var hkdfInfo = []byte("pebblechain/ed25519-account")

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// DeriveKey expands mnemonic into the Ed25519 keypair for the given
// account index. One mnemonic can back many addresses by varying
// account — the HKDF-SHA512 equivalent of a BIP-32 non-hardened
// derivation path, substituted in because Ed25519 has no secp256k1
// point to derive bip32 children from (§11).
func DeriveKey(mnemonic string, account uint32) (types.PrivateKey, types.PublicKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("derive seed: %w", err)
	}

	var salt [4]byte
	binary.BigEndian.PutUint32(salt[:], account)

	kdf := hkdf.New(sha512.New, seed, salt[:], hkdfInfo)
	edSeed := make([]byte, 32)
	if _, err := io.ReadFull(kdf, edSeed); err != nil {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("expand hkdf: %w", err)
	}

	priv, err := crypto.PrivateKeyFromSeed(edSeed)
	if err != nil {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("derive ed25519 key: %w", err)
	}
	return priv, priv.Public(), nil
}

// NewAddress generates a fresh mnemonic, derives account 0 from it,
// records the resulting keypair in d, and returns the mnemonic so the
// operator can recover the address later (§6's new_address()).
func NewAddress(d *Dir) (mnemonic string, pub types.PublicKey, err error) {
	mnemonic, err = GenerateMnemonic()
	if err != nil {
		return "", types.PublicKey{}, err
	}
	priv, pub, err := DeriveKey(mnemonic, 0)
	if err != nil {
		return "", types.PublicKey{}, err
	}
	if err := d.Append(priv, pub); err != nil {
		return "", types.PublicKey{}, err
	}
	return mnemonic, pub, nil
}
