package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address HRP (human-readable part) constants for the bech32 display
// encoding of a public key. The wire format and all consensus hashing use
// the raw 32-byte PublicKey directly (§3); this is a display convenience
// only, used by the key directory and operator tooling.
const (
	MainnetHRP = "pbl"
	TestnetHRP = "tpbl"
)

// activeHRP is the address HRP used by DisplayAddress. Set once at startup
// via SetAddressHRP(). Default is mainnet.
var activeHRP = MainnetHRP

// SetAddressHRP sets the active address HRP (call once at startup).
func SetAddressHRP(hrp string) {
	activeHRP = hrp
}

// GetAddressHRP returns the currently active address HRP.
func GetAddressHRP() string {
	return activeHRP
}

// DisplayAddress returns the bech32-encoded form of a public key
// (e.g. "pbl1...") for human-facing output. It carries no consensus
// meaning: two nodes may run with different HRPs and still agree on
// every block and transaction, since hashing and signing operate on the
// raw PublicKey bytes.
func DisplayAddress(pub PublicKey) string {
	s, err := Bech32Encode(activeHRP, pub[:])
	if err != nil {
		// Fallback to hex if encoding fails (should never happen for a
		// fixed 32-byte payload).
		return activeHRP + ":" + hex.EncodeToString(pub[:])
	}
	return s
}

// ParseAddress parses a bech32-displayed address or a raw 64-char hex
// string back into a public key.
func ParseAddress(s string) (PublicKey, error) {
	if s == "" {
		return PublicKey{}, fmt.Errorf("empty address")
	}

	if strings.Contains(s, "1") && !isHex64(s) {
		_, data, err := Bech32Decode(s)
		if err != nil {
			return PublicKey{}, fmt.Errorf("invalid bech32 address: %w", err)
		}
		if len(data) != PublicKeySize {
			return PublicKey{}, fmt.Errorf("address must be %d bytes, got %d", PublicKeySize, len(data))
		}
		var p PublicKey
		copy(p[:], data)
		return p, nil
	}

	return HexToPublicKey(s)
}

// isHex64 returns true if s is exactly 64 hex characters.
func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
