// Package keydir implements the key directory (§6): the narrow
// pubkey -> privkey mapping the core requires from an external
// collaborator, backed by a plain line file rather than the teacher's
// encrypted JSON keystore.
package keydir

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Dir is an in-memory index over a wallet file, one key per line in
// the format hex(priv_key):hex(pub_key) (§6). The core only ever needs
// Lookup; Append and Load exist to serve the operator interface's
// new_address() and node startup.
type Dir struct {
	mu   sync.Mutex
	path string
	byPub map[types.PublicKey]types.PrivateKey
}

// Load reads path into a Dir. A missing file is treated as empty —
// the first Append creates it.
func Load(path string) (*Dir, error) {
	d := &Dir{path: path, byPub: make(map[types.PublicKey]types.PrivateKey)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open key directory: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		priv, pub, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("key directory line %d: %w", lineNo, err)
		}
		d.byPub[pub] = priv
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}
	return d, nil
}

func parseLine(line string) (types.PrivateKey, types.PublicKey, error) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return types.PrivateKey{}, types.PublicKey{}, fmt.Errorf("expected hex(priv):hex(pub), got %q", line)
	}
	priv, err := types.HexToPrivateKey(parts[0])
	if err != nil {
		return types.PrivateKey{}, types.PublicKey{}, err
	}
	pub, err := types.HexToPublicKey(parts[1])
	if err != nil {
		return types.PrivateKey{}, types.PublicKey{}, err
	}
	return priv, pub, nil
}

// Lookup returns the private key for pub, if known. This is the only
// operation the core (the validator, the wallet's signing path) needs
// from a key directory (§6: "a callable mapping pub_key -> priv_key").
func (d *Dir) Lookup(pub types.PublicKey) (types.PrivateKey, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	priv, ok := d.byPub[pub]
	return priv, ok
}

// PublicKeys returns every public key currently held, in unspecified
// order. Used by the operator interface's balance() when called with
// no address, to sum across every address this node controls.
func (d *Dir) PublicKeys() []types.PublicKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	pubs := make([]types.PublicKey, 0, len(d.byPub))
	for pub := range d.byPub {
		pubs = append(pubs, pub)
	}
	return pubs
}

// Len returns the number of keys currently held.
func (d *Dir) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byPub)
}

// Append records a new keypair in memory and appends it to the
// backing file as a new hex(priv):hex(pub) line.
func (d *Dir) Append(priv types.PrivateKey, pub types.PublicKey) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open key directory for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s:%s\n", priv.String(), pub.String()); err != nil {
		return fmt.Errorf("write key directory entry: %w", err)
	}

	d.byPub[pub] = priv
	return nil
}
