// Package snapshot implements the optional checkpoint store (§11),
// which cmd/pebblechaind opens at every start and runs without only
// when it cannot be opened: a write-behind cache of the authoritative
// UTXO set and the tip it was taken at, backed by an embedded KV
// store, so a restarted process can skip replaying add_block from
// genesis. It never participates in validation — the in-memory
// internal/utxo.Set and internal/tree.Tree remain the sole authority
// for the life of the process; a missing or stale snapshot just means
// a cold-start rebuild.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pebblechain/pebblechain/internal/storage"
	"github.com/pebblechain/pebblechain/internal/utxo"
	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/pebblechain/pebblechain/pkg/types"
)

var (
	prefixEntry = []byte("u/") // u/<txid 32><index 4> -> JSON(storedEntry)
	keyTip      = []byte("tip")
)

// Store checkpoints a utxo.Set to a storage.DB.
type Store struct {
	db storage.DB
}

// Open wraps db as a snapshot store. db is typically a
// *storage.BadgerDB pointed at a dedicated directory, but any DB
// implementation (including storage.MemoryDB, used in tests) works.
func Open(db storage.DB) *Store {
	return &Store{db: db}
}

func entryKey(op types.Outpoint) []byte {
	key := make([]byte, len(prefixEntry)+types.HashSize+4)
	copy(key, prefixEntry)
	copy(key[len(prefixEntry):], op.TxID[:])
	binary.BigEndian.PutUint32(key[len(prefixEntry)+types.HashSize:], op.Index)
	return key
}

type storedEntry struct {
	Outpoint types.Outpoint
	Output   utxo.Entry
}

// tipRecord is what keyTip maps to: the block the checkpointed set was
// taken at, identified by hash and height. The block tree, not this
// store, holds the actual block bodies needed to resume.
type tipRecord struct {
	Hash   types.Hash `json:"hash"`
	Height uint64     `json:"height"`
}

// Save overwrites the checkpoint with a full dump of set. Each call is
// O(set size), not O(1).
func (s *Store) Save(set *utxo.Set) error {
	tip := set.Tip()
	if tip == nil {
		return fmt.Errorf("snapshot save: set has no tip applied")
	}

	if err := s.clearEntries(); err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}

	err := set.ForEach(func(op types.Outpoint, e utxo.Entry) error {
		data, err := json.Marshal(storedEntry{Outpoint: op, Output: e})
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return s.db.Put(entryKey(op), data)
	})
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}

	rec := tipRecord{Hash: tip.Hash(), Height: tip.Height}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("snapshot save: marshal tip: %w", err)
	}
	if err := s.db.Put(keyTip, data); err != nil {
		return fmt.Errorf("snapshot save: write tip: %w", err)
	}
	return nil
}

func (s *Store) clearEntries() error {
	var keys [][]byte
	err := s.db.ForEach(prefixEntry, func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan existing entries: %w", err)
	}
	for _, k := range keys {
		if err := s.db.Delete(k); err != nil {
			return fmt.Errorf("delete stale entry: %w", err)
		}
	}
	return nil
}

// Tip returns the hash and height the checkpoint was taken at, and
// false if no checkpoint has ever been saved. The caller compares this
// against the block tree's genesis-to-head path: if the hash is found
// on the tree's validated chain, Load can seed the set directly;
// otherwise the checkpoint is stale (e.g. it predates a reorg past it)
// and the caller falls back to a full replay.
func (s *Store) Tip() (hash types.Hash, height uint64, ok bool, err error) {
	data, getErr := s.db.Get(keyTip)
	if getErr != nil {
		return types.Hash{}, 0, false, nil
	}
	var rec tipRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("snapshot tip: %w", err)
	}
	return rec.Hash, rec.Height, true, nil
}

// Load reconstructs a UTXO set from the checkpoint. The returned set
// has no tip applied (it is the caller's job to set one, since only
// the caller's block tree knows the *block.Block the checkpoint
// corresponds to); callers should use Tip alongside Load to recover
// that linkage.
func (s *Store) Load() (*utxo.Set, error) {
	set := utxo.New()
	err := s.db.ForEach(prefixEntry, func(_, value []byte) error {
		var se storedEntry
		if err := json.Unmarshal(value, &se); err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}
		return set.Restore(se.Outpoint, se.Output)
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot load: %w", err)
	}
	return set, nil
}

// Commitment computes a content hash over every entry in the
// checkpoint, letting an operator verify a snapshot independently of
// the live set it was taken from (it is not consulted during
// validation). Built from zeebo/blake3 rather than the consensus
// SHA-256d hash: this is a non-consensus integrity check, the same
// "fast hash, not consensus hash" split pkg/crypto already draws
// between FastHash and Hash.
func (s *Store) Commitment() (types.Hash, error) {
	var hashes [][]byte
	err := s.db.ForEach(prefixEntry, func(key, value []byte) error {
		h := crypto.FastHash(append(append([]byte{}, key...), value...))
		hashes = append(hashes, h[:])
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("snapshot commitment: %w", err)
	}
	if len(hashes) == 0 {
		return types.Hash{}, nil
	}
	sort.Slice(hashes, func(i, j int) bool {
		for k := range hashes[i] {
			if hashes[i][k] != hashes[j][k] {
				return hashes[i][k] < hashes[j][k]
			}
		}
		return false
	})
	return block.ComputeMerkleRoot(hashes), nil
}
