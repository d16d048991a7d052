// Package config handles node configuration: network parameters,
// mining, logging, and file locations.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pebblechain/pebblechain/internal/validator"
)

// Config holds a node's runtime configuration. Unlike the teacher's
// config package, there is no protocol/node split here: the block
// format and validation rules are fixed by the core (§4), and
// Params is the one piece of the protocol a node is still free
// to vary, since §4.3's constants only matter insofar as every node
// it talks to agrees with it (there is no other node for a
// single-process test network to disagree with).
type Config struct {
	// DataDir is the root directory for this node's files. All other
	// paths below are relative to it unless given absolute.
	DataDir string `conf:"datadir"`

	// Params are the §4.3 network constants (block time, difficulty
	// retarget period, reward schedule). Overridable so a test network
	// can mine quickly instead of at production pace.
	Params validator.Params

	Mining MiningConfig
	Log    LogConfig
}

// MiningConfig holds block-production settings (§4.7/§11).
type MiningConfig struct {
	Enabled bool   `conf:"mining.enabled"`
	Reward  string `conf:"mining.reward"` // hex Ed25519 public key receiving block rewards
	// Threads is validated and stored only; the miner runs one mining
	// goroutine.
	Threads int `conf:"mining.threads"`
}

// LogConfig holds logging settings (§10.1).
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.pebblechain
//	macOS:   ~/Library/Application Support/Pebblechain
//	Windows: %APPDATA%\Pebblechain
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pebblechain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Pebblechain")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Pebblechain")
		}
		return filepath.Join(home, "AppData", "Roaming", "Pebblechain")
	default:
		return filepath.Join(home, ".pebblechain")
	}
}

// KeyDirFile returns the key directory's backing file path (§6).
func (c *Config) KeyDirFile() string {
	return filepath.Join(c.DataDir, "keys.txt")
}

// GenesisFile returns the path a node may dump the fixed genesis
// block's canonical encoding to, so an operator can diff it against a
// peer's without either side needing to trust the other's binary. The
// genesis block itself has no configurable fields (§6) — this is a
// verification convenience, not an input.
func (c *Config) GenesisFile() string {
	return filepath.Join(c.DataDir, "genesis.bin")
}

// SnapshotDir returns the optional checkpoint store directory (§11).
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshot")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "pebblechain.conf")
}
