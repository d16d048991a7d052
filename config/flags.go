package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	DataDir string
	Config  string

	ListenAddr   string
	OperatorAddr string

	Mine    bool
	Reward  string
	Threads int

	LogLevel string
	LogFile  string
	LogJSON  bool

	Args []string

	SetMine    bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("pebblechain", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.ListenAddr, "listen", ":7733", "Peer transport listen address")
	fs.StringVar(&f.OperatorAddr, "operator", "127.0.0.1:7734", "Operator command channel listen address")

	fs.BoolVar(&f.Mine, "mine", false, "Enable block production")
	fs.StringVar(&f.Reward, "reward", "", "Hex Ed25519 public key to receive block rewards")
	fs.IntVar(&f.Threads, "threads", 0, "Mining worker thread count")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() { printUsage() }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetMine = isFlagSet(fs, "mine")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.SetMine {
		cfg.Mining.Enabled = f.Mine
	}
	if f.Reward != "" {
		cfg.Mining.Reward = f.Reward
	}
	if f.Threads != 0 {
		cfg.Mining.Threads = f.Threads
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	const usage = `Pebblechain - a UTXO proof-of-work chain

Usage:
  pebblechaind [options]
  pebblechaind --help

Commands:
  --help, -h      Show this help message
  --version       Show version information

Core Options:
  --datadir       Data directory (default: ~/.pebblechain)
  --config, -c    Config file path (default: <datadir>/pebblechain.conf)
  --listen        Peer transport listen address (default: :7733)
  --operator      Operator command channel listen address (default: 127.0.0.1:7734)

Positional arguments, if given, are peer addresses (host:port) to
dial and exchange blocks/transactions with.

Mining Options:
  --mine          Enable block production
  --reward        Hex Ed25519 public key to receive block rewards
  --threads       Mining worker thread count (default: 1; stored in the config,
                  not read by the miner, which runs one mining goroutine)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path, written in addition to stdout (default: <datadir>/logs/pebblechain.log)
  --log-json      Output logs as JSON

Note:
  Network parameters (block time, difficulty retarget period, reward
  schedule) are read from the config file, not flags, since they are
  only safe to change before a node has mined past genesis.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Defaults
// 2. Auto-create data dir + default config file (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("pebblechaind version 0.1.0")
		os.Exit(0)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default
// config file if they don't already exist. Idempotent.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{cfg.DataDir, cfg.SnapshotDir(), cfg.LogsDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
