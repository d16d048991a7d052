// Pebblechain full node daemon.
//
// Usage:
//
//	pebblechaind [--mine --reward=<pubkey>] Run node
//	pebblechaind --help                     Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pebblechain/pebblechain/config"
	klog "github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/node"
	"github.com/pebblechain/pebblechain/internal/rpc"
	"github.com/pebblechain/pebblechain/internal/snapshot"
	"github.com/pebblechain/pebblechain/internal/storage"
	"github.com/pebblechain/pebblechain/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ─────────────────────
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = cfg.LogsDir() + "/pebblechain.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("main")

	logger.Info().
		Str("datadir", cfg.DataDir).
		Uint64("block_time", cfg.Params.BlockTime).
		Msg("starting pebblechaind")

	// ── 3. Open the optional checkpoint store ────────────────────────
	var snap *snapshot.Store
	db, err := storage.NewBadger(cfg.SnapshotDir())
	if err != nil {
		logger.Warn().Err(err).Msg("checkpoint store unavailable, running without one")
	} else {
		defer db.Close()
		snap = snapshot.Open(db)
	}

	// ── 4. Build the node ─────────────────────────────────────────────
	n, err := node.New(cfg, snap, flags.Args)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct node")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx, flags.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node")
	}
	logger.Info().Str("addr", flags.ListenAddr).Msg("peer transport listening")

	// ── 5. Operator interface ─────────────────────────────────────────
	opServer := rpc.NewServer(n)
	if err := opServer.Listen(flags.OperatorAddr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start operator interface")
	}
	defer opServer.Close()
	logger.Info().Str("addr", flags.OperatorAddr).Msg("operator interface listening")

	// ── 6. Mining, if configured ───────────────────────────────────────
	if cfg.Mining.Enabled {
		reward, err := types.HexToPublicKey(cfg.Mining.Reward)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid mining.reward")
		}
		if err := n.StartMining(reward); err != nil {
			logger.Fatal().Err(err).Msg("failed to start mining")
		}
		logger.Info().Str("reward", reward.String()).Msg("mining started")
	}

	// ── 7. Run until signaled ─────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	n.Stop()
}
