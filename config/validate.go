package config

import (
	"fmt"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Params.BlockTime == 0 {
		return fmt.Errorf("params.block_time must be nonzero")
	}
	if cfg.Params.DiffPeriodLen == 0 {
		return fmt.Errorf("params.diff_period_len must be nonzero")
	}
	if cfg.Mining.Threads < 0 {
		return fmt.Errorf("mining.threads must be nonnegative")
	}
	if cfg.Mining.Enabled {
		if cfg.Mining.Reward == "" {
			return fmt.Errorf("mining.reward is required when mining.enabled")
		}
		if _, err := types.HexToPublicKey(cfg.Mining.Reward); err != nil {
			return fmt.Errorf("mining.reward: %w", err)
		}
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}
	return nil
}
