package config

import "github.com/pebblechain/pebblechain/internal/validator"

// Default returns a config that boots a single-node test network out
// of the box (§10.2): the production network constants from
// validator.DefaultParams, mining disabled (no reward key configured yet),
// and console logging at info level.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Params:  validator.DefaultParams(),
		Mining: MiningConfig{
			Enabled: false,
			Threads: 1,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
