package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments).
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value

	case "params.block_time":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		cfg.Params.BlockTime = v
	case "params.diff_period_len":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		cfg.Params.DiffPeriodLen = v
	case "params.reward_halving_len":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		cfg.Params.RewardHalvingLen = v
	case "params.initial_reward":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		cfg.Params.InitialReward = v

	case "mining.enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("must be true or false: %w", err)
		}
		cfg.Mining.Enabled = v
	case "mining.reward":
		cfg.Mining.Reward = value
	case "mining.threads":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("must be an integer: %w", err)
		}
		cfg.Mining.Threads = v

	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("must be true or false: %w", err)
		}
		cfg.Log.JSON = v

	default:
		return fmt.Errorf("unknown config key")
	}
	return nil
}

// WriteDefaultConfig writes a commented default config file to path.
func WriteDefaultConfig(path string) error {
	const template = `# Pebblechain node configuration.
# Lines starting with # are comments. Format: key = value

# datadir = ~/.pebblechain

# Network parameters (§4.3) — changing these only makes sense before
# any block beyond genesis has been mined; a running node's peers must
# already agree on them.
# params.block_time = 5
# params.diff_period_len = 10
# params.reward_halving_len = 1000
# params.initial_reward = 1000

# mining.enabled = false
# mining.reward = <hex ed25519 public key>
# mining.threads = 1

# log.level = info
# log.file =
# log.json = false
`
	return os.WriteFile(path, []byte(template), 0644)
}
