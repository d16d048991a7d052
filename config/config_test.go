package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pebblechain/pebblechain/pkg/crypto"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	require.False(t, cfg.Mining.Enabled, "mining is off until an operator supplies a reward key")
}

func TestValidate_RejectsZeroBlockTime(t *testing.T) {
	cfg := Default()
	cfg.Params.BlockTime = 0
	require.Error(t, Validate(cfg))
}

func TestValidate_RequiresRewardKeyWhenMining(t *testing.T) {
	cfg := Default()
	cfg.Mining.Enabled = true
	require.Error(t, Validate(cfg))

	_, pub, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg.Mining.Reward = pub.String()
	require.NoError(t, Validate(cfg))
}

func TestValidate_RejectsMalformedRewardKey(t *testing.T) {
	cfg := Default()
	cfg.Mining.Enabled = true
	cfg.Mining.Reward = "not-hex"
	require.Error(t, Validate(cfg))
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	require.Error(t, Validate(cfg))
}

func TestLoadFile_ParsesKeyValuePairs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pebblechain.conf")
	writeFile(t, path, "# comment\nparams.block_time = 2\nmining.threads = 4\nlog.json = true\n")

	values, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "2", values["params.block_time"])
	require.Equal(t, "4", values["mining.threads"])
	require.Equal(t, "true", values["log.json"])
}

func TestLoadFile_MissingFileIsEmpty(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "missing.conf"))
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestApplyFileConfig_OverridesDefaults(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{
		"params.block_time": "2",
		"mining.threads":    "4",
		"log.level":         "debug",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), cfg.Params.BlockTime)
	require.Equal(t, 4, cfg.Mining.Threads)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyFileConfig_RejectsUnknownKey(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{"bogus.key": "1"})
	require.Error(t, err)
}

func TestApplyFlags_OverridesFileAndDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyFileConfig(cfg, map[string]string{"mining.threads": "4"}))
	ApplyFlags(cfg, &Flags{DataDir: "/tmp/custom", Reward: "deadbeef", SetMine: true, Mine: true, Threads: 8})
	require.Equal(t, "/tmp/custom", cfg.DataDir)
	require.Equal(t, "deadbeef", cfg.Mining.Reward)
	require.True(t, cfg.Mining.Enabled)
	require.Equal(t, 8, cfg.Mining.Threads)
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}
