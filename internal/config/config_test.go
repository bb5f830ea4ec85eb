package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"zklay/internal/field"
	"zklay/internal/hash"
)

func TestLoadConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "zklay.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zklay.yaml")
	yml := "network: besu\nhash: mimc31\ncurve: bls12-381\nsync_batch_size: 50\nsync_interval: 2m\ngenesis_blocks:\n  besu: 1234\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(50), cfg.SyncBatchSize)
	require.Equal(t, uint64(1234), cfg.GenesisBlock())
	require.Equal(t, 2*time.Minute, cfg.SyncInterval)
	// unset fields keep their defaults
	require.Equal(t, "wallet", cfg.WalletDir)

	p, err := cfg.Context()
	require.NoError(t, err)
	require.Equal(t, field.BLS12381, p.Family)
	require.Equal(t, hash.MiMC31, p.Hash.Kind())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"hash":       func(c *Config) { c.Hash = "md5" },
		"curve":      func(c *Config) { c.Curve = "p256" },
		"poseidon":   func(c *Config) { c.Hash = "poseidon"; c.Curve = "bls12-381" },
		"sec_level":  func(c *Config) { c.SecLevel = 0 },
		"batch":      func(c *Config) { c.SyncBatchSize = 0 },
		"wallet_dir": func(c *Config) { c.WalletDir = " " },
		"log_level":  func(c *Config) { c.LogLevel = "trace" },
		"rate":       func(c *Config) { c.RPCRateLimit = -1 },
		"interval":   func(c *Config) { c.SyncInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			require.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestGenesisFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GenesisBlocks = nil
	require.Equal(t, uint64(1), cfg.GenesisBlock())
	cfg.Network = "unknown"
	require.Zero(t, cfg.GenesisBlock())
}

func TestKeyPath(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, filepath.Join("keys", "a.json"), cfg.KeyPath("a.json"))
	require.Equal(t, "/abs/a.json", cfg.KeyPath("/abs/a.json"))
}
