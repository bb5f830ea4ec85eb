package main

import (
	"bytes"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zklay/internal/config"
	"zklay/internal/field"
	"zklay/internal/hash"
	"zklay/internal/params"
)

// writeConfig writes a configuration for user under dir. Users share the
// ledger, the wallet store and the proving keys.
func writeConfig(t *testing.T, dir, user string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WalletDir = filepath.Join(dir, "wallet")
	cfg.KeyDir = filepath.Join(dir, "keys")
	cfg.AddressFile = user + "-address.json"
	cfg.AuditAddressFile = "audit-address.json"
	cfg.AccumulatorFile = filepath.Join(dir, "accumulator.json")
	cfg.LedgerFile = filepath.Join(dir, "ledger.json")
	cfg.SecLevel = 8
	cfg.LogLevel = "error"
	cfg.ProvingKey = filepath.Join(dir, "keys", "note.pk")
	cfg.VerifyingKey = filepath.Join(dir, "keys", "note.vk")
	cfg.ConstraintCache = filepath.Join(dir, "keys", "note.r1cs")
	path := filepath.Join(dir, user+".yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path
}

func run(t *testing.T, cfgPath, user string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath, "--user", user}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestHashCommand(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "alice")
	out, err := run(t, cfg, "alice", "hash", "1", "0x02")
	require.NoError(t, err)

	want, err := hash.Sum(params.Default().Hash, big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, field.Hex(want), strings.TrimSpace(out))

	_, err = run(t, cfg, "alice", "hash", "-5")
	assert.Error(t, err)
}

func TestAccumulatorCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "alice")

	_, err := run(t, cfg, "alice", "acc", "add", "3", "5")
	require.NoError(t, err)
	_, err = run(t, cfg, "alice", "acc", "add", "--accumulate", "7")
	require.NoError(t, err)

	proofPath := filepath.Join(dir, "proof.json")
	_, err = run(t, cfg, "alice", "acc", "prove", "--out", proofPath, "3", "7")
	require.NoError(t, err)
	out, err := run(t, cfg, "alice", "acc", "verify", proofPath)
	require.NoError(t, err)
	assert.Equal(t, "valid", strings.TrimSpace(out))

	// a new member changes ACC and invalidates the old proof
	_, err = run(t, cfg, "alice", "acc", "add", "--accumulate", "11")
	require.NoError(t, err)
	_, err = run(t, cfg, "alice", "acc", "verify", proofPath)
	assert.Error(t, err)

	_, err = run(t, cfg, "alice", "acc", "prove")
	assert.Error(t, err)
}

func TestTransferCommands(t *testing.T) {
	dir := t.TempDir()
	aliceCfg := writeConfig(t, dir, "alice")
	bobCfg := writeConfig(t, dir, "bob")

	_, err := run(t, aliceCfg, "alice", "gen-address")
	require.NoError(t, err)
	_, err = run(t, bobCfg, "bob", "gen-address")
	require.NoError(t, err)
	_, err = run(t, aliceCfg, "alice", "gen-audit-address")
	require.NoError(t, err)

	bobPub := filepath.Join(dir, "keys", "bob-address.json.pub")
	out, err := run(t, aliceCfg, "alice", "transfer", "--to", bobPub, "--in", "1", "--priv", "0.25")
	require.NoError(t, err)
	assert.Contains(t, out, "submitted in block 1")

	out, err = run(t, bobCfg, "bob", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "1 received")

	out, err = run(t, bobCfg, "bob", "ls-notes")
	require.NoError(t, err)
	assert.Contains(t, out, "0.25")

	out, err = run(t, aliceCfg, "alice", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid":true`)

	// bob spends his note back to alice
	alicePub := filepath.Join(dir, "keys", "alice-address.json.pub")
	out, err = run(t, bobCfg, "bob", "transfer", "--to", alicePub, "--note", "auto", "--priv", "0.25")
	require.NoError(t, err)
	assert.Contains(t, out, "submitted in block 2")

	_, err = run(t, bobCfg, "bob", "sync")
	require.NoError(t, err)
	out, err = run(t, bobCfg, "bob", "ls-notes", "--spent")
	require.NoError(t, err)
	assert.Contains(t, out, "0.25")

	_, err = run(t, bobCfg, "bob", "transfer", "--to", alicePub, "--note", "auto", "--priv", "0")
	assert.Error(t, err, "bob has no notes left")
}

func TestDemoCommand(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "alice")
	out, err := run(t, cfg, "alice", "demo", "--acc-sec-level", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "alice hidden balance 0.7 ether")
	assert.Contains(t, out, "bob   hidden balance 0.15 ether")
	assert.Contains(t, out, "=== done ===")
}
