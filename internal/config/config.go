// config.go - Client configuration.
//
// The configuration is a YAML file. LoadConfig writes the defaults when the
// file does not exist yet so a first run leaves an editable template behind.
// Context resolves the hash and curve selection once; everything downstream
// receives the immutable result.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"zklay/internal/field"
	"zklay/internal/hash"
	"zklay/internal/params"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Network names.
const (
	NetworkGanache = "ganache"
	NetworkBesu    = "besu"
	NetworkKlaytn  = "klaytn"
	NetworkLocal   = "local"
)

// defaultGenesisBlocks is the first block a fresh wallet scans on each
// network: the deployment block of the mixer contract.
var defaultGenesisBlocks = map[string]uint64{
	NetworkGanache: 0,
	NetworkBesu:    0,
	NetworkKlaytn:  0,
	NetworkLocal:   1,
}

// Config is the client configuration.
type Config struct {
	Network string `yaml:"network"`
	Hash    string `yaml:"hash"`
	Curve   string `yaml:"curve"`

	WalletDir        string `yaml:"wallet_dir"`
	KeyDir           string `yaml:"key_dir"`
	AddressFile      string `yaml:"address_file"`
	AuditAddressFile string `yaml:"audit_address_file"`
	AccumulatorFile  string `yaml:"accumulator_file"`
	LedgerFile       string `yaml:"ledger_file"`

	SecLevel      int               `yaml:"sec_level"`
	SyncBatchSize uint64            `yaml:"sync_batch_size"`
	GenesisBlocks map[string]uint64 `yaml:"genesis_blocks"`

	RPCURL          string        `yaml:"rpc_url"`
	ContractAddress string        `yaml:"contract_address"`
	RPCRateLimit    int           `yaml:"rpc_rate_limit"`
	SyncInterval    time.Duration `yaml:"sync_interval"`

	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	AuditLogFile string `yaml:"audit_log_file"`
	MetricsAddr  string `yaml:"metrics_addr"`

	ProvingKey      string `yaml:"proving_key"`
	VerifyingKey    string `yaml:"verifying_key"`
	ConstraintCache string `yaml:"constraint_cache"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	genesis := make(map[string]uint64, len(defaultGenesisBlocks))
	for k, v := range defaultGenesisBlocks {
		genesis[k] = v
	}
	return &Config{
		Network:          NetworkLocal,
		Hash:             hash.MiMC7.String(),
		Curve:            field.BN254.String(),
		WalletDir:        "wallet",
		KeyDir:           "keys",
		AddressFile:      "zklay-address.json",
		AuditAddressFile: "zklay-audit-address.json",
		AccumulatorFile:  "accumulator.json",
		LedgerFile:       "ledger.json",
		SecLevel:         256,
		SyncBatchSize:    1000,
		GenesisBlocks:    genesis,
		RPCURL:           "http://localhost:8545",
		RPCRateLimit:     20,
		SyncInterval:     15 * time.Second,
		LogLevel:         "info",
		ProvingKey:       "keys/note.pk",
		VerifyingKey:     "keys/note.vk",
		ConstraintCache:  "keys/note.r1cs",
	}
}

// LoadConfig reads path, or writes and returns the defaults when it does
// not exist.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, errors.Wrap(err, "save default config")
		}
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating its directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if _, err := hash.ParseKind(c.Hash); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "hash: %v", err)
	}
	family, err := field.ParseFamily(c.Curve)
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "curve: %v", err)
	}
	if kind, _ := hash.ParseKind(c.Hash); kind == hash.Poseidon && family != field.BN254 {
		return errors.Wrap(ErrInvalidConfig, "poseidon requires the bn254 field")
	}
	if c.SecLevel <= 0 || c.SecLevel > 256 {
		return errors.Wrapf(ErrInvalidConfig, "sec_level %d out of (0, 256]", c.SecLevel)
	}
	if c.SyncBatchSize == 0 {
		return errors.Wrap(ErrInvalidConfig, "sync_batch_size must be positive")
	}
	if c.RPCRateLimit < 0 {
		return errors.Wrapf(ErrInvalidConfig, "rpc_rate_limit %d is negative", c.RPCRateLimit)
	}
	if c.SyncInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "sync_interval must be positive")
	}
	if strings.TrimSpace(c.WalletDir) == "" {
		return errors.Wrap(ErrInvalidConfig, "wallet_dir is empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log_level %q", c.LogLevel)
	}
	return nil
}

// GenesisBlock returns the first block to scan on the configured network.
func (c *Config) GenesisBlock() uint64 {
	if b, ok := c.GenesisBlocks[c.Network]; ok {
		return b
	}
	return defaultGenesisBlocks[c.Network]
}

// Context resolves the protocol parameters named by the configuration.
func (c *Config) Context() (*params.Params, error) {
	kind, err := hash.ParseKind(c.Hash)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	family, err := field.ParseFamily(c.Curve)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	p, err := params.New(kind, family)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return p, nil
}

// KeyPath joins a key file name onto KeyDir unless it is already absolute.
func (c *Config) KeyPath(name string) string {
	if filepath.IsAbs(name) || c.KeyDir == "" {
		return name
	}
	return filepath.Join(c.KeyDir, name)
}
