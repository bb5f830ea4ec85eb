// main.go - zklay command-line client.
//
// Every subcommand reads the YAML configuration named by --config (written
// with defaults on first use), resolves the protocol parameters once and
// logs through zap. Wallets live in a pebble store under wallet_dir, one
// namespace per --user.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"zklay/internal/address"
	"zklay/internal/config"
	"zklay/internal/ledger"
	"zklay/internal/logging"
	"zklay/internal/metrics"
	"zklay/internal/params"
	"zklay/internal/snark"
	"zklay/internal/wallet"
)

// app is the state shared by subcommands after configuration is loaded.
type app struct {
	cfgPath string
	user    string

	cfg     *config.Config
	p       *params.Params
	log     *logging.Logger
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "zklay",
		Short:         "ZKlay confidential transfer client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "zklay.yaml", "configuration file")
	root.PersistentFlags().StringVarP(&a.user, "user", "u", "default", "wallet username")

	root.AddCommand(
		a.genAddressCmd(),
		a.genAuditAddressCmd(),
		a.hashCmd(),
		a.syncCmd(),
		a.lsNotesCmd(),
		a.transferCmd(),
		a.auditCmd(),
		a.accCmd(),
		a.demoCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	p, err := cfg.Context()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.AuditLogFile)
	if err != nil {
		return err
	}
	a.cfg, a.p, a.log = cfg, p, log
	a.metrics = metrics.New(prometheus.NewRegistry())
	return nil
}

func (a *app) addressPath() string { return a.cfg.KeyPath(a.cfg.AddressFile) }

func (a *app) auditAddressPath() string { return a.cfg.KeyPath(a.cfg.AuditAddressFile) }

// openWallet opens the store and the wallet of the current user. The caller
// closes the store.
func (a *app) openWallet() (*wallet.Store, *wallet.Wallet, error) {
	keys, err := address.LoadKeyPair(a.addressPath())
	if err != nil {
		return nil, nil, errors.Wrap(err, "run gen-address first")
	}
	if err := os.MkdirAll(a.cfg.WalletDir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "create wallet directory")
	}
	store, err := wallet.OpenStore(a.cfg.WalletDir)
	if err != nil {
		return nil, nil, err
	}
	w, err := wallet.Open(store, a.user, a.p, keys, a.cfg.GenesisBlock(),
		wallet.WithLogger(a.log.Logger), wallet.WithMetrics(a.metrics))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, w, nil
}

// ledgerSource is a Source that also exposes contract state.
type ledgerSource interface {
	ledger.Source
	ledger.State
}

// openLedger returns the local file ledger on the local network and an RPC
// ledger everywhere else. local is nil for RPC ledgers.
func (a *app) openLedger(ctx context.Context) (src ledgerSource, local *ledger.Local, err error) {
	if a.cfg.Network == config.NetworkLocal {
		l, err := ledger.LoadLocal(a.p, a.cfg.LedgerFile)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	}
	if !common.IsHexAddress(a.cfg.ContractAddress) {
		return nil, nil, errors.Errorf("contract_address %q is not an address", a.cfg.ContractAddress)
	}
	opts := []ledger.EthOption{
		ledger.WithBatchSize(a.cfg.SyncBatchSize),
		ledger.WithLogger(a.log.Logger),
	}
	if a.cfg.RPCRateLimit > 0 {
		opts = append(opts, ledger.WithRateLimit(ledger.PerSecond(a.cfg.RPCRateLimit)))
	}
	e, err := ledger.DialEth(ctx, a.cfg.RPCURL, common.HexToAddress(a.cfg.ContractAddress), opts...)
	if err != nil {
		return nil, nil, err
	}
	return e, nil, nil
}

// prover registers the note circuit with keys from the configured paths.
func (a *app) prover() (*snark.Groth16, error) {
	files := snark.KeyFiles{
		ProvingKey:       a.cfg.ProvingKey,
		VerifyingKey:     a.cfg.VerifyingKey,
		ConstraintSystem: a.cfg.ConstraintCache,
	}
	for _, path := range []string{files.ProvingKey, files.VerifyingKey, files.ConstraintSystem} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create key directory")
		}
	}
	g := snark.NewGroth16(a.log.Logger, a.metrics)
	if err := g.Register(snark.NoteCircuitName, snark.NewNoteCircuit, files); err != nil {
		return nil, err
	}
	return g, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
