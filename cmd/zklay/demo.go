package main

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"zklay/internal/accumulator"
	"zklay/internal/address"
	"zklay/internal/client"
	"zklay/internal/encryption"
	"zklay/internal/field"
	"zklay/internal/ledger"
	"zklay/internal/params"
	"zklay/internal/snark"
	"zklay/internal/units"
	"zklay/internal/wallet"
)

// demoParty is a participant of the demo run.
type demoParty struct {
	name   string
	keys   *address.KeyPair
	wallet *wallet.Wallet
	syncer *wallet.Syncer
}

func (a *app) demoCmd() *cobra.Command {
	var secLevel int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a deposit, a private transfer and a withdrawal against an in-memory ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemo(cmd.Context(), cmd.OutOrStdout(), secLevel)
		},
	}
	cmd.Flags().IntVar(&secLevel, "acc-sec-level", 16, "accumulator security level for the membership round")
	return cmd
}

func (a *app) runDemo(ctx context.Context, out io.Writer, secLevel int) error {
	// the note circuit is compiled for MiMC7 over BN254
	p := params.Default()

	fmt.Fprintln(out, "=== ZKlay local demo ===")
	fmt.Fprintln(out, "\n1. Setting up ledger, wallets and prover...")
	store, err := wallet.OpenMemStore()
	if err != nil {
		return err
	}
	defer store.Close()
	chain := ledger.NewLocal(p, "")

	prover := snark.NewGroth16(a.log.Logger, a.metrics)
	if err := prover.Register(snark.NoteCircuitName, snark.NewNoteCircuit, snark.KeyFiles{}); err != nil {
		return err
	}
	auditor, err := address.GenerateAudit(p)
	if err != nil {
		return err
	}
	newParty := func(name string) (*demoParty, error) {
		keys, err := address.Generate(p)
		if err != nil {
			return nil, err
		}
		w, err := wallet.Open(store, name, p, keys, 1,
			wallet.WithLogger(a.log.Logger), wallet.WithMetrics(a.metrics))
		if err != nil {
			return nil, err
		}
		return &demoParty{
			name:   name,
			keys:   keys,
			wallet: w,
			syncer: wallet.NewSyncer(chain, w, 0, a.log.Logger, a.metrics),
		}, nil
	}
	alice, err := newParty("alice")
	if err != nil {
		return err
	}
	bob, err := newParty("bob")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "alice addr: %s\n", field.Hex(alice.keys.Pub.Addr))
	fmt.Fprintf(out, "bob addr:   %s\n", field.Hex(bob.keys.Pub.Addr))

	c := client.New(p, chain, prover, client.WithLogger(a.log))
	transfer := func(from, to *demoParty, pocket client.Pocket, toEoA common.Address, noteIdx *int) error {
		tp, err := c.CreateTransArgs(ctx, from.wallet, auditor.Pub, from.keys, to.keys.Pub, pocket, toEoA, noteIdx)
		if err != nil {
			return errors.Wrapf(err, "%s -> %s", from.name, to.name)
		}
		block, err := chain.Submit(tp.Call)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "block %d: sn %s cm %s\n", block, field.Hex(tp.Call.Nullifier), field.Hex(tp.Call.Output.Cm))
		return nil
	}
	syncAll := func() error {
		for _, pt := range []*demoParty{alice, bob} {
			if _, err := pt.syncer.Sync(ctx); err != nil {
				return errors.Wrap(err, pt.name)
			}
		}
		return nil
	}
	report := func() error {
		for _, pt := range []*demoParty{alice, bob} {
			bal, err := encryption.NewSymmetric(p, pt.keys.USK).Decrypt(pt.wallet.State().AmountCT)
			if err != nil {
				return err
			}
			notes, err := pt.wallet.NoteSummaries()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-5s hidden balance %s ether, %d note(s)\n", pt.name, etherOf(bal), len(notes))
			for _, n := range notes {
				fmt.Fprintf(out, "      note %d %s: %s ether\n", n.Address, n.ShortCommitment, etherOf(n.Value))
			}
		}
		return nil
	}

	fmt.Fprintln(out, "\n2. alice deposits 1 ether and sends 0.3 privately to bob...")
	pocket, err := parsePocket("0.3", "1", "0")
	if err != nil {
		return err
	}
	if err := transfer(alice, bob, pocket, common.Address{}, nil); err != nil {
		return err
	}
	if err := syncAll(); err != nil {
		return err
	}
	if err := report(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n3. bob spends his note: 0.1 to alice, 0.05 withdrawn...")
	pocket, err = parsePocket("0.1", "0", "0.05")
	if err != nil {
		return err
	}
	first := 0
	eoa := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	if err := transfer(bob, alice, pocket, eoa, &first); err != nil {
		return err
	}
	if err := syncAll(); err != nil {
		return err
	}
	if err := report(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n4. Auditor view...")
	head, err := chain.Head(ctx)
	if err != nil {
		return err
	}
	events, err := chain.Events(ctx, 1, head)
	if err != nil {
		return err
	}
	var cms []*big.Int
	for _, ev := range events {
		for _, rec := range c.Audit(auditor, ev) {
			fmt.Fprintf(out, "block %d: %s -> %s, %s ether, valid=%t\n",
				rec.Block, rec.Sender, rec.Receiver, etherOf(rec.Dv), rec.Valid)
		}
		for _, o := range ev.Outputs {
			cms = append(cms, o.Cm)
		}
	}

	fmt.Fprintln(out, "\n5. Accumulating note commitments...")
	acc, err := accumulator.New(secLevel)
	if err != nil {
		return err
	}
	acc.Add(cms...)
	acc.Accumulate()
	a.metrics.AccumulatorOp("accumulate", true)
	proof, err := acc.Compute(cms[:1], accumulator.DefaultBases())
	a.metrics.AccumulatorOp("prove", err == nil)
	if err != nil {
		return err
	}
	ok := acc.Verify(proof)
	a.metrics.AccumulatorOp("verify", ok)
	fmt.Fprintf(out, "membership of %s: %t\n", field.Hex(cms[0]), ok)
	if !ok {
		return errors.New("membership proof rejected")
	}
	fmt.Fprintln(out, "\n=== done ===")
	return nil
}

func etherOf(v *big.Int) string {
	if v == nil {
		return "?"
	}
	return units.EtherString(v)
}
