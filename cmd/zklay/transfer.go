package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zklay/internal/address"
	"zklay/internal/client"
	"zklay/internal/field"
	"zklay/internal/ledger"
	"zklay/internal/units"
	"zklay/internal/wallet"
)

func (a *app) transferCmd() *cobra.Command {
	var (
		to, auditPub, noteID, toEoA string
		vPriv, vIn, vOut            string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Build, prove and (on the local network) submit a transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			receiver, err := address.LoadPub(to)
			if err != nil {
				return errors.Wrap(err, "receiver")
			}
			if auditPub == "" {
				auditPub = a.auditAddressPath() + address.PubExt
			}
			auditor, err := address.LoadAuditPub(auditPub)
			if err != nil {
				return errors.Wrap(err, "auditor")
			}
			pocket, err := parsePocket(vPriv, vIn, vOut)
			if err != nil {
				return err
			}
			if toEoA != "" && !common.IsHexAddress(toEoA) {
				return errors.Errorf("invalid --to-eoa %q", toEoA)
			}

			store, w, err := a.openWallet()
			if err != nil {
				return err
			}
			defer store.Close()
			src, local, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			idx, err := noteIndex(w, noteID)
			if err != nil {
				return err
			}
			prover, err := a.prover()
			if err != nil {
				return err
			}

			c := client.New(a.p, src, prover, client.WithLogger(a.log))
			tp, err := c.CreateTransArgs(ctx, w, *auditor, w.Keys(), *receiver, pocket, common.HexToAddress(toEoA), idx)
			if err != nil {
				return err
			}
			if local == nil {
				// submission to a deployed contract is left to the caller
				return printJSON(cmd, tp)
			}
			block, err := local.Submit(tp.Call)
			if err != nil {
				return err
			}
			a.log.Info("transfer submitted", zap.Uint64("block", block), zap.String("nullifier", field.Hex(tp.Call.Nullifier)))
			fmt.Fprintf(cmd.OutOrStdout(), "submitted in block %d\n", block)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&to, "to", "", "receiver public key file")
	f.StringVar(&auditPub, "auditor", "", "auditor public key file (default <audit_address_file>.pub)")
	f.StringVar(&noteID, "note", "", "note to spend: tree address, short commitment or \"auto\"; empty spends nothing")
	f.StringVar(&toEoA, "to-eoa", "", "withdrawal address for --out")
	f.StringVar(&vPriv, "priv", "0", "private amount in ether sent as a note")
	f.StringVar(&vIn, "in", "0", "public amount in ether deposited")
	f.StringVar(&vOut, "out", "0", "amount in ether withdrawn to --to-eoa")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func parsePocket(priv, in, out string) (client.Pocket, error) {
	var vals [3]*big.Int
	for i, s := range []string{priv, in, out} {
		u, err := units.ParseEther(s)
		if err != nil {
			return client.Pocket{}, err
		}
		vals[i] = units.Big(u)
	}
	return client.Pocket{VPriv: vals[0], VIn: vals[1], VOut: vals[2]}, nil
}

// noteIndex resolves id to a position in GetNotes.
func noteIndex(w *wallet.Wallet, id string) (*int, error) {
	if id == "" {
		return nil, nil
	}
	if id == "auto" {
		if _, ok := w.FirstNote(); !ok {
			return nil, errors.New("wallet has no notes")
		}
		zero := 0
		return &zero, nil
	}
	d, ok := w.FindNote(id)
	if !ok {
		return nil, errors.Errorf("no unique note matches %q", id)
	}
	notes, err := w.GetNotes()
	if err != nil {
		return nil, err
	}
	for i, n := range notes {
		if n.Address == d.Address && n.Commitment.Cmp(d.Commitment) == 0 {
			return &i, nil
		}
	}
	return nil, errors.Errorf("note %q disappeared", id)
}

func (a *app) auditCmd() *cobra.Command {
	var from, to uint64
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Decrypt transfers with the auditor key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			auditor, err := address.LoadAuditKeyPair(a.auditAddressPath())
			if err != nil {
				return err
			}
			src, _, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			if to == 0 {
				if to, err = src.Head(ctx); err != nil {
					return err
				}
			}
			if from == 0 {
				from = a.cfg.GenesisBlock()
			}
			var events []ledger.TransferEvent
			if from <= to {
				if events, err = src.Events(ctx, from, to); err != nil {
					return err
				}
			}
			c := client.New(a.p, src, nil, client.WithLogger(a.log))
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ev := range events {
				for _, rec := range c.Audit(auditor, ev) {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first block (default genesis)")
	cmd.Flags().Uint64Var(&to, "to", 0, "last block (default head)")
	return cmd
}
