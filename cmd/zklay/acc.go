package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zklay/internal/accumulator"
)

func (a *app) accCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acc",
		Short: "Maintain the RSA accumulator file and its membership proofs",
	}
	cmd.AddCommand(a.accAddCmd(), a.accAccumulateCmd(), a.accProveCmd(), a.accVerifyCmd())
	return cmd
}

func (a *app) openAccumulator() (*accumulator.Persistent, error) {
	return accumulator.OpenLevel(a.cfg.AccumulatorFile, a.cfg.SecLevel)
}

func parseInts(args []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(args))
	for i, s := range args {
		v, err := parseInt(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (a *app) accAddCmd() *cobra.Command {
	var accumulate bool
	cmd := &cobra.Command{
		Use:   "add <member>...",
		Short: "Append members to the pending list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := parseInts(args)
			if err != nil {
				return err
			}
			acc, err := a.openAccumulator()
			if err != nil {
				return err
			}
			acc.Add(members...)
			if accumulate {
				acc.Accumulate()
			}
			err = acc.Save()
			a.metrics.AccumulatorOp("add", err == nil)
			if err != nil {
				return err
			}
			a.log.Info("accumulator saved", zap.String("path", acc.Path()), zap.Int("members", len(acc.Data.CmList)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&accumulate, "accumulate", false, "recompute ACC after adding")
	return cmd
}

func (a *app) accAccumulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accumulate",
		Short: "Recompute ACC over all members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := a.openAccumulator()
			if err != nil {
				return err
			}
			acc.Accumulate()
			err = acc.Save()
			a.metrics.AccumulatorOp("accumulate", err == nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", acc.Data.ACC)
			return nil
		},
	}
}

func (a *app) accProveCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "prove <member>...",
		Short: "Prove membership of a subset of accumulated members",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := parseInts(args)
			if err != nil {
				return err
			}
			acc, err := a.openAccumulator()
			if err != nil {
				return err
			}
			proof, err := acc.Compute(members, accumulator.DefaultBases())
			a.metrics.AccumulatorOp("prove", err == nil)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd, proof)
			}
			raw, err := json.MarshalIndent(proof, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(out, raw, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the proof to a file instead of stdout")
	return cmd
}

func (a *app) accVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <proof file>",
		Short: "Verify a membership proof against the current ACC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var proof accumulator.Proof
			if err := json.Unmarshal(raw, &proof); err != nil {
				return errors.Wrap(err, "decode proof")
			}
			acc, err := a.openAccumulator()
			if err != nil {
				return err
			}
			ok := acc.Verify(&proof)
			a.metrics.AccumulatorOp("verify", ok)
			if !ok {
				return errors.New("membership proof rejected")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}
