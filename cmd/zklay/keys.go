package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"zklay/internal/address"
	"zklay/internal/field"
	"zklay/internal/hash"
)

func (a *app) genAddressCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen-address",
		Short: "Generate a user key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = a.addressPath()
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			kp, err := address.Generate(a.p)
			if err != nil {
				return err
			}
			if err := address.WriteKeyPair(path, kp); err != nil {
				return err
			}
			a.log.Info("generated address")
			return printJSON(cmd, kp.Pub)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "secret key file (public key goes to <out>.pub)")
	return cmd
}

func (a *app) genAuditAddressCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gen-audit-address",
		Short: "Generate an auditor key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := out
			if path == "" {
				path = a.auditAddressPath()
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			kp, err := address.GenerateAudit(a.p)
			if err != nil {
				return err
			}
			if err := address.WriteAuditKeyPair(path, kp); err != nil {
				return err
			}
			a.log.Info("generated audit address")
			return printJSON(cmd, kp.Pub)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "secret key file (public key goes to <out>.pub)")
	return cmd
}

func (a *app) hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <value>...",
		Short: "Hash decimal or 0x-prefixed hex values with the configured hash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]any, len(args))
			for i, s := range args {
				v, err := parseInt(s)
				if err != nil {
					return err
				}
				inputs[i] = v
			}
			h, err := hash.Sum(a.p.Hash, inputs...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), field.Hex(h))
			return nil
		},
	}
}

// parseInt reads a decimal or 0x-prefixed hex integer.
func parseInt(s string) (*big.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return field.ParseHex(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid integer %q", s)
	}
	return v, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
