package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zklay/internal/metrics"
	"zklay/internal/note"
	"zklay/internal/units"
	"zklay/internal/wallet"
)

func (a *app) syncCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Scan the ledger for notes addressed to the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, w, err := a.openWallet()
			if err != nil {
				return err
			}
			defer store.Close()
			src, _, err := a.openLedger(ctx)
			if err != nil {
				return err
			}
			syncer := wallet.NewSyncer(src, w, a.cfg.SyncBatchSize, a.log.Logger, a.metrics)

			if !watch {
				res, err := syncer.Sync(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "synced blocks %d..%d: %d received, %d spent\n",
					res.From, res.To, res.Received, res.Spent)
				return nil
			}
			return a.watch(ctx, src, syncer)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep syncing every sync_interval and serve /metrics and /health")
	return cmd
}

func (a *app) watch(ctx context.Context, src ledgerSource, syncer *wallet.Syncer) error {
	hc := NewHealthChecker()
	hc.RegisterComponent("ledger", func() error {
		_, err := src.Head(ctx)
		return err
	})
	hc.RegisterComponent("sync", nil)

	if a.cfg.MetricsAddr != "" {
		go func() {
			err := a.metrics.Serve(ctx, a.cfg.MetricsAddr, a.log.Logger, metrics.Route{Path: "/health", Handler: hc})
			if err != nil {
				a.log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	a.log.Info("watching ledger", zap.Duration("interval", a.cfg.SyncInterval))
	err := syncer.Run(ctx, a.cfg.SyncInterval, func(_ *wallet.Result, err error) {
		if err != nil {
			hc.UpdateComponent("sync", Degraded, err.Error())
			return
		}
		hc.UpdateComponent("sync", Healthy, "OK")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) lsNotesCmd() *cobra.Command {
	var spent bool
	var find string
	cmd := &cobra.Command{
		Use:   "ls-notes",
		Short: "List the wallet's notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, w, err := a.openWallet()
			if err != nil {
				return err
			}
			defer store.Close()

			if find != "" {
				var d *note.Description
				var ok bool
				if find == "auto" {
					d, ok = w.FirstNote()
				} else {
					d, ok = w.FindNote(find)
				}
				if !ok {
					return errors.Errorf("no unique note matches %q", find)
				}
				return printJSON(cmd, d)
			}

			list := w.NoteSummaries
			if spent {
				list = w.SpentNoteSummaries
			}
			sums, err := list()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tCOMMITMENT\tVALUE")
			for _, s := range sums {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Address, s.ShortCommitment, units.EtherString(s.Value))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&spent, "spent", false, "list spent notes instead")
	cmd.Flags().StringVar(&find, "find", "", "show one note by tree address, short commitment or \"auto\"")
	return cmd
}
