package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMarketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Print the open sell orders as a market snapshot",
		RunE:  runMarket,
	}
	addReadFlags(cmd)
	cmd.Flags().String("account", "", "connected account recorded in the snapshot")
	return cmd
}

func runMarket(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openReadSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	snapshot, err := session.agg.MarketSnapshot(ctx, session.query())
	if err != nil {
		return err
	}

	out, err := session.output()
	if err != nil {
		return err
	}
	defer closeOutput(out, &err)
	if err := out.Write(snapshot); err != nil {
		return err
	}

	session.logger.Info("market snapshot",
		zap.Uint64("chain_id", snapshot.ChainID),
		zap.Uint64("block", snapshot.BlockNumber),
		zap.Int("asks", len(snapshot.Asks)),
	)

	store, err := session.openStore(ctx)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertSellOrders(ctx, session.contract, snapshot); err != nil {
		return fmt.Errorf("store sell orders: %w", err)
	}
	return nil
}
