package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landScope/internal/aggregate"
	"landScope/internal/chain"
	"landScope/internal/config"
	"landScope/internal/land"
	"landScope/internal/storage/postgres"
)

func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("lookback", 0, "blocks back from --to (default 50000 when --from is unset)")
	cmd.Flags().Uint64("batch-size", 5000, "blocks per log query")
	cmd.Flags().Int("concurrency", 4, "max concurrent hydration calls")
	cmd.Flags().Bool("order-plots", true, "link sell orders to plots")
	cmd.Flags().String("out", "", "output JSONL path (default stdout)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN to persist results")
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent contract activity as event rows",
		RunE:  runHistory,
	}
	addReadFlags(cmd)
	cmd.Flags().Int("limit", 50, "keep only the most recent N rows, 0 keeps all")
	cmd.Flags().String("account", "", "only rows where the account is a counterparty")
	cmd.Flags().StringSlice("types", nil, "only these event types (e.g. TRANSFER,SELL_ORDER_FILLED)")
	cmd.Flags().Bool("timestamps", true, "resolve block timestamps")
	cmd.Flags().Bool("stats", false, "print dashboard stats instead of rows")
	return cmd
}

// readSession is the shared state of the read commands.
type readSession struct {
	cfg      config.ReadConfig
	logger   *zap.Logger
	client   *chain.Client
	agg      *aggregate.Aggregator
	contract string
	chainID  uint64
}

func openReadSession(ctx context.Context, cmd *cobra.Command) (*readSession, error) {
	cfg, err := config.LoadRead(loadConfigFile(cmd))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	chainClient, contract, chainID, err := setup(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}

	reader, err := land.NewReader(chainClient, contract)
	if err != nil {
		chainClient.Close()
		return nil, err
	}
	meta, err := reader.TokenMeta(ctx)
	if err != nil {
		logger.Warn("token metadata unavailable, using defaults", zap.Error(err))
	}

	agg, err := aggregate.NewAggregator(aggregate.Config{
		Contract:    contract,
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Retry:       retryPolicy(cfg.Common),
		TokenMeta:   meta,
	}, chainClient, logger)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	return &readSession{
		cfg:      cfg,
		logger:   logger,
		client:   chainClient,
		agg:      agg,
		contract: contract.Hex(),
		chainID:  chainID,
	}, nil
}

func (s *readSession) Close() {
	s.client.Close()
	_ = s.logger.Sync()
}

func (s *readSession) query() aggregate.Query {
	return aggregate.Query{
		FromBlock:      s.cfg.FromBlock,
		ToBlock:        s.cfg.ToBlock,
		Lookback:       s.cfg.Lookback,
		Limit:          s.cfg.Limit,
		Account:        s.cfg.Account,
		Types:          s.cfg.Types,
		WithTimestamps: s.cfg.WithTimestamps,
		WithOrderPlots: s.cfg.WithOrderPlots,
	}
}

func (s *readSession) output() (*jsonlWriter, error) {
	if s.cfg.Out == "" {
		return newStdoutWriter(), nil
	}
	return newJSONLWriter(s.cfg.Out, true)
}

func (s *readSession) openStore(ctx context.Context) (*postgres.Store, error) {
	if s.cfg.PGDSN == "" {
		return nil, nil
	}
	store, err := postgres.NewStore(ctx, s.cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func runHistory(cmd *cobra.Command, _ []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openReadSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	out, err := session.output()
	if err != nil {
		return err
	}
	defer closeOutput(out, &err)

	if statsOnly, _ := cmd.Flags().GetBool("stats"); statsOnly {
		stats, err := session.agg.Dashboard(ctx, session.query())
		if err != nil {
			return err
		}
		return out.Write(stats)
	}

	page, err := session.agg.Rows(ctx, session.query())
	if err != nil {
		return err
	}
	for _, row := range page.Rows {
		if err := out.Write(row); err != nil {
			return err
		}
	}

	session.logger.Info("history complete",
		zap.Uint64("chain_id", page.ChainID),
		zap.Uint64("from", page.FromBlock),
		zap.Uint64("to", page.ToBlock),
		zap.Int("rows", len(page.Rows)),
		zap.Bool("truncated", page.Truncated),
		zap.Uint64("next_to_block", page.Cursor.NextToBlock),
	)

	store, err := session.openStore(ctx)
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertEventRows(ctx, session.contract, page.Rows); err != nil {
		return fmt.Errorf("store rows: %w", err)
	}
	return store.SaveState(ctx, postgres.StateName(page.ChainID, session.contract), page.ToBlock)
}
