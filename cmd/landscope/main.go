package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"landScope/internal/chain"
	"landScope/internal/config"
	"landScope/internal/indexer"
	"landScope/internal/land"
	"landScope/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "landscope",
		Short:        "Read model builder for the land-compensation contract",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFiles(envFile)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("env-file", "", ".env file to load (default: .env.local and .env when present)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("rpc", "", "RPC URL (http or ws)")
	pf.String("contract", "", "land-compensation contract address")
	pf.Uint64("chain-id", 0, "expected chain id, 0 skips the check")
	pf.Float64("rps", 0, "max RPC requests per second, 0 means unlimited")
	pf.Int("max-retries", 5, "maximum retry attempts for log reads")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Stream raw contract logs into JSONL",
		RunE:  runIndexer,
	}
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "contract addresses (default: --contract)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (default: every contract event)")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	root.AddCommand(runCmd)

	root.AddCommand(newDecodeCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newMarketCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newOrderCmd())

	return root
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	contract, err := config.ContractAddress(cfg.Contract)
	if err != nil && len(cfg.Addresses) == 0 {
		return err
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		decoder, err := land.NewDecoder()
		if err != nil {
			return err
		}
		topic0 = decoder.Topic0()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, _, err := connect(ctx, cfg.Common)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storageSink, logger)

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", contract.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

// connect dials the node and checks the expected chain id.
func connect(ctx context.Context, cfg config.Common) (*chain.Client, uint64, error) {
	if cfg.RPCURL == "" {
		return nil, 0, fmt.Errorf("rpc url is required")
	}
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{RequestsPerSecond: cfg.RequestsPerSecond})
	if err != nil {
		return nil, 0, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := chainClient.EnsureChainID(ctx, cfg.ChainID)
	if err != nil {
		chainClient.Close()
		return nil, 0, err
	}
	return chainClient, chainID, nil
}

// setup validates the contract before any RPC is attempted, then connects.
func setup(ctx context.Context, cfg config.Common) (*chain.Client, common.Address, uint64, error) {
	contract, err := config.ContractAddress(cfg.Contract)
	if err != nil {
		return nil, common.Address{}, 0, err
	}
	chainClient, chainID, err := connect(ctx, cfg)
	if err != nil {
		return nil, common.Address{}, 0, err
	}
	return chainClient, contract, chainID, nil
}

func retryPolicy(cfg config.Common) chain.RetryPolicy {
	return chain.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
}

func loadConfigFile(cmd *cobra.Command) (string, *pflag.FlagSet) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile, cmd.Flags()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
