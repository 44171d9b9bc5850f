package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"landScope/internal/chain"
	"landScope/internal/config"
	"landScope/internal/land"
	"landScope/internal/rows"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create, cancel, or buy from sell orders with a connected wallet",
	}
	cmd.PersistentFlags().String("private-key", "", "hex private key of the signing account")
	cmd.PersistentFlags().String("keystore", "", "path to an encrypted keystore file")
	cmd.PersistentFlags().String("passphrase", "", "keystore passphrase")

	create := &cobra.Command{
		Use:   "create",
		Short: "Escrow tokens in a new sell order",
		RunE:  runOrderCreate,
	}
	create.Flags().String("amount", "", "tokens to sell, in whole-token units (e.g. 12.5)")
	create.Flags().String("price", "", "price per token in ETH (e.g. 0.005)")
	_ = create.MarkFlagRequired("amount")
	_ = create.MarkFlagRequired("price")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a sell order and reclaim the unsold tokens",
		RunE:  runOrderCancel,
	}
	cancel.Flags().String("order-id", "", "sell order id")
	_ = cancel.MarkFlagRequired("order-id")

	buy := &cobra.Command{
		Use:   "buy",
		Short: "Buy tokens from a sell order",
		RunE:  runOrderBuy,
	}
	buy.Flags().String("order-id", "", "sell order id")
	buy.Flags().String("amount", "", "tokens to buy, in whole-token units")
	buy.Flags().String("value", "", "ETH to send; derived from the order price when empty")
	_ = buy.MarkFlagRequired("order-id")
	_ = buy.MarkFlagRequired("amount")

	cmd.AddCommand(create, cancel, buy)
	return cmd
}

// orderSession holds a connected wallet bound to the contract.
type orderSession struct {
	logger   *zap.Logger
	client   *chain.Client
	reader   *land.Reader
	writer   *land.Writer
	decimals int32
}

func openOrderSession(ctx context.Context, cmd *cobra.Command) (*orderSession, error) {
	cfg, err := config.LoadOrder(loadConfigFile(cmd))
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
	signer, err := chain.Connect(ctx, chainClient, chain.WalletConfig{
		PrivateKey:   cfg.PrivateKey,
		KeystorePath: cfg.KeystorePath,
		Passphrase:   cfg.Passphrase,
	}, chainID)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	reader, err := land.NewReader(chainClient, contract)
	if err != nil {
		chainClient.Close()
		return nil, err
	}
	meta, err := reader.TokenMeta(ctx)
	if err != nil {
		logger.Warn("token metadata unavailable, using default decimals", zap.Error(err))
	}
	writer, err := land.NewWriter(chainClient.Eth(), contract, signer, meta.Decimals, logger)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	logger.Info("wallet connected",
		zap.String("account", signer.Address().Hex()),
		zap.Uint64("chain_id", chainID),
		zap.String("contract", contract.Hex()),
	)
	return &orderSession{
		logger:   logger,
		client:   chainClient,
		reader:   reader,
		writer:   writer,
		decimals: int32(meta.Decimals),
	}, nil
}

func (s *orderSession) Close() {
	s.client.Close()
	_ = s.logger.Sync()
}

func (s *orderSession) report(receipt *types.Receipt, err error) error {
	if err != nil {
		var txErr *chain.TxError
		if errors.As(err, &txErr) {
			s.logger.Error("transaction failed",
				zap.String("category", string(txErr.Category)),
				zap.String("message", txErr.Message()),
			)
			return errors.New(txErr.Message())
		}
		return err
	}
	s.logger.Info("transaction mined",
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	fmt.Println(receipt.TxHash.Hex())
	return nil
}

func runOrderCreate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openOrderSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	amount, err := unitsFlag(cmd, "amount", session.decimals)
	if err != nil {
		return err
	}
	price, err := unitsFlag(cmd, "price", 18)
	if err != nil {
		return err
	}
	return session.report(session.writer.CreateSellOrder(ctx, amount, price))
}

func runOrderCancel(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openOrderSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	orderID, err := orderIDFlag(cmd)
	if err != nil {
		return err
	}
	return session.report(session.writer.CancelSellOrder(ctx, orderID))
}

func runOrderBuy(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := openOrderSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	orderID, err := orderIDFlag(cmd)
	if err != nil {
		return err
	}
	amount, err := unitsFlag(cmd, "amount", session.decimals)
	if err != nil {
		return err
	}

	var value *big.Int
	if raw, _ := cmd.Flags().GetString("value"); raw != "" {
		value, err = unitsFlag(cmd, "value", 18)
		if err != nil {
			return err
		}
	}

	order, err := session.reader.SellOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Active {
		return fmt.Errorf("sell order %s is not active", orderID)
	}
	price, ok := new(big.Int).SetString(order.PricePerTokenWei, 10)
	if !ok {
		return fmt.Errorf("sell order %s has invalid price %q", orderID, order.PricePerTokenWei)
	}
	return session.report(session.writer.BuyFromOrder(ctx, orderID, amount, price, value))
}

func unitsFlag(cmd *cobra.Command, name string, decimals int32) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	value, err := rows.ParseUnits(raw, decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("--%s must be positive", name)
	}
	return value, nil
}

func orderIDFlag(cmd *cobra.Command) (*big.Int, error) {
	raw, _ := cmd.Flags().GetString("order-id")
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid --order-id %q", raw)
	}
	return id, nil
}
