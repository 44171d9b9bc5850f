package land

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"landScope/internal/chain"
)

// Backend is what the signing view needs from the node; *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Writer is the signing view of the contract. Every call submits one
// transaction, waits for it to be mined, and never retries.
type Writer struct {
	contract *bind.BoundContract
	backend  Backend
	address  common.Address
	signer   *chain.Signer
	decimals uint8
	logger   *zap.Logger
}

// NewWriter binds the signing view. decimals is the token scale used to
// derive the value of a purchase.
func NewWriter(backend Backend, address common.Address, signer *chain.Signer, decimals uint8, logger *zap.Logger) (*Writer, error) {
	if signer == nil {
		return nil, chain.ErrNoWallet
	}
	if backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	contractABI, err := ContractABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Writer{
		contract: bind.NewBoundContract(address, contractABI, backend, backend, backend),
		backend:  backend,
		address:  address,
		signer:   signer,
		decimals: decimals,
		logger:   logger,
	}, nil
}

// CreateSellOrder escrows amount tokens for sale at pricePerTokenWei.
func (w *Writer) CreateSellOrder(ctx context.Context, amount, pricePerTokenWei *big.Int) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if pricePerTokenWei == nil || pricePerTokenWei.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}
	return w.transact(ctx, "create sell order", nil, "createSellOrder", amount, pricePerTokenWei)
}

// CancelSellOrder returns the unsold remainder of an order to its seller.
func (w *Writer) CancelSellOrder(ctx context.Context, orderID *big.Int) (*types.Receipt, error) {
	if orderID == nil {
		return nil, fmt.Errorf("order id is required")
	}
	return w.transact(ctx, "cancel sell order", nil, "cancelSellOrder", orderID)
}

// BuyFromOrder buys amount tokens from an order. A nil valueWei is derived from
// the order price as amount*price/10^decimals.
func (w *Writer) BuyFromOrder(ctx context.Context, orderID, amount, pricePerTokenWei, valueWei *big.Int) (*types.Receipt, error) {
	if orderID == nil {
		return nil, fmt.Errorf("order id is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if valueWei == nil {
		if pricePerTokenWei == nil {
			return nil, fmt.Errorf("price or value is required")
		}
		valueWei = OrderCost(amount, pricePerTokenWei, w.decimals)
	}
	return w.transact(ctx, "buy from order", valueWei, "buyFromOrder", orderID, amount)
}

// OrderCost is the wei due for amount base units at pricePerTokenWei per
// whole token of the given decimals.
func OrderCost(amount, pricePerTokenWei *big.Int, decimals uint8) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	cost := new(big.Int).Mul(amount, pricePerTokenWei)
	return cost.Div(cost, unit)
}

func (w *Writer) transact(ctx context.Context, op string, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := w.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := w.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, chain.ClassifyTxError(op, err)
	}
	w.logger.Info("transaction sent", zap.String("op", op), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, w.backend, tx)
	if err != nil {
		txErr := chain.ClassifyTxError(op, err)
		txErr.TxHash = tx.Hash().Hex()
		return nil, txErr
	}

	if receipt.Status == types.ReceiptStatusFailed {
		txErr := &chain.TxError{
			Op:       op,
			Category: chain.CategoryReverted,
			Reason:   w.revertReason(ctx, tx, receipt),
			TxHash:   tx.Hash().Hex(),
		}
		w.logger.Warn("transaction reverted", zap.String("op", op), zap.String("tx", txErr.TxHash), zap.String("reason", txErr.Reason))
		return receipt, txErr
	}

	w.logger.Info("transaction mined",
		zap.String("op", op),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}

// revertReason replays the failed transaction as a call at its block.
func (w *Writer) revertReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) string {
	msg := ethereum.CallMsg{
		From:  w.signer.Address(),
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := w.backend.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return ""
	}
	return chain.ClassifyTxError("replay", err).Reason
}
