package land

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"landScope/internal/chain"
)

// revertError mimics the JSON-RPC error a node returns for a reverted eth_call.
type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

// fakeBackend accepts transactions and mines them immediately with a fixed status.
type fakeBackend struct {
	mu sync.Mutex

	status  uint64
	sendErr error
	callErr error
	sent    []*types.Transaction
	replays []ethereum.CallMsg
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays = append(f.replays, msg)
	return nil, f.callErr
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100)}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return f.sendErr
}

func (f *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		Status:      f.status,
		TxHash:      hash,
		BlockNumber: big.NewInt(101),
		GasUsed:     52_000,
	}, nil
}

func newTestWriter(t *testing.T, backend *fakeBackend, decimals uint8) (*Writer, *chain.Signer) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := chain.NewSigner(key, big.NewInt(11155111))
	writer, err := NewWriter(backend, testContract, signer, decimals, nil)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	return writer, signer
}

func unpackInputs(t *testing.T, method string, tx *types.Transaction) []interface{} {
	t.Helper()
	contractABI, err := ContractABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	m := contractABI.Methods[method]
	if len(tx.Data()) < 4 || !bytes.Equal(tx.Data()[:4], m.ID) {
		t.Fatalf("tx does not call %s", method)
	}
	values, err := m.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack %s: %v", method, err)
	}
	return values
}

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		t.Fatalf("string type: %v", err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		t.Fatalf("pack reason: %v", err)
	}
	selector := crypto.Keccak256([]byte("Error(string)"))[:4]
	return hexutil.Encode(append(selector, packed...))
}

func TestWriterCreateSellOrderMined(t *testing.T) {
	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	writer, _ := newTestWriter(t, backend, 18)

	receipt, err := writer.CreateSellOrder(context.Background(), big.NewInt(1000), big.NewInt(5e15))
	if err != nil {
		t.Fatalf("create sell order: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if receipt.TxHash != tx.Hash() || receipt.BlockNumber.Uint64() != 101 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if tx.To() == nil || *tx.To() != testContract {
		t.Fatalf("tx sent to %v", tx.To())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("create sell order carries value %s", tx.Value())
	}
	args := unpackInputs(t, "createSellOrder", tx)
	if args[0].(*big.Int).Int64() != 1000 || args[1].(*big.Int).Int64() != 5e15 {
		t.Fatalf("unexpected args: %v", args)
	}
	if len(backend.replays) != 0 {
		t.Fatalf("successful tx should not be replayed")
	}
}

func TestWriterRevertCarriesReason(t *testing.T) {
	backend := &fakeBackend{
		status:  types.ReceiptStatusFailed,
		callErr: revertError{data: revertData(t, "order inactive")},
	}
	writer, signer := newTestWriter(t, backend, 18)

	receipt, err := writer.CancelSellOrder(context.Background(), big.NewInt(7))
	var txErr *chain.TxError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TxError, got %v", err)
	}
	if txErr.Category != chain.CategoryReverted || txErr.Reason != "order inactive" {
		t.Fatalf("unexpected tx error: %+v", txErr)
	}
	if receipt == nil || receipt.Status != types.ReceiptStatusFailed {
		t.Fatalf("reverted tx should return its receipt")
	}
	if txErr.TxHash != backend.sent[0].Hash().Hex() {
		t.Fatalf("tx hash %q not reported", txErr.TxHash)
	}
	if txErr.Message() != "transaction reverted: order inactive" {
		t.Fatalf("message: %q", txErr.Message())
	}
	if len(backend.replays) != 1 || backend.replays[0].From != signer.Address() {
		t.Fatalf("expected one replay from the signer, got %+v", backend.replays)
	}
}

func TestWriterBuyDerivesValue(t *testing.T) {
	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	writer, _ := newTestWriter(t, backend, 6)

	// 2.5 tokens at 0.004 ETH per token.
	amount := big.NewInt(2_500_000)
	price := big.NewInt(4e15)
	if _, err := writer.BuyFromOrder(context.Background(), big.NewInt(3), amount, price, nil); err != nil {
		t.Fatalf("buy: %v", err)
	}
	tx := backend.sent[0]
	if tx.Value().Cmp(big.NewInt(1e16)) != 0 {
		t.Fatalf("expected value 1e16, got %s", tx.Value())
	}
	args := unpackInputs(t, "buyFromOrder", tx)
	if args[0].(*big.Int).Int64() != 3 || args[1].(*big.Int).Cmp(amount) != 0 {
		t.Fatalf("unexpected args: %v", args)
	}

	explicit := big.NewInt(42)
	if _, err := writer.BuyFromOrder(context.Background(), big.NewInt(3), amount, nil, explicit); err != nil {
		t.Fatalf("buy with value: %v", err)
	}
	if backend.sent[1].Value().Cmp(explicit) != 0 {
		t.Fatalf("explicit value not used: %s", backend.sent[1].Value())
	}
}

func TestWriterSendFailureIsNotRetried(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("insufficient funds for gas * price + value")}
	writer, _ := newTestWriter(t, backend, 18)

	_, err := writer.BuyFromOrder(context.Background(), big.NewInt(1), big.NewInt(1), big.NewInt(1e18), nil)
	var txErr *chain.TxError
	if !errors.As(err, &txErr) || txErr.Category != chain.CategoryInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected a single send attempt, got %d", len(backend.sent))
	}
}

func TestWriterValidation(t *testing.T) {
	if _, err := NewWriter(&fakeBackend{}, testContract, nil, 18, nil); !errors.Is(err, chain.ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}

	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	writer, _ := newTestWriter(t, backend, 18)
	ctx := context.Background()
	if _, err := writer.CreateSellOrder(ctx, big.NewInt(0), big.NewInt(1)); err == nil {
		t.Fatalf("expected zero amount to fail")
	}
	if _, err := writer.BuyFromOrder(ctx, big.NewInt(1), big.NewInt(1), nil, nil); err == nil {
		t.Fatalf("expected missing price and value to fail")
	}
	if _, err := writer.CancelSellOrder(ctx, nil); err == nil {
		t.Fatalf("expected missing order id to fail")
	}
	if len(backend.sent) != 0 {
		t.Fatalf("invalid calls should not send, got %d", len(backend.sent))
	}
}
